// Package validation estimates how much of a backtest's in-sample edge
// survives out of sample, by combinatorially splitting a return matrix into
// contiguous blocks.
package validation

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
	"gonum.org/v1/gonum/stat/combin"
)

// DefaultBlocks is the default number of contiguous blocks
const DefaultBlocks = 16

// RemainderPolicy decides what happens when T is not a multiple of S
type RemainderPolicy string

const (
	// RemainderError rejects a series length that is not a multiple of the block count
	RemainderError RemainderPolicy = "error"
	// RemainderTrimHead drops the oldest T mod S rows
	RemainderTrimHead RemainderPolicy = "trim_head"
	// RemainderSpread gives the first T mod S blocks one extra row each
	RemainderSpread RemainderPolicy = "spread"
)

// ParseRemainderPolicy parses a policy name. The empty string selects RemainderError.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(s) {
	case "":
		return RemainderError, nil
	case RemainderError, RemainderTrimHead, RemainderSpread:
		return RemainderPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown remainder policy %q", domain.ErrInvalidBlocks, s)
	}
}

// Block is the half-open row range [Start, End)
type Block struct {
	Start int
	End   int
}

// Len returns the number of rows in the block
func (b Block) Len() int {
	return b.End - b.Start
}

// Partition splits T rows into S contiguous blocks
type Partition struct {
	Blocks []Block
	Rows   int // rows covered by the blocks
}

// NewPartition partitions t rows into s blocks. s must be even and at least
// 2, and t at least s.
func NewPartition(t, s int, policy RemainderPolicy) (Partition, error) {
	if s < 2 || s%2 != 0 {
		return Partition{}, fmt.Errorf("%w: block count must be even and >= 2, got %d", domain.ErrInvalidBlocks, s)
	}
	if t < s {
		return Partition{}, fmt.Errorf("%w: %d rows cannot fill %d blocks", domain.ErrInvalidBlocks, t, s)
	}
	if policy == "" {
		policy = RemainderError
	}

	size, rem := t/s, t%s
	offset := 0
	switch policy {
	case RemainderError:
		if rem != 0 {
			return Partition{}, fmt.Errorf("%w: %d rows not divisible by %d blocks (remainder %d)",
				domain.ErrInvalidBlocks, t, s, rem)
		}
	case RemainderTrimHead:
		offset = rem
		rem = 0
	case RemainderSpread:
	default:
		return Partition{}, fmt.Errorf("%w: unknown remainder policy %q", domain.ErrInvalidBlocks, policy)
	}

	blocks := make([]Block, s)
	start := offset
	for i := range blocks {
		n := size
		if i < rem {
			n++
		}
		blocks[i] = Block{Start: start, End: start + n}
		start += n
	}
	return Partition{Blocks: blocks, Rows: t - offset}, nil
}

// NumCombinations returns C(S, S/2)
func (p Partition) NumCombinations() int {
	s := len(p.Blocks)
	return combin.Binomial(s, s/2)
}

// Split maps combination index c to its in-sample and out-of-sample block
// sets. Combinations are in lexicographic order of the in-sample set. isDst
// and oosDst are reused when large enough.
func (p Partition) Split(c int, isDst, oosDst []int) (is, oos []int) {
	s := len(p.Blocks)
	if cap(isDst) < s/2 {
		isDst = make([]int, s/2)
	}
	is = combin.IndexToCombination(isDst[:s/2], c, s, s/2)

	oos = oosDst[:0]
	j := 0
	for b := 0; b < s; b++ {
		if j < len(is) && is[j] == b {
			j++
			continue
		}
		oos = append(oos, b)
	}
	return is, oos
}

// gather copies col's rows for the given blocks, in block order, into dst
// and returns the filled prefix.
func (p Partition) gather(col []float64, blocks []int, dst []float64) []float64 {
	dst = dst[:0]
	for _, b := range blocks {
		blk := p.Blocks[b]
		dst = append(dst, col[blk.Start:blk.End]...)
	}
	return dst
}
