package signals

import (
	"fmt"

	"github.com/aristath/screener/internal/domain"
)

// Resolution is the output of a Resolver: the state at the end of every bar
// and the entry/exit pairs on signaled bars.
type Resolution struct {
	States []domain.PositionState
	Trades []domain.TradeSpan
}

// Resolver converts aligned entry/exit signals into position states.
//
// Transition rule per bar, in priority order:
//  1. IN_POSITION and exit fires: go FLAT, record the exit
//  2. FLAT, entry fires and exit does not: go IN_POSITION, record the entry
//  3. otherwise no transition
//
// A bar with both signals ends FLAT. Entries while IN_POSITION are ignored.
// The scan is sequential over bars and must not be split across time.
type Resolver interface {
	Name() string
	Resolve(entry, exit []bool) (Resolution, error)
}

// Resolver names accepted by ByName
const (
	ResolverFast     = "fast"
	ResolverPortable = "portable"
)

// Default returns the fastest available resolver
func Default() Resolver {
	return Fast{}
}

// ByName selects a resolver implementation. An empty name selects Default.
func ByName(name string) (Resolver, error) {
	switch name {
	case "", ResolverFast:
		return Fast{}, nil
	case ResolverPortable:
		return Portable{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown resolver %q", domain.ErrInvalidParams, name)
	}
}

func checkAligned(entry, exit []bool) error {
	if len(entry) != len(exit) {
		return fmt.Errorf("%w: entry=%d exit=%d", domain.ErrShapeMismatch, len(entry), len(exit))
	}
	return nil
}

// Portable is the reference state machine, written for clarity.
type Portable struct{}

// Name implements Resolver
func (Portable) Name() string { return ResolverPortable }

// Resolve implements Resolver
func (Portable) Resolve(entry, exit []bool) (Resolution, error) {
	if err := checkAligned(entry, exit); err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		States: make([]domain.PositionState, len(entry)),
		Trades: []domain.TradeSpan{},
	}
	state := domain.Flat

	for bar := range entry {
		switch {
		case state == domain.InPosition && exit[bar]:
			state = domain.Flat
			res.Trades[len(res.Trades)-1].ExitBar = bar
		case state == domain.Flat && entry[bar] && !exit[bar]:
			state = domain.InPosition
			res.Trades = append(res.Trades, domain.TradeSpan{EntryBar: bar, ExitBar: domain.NoExit})
		}
		res.States[bar] = state
	}

	return res, nil
}
