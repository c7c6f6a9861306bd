package domain

import "fmt"

// PositionState is the per-bar state produced by a signal resolver
type PositionState uint8

const (
	// Flat means no open position at the end of the bar
	Flat PositionState = iota
	// InPosition means a long position is held at the end of the bar
	InPosition
)

// String implements fmt.Stringer
func (s PositionState) String() string {
	switch s {
	case Flat:
		return "FLAT"
	case InPosition:
		return "IN_POSITION"
	default:
		return fmt.Sprintf("PositionState(%d)", uint8(s))
	}
}

// NoExit marks a TradeSpan still open at the end of the series
const NoExit = -1

// TradeSpan is one entry/exit pair on signaled bars
type TradeSpan struct {
	EntryBar int
	ExitBar  int // NoExit when still open
}

// Open reports whether the span has no exit signal
func (t TradeSpan) Open() bool {
	return t.ExitBar == NoExit
}

// FillTiming selects which bar's price executes a signaled trade
type FillTiming string

const (
	// FillClose fills at the signal bar's close
	FillClose FillTiming = "close"
	// FillNextOpen fills at the following bar's open
	FillNextOpen FillTiming = "next_open"
)

// ParseFillTiming parses a fill timing name.
func ParseFillTiming(s string) (FillTiming, error) {
	switch FillTiming(s) {
	case FillClose, FillNextOpen:
		return FillTiming(s), nil
	case "immediate":
		return FillClose, nil
	default:
		return "", fmt.Errorf("%w: unknown fill timing %q", ErrInvalidParams, s)
	}
}

// Delay returns the number of bars between the signal and the fill
func (f FillTiming) Delay() int {
	if f == FillNextOpen {
		return 1
	}
	return 0
}
