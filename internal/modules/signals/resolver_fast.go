package signals

import "github.com/aristath/screener/internal/domain"

// Transition table indexed by state<<2 | entry<<1 | exit.
var (
	fastNext = [8]uint8{
		0, 0, 1, 0, // FLAT: none, exit, entry, entry+exit
		1, 0, 1, 0, // IN_POSITION
	}
	fastEvent = [8]uint8{
		eventNone, eventNone, eventEntry, eventNone,
		eventNone, eventExit, eventNone, eventExit,
	}
)

const (
	eventNone uint8 = iota
	eventEntry
	eventExit
)

// Fast is the table-driven resolver used on the sweep hot path. It makes the
// same decisions as Portable on every input.
type Fast struct{}

// Name implements Resolver
func (Fast) Name() string { return ResolverFast }

// Resolve implements Resolver
func (Fast) Resolve(entry, exit []bool) (Resolution, error) {
	if err := checkAligned(entry, exit); err != nil {
		return Resolution{}, err
	}

	n := len(entry)
	states := make([]domain.PositionState, n)
	trades := make([]domain.TradeSpan, 0, 16)
	if n == 0 {
		return Resolution{States: states, Trades: trades}, nil
	}

	// Reslice so the compiler can drop bounds checks in the loop
	exit = exit[:n]
	states = states[:n]

	var state uint8
	for bar := 0; bar < n; bar++ {
		idx := state<<2 | b2u(entry[bar])<<1 | b2u(exit[bar])
		switch fastEvent[idx] {
		case eventEntry:
			trades = append(trades, domain.TradeSpan{EntryBar: bar, ExitBar: domain.NoExit})
		case eventExit:
			trades[len(trades)-1].ExitBar = bar
		}
		state = fastNext[idx]
		states[bar] = domain.PositionState(state)
	}

	return Resolution{States: states, Trades: trades}, nil
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
