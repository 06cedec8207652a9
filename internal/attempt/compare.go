package attempt

// Side names one of the two copies being compared.
type Side int

const (
	Current Side = iota
	Incoming
)

func (s Side) String() string {
	if s == Incoming {
		return "incoming"
	}
	return "current"
}

// LastWriteWins decides which copy of a record survives. The copy with the
// strictly greater stamp wins; equal stamps resolve to tie.
//
// The remote store calls it with tie=Current (stored copy kept on a retried
// push) and the sync client with tie=Incoming (remote copy replaces local on
// pull), so a tie always resolves to the remote store's version.
func LastWriteWins(current, incoming Attempt, tie Side) Side {
	c, i := current.Stamp(), incoming.Stamp()
	switch {
	case i > c:
		return Incoming
	case i < c:
		return Current
	default:
		return tie
	}
}
