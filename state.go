package flipit

// GameState mirrors the contract's game state enum.
type GameState uint8

const (
	StateAvailable GameState = iota // open, waiting for an opponent
	StateActive                     // both players in, awaiting resolution
	StateClaimable                  // resolved, reward not yet withdrawn
	StateCompleted                  // terminal
)

func (s GameState) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StateActive:
		return "active"
	case StateClaimable:
		return "claimable"
	case StateCompleted:
		return "completed"
	}
	return "unknown"
}
