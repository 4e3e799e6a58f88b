package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	flipit "github.com/Pradise2/FlipIt"
)

// Game is the decoded games(gameId) record.
type Game struct {
	ID            uint64
	Player1       common.Address
	Player2       common.Address
	BetAmount     *big.Int
	Token         common.Address
	Player1Choice bool
	IsCompleted   bool
	CreatedAt     time.Time
	Timeout       time.Duration
}

// GameDetails is the decoded getFullGameDetails(gameId) record.
type GameDetails struct {
	ID        uint64
	Player1   common.Address
	Player2   common.Address
	BetAmount *big.Int
	Token     common.Address
	State     flipit.GameState
	Winner    common.Address
	WinAmount *big.Int
	CreatedAt time.Time
	Timeout   time.Duration
}

// TimeLeft returns how long until the game expires relative to now. Zero or
// negative means expired.
func (g *GameDetails) TimeLeft(now time.Time) time.Duration {
	return g.CreatedAt.Add(g.Timeout).Sub(now)
}

// BetStatus is the decoded getBetStatus(requestId) record. Won, RolledFace and
// Payout are only meaningful once Fulfilled is true.
type BetStatus struct {
	Fulfilled  bool
	Won        bool
	RolledFace bool
	Payout     *big.Int
}

// Outcome is a settled wager result, from getGameOutcome or a BetResult log.
type Outcome struct {
	RequestID  *big.Int
	Won        bool
	RolledFace bool
	Payout     *big.Int
}

// PendingTx is a submitted, not yet mined transaction.
type PendingTx struct {
	Hash common.Hash
	tx   *types.Transaction
}

// Receipt is a confirmed transaction with its emitted logs.
type Receipt struct {
	TxHash common.Hash
	Status uint64
	Logs   []*types.Log
}
