package client

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/chain"
	"github.com/Pradise2/FlipIt/watcher"
)

// Backend is the chain surface the client needs. *chain.Session implements it;
// tests substitute fakes.
type Backend interface {
	Connected() bool
	Owner() common.Address
	ContractAddress() common.Address

	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenSymbol(ctx context.Context, token common.Address) (string, error)
	Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TreasuryBalance(ctx context.Context, token common.Address) (*big.Int, error)
	Game(ctx context.Context, id uint64) (*chain.Game, error)
	GameDetails(ctx context.Context, id uint64) (*chain.GameDetails, error)
	HasWithdrawn(ctx context.Context, id uint64, player common.Address) (bool, error)

	Approve(ctx context.Context, token common.Address, amount *big.Int) (*chain.PendingTx, error)
	Flip(ctx context.Context, face bool, token common.Address, amount *big.Int) (*chain.PendingTx, error)
	CreateGame(ctx context.Context, amount *big.Int, token common.Address, face bool, timeout time.Duration) (*chain.PendingTx, error)
	JoinGame(ctx context.Context, id uint64) (*chain.PendingTx, error)
	ResolveGame(ctx context.Context, id uint64) (*chain.PendingTx, error)
	CancelGame(ctx context.Context, id uint64) (*chain.PendingTx, error)
	WithdrawReward(ctx context.Context, id uint64) (*chain.PendingTx, error)
	DepositTreasury(ctx context.Context, token common.Address, amount *big.Int) (*chain.PendingTx, error)
	WaitMined(ctx context.Context, p *chain.PendingTx) (*chain.Receipt, error)
}

// ResolutionWatcher is the fulfillment observation surface.
// *watcher.Watcher implements it.
type ResolutionWatcher interface {
	Subscribe(requestID *big.Int) (<-chan watcher.Fulfillment, func())
}

// StatusUpdate is pushed to the UI on every phase change.
type StatusUpdate struct {
	Phase   Phase
	Message string
}

// FlipClient drives wager attempts against the FlipIt contract and holds the
// UI-visible state for the current attempt. Exactly one attempt may be in
// flight at a time.
type FlipClient struct {
	sync.RWMutex

	cfg *AppConfig
	log slog.Logger
	be  Backend
	res ResolutionWatcher

	phase       Phase
	pending     *PendingBet
	outcome     *SettledOutcome
	flowErr     *flipit.FlowError
	cancelWatch func()
	abort       chan struct{}

	// Last fetched balance/symbol pair and the token it belongs to; the
	// pair is always updated together.
	token   common.Address
	balance *big.Int
	symbol  string

	UpdatesCh chan StatusUpdate
	ErrorsCh  chan error
}

func NewFlipClient(cfg *AppConfig, log slog.Logger, be Backend, res ResolutionWatcher) (*FlipClient, error) {
	if log == nil {
		return nil, fmt.Errorf("client must have logger")
	}
	if be == nil {
		return nil, fmt.Errorf("client must have a chain backend")
	}
	return &FlipClient{
		cfg:       cfg,
		log:       log,
		be:        be,
		res:       res,
		phase:     PhaseIdle,
		UpdatesCh: make(chan StatusUpdate, 64),
		ErrorsCh:  make(chan error, 8),
	}, nil
}

// Owner returns the connected wallet address, zero when read-only.
func (c *FlipClient) Owner() common.Address {
	return c.be.Owner()
}

// Phase returns the current attempt phase.
func (c *FlipClient) Phase() Phase {
	c.RLock()
	defer c.RUnlock()
	return c.phase
}

// Pending returns the in-flight bet, if any.
func (c *FlipClient) Pending() *PendingBet {
	c.RLock()
	defer c.RUnlock()
	return c.pending
}

// Outcome returns the settled outcome of the current attempt, if any.
func (c *FlipClient) Outcome() *SettledOutcome {
	c.RLock()
	defer c.RUnlock()
	return c.outcome
}

// LastError returns the flow error that moved the attempt to PhaseErrored.
func (c *FlipClient) LastError() *flipit.FlowError {
	c.RLock()
	defer c.RUnlock()
	return c.flowErr
}

// BalanceAndSymbol returns the last fetched pair for the selected token.
func (c *FlipClient) BalanceAndSymbol() (*big.Int, string) {
	c.RLock()
	defer c.RUnlock()
	return c.balance, c.symbol
}

func (c *FlipClient) setPhase(p Phase, msg string) {
	c.Lock()
	c.phase = p
	c.Unlock()
	c.notify(StatusUpdate{Phase: p, Message: msg})
}

func (c *FlipClient) notify(u StatusUpdate) {
	select {
	case c.UpdatesCh <- u:
	default:
		// Drop if the UI is slow.
	}
}

func (c *FlipClient) reportErr(err error) {
	select {
	case c.ErrorsCh <- err:
	default:
	}
}
