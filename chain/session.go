package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	flipit "github.com/Pradise2/FlipIt"
)

// Session is the single chain access point: typed reads against the game
// contract and supported tokens (primary provider first, fallback second) and
// signed writes (primary only, so a flaky provider can never double-submit).
type Session struct {
	log       slog.Logger
	providers *Providers
	addr      common.Address
	signer    Signer
}

func NewSession(log slog.Logger, providers *Providers, contract common.Address, signer Signer) *Session {
	return &Session{
		log:       log,
		providers: providers,
		addr:      contract,
		signer:    signer,
	}
}

// ContractAddress returns the game contract (also the ERC-20 spender).
func (s *Session) ContractAddress() common.Address { return s.addr }

// Owner returns the signing address, or the zero address when no signer is
// attached (read-only session).
func (s *Session) Owner() common.Address {
	if s.signer == nil {
		return common.Address{}
	}
	return s.signer.Address()
}

// Connected reports whether this session can sign writes.
func (s *Session) Connected() bool { return s.signer != nil }

func (s *Session) bound(ec *ethclient.Client) *bind.BoundContract {
	return bind.NewBoundContract(s.addr, FlipABI, ec, ec, ec)
}

func (s *Session) boundToken(token common.Address, ec *ethclient.Client) *bind.BoundContract {
	return bind.NewBoundContract(token, ERC20ABI, ec, ec, ec)
}

// call runs a read against the primary provider, retrying once on the
// fallback. target selects which bound contract to call for a given client.
func (s *Session) call(ctx context.Context, target func(*ethclient.Client) *bind.BoundContract,
	out *[]interface{}, method string, args ...interface{}) error {

	opts := &bind.CallOpts{Context: ctx}

	primErr := fmt.Errorf("primary unavailable")
	if ec, err := s.providers.Primary(ctx); err == nil {
		if primErr = target(ec).Call(opts, out, method, args...); primErr == nil {
			return nil
		}
		s.log.Debugf("chain: primary %s failed: %v", method, primErr)
	} else {
		primErr = err
	}

	ec, err := s.providers.Fallback(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, primErr)
	}
	*out = (*out)[:0]
	if err := target(ec).Call(opts, out, method, args...); err != nil {
		return fmt.Errorf("call %s (fallback): %w", method, err)
	}
	return nil
}

func (s *Session) callGame(ctx context.Context, out *[]interface{}, method string, args ...interface{}) error {
	return s.call(ctx, s.bound, out, method, args...)
}

func (s *Session) callToken(ctx context.Context, token common.Address, out *[]interface{}, method string, args ...interface{}) error {
	return s.call(ctx, func(ec *ethclient.Client) *bind.BoundContract {
		return s.boundToken(token, ec)
	}, out, method, args...)
}

// ----- game contract reads -----

func (s *Session) GameIDCounter(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "gameIdCounter"); err != nil {
		return 0, err
	}
	return out[0].(*big.Int).Uint64(), nil
}

func (s *Session) Game(ctx context.Context, id uint64) (*Game, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "games", new(big.Int).SetUint64(id)); err != nil {
		return nil, err
	}
	return &Game{
		ID:            id,
		Player1:       out[0].(common.Address),
		Player2:       out[1].(common.Address),
		BetAmount:     out[2].(*big.Int),
		Token:         out[3].(common.Address),
		Player1Choice: out[4].(bool),
		IsCompleted:   out[5].(bool),
		CreatedAt:     time.Unix(out[6].(*big.Int).Int64(), 0),
		Timeout:       time.Duration(out[7].(*big.Int).Int64()) * time.Second,
	}, nil
}

func (s *Session) GameDetails(ctx context.Context, id uint64) (*GameDetails, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "getFullGameDetails", new(big.Int).SetUint64(id)); err != nil {
		return nil, err
	}
	return &GameDetails{
		ID:        id,
		Player1:   out[0].(common.Address),
		Player2:   out[1].(common.Address),
		BetAmount: out[2].(*big.Int),
		Token:     out[3].(common.Address),
		State:     flipit.GameState(out[4].(uint8)),
		Winner:    out[5].(common.Address),
		WinAmount: out[6].(*big.Int),
		CreatedAt: time.Unix(out[7].(*big.Int).Int64(), 0),
		Timeout:   time.Duration(out[8].(*big.Int).Int64()) * time.Second,
	}, nil
}

func (s *Session) BetStatus(ctx context.Context, requestID *big.Int) (*BetStatus, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "getBetStatus", requestID); err != nil {
		return nil, err
	}
	return &BetStatus{
		Fulfilled:  out[0].(bool),
		Won:        out[1].(bool),
		RolledFace: out[2].(bool),
		Payout:     out[3].(*big.Int),
	}, nil
}

func (s *Session) GameOutcome(ctx context.Context, requestID *big.Int) (*Outcome, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "getGameOutcome", requestID); err != nil {
		return nil, err
	}
	return &Outcome{
		RequestID:  requestID,
		Won:        out[0].(bool),
		RolledFace: out[1].(bool),
		Payout:     out[2].(*big.Int),
	}, nil
}

func (s *Session) HasWithdrawn(ctx context.Context, id uint64, player common.Address) (bool, error) {
	var out []interface{}
	if err := s.callGame(ctx, &out, "hasPlayerWithdrawn", new(big.Int).SetUint64(id), player); err != nil {
		return false, err
	}
	return out[0].(bool), nil
}

// ----- token reads -----

func (s *Session) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := s.callToken(ctx, token, &out, "balanceOf", owner); err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (s *Session) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	var out []interface{}
	if err := s.callToken(ctx, token, &out, "symbol"); err != nil {
		return "", err
	}
	return out[0].(string), nil
}

func (s *Session) TokenName(ctx context.Context, token common.Address) (string, error) {
	var out []interface{}
	if err := s.callToken(ctx, token, &out, "name"); err != nil {
		return "", err
	}
	return out[0].(string), nil
}

// Allowance reads what the owner has authorized the game contract to spend.
func (s *Session) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var out []interface{}
	if err := s.callToken(ctx, token, &out, "allowance", owner, s.addr); err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TreasuryBalance reads the contract-held balance of token, the pool that
// covers payouts.
func (s *Session) TreasuryBalance(ctx context.Context, token common.Address) (*big.Int, error) {
	return s.TokenBalance(ctx, token, s.addr)
}

// ----- writes -----

func (s *Session) transact(ctx context.Context, target func(*ethclient.Client) *bind.BoundContract,
	method string, args ...interface{}) (*PendingTx, error) {

	if s.signer == nil {
		return nil, flipit.ErrNotConnected
	}
	opts, err := s.signer.Opts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flipit.ErrUserRejected, err)
	}
	ec, err := s.providers.Primary(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := target(ec).Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	s.log.Debugf("chain: %s submitted tx=%s", method, tx.Hash())
	return &PendingTx{Hash: tx.Hash(), tx: tx}, nil
}

func (s *Session) transactGame(ctx context.Context, method string, args ...interface{}) (*PendingTx, error) {
	return s.transact(ctx, s.bound, method, args...)
}

// Approve authorizes the game contract to spend amount of token on behalf of
// the signer.
func (s *Session) Approve(ctx context.Context, token common.Address, amount *big.Int) (*PendingTx, error) {
	return s.transact(ctx, func(ec *ethclient.Client) *bind.BoundContract {
		return s.boundToken(token, ec)
	}, "approve", s.addr, amount)
}

func (s *Session) Flip(ctx context.Context, face bool, token common.Address, amount *big.Int) (*PendingTx, error) {
	return s.transactGame(ctx, "flip", face, token, amount)
}

func (s *Session) CreateGame(ctx context.Context, amount *big.Int, token common.Address, face bool, timeout time.Duration) (*PendingTx, error) {
	secs := new(big.Int).SetInt64(int64(timeout / time.Second))
	return s.transactGame(ctx, "createGame", amount, token, face, secs)
}

func (s *Session) JoinGame(ctx context.Context, id uint64) (*PendingTx, error) {
	return s.transactGame(ctx, "joinGame", new(big.Int).SetUint64(id))
}

func (s *Session) ResolveGame(ctx context.Context, id uint64) (*PendingTx, error) {
	return s.transactGame(ctx, "resolveGame", new(big.Int).SetUint64(id))
}

func (s *Session) CancelGame(ctx context.Context, id uint64) (*PendingTx, error) {
	return s.transactGame(ctx, "cancelGame", new(big.Int).SetUint64(id))
}

func (s *Session) WithdrawReward(ctx context.Context, id uint64) (*PendingTx, error) {
	return s.transactGame(ctx, "withdrawReward", new(big.Int).SetUint64(id))
}

func (s *Session) DepositTreasury(ctx context.Context, token common.Address, amount *big.Int) (*PendingTx, error) {
	return s.transactGame(ctx, "depositERC20", token, amount)
}

// WaitMined blocks until p is mined and returns the receipt. A mined-but-
// reverted transaction returns the receipt together with ErrReverted.
func (s *Session) WaitMined(ctx context.Context, p *PendingTx) (*Receipt, error) {
	ec, err := s.providers.Primary(ctx)
	if err != nil {
		return nil, err
	}
	rcpt, err := bind.WaitMined(ctx, ec, p.tx)
	if err != nil {
		return nil, fmt.Errorf("wait mined %s: %w", p.Hash, err)
	}
	out := &Receipt{TxHash: rcpt.TxHash, Status: rcpt.Status, Logs: rcpt.Logs}
	if rcpt.Status == types.ReceiptStatusFailed {
		return out, fmt.Errorf("tx %s: %w", p.Hash, flipit.ErrReverted)
	}
	return out, nil
}
