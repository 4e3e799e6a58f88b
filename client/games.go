package client

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/chain"
)

// Player-vs-player and treasury flows. Each is a straight-line sequence:
// precondition reads, conditional approval, one write, one confirmation wait.
// None of them touch the flip attempt state machine.

// CreateGame opens a PvP game: validates balance, ensures allowance, then
// submits createGame and waits for confirmation.
func (c *FlipClient) CreateGame(ctx context.Context, token common.Address, amount string, face bool, timeout time.Duration) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	bet, err := flipit.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	balance, symbol, err := c.FetchBalanceAndSymbol(ctx, token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(bet) < 0 {
		return nil, fmt.Errorf("%w: insufficient %s balance", flipit.ErrInsufficientBalance, symbol)
	}
	if err := c.EnsureAllowance(ctx, token, bet); err != nil {
		return nil, err
	}

	p, err := c.be.CreateGame(ctx, bet, token, face, timeout)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	c.log.Infof("game created tx=%s", rcpt.TxHash)
	return rcpt, nil
}

// JoinGame joins an open PvP game, matching the creator's bet.
func (c *FlipClient) JoinGame(ctx context.Context, id uint64) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	game, err := c.be.Game(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", id, err)
	}
	if game.IsCompleted {
		return nil, fmt.Errorf("game %d has already been completed", id)
	}

	balance, err := c.be.TokenBalance(ctx, game.Token, c.be.Owner())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flipit.ErrTokenUnavailable, err)
	}
	if balance.Cmp(game.BetAmount) < 0 {
		return nil, fmt.Errorf("%w: need %s to join", flipit.ErrInsufficientBalance,
			flipit.FormatAmount(game.BetAmount))
	}
	if err := c.EnsureAllowance(ctx, game.Token, game.BetAmount); err != nil {
		return nil, err
	}

	p, err := c.be.JoinGame(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("join game %d: %w", id, err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("join game %d: %w", id, err)
	}
	c.log.Infof("joined game %d tx=%s", id, rcpt.TxHash)
	return rcpt, nil
}

// ResolveGame triggers resolution of a joined game.
func (c *FlipClient) ResolveGame(ctx context.Context, id uint64) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	game, err := c.be.Game(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", id, err)
	}
	if game.IsCompleted {
		return nil, fmt.Errorf("game %d has already been completed", id)
	}
	p, err := c.be.ResolveGame(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolve game %d: %w", id, err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("resolve game %d: %w", id, err)
	}
	c.log.Infof("resolved game %d tx=%s", id, rcpt.TxHash)
	return rcpt, nil
}

// CancelGame cancels an open game the signer created.
func (c *FlipClient) CancelGame(ctx context.Context, id uint64) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	p, err := c.be.CancelGame(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancel game %d: %w", id, err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("cancel game %d: %w", id, err)
	}
	c.log.Infof("cancelled game %d tx=%s", id, rcpt.TxHash)
	return rcpt, nil
}

// ClaimReward withdraws the creator's stake from an expired game that no
// opponent joined, or the winner's reward once resolved.
func (c *FlipClient) ClaimReward(ctx context.Context, id uint64) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	owner := c.be.Owner()
	game, err := c.be.Game(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch game %d: %w", id, err)
	}
	if game.Player1 != owner && game.Player2 != owner {
		return nil, fmt.Errorf("game %d: you are not a participant", id)
	}
	withdrawn, err := c.be.HasWithdrawn(ctx, id, owner)
	if err != nil {
		return nil, fmt.Errorf("check withdrawal for game %d: %w", id, err)
	}
	if withdrawn {
		return nil, fmt.Errorf("game %d: reward already withdrawn", id)
	}
	// Creator reclaiming an unjoined game must wait out the timeout.
	if !game.IsCompleted && game.Player1 == owner {
		if left := game.CreatedAt.Add(game.Timeout).Sub(time.Now()); left > 0 {
			return nil, fmt.Errorf("game %d: withdrawal available in %s", id, left.Round(time.Second))
		}
	}

	p, err := c.be.WithdrawReward(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("withdraw reward for game %d: %w", id, err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("withdraw reward for game %d: %w", id, err)
	}
	c.log.Infof("claimed reward for game %d tx=%s", id, rcpt.TxHash)
	return rcpt, nil
}

// DepositToTreasury funds the contract's payout pool for token: approve, then
// depositERC20.
func (c *FlipClient) DepositToTreasury(ctx context.Context, token common.Address, amount string) (*chain.Receipt, error) {
	if !c.be.Connected() {
		return nil, flipit.ErrNotConnected
	}
	v, err := flipit.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	balance, err := c.be.TokenBalance(ctx, token, c.be.Owner())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", flipit.ErrTokenUnavailable, err)
	}
	if balance.Cmp(v) < 0 {
		return nil, fmt.Errorf("%w: have %s", flipit.ErrInsufficientBalance, flipit.FormatAmount(balance))
	}
	if err := c.EnsureAllowance(ctx, token, v); err != nil {
		return nil, err
	}

	p, err := c.be.DepositTreasury(ctx, token, v)
	if err != nil {
		return nil, fmt.Errorf("deposit to treasury: %w", err)
	}
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("deposit to treasury: %w", err)
	}
	c.log.Infof("treasury deposit confirmed tx=%s amount=%s", rcpt.TxHash, flipit.FormatAmount(v))
	return rcpt, nil
}
