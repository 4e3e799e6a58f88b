package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/chain"
)

// Phase is the state of the current wager attempt. PhaseSettled and
// PhaseErrored are terminal; only Reset returns to PhaseIdle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseApproving
	PhaseSubmitting
	PhaseAwaitingConfirmation
	PhaseAwaitingResolution
	PhaseSettled
	PhaseErrored
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseApproving:
		return "approving"
	case PhaseSubmitting:
		return "submitting"
	case PhaseAwaitingConfirmation:
		return "awaiting confirmation"
	case PhaseAwaitingResolution:
		return "awaiting resolution"
	case PhaseSettled:
		return "settled"
	case PhaseErrored:
		return "errored"
	}
	return "unknown"
}

// Terminal reports whether the phase ends the attempt.
func (p Phase) Terminal() bool { return p == PhaseSettled || p == PhaseErrored }

// WagerIntent is a user's request to flip: token, decimal amount, and the
// chosen face (true = heads).
type WagerIntent struct {
	Token  common.Address
	Amount string
	Face   bool
}

// PendingBet is a confirmed wager awaiting randomness fulfillment. RequestID
// is assigned by the contract once the flip transaction is mined and never
// changes afterward.
type PendingBet struct {
	RequestID *big.Int
	Amount    *big.Int
	Face      bool
	TxHash    common.Hash
}

// SettledOutcome is the terminal result of a wager attempt.
type SettledOutcome struct {
	RequestID  *big.Int
	Won        bool
	RolledFace bool
	Payout     *big.Int
}

// Flip drives one wager attempt end to end: validate, ensure allowance,
// submit, await confirmation, await fulfillment. It blocks until the attempt
// reaches a terminal phase and publishes progress on UpdatesCh along the way.
// Starting a second attempt before Reset fails with ErrAttemptInFlight.
func (c *FlipClient) Flip(ctx context.Context, intent WagerIntent) (*SettledOutcome, error) {
	// Check-and-set in one synchronous step so two callers can never race
	// past the in-flight guard between suspension points.
	c.Lock()
	if c.phase != PhaseIdle {
		c.Unlock()
		return nil, flipit.ErrAttemptInFlight
	}
	c.phase = PhaseValidating
	c.pending = nil
	c.outcome = nil
	c.flowErr = nil
	c.abort = make(chan struct{})
	c.Unlock()
	c.notify(StatusUpdate{Phase: PhaseValidating})

	amount, err := c.Validate(ctx, intent)
	if err != nil {
		return nil, c.fail(flipit.StepValidate, err, "")
	}

	if err := c.EnsureAllowance(ctx, intent.Token, amount); err != nil {
		return nil, c.fail(flipit.StepApprove, err, "")
	}
	// A Reset that landed while the approval was pending must stop the
	// attempt here, before any wager transaction exists.
	if c.aborted() {
		return nil, c.finishAbort()
	}

	pending, err := c.SubmitWager(ctx, intent, amount)
	if err != nil {
		if errors.Is(err, flipit.ErrAborted) {
			return nil, c.finishAbort()
		}
		return nil, err // already classified by SubmitWager
	}

	outcome, err := c.AwaitResolution(ctx, pending)
	if err != nil {
		if errors.Is(err, flipit.ErrAborted) {
			return nil, c.finishAbort()
		}
		return nil, c.fail(flipit.StepResolve, err, "")
	}
	return outcome, nil
}

// Validate checks the intent against wallet state and chain preconditions
// without side effects beyond reads. It returns the parsed amount in base
// units. Any error here means no transaction was or will be submitted.
func (c *FlipClient) Validate(ctx context.Context, intent WagerIntent) (*big.Int, error) {
	if !c.be.Connected() {
		return nil, fmt.Errorf("%w: please connect your wallet", flipit.ErrNotConnected)
	}

	amount, err := flipit.ParseAmount(intent.Amount)
	if err != nil {
		return nil, err
	}

	balance, symbol, err := c.FetchBalanceAndSymbol(ctx, intent.Token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: insufficient %s balance", flipit.ErrInsufficientBalance, symbol)
	}

	// The treasury must be able to cover a 2x payout.
	treasury, err := c.be.TreasuryBalance(ctx, intent.Token)
	if err != nil {
		return nil, fmt.Errorf("read treasury balance: %w", err)
	}
	required := new(big.Int).Mul(amount, big.NewInt(2))
	if treasury.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: %s available, %s needed", flipit.ErrInsufficientTreasury,
			flipit.FormatAmount(treasury), flipit.FormatAmount(required))
	}
	return amount, nil
}

// EnsureAllowance re-reads the current allowance and, when it does not cover
// amount, submits one approval transaction and waits for it to confirm. An
// unreadable allowance counts as insufficient (fail closed), never as
// sufficient.
func (c *FlipClient) EnsureAllowance(ctx context.Context, token common.Address, amount *big.Int) error {
	allowance, err := c.be.Allowance(ctx, token, c.be.Owner())
	if err != nil {
		c.log.Warnf("allowance read failed, treating as insufficient: %v", err)
		allowance = big.NewInt(0)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}

	c.setPhase(PhaseApproving, "approving token spend")
	p, err := c.be.Approve(ctx, token, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", flipit.ErrApprovalFailed, err)
	}
	if _, err := c.be.WaitMined(ctx, p); err != nil {
		return fmt.Errorf("%w: %w", flipit.ErrApprovalFailed, err)
	}
	c.log.Infof("approval confirmed tx=%s", p.Hash)
	return nil
}

// SubmitWager sends the flip transaction, waits for it to confirm, and
// extracts the request identifier from the emitted BetSent log. A confirmed
// receipt without that log is a protocol mismatch and fails the attempt.
func (c *FlipClient) SubmitWager(ctx context.Context, intent WagerIntent, amount *big.Int) (*PendingBet, error) {
	if c.aborted() {
		return nil, flipit.ErrAborted
	}
	c.setPhase(PhaseSubmitting, "submitting wager")
	p, err := c.be.Flip(ctx, intent.Face, intent.Token, amount)
	if err != nil {
		return nil, c.fail(flipit.StepSubmit, err, "")
	}

	c.setPhase(PhaseAwaitingConfirmation, fmt.Sprintf("awaiting confirmation of %s", p.Hash))
	rcpt, err := c.be.WaitMined(ctx, p)
	if err != nil {
		return nil, c.fail(flipit.StepConfirm, err, "")
	}

	requestID, ok := chain.RequestIDFromLogs(c.be.ContractAddress(), rcpt.Logs)
	if !ok {
		return nil, c.fail(flipit.StepConfirm, flipit.ErrProtocolMismatch,
			"wager confirmed but no BetSent event was emitted")
	}

	pending := &PendingBet{
		RequestID: requestID,
		Amount:    amount,
		Face:      intent.Face,
		TxHash:    rcpt.TxHash,
	}
	c.Lock()
	c.pending = pending
	c.Unlock()
	c.log.Infof("wager confirmed tx=%s request=%s", rcpt.TxHash, requestID)
	return pending, nil
}

// AwaitResolution waits for the randomness fulfillment of pending, via the
// watcher's poll/push subscription. The wait honors ctx cancellation and the
// configured soft timeout.
func (c *FlipClient) AwaitResolution(ctx context.Context, pending *PendingBet) (*SettledOutcome, error) {
	c.setPhase(PhaseAwaitingResolution, fmt.Sprintf("flipping... request %s", pending.RequestID))

	ch, unsub := c.res.Subscribe(pending.RequestID)
	c.Lock()
	c.cancelWatch = unsub
	abort := c.abort
	c.Unlock()
	defer func() {
		c.Lock()
		if c.cancelWatch != nil {
			c.cancelWatch()
			c.cancelWatch = nil
		}
		c.Unlock()
	}()

	// A nil abort channel means Reset already ran between the submission
	// confirming and this wait starting.
	if abort == nil {
		return nil, flipit.ErrAborted
	}

	var timeout <-chan time.Time
	if c.cfg != nil && c.cfg.ResolveTimeout > 0 {
		t := time.NewTimer(c.cfg.ResolveTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-abort:
		return nil, flipit.ErrAborted
	case <-timeout:
		return nil, flipit.ErrTimeout
	case f := <-ch:
		if f.RequestID == nil || f.RequestID.Cmp(pending.RequestID) != 0 {
			return nil, fmt.Errorf("%w: fulfillment for request %s, expected %s",
				flipit.ErrProtocolMismatch, f.RequestID, pending.RequestID)
		}
		outcome := &SettledOutcome{
			RequestID:  f.RequestID,
			Won:        f.Won,
			RolledFace: f.RolledFace,
			Payout:     f.Payout,
		}
		c.Lock()
		c.outcome = outcome
		c.pending = nil
		c.phase = PhaseSettled
		c.Unlock()

		msg := fmt.Sprintf("lost %s", flipit.FormatAmount(pending.Amount))
		if f.Won {
			msg = fmt.Sprintf("won %s", flipit.FormatAmount(f.Payout))
		}
		c.notify(StatusUpdate{Phase: PhaseSettled, Message: msg})

		// Post-settlement balance refresh, best effort.
		if _, _, err := c.FetchBalanceAndSymbol(ctx, c.lastToken()); err != nil {
			c.log.Debugf("post-settlement balance refresh failed: %v", err)
		}
		return outcome, nil
	}
}

// Reset clears the state of the last attempt and releases any active
// fulfillment subscription. With an attempt still in a non-terminal phase it
// only flags the abort: the running goroutine reopens the guard itself once
// it has actually stopped, so a second attempt can never interleave with it.
func (c *FlipClient) Reset() {
	c.Lock()
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	if c.abort != nil {
		close(c.abort)
		c.abort = nil
	}
	if c.phase != PhaseIdle && !c.phase.Terminal() {
		c.Unlock()
		return
	}
	c.phase = PhaseIdle
	c.pending = nil
	c.outcome = nil
	c.flowErr = nil
	c.Unlock()
	c.notify(StatusUpdate{Phase: PhaseIdle})
}

// aborted reports whether Reset flagged the current attempt.
func (c *FlipClient) aborted() bool {
	c.RLock()
	defer c.RUnlock()
	return c.abort == nil
}

// finishAbort moves an aborted attempt to PhaseIdle, reopening the in-flight
// guard. Called only by the attempt's own goroutine.
func (c *FlipClient) finishAbort() error {
	c.Lock()
	c.phase = PhaseIdle
	c.pending = nil
	c.outcome = nil
	c.flowErr = nil
	c.Unlock()
	c.notify(StatusUpdate{Phase: PhaseIdle})
	return flipit.ErrAborted
}

// fail records a FlowError, moves the attempt to PhaseErrored, and returns
// the error for the caller.
func (c *FlipClient) fail(step flipit.Step, cause error, msg string) error {
	fe := flipit.NewFlowError(step, cause, msg)
	c.Lock()
	c.flowErr = fe
	c.phase = PhaseErrored
	c.Unlock()
	c.log.Errorf("wager attempt failed at %s: %v", step, cause)
	c.notify(StatusUpdate{Phase: PhaseErrored, Message: fe.Message})
	c.reportErr(fe)
	return fe
}

func (c *FlipClient) lastToken() common.Address {
	c.RLock()
	defer c.RUnlock()
	return c.token
}
