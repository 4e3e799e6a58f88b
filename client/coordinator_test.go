package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/chain"
	"github.com/Pradise2/FlipIt/watcher"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000dd")
	testToken    = common.HexToAddress("0x07F41412697D14981e770b6E335051b1231A2bA8")
)

// amt parses a decimal amount or fails the test.
func amt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, err := flipit.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return v
}

// betSentLog builds the BetSent log the contract emits on a flip.
func betSentLog(requestID *big.Int) *types.Log {
	ev := chain.FlipABI.Events["BetSent"]
	data, err := ev.Inputs.NonIndexed().Pack(testToken, big.NewInt(1), true)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: testContract,
		Topics: []common.Hash{
			ev.ID,
			common.BigToHash(requestID),
			common.BytesToHash(testOwner.Bytes()),
		},
		Data: data,
	}
}

// fakeBackend is a scriptable chain backend.
type fakeBackend struct {
	mu sync.Mutex

	connected bool
	owner     common.Address
	balance   *big.Int
	symbol    string
	allowance *big.Int
	allowErr  error
	treasury  *big.Int

	flipErr    error
	flipLogs   []*types.Log
	approveErr error
	// approveGate, when set, parks Approve until the channel is closed.
	approveGate chan struct{}

	approvals   int
	flips       int
	writeHashes int

	game      *chain.Game
	withdrawn bool
	status    *chain.BetStatus
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		connected: true,
		owner:     testOwner,
		balance:   big.NewInt(0),
		symbol:    "STABLEAI",
		allowance: big.NewInt(0),
		treasury:  new(big.Int).Lsh(big.NewInt(1), 200), // effectively unlimited
	}
}

func (f *fakeBackend) Connected() bool                 { return f.connected }
func (f *fakeBackend) Owner() common.Address           { return f.owner }
func (f *fakeBackend) ContractAddress() common.Address { return testContract }

func (f *fakeBackend) TokenBalance(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeBackend) TokenSymbol(context.Context, common.Address) (string, error) {
	return f.symbol, nil
}

func (f *fakeBackend) Allowance(context.Context, common.Address, common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.allowErr != nil {
		return nil, f.allowErr
	}
	return new(big.Int).Set(f.allowance), nil
}

func (f *fakeBackend) TreasuryBalance(context.Context, common.Address) (*big.Int, error) {
	return new(big.Int).Set(f.treasury), nil
}

func (f *fakeBackend) Game(context.Context, uint64) (*chain.Game, error) {
	if f.game == nil {
		return nil, fmt.Errorf("no such game")
	}
	return f.game, nil
}

func (f *fakeBackend) GameDetails(context.Context, uint64) (*chain.GameDetails, error) {
	return nil, fmt.Errorf("not scripted")
}

func (f *fakeBackend) HasWithdrawn(context.Context, uint64, common.Address) (bool, error) {
	return f.withdrawn, nil
}

func (f *fakeBackend) nextTx() *chain.PendingTx {
	f.writeHashes++
	return &chain.PendingTx{Hash: common.BigToHash(big.NewInt(int64(f.writeHashes)))}
}

func (f *fakeBackend) Approve(context.Context, common.Address, *big.Int) (*chain.PendingTx, error) {
	if f.approveGate != nil {
		<-f.approveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	f.approvals++
	return f.nextTx(), nil
}

func (f *fakeBackend) Flip(context.Context, bool, common.Address, *big.Int) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.flipErr != nil {
		return nil, f.flipErr
	}
	f.flips++
	return f.nextTx(), nil
}

func (f *fakeBackend) CreateGame(context.Context, *big.Int, common.Address, bool, time.Duration) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) JoinGame(context.Context, uint64) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) ResolveGame(context.Context, uint64) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) CancelGame(context.Context, uint64) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) WithdrawReward(context.Context, uint64) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) DepositTreasury(context.Context, common.Address, *big.Int) (*chain.PendingTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextTx(), nil
}

func (f *fakeBackend) WaitMined(_ context.Context, p *chain.PendingTx) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &chain.Receipt{TxHash: p.Hash, Status: types.ReceiptStatusSuccessful, Logs: f.flipLogs}, nil
}

func (f *fakeBackend) BetStatus(context.Context, *big.Int) (*chain.BetStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == nil {
		return &chain.BetStatus{}, nil
	}
	return f.status, nil
}

func (f *fakeBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approvals + f.flips
}

func newTestClient(t *testing.T, be *fakeBackend, w ResolutionWatcher) *FlipClient {
	t.Helper()
	if w == nil {
		w = watcher.New(slog.Disabled, be, time.Hour)
	}
	cfg := &AppConfig{ResolveTimeout: time.Minute, PageSize: 5}
	c, err := NewFlipClient(cfg, slog.Disabled, be, w)
	if err != nil {
		t.Fatalf("NewFlipClient: %v", err)
	}
	return c
}

func TestValidateZeroAmount(t *testing.T) {
	// Scenario A: amount "0", connected, balance 100.
	be := newFakeBackend()
	be.balance = amt(t, "100")
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "0", Face: true})
	assert.ErrorIs(t, err, flipit.ErrInvalidAmount)
	assert.Equal(t, 0, be.writeCount(), "no transaction may be submitted on validation failure")
	assert.Equal(t, PhaseErrored, c.Phase())
}

func TestValidateUnparsableAmount(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	c := newTestClient(t, be, nil)

	for _, bad := range []string{"", "abc", "-5", "1.2.3"} {
		c.Reset()
		_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: bad, Face: true})
		assert.ErrorIs(t, err, flipit.ErrInvalidAmount, "amount %q", bad)
	}
	assert.Equal(t, 0, be.writeCount())
}

func TestValidateInsufficientBalance(t *testing.T) {
	// Scenario B: amount 50, balance 10.
	be := newFakeBackend()
	be.balance = amt(t, "10")
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "50", Face: true})
	assert.ErrorIs(t, err, flipit.ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "STABLEAI")
	assert.Equal(t, 0, be.writeCount())
}

func TestValidateNotConnected(t *testing.T) {
	be := newFakeBackend()
	be.connected = false
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "1", Face: true})
	assert.ErrorIs(t, err, flipit.ErrNotConnected)
	assert.Equal(t, 0, be.writeCount())
}

func TestValidateTreasuryShortfall(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.treasury = amt(t, "15") // needs 2x10 = 20
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "10", Face: true})
	assert.ErrorIs(t, err, flipit.ErrInsufficientTreasury)
	assert.Equal(t, 0, be.writeCount())
}

// runFlip starts a flip in the background and returns its result channel.
func runFlip(c *FlipClient, intent WagerIntent) <-chan struct {
	out *SettledOutcome
	err error
} {
	done := make(chan struct {
		out *SettledOutcome
		err error
	}, 1)
	go func() {
		out, err := c.Flip(context.Background(), intent)
		done <- struct {
			out *SettledOutcome
			err error
		}{out, err}
	}()
	return done
}

func waitWatching(t *testing.T, w *watcher.Watcher, id *big.Int) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if w.Watching(id) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("watcher never picked up request %s", id)
}

func TestFlipApprovesOnceThenSettles(t *testing.T) {
	// Scenario C + D: allowance 0 so exactly one approval, then the wager,
	// then fulfillment with won=true payout=20.
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = big.NewInt(0)
	reqID := big.NewInt(42)
	be.flipLogs = []*types.Log{betSentLog(reqID)}

	w := watcher.New(slog.Disabled, be, time.Hour)
	c := newTestClient(t, be, w)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: true})
	waitWatching(t, w, reqID)

	assert.Equal(t, PhaseAwaitingResolution, c.Phase(), "in-progress state must be visible while pending")
	pending := c.Pending()
	if assert.NotNil(t, pending) {
		assert.Equal(t, 0, pending.RequestID.Cmp(reqID))
	}

	w.Deliver(watcher.Fulfillment{RequestID: reqID, Won: true, Payout: amt(t, "20")})

	res := <-done
	if res.err != nil {
		t.Fatalf("flip failed: %v", res.err)
	}
	assert.Equal(t, 1, be.approvals, "exactly one approval")
	assert.Equal(t, 1, be.flips, "exactly one wager submission")
	assert.Equal(t, 0, res.out.RequestID.Cmp(reqID))
	assert.True(t, res.out.Won)
	assert.Equal(t, "20", flipit.FormatAmount(res.out.Payout))

	assert.Equal(t, PhaseSettled, c.Phase(), "never in-progress after settlement")
	assert.Nil(t, c.Pending(), "pending bet cleared on settlement")
}

func TestFlipSkipsApprovalWhenAllowanceCovers(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	reqID := big.NewInt(7)
	be.flipLogs = []*types.Log{betSentLog(reqID)}

	w := watcher.New(slog.Disabled, be, time.Hour)
	c := newTestClient(t, be, w)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: false})
	waitWatching(t, w, reqID)
	w.Deliver(watcher.Fulfillment{RequestID: reqID, Won: false, Payout: big.NewInt(0)})

	res := <-done
	if res.err != nil {
		t.Fatalf("flip failed: %v", res.err)
	}
	assert.Equal(t, 0, be.approvals, "allowance already covers the wager")
	assert.Equal(t, 1, be.flips)
	assert.False(t, res.out.Won)
}

func TestFlipAllowanceUnreadableFailsClosed(t *testing.T) {
	// Unreadable allowance must force the approval path, never skip it.
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowErr = errors.New("rpc: connection refused")
	reqID := big.NewInt(9)
	be.flipLogs = []*types.Log{betSentLog(reqID)}

	w := watcher.New(slog.Disabled, be, time.Hour)
	c := newTestClient(t, be, w)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: true})
	waitWatching(t, w, reqID)
	w.Deliver(watcher.Fulfillment{RequestID: reqID, Won: true, Payout: amt(t, "20")})

	res := <-done
	if res.err != nil {
		t.Fatalf("flip failed: %v", res.err)
	}
	assert.Equal(t, 1, be.approvals, "fail closed: approval must be attempted")
}

func TestFlipApprovalRejectedAbortsBeforeWager(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.approveErr = fmt.Errorf("%w: signing denied", flipit.ErrUserRejected)
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "10", Face: true})
	assert.ErrorIs(t, err, flipit.ErrApprovalFailed)
	assert.ErrorIs(t, err, flipit.ErrUserRejected, "wallet-level cause survives the wrap")
	assert.True(t, flipit.IsRetryable(err))
	assert.Equal(t, 0, be.flips, "no wager after a failed approval")
	assert.Equal(t, PhaseErrored, c.Phase())
}

func TestFlipMissingBetSentIsProtocolMismatch(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	be.flipLogs = nil // confirmed receipt without the expected event
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "10", Face: true})
	assert.ErrorIs(t, err, flipit.ErrProtocolMismatch)
	assert.Equal(t, PhaseErrored, c.Phase())

	var fe *flipit.FlowError
	if assert.ErrorAs(t, err, &fe) {
		assert.Equal(t, flipit.StepConfirm, fe.Step)
	}
}

func TestFlipUserRejectedSubmission(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	be.flipErr = fmt.Errorf("%w: signing denied", flipit.ErrUserRejected)
	c := newTestClient(t, be, nil)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "10", Face: true})
	assert.ErrorIs(t, err, flipit.ErrUserRejected)
	assert.True(t, flipit.IsRetryable(err))
}

func TestSecondAttemptRejectedWhileInFlight(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	reqID := big.NewInt(11)
	be.flipLogs = []*types.Log{betSentLog(reqID)}

	w := watcher.New(slog.Disabled, be, time.Hour)
	c := newTestClient(t, be, w)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: true})
	waitWatching(t, w, reqID)

	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "5", Face: false})
	assert.ErrorIs(t, err, flipit.ErrAttemptInFlight)
	assert.Equal(t, 1, be.flips, "second attempt must not interleave")

	w.Deliver(watcher.Fulfillment{RequestID: reqID, Won: true, Payout: amt(t, "20")})
	<-done

	// Terminal but not reset: still no new attempt allowed.
	_, err = c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "5", Face: false})
	assert.ErrorIs(t, err, flipit.ErrAttemptInFlight)

	c.Reset()
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestResetDuringApprovalKeepsGuardClosed(t *testing.T) {
	// A reset while the first attempt is parked in the approval must not
	// reopen the in-flight guard, and the aborted attempt must never reach
	// the wager submission.
	be := newFakeBackend()
	be.balance = amt(t, "100")
	release := make(chan struct{})
	be.approveGate = release
	c := newTestClient(t, be, nil)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: true})
	for i := 0; i < 200 && c.Phase() != PhaseApproving; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, PhaseApproving, c.Phase())

	c.Reset()

	// The first attempt has not exited yet: no new attempt may start.
	_, err := c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "5", Face: false})
	assert.ErrorIs(t, err, flipit.ErrAttemptInFlight)
	assert.Equal(t, 0, be.flips, "no interleaved wager submission")

	close(release)
	res := <-done
	assert.ErrorIs(t, res.err, flipit.ErrAborted)
	assert.Equal(t, 0, be.flips, "aborted attempt must not submit its wager")
	assert.Equal(t, PhaseIdle, c.Phase(), "guard reopens once the attempt has exited")
	assert.Nil(t, c.Pending())

	// A fresh attempt now runs normally and submits exactly one wager.
	be.mu.Lock()
	be.allowance = amt(t, "5")
	reqID := big.NewInt(23)
	be.flipLogs = []*types.Log{betSentLog(reqID)}
	be.mu.Unlock()

	w := c.res.(*watcher.Watcher)
	done = runFlip(c, WagerIntent{Token: testToken, Amount: "5", Face: false})
	waitWatching(t, w, reqID)
	w.Deliver(watcher.Fulfillment{RequestID: reqID, Won: true, Payout: amt(t, "10")})
	res = <-done
	if res.err != nil {
		t.Fatalf("second flip failed: %v", res.err)
	}
	assert.Equal(t, 1, be.flips, "exactly one wager across both attempts")
}

func TestResolutionTimeout(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	be.flipLogs = []*types.Log{betSentLog(big.NewInt(13))}

	w := watcher.New(slog.Disabled, be, time.Hour)
	cfg := &AppConfig{ResolveTimeout: 20 * time.Millisecond, PageSize: 5}
	c, err := NewFlipClient(cfg, slog.Disabled, be, w)
	if err != nil {
		t.Fatalf("NewFlipClient: %v", err)
	}

	_, err = c.Flip(context.Background(), WagerIntent{Token: testToken, Amount: "10", Face: true})
	assert.ErrorIs(t, err, flipit.ErrTimeout)
	assert.Equal(t, PhaseErrored, c.Phase())
	assert.False(t, w.Watching(big.NewInt(13)), "timeout must release the subscription")
}

func TestResetReleasesActiveWatch(t *testing.T) {
	be := newFakeBackend()
	be.balance = amt(t, "100")
	be.allowance = amt(t, "10")
	reqID := big.NewInt(17)
	be.flipLogs = []*types.Log{betSentLog(reqID)}

	w := watcher.New(slog.Disabled, be, time.Hour)
	c := newTestClient(t, be, w)

	done := runFlip(c, WagerIntent{Token: testToken, Amount: "10", Face: true})
	waitWatching(t, w, reqID)

	c.Reset()
	for i := 0; i < 200 && w.Watching(reqID); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, w.Watching(reqID), "reset must cancel the fulfillment watch")

	select {
	case res := <-done:
		assert.ErrorIs(t, res.err, flipit.ErrAborted)
	case <-time.After(2 * time.Second):
		t.Fatal("flip goroutine leaked after reset")
	}
	assert.Equal(t, PhaseIdle, c.Phase(), "reset leaves the client idle, not errored")
	assert.Nil(t, c.Pending())
}
