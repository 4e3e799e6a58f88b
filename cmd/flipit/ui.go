package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/decred/slog"
	"github.com/ethereum/go-ethereum/common"

	flipit "github.com/Pradise2/FlipIt"
	"github.com/Pradise2/FlipIt/client"
	"github.com/Pradise2/FlipIt/games"
	"github.com/Pradise2/FlipIt/indexer"
	"github.com/Pradise2/FlipIt/logging"
)

type appMode int

const (
	modeIdle appMode = iota
	modeFlip
	modeGames
	modeHistory
	modeDeposit
	modeViewLogs
)

// refreshedMsg asks the UI to redraw after background state changed.
type refreshedMsg struct{}

type appstate struct {
	sync.Mutex
	mode   appMode
	ctx    context.Context
	cancel context.CancelFunc

	fc      *client.FlipClient
	lister  *games.Lister
	history *indexer.Client

	log        slog.Logger
	logBackend *logging.LogBackend

	msgCh       chan tea.Msg
	viewport    viewport.Model
	logViewport viewport.Model
	logBuffer   []string

	amountInput textinput.Model
	face        bool // true = heads
	tokenIdx    int
	tokens      []string

	page         *games.Page
	pageNum      int
	selectedGame int

	resolved []*indexer.ResolvedGame

	notification string
}

func newAppState(ctx context.Context, cancel context.CancelFunc, lb *logging.LogBackend,
	log slog.Logger, fc *client.FlipClient, lister *games.Lister, history *indexer.Client) *appstate {

	symbols := make([]string, 0, len(flipit.SupportedTokens))
	for sym := range flipit.SupportedTokens {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	ti := textinput.New()
	ti.Placeholder = "bet amount"
	ti.CharLimit = 32
	ti.Width = 24

	return &appstate{
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		logBackend:  lb,
		fc:          fc,
		lister:      lister,
		history:     history,
		mode:        modeIdle,
		face:        true,
		tokens:      symbols,
		amountInput: ti,
	}
}

func (m *appstate) token() common.Address {
	return flipit.SupportedTokens[m.tokens[m.tokenIdx]]
}

func (m *appstate) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		go func() {
			for u := range m.fc.UpdatesCh {
				m.Lock()
				m.notification = fmt.Sprintf("%s %s", u.Phase, u.Message)
				m.Unlock()
				m.msgCh <- refreshedMsg{}
			}
		}()
		return nil
	}
}

func (m *appstate) listenForErrors() tea.Cmd {
	return func() tea.Msg {
		go func() {
			for err := range m.fc.ErrorsCh {
				m.msgCh <- fmt.Sprintf("Error: %v", err)
			}
		}()
		return nil
	}
}

func (m *appstate) Init() tea.Cmd {
	m.msgCh = make(chan tea.Msg)
	m.viewport = viewport.New(0, 0)
	m.logViewport = viewport.New(0, 0)

	return tea.Batch(
		m.listenForUpdates(),
		m.listenForErrors(),
		tea.EnterAltScreen,
	)
}

func (m *appstate) waitForMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgCh
	}
}

// startFlip launches one wager attempt in the background.
func (m *appstate) startFlip() {
	amount := m.amountInput.Value()
	face := m.face
	token := m.token()
	go func() {
		out, err := m.fc.Flip(m.ctx, client.WagerIntent{Token: token, Amount: amount, Face: face})
		m.Lock()
		switch {
		case err != nil:
			m.notification = fmt.Sprintf("flip failed: %v", err)
		case out.Won:
			m.notification = fmt.Sprintf("You WON %s! Press [n] for a new flip.", flipit.FormatAmount(out.Payout))
		default:
			m.notification = "You lost this one. Press [n] for a new flip."
		}
		m.Unlock()
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) loadGames() {
	m.Lock()
	pageNum := m.pageNum
	m.Unlock()
	go func() {
		page, err := m.lister.ListOpen(m.ctx, pageNum)
		m.Lock()
		if err != nil {
			m.notification = fmt.Sprintf("list games: %v", err)
		} else {
			m.page = page
			if m.selectedGame >= len(page.Games) {
				m.selectedGame = 0
			}
		}
		m.Unlock()
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) loadHistory() {
	if m.history == nil {
		m.notification = "no subgraph configured"
		return
	}
	go func() {
		resolved, err := m.history.ResolvedGames(m.ctx, m.fc.Owner().Hex(), 20, 0)
		m.Lock()
		if err != nil {
			m.notification = fmt.Sprintf("load history: %v", err)
		} else {
			m.resolved = resolved
		}
		m.Unlock()
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) joinSelected() {
	m.Lock()
	page := m.page
	idx := m.selectedGame
	m.Unlock()
	if page == nil || idx >= len(page.Games) {
		return
	}
	id := page.Games[idx].ID
	go func() {
		if _, err := m.fc.JoinGame(m.ctx, id); err != nil {
			m.msgCh <- fmt.Sprintf("Error: join game %d: %v", id, err)
			return
		}
		m.Lock()
		m.notification = fmt.Sprintf("joined game %d", id)
		m.Unlock()
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) startDeposit() {
	amount := m.amountInput.Value()
	token := m.token()
	go func() {
		if _, err := m.fc.DepositToTreasury(m.ctx, token, amount); err != nil {
			m.msgCh <- fmt.Sprintf("Error: deposit: %v", err)
			return
		}
		m.Lock()
		m.notification = "treasury deposit confirmed"
		m.Unlock()
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) refreshBalance() {
	token := m.token()
	go func() {
		if _, _, err := m.fc.FetchBalanceAndSymbol(m.ctx, token); err != nil {
			m.log.Debugf("balance refresh: %v", err)
		}
		m.msgCh <- refreshedMsg{}
	}()
}

func (m *appstate) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Lock()
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height
		m.logViewport.Width = msg.Width
		m.logViewport.Height = msg.Height - 6
		m.Unlock()
		return m, nil

	case refreshedMsg:
		return m, m.waitForMsg()

	case string:
		if strings.HasPrefix(msg, "Error:") {
			m.Lock()
			m.notification = msg
			m.Unlock()
		}
		return m, m.waitForMsg()

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancel()
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}
	return m, m.waitForMsg()
}

func (m *appstate) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Amount entry modes route keystrokes into the text input first.
	if m.mode == modeFlip || m.mode == modeDeposit {
		switch msg.String() {
		case "esc":
			m.mode = modeIdle
			m.amountInput.Blur()
			return m, nil
		case "tab":
			m.tokenIdx = (m.tokenIdx + 1) % len(m.tokens)
			m.refreshBalance()
			return m, nil
		case "left", "right":
			if m.mode == modeFlip {
				m.face = !m.face
			}
			return m, nil
		case "enter":
			if m.mode == modeFlip {
				m.startFlip()
			} else {
				m.startDeposit()
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.amountInput, cmd = m.amountInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "f":
		if m.mode == modeIdle {
			m.mode = modeFlip
			m.amountInput.Focus()
			m.refreshBalance()
		}
		return m, nil
	case "g":
		if m.mode == modeIdle {
			m.mode = modeGames
			m.Lock()
			m.pageNum = 0
			m.selectedGame = 0
			m.Unlock()
			m.loadGames()
		}
		return m, nil
	case "h":
		if m.mode == modeIdle {
			m.mode = modeHistory
			m.loadHistory()
		}
		return m, nil
	case "d":
		if m.mode == modeIdle {
			m.mode = modeDeposit
			m.amountInput.Focus()
		}
		return m, nil
	case "v":
		if m.mode == modeIdle {
			m.mode = modeViewLogs
			if lines := m.logBackend.LastLogLines(100); len(lines) > 0 {
				m.logBuffer = lines
				m.logViewport.SetContent(strings.Join(lines, "\n"))
				m.logViewport.GotoBottom()
			}
		}
		return m, nil
	case "n":
		// Clear the last attempt so a new flip can start.
		m.fc.Reset()
		m.Lock()
		m.notification = ""
		m.Unlock()
		return m, nil
	case "up", "k":
		if m.mode == modeGames {
			m.Lock()
			if m.selectedGame > 0 {
				m.selectedGame--
			}
			m.Unlock()
		}
		return m, nil
	case "down", "j":
		if m.mode == modeGames {
			m.Lock()
			if m.page != nil && m.selectedGame < len(m.page.Games)-1 {
				m.selectedGame++
			}
			m.Unlock()
		}
		return m, nil
	case "pgdown", "]":
		if m.mode == modeGames {
			m.Lock()
			more := m.page != nil && m.page.HasMore
			if more {
				m.pageNum++
			}
			m.Unlock()
			if more {
				m.loadGames()
			}
		}
		return m, nil
	case "pgup", "[":
		if m.mode == modeGames {
			m.Lock()
			back := m.pageNum > 0
			if back {
				m.pageNum--
			}
			m.Unlock()
			if back {
				m.loadGames()
			}
		}
		return m, nil
	case "enter":
		if m.mode == modeGames {
			m.joinSelected()
		}
		return m, nil
	case "r":
		if m.mode == modeGames {
			m.loadGames()
		}
		return m, nil
	case "esc":
		if m.mode != modeIdle {
			m.mode = modeIdle
		}
		return m, nil
	}
	return m, nil
}

func (m *appstate) View() string {
	var b strings.Builder

	b.WriteString("========== FlipIt ==========\n\n")

	// Snapshot everything background goroutines mutate under Lock.
	m.Lock()
	notification := m.notification
	mode := m.mode
	page := m.page
	selectedGame := m.selectedGame
	pageNum := m.pageNum
	resolved := m.resolved
	face := m.face
	tokenIdx := m.tokenIdx
	m.Unlock()

	if notification != "" {
		b.WriteString(fmt.Sprintf("* %s\n\n", notification))
	}

	balance, symbol := m.fc.BalanceAndSymbol()
	if balance != nil {
		b.WriteString(fmt.Sprintf("Balance: %s %s\n", flipit.FormatAmount(balance), symbol))
	}
	b.WriteString(fmt.Sprintf("Attempt: %s\n", m.fc.Phase()))
	if pending := m.fc.Pending(); pending != nil {
		b.WriteString(fmt.Sprintf("Pending request: %s\n", pending.RequestID))
	}
	b.WriteString("\n")

	switch mode {
	case modeIdle:
		b.WriteString("[F] - Flip a coin\n")
		b.WriteString("[G] - Open games\n")
		b.WriteString("[H] - Flip history\n")
		b.WriteString("[D] - Deposit to treasury\n")
		b.WriteString("[V] - View logs\n")
		b.WriteString("[N] - Clear last attempt\n")
		b.WriteString("[Ctrl+C] - Exit\n")

	case modeFlip:
		chosen := "HEADS"
		if !face {
			chosen = "TAILS"
		}
		b.WriteString("[Flip Mode]\n")
		b.WriteString(fmt.Sprintf("Token: %s ([tab] to cycle)\n", m.tokens[tokenIdx]))
		b.WriteString(fmt.Sprintf("Face: %s ([left]/[right] to toggle)\n", chosen))
		b.WriteString(fmt.Sprintf("Amount: %s\n", m.amountInput.View()))
		b.WriteString("\nPress [enter] to flip, [esc] to go back.\n")

	case modeGames:
		b.WriteString("[Open Games]\n")
		b.WriteString("Use [up]/[down] to select, [enter] to join, [r] to refresh.\n")
		b.WriteString("[[]/[]] for pages, [esc] to go back.\n\n")
		if page == nil || len(page.Games) == 0 {
			b.WriteString("No open games.\n")
		} else {
			for i, g := range page.Games {
				indicator := " "
				if i == selectedGame {
					indicator = ">"
				}
				b.WriteString(fmt.Sprintf("%s game %d - bet %s %s\n", indicator, g.ID,
					flipit.FormatAmount(g.BetAmount), flipit.TokenSymbolFor(g.Token)))
			}
			b.WriteString(fmt.Sprintf("\nPage %d, %d open games total.\n", pageNum+1, page.Total))
			if page.Skipped > 0 {
				b.WriteString(fmt.Sprintf("%d games hidden (status unavailable).\n", page.Skipped))
			}
		}

	case modeHistory:
		b.WriteString("[Flip History]\n")
		if len(resolved) == 0 {
			b.WriteString("No resolved flips.\n")
		} else {
			for _, r := range resolved {
				result := "lost"
				if r.Won {
					result = fmt.Sprintf("won %s", flipit.FormatAmount(r.Payout))
				}
				b.WriteString(fmt.Sprintf("%s  request %s  %s\n",
					r.Timestamp.Format("2006-01-02 15:04"), r.RequestID, result))
			}
		}
		b.WriteString("\nPress [esc] to go back.\n")

	case modeDeposit:
		b.WriteString("[Treasury Deposit]\n")
		b.WriteString(fmt.Sprintf("Token: %s ([tab] to cycle)\n", m.tokens[tokenIdx]))
		b.WriteString(fmt.Sprintf("Amount: %s\n", m.amountInput.View()))
		b.WriteString("\nPress [enter] to deposit, [esc] to go back.\n")

	case modeViewLogs:
		b.WriteString("=============== Log Viewer ===============\n\n")
		if len(m.logBuffer) == 0 {
			b.WriteString("No logs available.\n")
		} else {
			b.WriteString(m.logViewport.View())
		}
		b.WriteString("\n\nPress 'Esc' to return\n")
	}

	m.viewport.SetContent(b.String())
	return m.viewport.View()
}
