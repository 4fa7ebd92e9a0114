package client

import (
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pegrelay/internal/board"
	"pegrelay/internal/config"
)

// InputMode decides where keystrokes go
type InputMode int

const (
	Normal InputMode = iota
	Editing
)

// ActiveTab selects the view keystrokes act on
type ActiveTab int

const (
	TabChat ActiveTab = iota
	TabLogs
	TabSolitaire
)

var tabTitles = []string{"Chat", "Logs", "Solitaire"}

func (t ActiveTab) String() string { return tabTitles[t] }

func (t ActiveTab) next() ActiveTab { return (t + 1) % ActiveTab(len(tabTitles)) }

// Options wires a Model to its event sources.
type Options struct {
	Net      Sender
	Incoming <-chan string // nil when offline
	Logs     <-chan string
	Logger   *zap.Logger
	Tick     time.Duration
	Username string // registers on start when set
}

// Model is the whole client state. bubbletea dispatches every event to
// Update one at a time, so nothing here needs locking.
type Model struct {
	net      Sender
	incoming <-chan string
	logFeed  <-chan string
	log      *zap.Logger
	tick     time.Duration
	autoName string

	input      textinput.Model
	mode       InputMode
	tab        ActiveTab
	registered bool
	username   string
	online     bool

	messages []string
	logs     []string
	board    *board.Board
	fps      FPSCounter

	width, height int
	quitting      bool
}

func New(opts Options) *Model {
	if opts.Net == nil {
		opts.Net = offline{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tick <= 0 {
		opts.Tick = config.DefaultTick
	}

	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 256
	input.Cursor.SetMode(cursor.CursorStatic)

	return &Model{
		net:      opts.Net,
		incoming: opts.Incoming,
		logFeed:  opts.Logs,
		log:      opts.Logger,
		tick:     opts.Tick,
		autoName: opts.Username,
		input:    input,
		online:   opts.Incoming != nil,
		board:    board.New(),
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.tickCmd(),
		waitForLine(m.incoming),
		waitForLog(m.logFeed),
	}
	if m.autoName != "" {
		cmds = append(cmds, emit(registerMsg{name: m.autoName}))
	}
	return tea.Batch(cmds...)
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return renderTickMsg(t) })
}

// waitForLine turns the next relay line into a message. It is re-armed after
// every line so the network never blocks the other event sources.
func waitForLine(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return networkClosedMsg{}
		}
		return networkLineMsg{text: line}
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logLineMsg{text: line}
	}
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
