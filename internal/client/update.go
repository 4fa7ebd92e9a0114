package client

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pegrelay/internal/board"
	"pegrelay/internal/relay"
)

const maxLines = 500

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case renderTickMsg:
		m.fps.Tick(time.Time(msg))
		return m, m.tickCmd()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 1)

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case registerMsg:
		m.register(msg.name)

	case sendChatMsg:
		if err := m.net.Send(msg.text); err != nil {
			m.log.Error("failed to send message", zap.Error(err))
		}

	case sendGameMsg:
		m.playMove(msg.text)

	case networkLineMsg:
		m.messages = appendCapped(m.messages, msg.text)
		return m, waitForLine(m.incoming)

	case networkClosedMsg:
		m.online = false
		m.log.Warn("disconnected from relay")

	case logLineMsg:
		m.logs = appendCapped(m.logs, msg.text)
		return m, waitForLog(m.logFeed)
	}
	return m, nil
}

func (m *Model) handleKey(key tea.KeyMsg) tea.Cmd {
	if key.Type == tea.KeyCtrlC {
		return m.quit()
	}

	switch m.mode {
	case Normal:
		switch key.String() {
		case "q":
			return m.quit()
		case "enter":
			if m.tab == TabChat || m.tab == TabSolitaire || !m.registered {
				m.mode = Editing
				return m.input.Focus()
			}
		case "tab":
			m.tab = m.tab.next()
		}
		return nil

	default:
		switch key.Type {
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyEsc:
			m.mode = Normal
			m.input.Blur()
			return nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(key)
		return cmd
	}
}

// submit turns the edit buffer into a domain message. Before registration
// every submission is a username, whatever tab is showing.
func (m *Model) submit() tea.Cmd {
	value := m.input.Value()
	if !m.registered {
		name := strings.TrimSpace(value)
		if name == "" {
			return nil
		}
		return emit(registerMsg{name: name})
	}

	switch m.tab {
	case TabChat:
		m.input.Reset()
		// an empty line would end the session on the relay
		if strings.TrimSpace(value) == "" {
			return nil
		}
		return emit(sendChatMsg{text: value})
	case TabSolitaire:
		m.input.Reset()
		return emit(sendGameMsg{text: value})
	}
	return nil
}

func (m *Model) register(name string) {
	if m.registered {
		return
	}
	if err := m.net.Send(name); err != nil {
		m.log.Error("failed to register", zap.String("user", name), zap.Error(err))
		return
	}
	m.registered = true
	m.username = name
	m.input.Reset()
	m.log.Info("registered", zap.String("user", name))
}

// playMove applies a solitaire command to the local board. Commands that do
// not parse or are not legal are dropped without telling the user. Legal
// moves are announced to the relay; other clients only display them.
func (m *Model) playMove(text string) {
	mv, ok := board.ParseMove(strings.TrimSpace(text))
	if !ok {
		m.log.Debug("unparseable move", zap.String("command", text))
		return
	}
	if !m.board.TryMove(mv) {
		m.log.Debug("illegal move", zap.Stringer("move", mv))
		return
	}
	m.log.Info("move played", zap.Stringer("move", mv), zap.Int("pegs", m.board.PegCount()))

	if err := m.net.Send(relay.MovePrefix + " " + mv.String()); err != nil {
		m.log.Error("failed to announce move", zap.Error(err))
	}
}

func (m *Model) quit() tea.Cmd {
	m.quitting = true
	return tea.Quit
}

func appendCapped(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}
