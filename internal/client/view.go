package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	hintStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	activeTab     = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("11")).Padding(0, 1)
	inactiveTab   = lipgloss.NewStyle().Faint(true).Padding(0, 1)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	editingBox    = boxStyle.BorderForeground(lipgloss.Color("10"))
	offlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boardPegStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.registered {
		return m.registerView()
	}
	return m.appView()
}

func (m *Model) registerView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Enter your username"))
	b.WriteString("\n")
	b.WriteString(m.inputBox())
	b.WriteString("\n")
	if m.mode == Editing {
		b.WriteString(hintStyle.Render("ctrl+c: quit | esc: stop editing"))
	} else {
		b.WriteString(hintStyle.Render("q: quit | enter: edit"))
	}
	return b.String()
}

func (m *Model) appView() string {
	tabs := make([]string, len(tabTitles))
	for i, title := range tabTitles {
		if ActiveTab(i) == m.tab {
			tabs[i] = activeTab.Render(title)
		} else {
			tabs[i] = inactiveTab.Render(title)
		}
	}

	var body string
	switch m.tab {
	case TabChat:
		body = strings.Join(tail(m.messages, m.bodyHeight()), "\n")
	case TabLogs:
		body = strings.Join(tail(m.logs, m.bodyHeight()), "\n")
	case TabSolitaire:
		body = m.boardView()
	}

	sections := []string{
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		boxStyle.Render(body),
	}
	if m.tab != TabLogs {
		sections = append(sections, m.inputBox())
	}
	sections = append(sections, m.statusLine())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) boardView() string {
	grid := strings.ReplaceAll(m.board.String(), "o", boardPegStyle.Render("o"))
	status := fmt.Sprintf("pegs: %d", m.board.PegCount())
	switch {
	case m.board.Solved():
		status += " | solved"
	case m.board.Stuck():
		status += " | no moves left"
	}
	return grid + "\n" + status + "\nmoves look like A3-A5"
}

func (m *Model) inputBox() string {
	if m.mode == Editing {
		return editingBox.Render(m.input.View())
	}
	return boxStyle.Render(m.input.Value())
}

func (m *Model) statusLine() string {
	keys := "q: quit | tab: switch | enter: edit"
	if m.mode == Editing {
		keys = "ctrl+c: quit | esc: stop editing | enter: send"
	}
	conn := m.username
	if !m.online {
		conn += " " + offlineStyle.Render("(offline)")
	}
	return hintStyle.Render(keys) + fmt.Sprintf(" | %s | %.1f fps", conn, m.fps.FPS())
}

func (m *Model) bodyHeight() int {
	if m.height <= 0 {
		return 20
	}
	// tabs, two borders, input box and status line
	return max(m.height-8, 1)
}

func tail(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}
