package overlay

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			MarginRight(1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	missingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// TerminalPresenter renders the current pack as a styled panel on a
// terminal writer. It stands in for a screen overlay in headless runs and
// doubles as the dry-run display.
type TerminalPresenter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminalPresenter renders to w.
func NewTerminalPresenter(w io.Writer) *TerminalPresenter {
	return &TerminalPresenter{w: w}
}

func (p *TerminalPresenter) Present(annotations []Annotation, missingText string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cards := make([]string, len(annotations))
	for i, a := range annotations {
		cards[i] = cardStyle.Render(a.Text)
	}

	// Wrap to rows the way the pack lays out on screen.
	const perRow = 5
	var rows []string
	for len(cards) > 0 {
		n := perRow
		if n > len(cards) {
			n = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[:n]...))
		cards = cards[n:]
	}

	parts := append([]string{titleStyle.Render("Current pack")}, rows...)
	if missingText != "" {
		parts = append(parts, missingStyle.Render(missingText))
	}
	body := lipgloss.JoinVertical(lipgloss.Left, parts...)
	_, err := fmt.Fprintln(p.w, panelStyle.Render(body))
	return err
}

func (p *TerminalPresenter) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w)
	return err
}
