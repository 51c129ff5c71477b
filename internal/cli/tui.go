package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/textcritica/collate/pkg/errors"
	"github.com/textcritica/collate/pkg/store"
)

// List styles.
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// WitnessListModel is the bubbletea model for interactive witness
// selection. Every witness starts included; space toggles, enter
// confirms, q aborts.
type WitnessListModel struct {
	Witnesses []store.WitnessInput
	Included  []bool
	Cursor    int
	Confirmed bool
	Aborted   bool
}

// NewWitnessListModel creates a witness list model with every witness included.
func NewWitnessListModel(witnesses []store.WitnessInput) WitnessListModel {
	included := make([]bool, len(witnesses))
	for i := range included {
		included[i] = true
	}
	return WitnessListModel{Witnesses: witnesses, Included: included}
}

func (m WitnessListModel) Init() tea.Cmd {
	return nil
}

func (m WitnessListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Witnesses)-1 {
				m.Cursor++
			}
		case " ":
			m.Included[m.Cursor] = !m.Included[m.Cursor]
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m WitnessListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Witnesses"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	for i, w := range m.Witnesses {
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		mark := "[ ]"
		if m.Included[i] {
			mark = "[x]"
		}

		preview := w.Text
		if len(preview) > 40 {
			preview = preview[:40] + "…"
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		line := fmt.Sprintf("%s%s %-12s %s", cursor, mark, w.ID, listDimStyle.Render(preview))
		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case m.Included[i]:
			b.WriteString(listNormalStyle.Render(line))
		default:
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	included := 0
	for _, in := range m.Included {
		if in {
			included++
		}
	}
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d of %d included", included, len(m.Witnesses))))

	return b.String()
}

// selectWitnesses runs the interactive picker and returns the included
// witnesses in their original order.
func selectWitnesses(witnesses []store.WitnessInput) ([]store.WitnessInput, error) {
	model := NewWitnessListModel(witnesses)
	prog := tea.NewProgram(model)
	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("witness selection: %w", err)
	}

	m, ok := final.(WitnessListModel)
	if !ok || m.Aborted || !m.Confirmed {
		return nil, errors.New(errors.ErrCodeInvalidInput, "witness selection aborted")
	}

	var out []store.WitnessInput
	for i, w := range m.Witnesses {
		if m.Included[i] {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no witnesses selected")
	}
	return out, nil
}
