package audit

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// SourceChoice is one entry in the source picker.
type SourceChoice struct {
	Name string
	ATS  string // empty for sources only known from the store
}

func (c SourceChoice) label() string {
	if c.ATS == "" {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.ATS)
}

type pickerModel struct {
	sources []SourceChoice
	cursor  int
	chosen  int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.sources)-1 {
				m.cursor++
			}
		case "enter":
			if len(m.sources) > 0 {
				m.chosen = m.cursor
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Posting Audit · Select a source")
	s += "\n"

	if len(m.sources) == 0 {
		s += pickerItemStyle.Render("(no sources)") + "\n"
	}
	for i, c := range m.sources {
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+c.label()) + "\n"
		} else {
			s += pickerItemStyle.Render(c.label()) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunSourcePicker shows an interactive source selector.
// Returns the index of the chosen source, or a negative value if the user quit.
func RunSourcePicker(sources []SourceChoice) (int, error) {
	m := pickerModel{
		sources: sources,
		chosen:  -1,
	}

	p := tea.NewProgram(m)
	result, err := p.Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	return final.chosen, nil
}

// MergeSources combines configured sources with names found in the store.
// Configured sources keep their order; stored-only names follow.
func MergeSources(configured []SourceChoice, stored []string) []SourceChoice {
	seen := make(map[string]bool, len(configured))
	out := make([]SourceChoice, 0, len(configured)+len(stored))
	for _, c := range configured {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	for _, name := range stored {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, SourceChoice{Name: name})
	}
	return out
}
