package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	confirmMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	confirmDangerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	confirmPanelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// confirmPlan asks the operator to approve a destructive action after
// the plan has been printed. Interactive terminals get the bubbletea
// prompt; without one, approval must come from --yes.
func confirmPlan(prompt string) (bool, error) {
	if !stdinIsTTY() {
		return false, errors.New("confirmation required (rerun with --yes in non-interactive mode)")
	}
	final, err := tea.NewProgram(confirmModel{prompt: prompt}).Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return promptConfirm(prompt + " [y/N] ")
		}
		return false, err
	}
	if m, ok := final.(confirmModel); ok {
		return m.approved, nil
	}
	return false, nil
}

type confirmModel struct {
	prompt   string
	width    int
	approved bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "y", "Y", "enter":
			m.approved = true
			m.done = true
			return m, tea.Quit
		case "n", "N", "esc", "ctrl+c", "q":
			m.approved = false
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		answer := "no"
		if m.approved {
			answer = "yes"
		}
		return fmt.Sprintf("%s %s\n", m.prompt, answer)
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	body := confirmDangerStyle.Render(m.prompt) + "\n\n" +
		confirmMutedStyle.Render("y or enter: proceed | n or esc: cancel")
	return confirmPanelStyle.Width(clampInt(width-4, 36, 96)).Render(body) + "\n"
}

// promptReason collects the free-text reason recorded in the audit
// entry. Cancelling just leaves the reason empty; the go/no-go decision
// belongs to the confirmation prompt, not this form.
func promptReason(label string) (string, error) {
	if !stdinIsTTY() {
		return "", nil
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 240
	input.Width = 64
	input.Focus()

	final, err := tea.NewProgram(reasonModel{label: label, input: input}).Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return promptLine(label)
		}
		return "", err
	}
	if m, ok := final.(reasonModel); ok {
		return strings.TrimSpace(m.input.Value()), nil
	}
	return "", nil
}

type reasonModel struct {
	label string
	input textinput.Model
	done  bool
}

func (m reasonModel) Init() tea.Cmd { return textinput.Blink }

func (m reasonModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.input.SetValue("")
			m.done = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m reasonModel) View() string {
	if m.done {
		reason := strings.TrimSpace(m.input.Value())
		if reason == "" {
			reason = "(none)"
		}
		return fmt.Sprintf("%s %s\n", m.label, reason)
	}
	return confirmTitleStyle.Render(m.label) + "\n" +
		m.input.View() + "\n" +
		confirmMutedStyle.Render("enter: continue | esc: skip") + "\n"
}
