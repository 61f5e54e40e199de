package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrPromptCancelled is returned when the operator leaves a prompt without answering.
var ErrPromptCancelled = errors.New("prompt cancelled")

type secretModel struct {
	label     string
	input     textinput.Model
	cancelled bool
	done      bool
}

func newSecretModel(label string) *secretModel {
	in := textinput.New()
	in.Placeholder = "leave empty to continue without"
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	in.CharLimit = 256
	in.Width = 48
	in.Focus()
	return &secretModel{label: label, input: in}
}

func (m *secretModel) Init() tea.Cmd { return textinput.Blink }

func (m *secretModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *secretModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(m.label),
		m.input.View(),
		helpStyle.Render("Enter confirm | Esc cancel"),
	)
}

// PromptSecret asks for a value without echoing it. An empty answer is valid.
func PromptSecret(ctx context.Context, label string) (string, error) {
	finalModel, err := runProgram(ctx, newSecretModel(label))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	typed, ok := finalModel.(*secretModel)
	if !ok {
		return "", fmt.Errorf("unexpected program result")
	}
	if typed.cancelled {
		return "", ErrPromptCancelled
	}
	return strings.TrimSpace(typed.input.Value()), nil
}

type optionModel struct {
	label     string
	options   []string
	cursor    int
	chosen    bool
	cancelled bool
}

func (m *optionModel) Init() tea.Cmd { return nil }

func (m *optionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = true
		return m, tea.Quit
	case "esc", "q", "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

var cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))

func (m *optionModel) View() string {
	if m.chosen || m.cancelled {
		return ""
	}
	lines := []string{headerStyle.Render(m.label)}
	for i, opt := range m.options {
		if i == m.cursor {
			lines = append(lines, cursorStyle.Render("> "+opt))
			continue
		}
		lines = append(lines, "  "+opt)
	}
	lines = append(lines, helpStyle.Render("Up/Down navigate | Enter select | Esc cancel"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// SelectOption lets the operator pick one of options, starting on def when
// it is present.
func SelectOption(ctx context.Context, label string, options []string, def string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options for %q", label)
	}

	m := &optionModel{label: label, options: options}
	for i, opt := range options {
		if opt == def {
			m.cursor = i
		}
	}

	finalModel, err := runProgram(ctx, m)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	typed, ok := finalModel.(*optionModel)
	if !ok {
		return "", fmt.Errorf("unexpected program result")
	}
	if typed.cancelled {
		return "", ErrPromptCancelled
	}
	return typed.options[typed.cursor], nil
}
