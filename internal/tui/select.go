// Package tui provides interactive terminal UI components.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/lepinkainen/bookenrich/internal/enrichment/book"
	"github.com/lepinkainen/bookenrich/internal/resolve"
)

const (
	defaultListWidth  = 72
	defaultListHeight = 20
)

var runProgram = func(ctx context.Context, m tea.Model) (tea.Model, error) {
	return tea.NewProgram(m, tea.WithContext(ctx)).Run()
}

// SelectionAction represents the user's action in the selection UI.
type SelectionAction int

const (
	// ActionNone indicates no action was taken.
	ActionNone SelectionAction = iota
	// ActionSelected indicates the user selected an item.
	ActionSelected
	// ActionSkipped indicates the user skipped the selection.
	ActionSkipped
	// ActionStopped indicates the user stopped processing entirely.
	ActionStopped
)

// SelectionResult holds the result of a TUI selection. Index is the position
// of the selected candidate in the slice passed to Select.
type SelectionResult struct {
	Action SelectionAction
	Index  int
}

type candidateItem struct {
	candidate book.Candidate
	index     int
}

func (i candidateItem) Title() string       { return i.candidate.Summary() }
func (i candidateItem) FilterValue() string { return i.candidate.Title }
func (i candidateItem) Description() string { return i.candidate.Publisher }

type skipItem struct{}

func (skipItem) Title() string       { return "Skip this book" }
func (skipItem) FilterValue() string { return "skip" }
func (skipItem) Description() string { return "" }

type itemStyles struct {
	normal        lipgloss.Style
	selected      lipgloss.Style
	sourceStyle   lipgloss.Style
	titleStyle    lipgloss.Style
	ratingStyle   lipgloss.Style
	metadataStyle lipgloss.Style
	skipStyle     lipgloss.Style
}

func newItemStyles() itemStyles {
	asciiBorder := lipgloss.Border{
		Top:         "-",
		Bottom:      "-",
		Left:        "|",
		Right:       "|",
		TopLeft:     "+",
		TopRight:    "+",
		BottomLeft:  "+",
		BottomRight: "+",
	}

	container := lipgloss.NewStyle().
		Border(asciiBorder).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Foreground(lipgloss.Color("252"))

	selected := container.Copy().
		BorderForeground(lipgloss.Color("214")).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("237"))

	return itemStyles{
		normal:   container,
		selected: selected,
		sourceStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("110")),
		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("254")),
		ratingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("178")),
		metadataStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("247")).
			Faint(true),
		skipStyle: lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("178")),
	}
}

type candidateDelegate struct {
	styles itemStyles
}

func newDelegate() candidateDelegate {
	return candidateDelegate{styles: newItemStyles()}
}

func (d candidateDelegate) Height() int                         { return 5 }
func (d candidateDelegate) Spacing() int                        { return 1 }
func (d candidateDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d candidateDelegate) Render(w io.Writer, m list.Model, idx int, item list.Item) {
	var content string
	switch it := item.(type) {
	case candidateItem:
		c := it.candidate
		width := m.Width() - 4
		sourceLine := d.styles.sourceStyle.Render(fmt.Sprintf("[%s]", strings.ToUpper(c.Source)))
		titleLine := d.styles.titleStyle.Render(truncate(c.Title, width))
		authorLine := d.styles.metadataStyle.Render(truncate(orDefault(c.Authors, "unknown author"), width))
		metadataLine := d.styles.metadataStyle.Render(formatMetadata(c, width))
		content = lipgloss.JoinVertical(lipgloss.Left, sourceLine, titleLine, authorLine, metadataLine)
		if c.Rating > 0 {
			content = lipgloss.JoinVertical(lipgloss.Left, content,
				d.styles.ratingStyle.Render(fmt.Sprintf("%.2f/5", c.Rating)))
		}
	case skipItem:
		content = d.styles.skipStyle.Render(it.Title())
	default:
		return
	}

	container := d.styles.normal
	if idx == m.Index() {
		container = d.styles.selected
	}
	_, _ = fmt.Fprint(w, container.Render(content))
}

type model struct {
	list        list.Model
	searchTitle string
	result      SelectionResult
}

func newModel(title string, candidates []book.Candidate) *model {
	listItems := make([]list.Item, 0, len(candidates)+1)
	for i, c := range candidates {
		listItems = append(listItems, candidateItem{candidate: c, index: i})
	}
	listItems = append(listItems, skipItem{})

	l := list.New(listItems, newDelegate(), defaultListWidth, defaultListHeight)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()
	l.Styles.NoItems = lipgloss.NewStyle()

	return &model{
		list:        l,
		searchTitle: title,
		result:      SelectionResult{Action: ActionNone},
	}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			switch selected := m.list.SelectedItem().(type) {
			case candidateItem:
				m.result = SelectionResult{Action: ActionSelected, Index: selected.index}
				return m, tea.Quit
			case skipItem:
				m.result = SelectionResult{Action: ActionSkipped}
				return m, tea.Quit
			}
		case "s", "esc":
			m.result = SelectionResult{Action: ActionSkipped}
			return m, tea.Quit
		case "ctrl+c", "q":
			m.result = SelectionResult{Action: ActionStopped}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		width := clamp(defaultListWidth, msg.Width-4, 40)
		height := clamp(defaultListHeight, msg.Height-6, 5)
		m.list.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) View() string {
	header := headerStyle.Render(fmt.Sprintf("Multiple results found for: %s", m.searchTitle))
	listView := m.list.View()
	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		skipButtonStyle.Render(" Skip "),
		lipgloss.NewStyle().Padding(0, 2).Render(""),
		stopButtonStyle.Render(" Stop Processing "),
	)
	help := helpStyle.Render("Up/Down navigate | Enter select | s skip | q stop")
	return lipgloss.JoinVertical(lipgloss.Left, header, listView, buttons, help)
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			MarginBottom(1)

	skipButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("178")).
			Foreground(lipgloss.Color("0")).
			Bold(true)

	stopButtonStyle = lipgloss.NewStyle().
			MarginTop(1).
			Padding(0, 2).
			Background(lipgloss.Color("161")).
			Foreground(lipgloss.Color("230")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			MarginTop(1).
			Foreground(lipgloss.Color("244"))
)

// Select presents the candidates for one book and waits for a decision.
func Select(ctx context.Context, title string, candidates []book.Candidate) (SelectionResult, error) {
	if len(candidates) == 0 {
		return SelectionResult{Action: ActionSkipped}, nil
	}

	finalModel, err := runProgram(ctx, newModel(title, candidates))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SelectionResult{}, ctxErr
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return SelectionResult{Action: ActionSkipped}, nil
		}
		return SelectionResult{}, err
	}

	if typed, ok := finalModel.(*model); ok {
		return typed.result, nil
	}

	return SelectionResult{}, fmt.Errorf("unexpected program result")
}

// CandidateChooser asks the operator to pick among fallback candidates.
type CandidateChooser struct{}

// Choose implements resolve.Chooser. Leaving the list without a decision
// counts as a skip.
func (CandidateChooser) Choose(ctx context.Context, q book.Query, candidates []book.Candidate) (resolve.Choice, error) {
	title := q.Title
	if title == "" {
		title = q.Identifier
	} else if q.Identifier != "" {
		title = fmt.Sprintf("%s (%s)", q.Title, q.Identifier)
	}

	res, err := Select(ctx, title, candidates)
	if err != nil {
		return resolve.Choice{}, err
	}

	switch res.Action {
	case ActionSelected:
		if res.Index < 0 || res.Index >= len(candidates) {
			return resolve.Choice{}, fmt.Errorf("selection %d out of range", res.Index)
		}
		c := candidates[res.Index]
		return resolve.Choice{Candidate: &c}, nil
	case ActionStopped:
		return resolve.Choice{Stop: true}, nil
	default:
		return resolve.Choice{}, nil
	}
}

// truncate collapses whitespace and cuts value to width terminal cells.
func truncate(value string, width int) string {
	value = strings.Join(strings.Fields(value), " ")
	if width <= 0 {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

// formatMetadata creates the metadata line with publisher, year and page count.
func formatMetadata(c book.Candidate, availableWidth int) string {
	var parts []string

	if c.Publisher != "" {
		parts = append(parts, c.Publisher)
	}
	if c.Year != "" {
		parts = append(parts, c.Year)
	}
	if c.Pages > 0 {
		parts = append(parts, fmt.Sprintf("%d pages", c.Pages))
	}

	if len(parts) == 0 {
		return "No metadata available"
	}

	return truncate(strings.Join(parts, " | "), availableWidth)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func clamp(defaultValue, available, minimum int) int {
	width := defaultValue
	if available > 0 && available < defaultValue {
		width = available
	}
	if width < minimum {
		width = minimum
	}
	return width
}
