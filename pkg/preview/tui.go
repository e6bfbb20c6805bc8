package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lepinkainen/registry-preview/pkg/linkpreview"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	JSONViewMode
)

// InvalidateFunc removes a cached preview; the browser calls it for the "d" key.
type InvalidateFunc func(url string) error

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Model represents the Bubble Tea model for the cache browser
type Model struct {
	records       []*linkpreview.Record
	cursor        int
	viewMode      ViewMode
	invalidate    InvalidateFunc
	now           func() time.Time
	status        string
	width         int
	height        int
	selectedIndex int // Index of the record currently being viewed in detail
}

// NewModel creates a new browser model. invalidate may be nil to disable deletion.
func NewModel(records []*linkpreview.Record, invalidate InvalidateFunc) Model {
	return Model{
		records:       records,
		viewMode:      ListViewMode,
		invalidate:    invalidate,
		now:           time.Now,
		selectedIndex: -1,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ListViewMode:
			return m.updateListView(msg)
		case DetailViewMode, JSONViewMode:
			return m.updateDetailView(msg)
		}
	}

	return m, nil
}

// updateListView handles key presses in list view mode
func (m Model) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.records) > 0 {
			m.selectedIndex = m.cursor
			m.viewMode = DetailViewMode
		}

	case "x":
		if len(m.records) > 0 {
			m.selectedIndex = m.cursor
			m.viewMode = JSONViewMode
		}

	case "d":
		return m.deleteSelected(), nil
	}

	return m, nil
}

func (m Model) deleteSelected() Model {
	if m.invalidate == nil || len(m.records) == 0 {
		return m
	}

	rec := m.records[m.cursor]
	if err := m.invalidate(rec.URL); err != nil {
		m.status = fmt.Sprintf("Failed to invalidate %s: %v", rec.URL, err)
		return m
	}

	records := make([]*linkpreview.Record, 0, len(m.records)-1)
	records = append(records, m.records[:m.cursor]...)
	m.records = append(records, m.records[m.cursor+1:]...)
	if m.cursor >= len(m.records) && m.cursor > 0 {
		m.cursor--
	}
	m.status = "Invalidated " + rec.URL
	return m
}

// updateDetailView handles key presses in detail/JSON view modes
func (m Model) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.viewMode = ListViewMode

	case "x":
		if m.viewMode == DetailViewMode {
			m.viewMode = JSONViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}

	return m, nil
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case ListViewMode:
		return m.renderListView()
	case DetailViewMode:
		return m.renderDetailView()
	case JSONViewMode:
		return m.renderJSONView()
	}
	return ""
}

// visibleRange keeps the cursor near the middle of the screen when the list is taller
// than the terminal.
func (m Model) visibleRange() (int, int) {
	start, end := 0, len(m.records)
	if m.height <= 0 {
		return start, end
	}

	maxVisible := m.height - 6 // header, footer and padding
	if maxVisible <= 0 || maxVisible >= len(m.records) {
		return start, end
	}

	start = max(m.cursor-maxVisible/2, 0)
	end = start + maxVisible
	if end > len(m.records) {
		end = len(m.records)
		start = max(end-maxVisible, 0)
	}
	return start, end
}

func (m Model) renderListView() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Link Preview Cache (%d records)", len(m.records))))
	b.WriteString("\n\n")

	now := m.now()
	start, end := m.visibleRange()
	for i := start; i < end; i++ {
		line := FormatCompactListItem(i, m.records[i], now)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	footer := "↑/↓ or j/k: navigate • enter: details • x: JSON • q: quit"
	if m.invalidate != nil {
		footer = "↑/↓ or j/k: navigate • enter: details • x: JSON • d: invalidate • q: quit"
	}
	b.WriteString(footerStyle.Render(footer))

	return b.String()
}

func (m Model) renderDetailView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.records) {
		return "No record selected"
	}

	var b strings.Builder
	b.WriteString(FormatDetailedItem(m.records[m.selectedIndex], m.now()))
	b.WriteString("\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle JSON view • q: quit"))
	return b.String()
}

func (m Model) renderJSONView() string {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.records) {
		return "No record selected"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("API Response Preview"))
	b.WriteString("\n\n")
	b.WriteString(FormatJSONItem(m.records[m.selectedIndex]))
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("esc: back to list • x: toggle detail view • q: quit"))
	return b.String()
}

// Run starts the Bubble Tea program
func Run(records []*linkpreview.Record, invalidate InvalidateFunc) error {
	if len(records) == 0 {
		fmt.Println("No cached previews")
		return nil
	}

	p := tea.NewProgram(NewModel(records, invalidate), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
