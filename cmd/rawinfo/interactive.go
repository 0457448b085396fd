package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	libraw "github.com/wippyai/libraw-wasm"
	"github.com/wippyai/libraw-wasm/decoder"
)

var (
	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// field is one leaf of the metadata tree, addressed by its dotted path.
type field struct {
	path  string
	value string
}

type browserModel struct {
	err      error
	ctx      context.Context
	logger   *zap.Logger
	client   *libraw.Client
	filename string
	fields   []field
	visible  []field
	filter   textinput.Model
	selected int
	height   int
	full     bool
	loading  bool
}

type openedMsg struct {
	err    error
	client *libraw.Client
	meta   decoder.Record
}

type metadataMsg struct {
	err  error
	meta decoder.Record
	full bool
}

func newBrowserModel(ctx context.Context, logger *zap.Logger, filename string) *browserModel {
	ti := textinput.New()
	ti.Prompt = "filter: "
	ti.Placeholder = "field name"
	ti.Width = 40
	ti.Focus()
	return &browserModel{
		ctx:      ctx,
		logger:   logger,
		filename: filename,
		filter:   ti,
		full:     *full,
		height:   20,
		loading:  true,
	}
}

func (m *browserModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.open)
}

func (m *browserModel) open() tea.Msg {
	c, err := openClient(m.ctx, m.logger, m.filename)
	if err != nil {
		return openedMsg{err: err}
	}
	meta, err := c.Metadata(m.ctx, m.full)
	return openedMsg{client: c, meta: meta, err: err}
}

func (m *browserModel) fetch(full bool) tea.Cmd {
	c := m.client
	return func() tea.Msg {
		meta, err := c.Metadata(m.ctx, full)
		return metadataMsg{meta: meta, full: full, err: err}
	}
}

func (m *browserModel) close() {
	if m.client != nil {
		m.client.Close(context.WithoutCancel(m.ctx))
		m.client = nil
	}
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.close()
			return m, tea.Quit

		case "esc":
			if m.filter.Value() == "" {
				m.close()
				return m, tea.Quit
			}
			m.filter.SetValue("")
			m.applyFilter()
			return m, nil

		case "up", "ctrl+p":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil

		case "down", "ctrl+n":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
			return m, nil

		case "ctrl+f":
			if m.client != nil && !m.loading {
				m.loading = true
				return m, m.fetch(!m.full)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-6, 3)

	case openedMsg:
		m.loading = false
		m.client = msg.client
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.setFields(msg.meta)

	case metadataMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.full = msg.full
		m.setFields(msg.meta)
	}

	var cmd tea.Cmd
	before := m.filter.Value()
	m.filter, cmd = m.filter.Update(msg)
	if m.filter.Value() != before {
		m.applyFilter()
	}
	return m, cmd
}

func (m *browserModel) setFields(meta decoder.Record) {
	m.err = nil
	m.fields = m.fields[:0]
	flatten("", meta, &m.fields)
	m.applyFilter()
}

func flatten(prefix string, rec map[string]any, out *[]field) {
	for _, k := range sortedKeys(rec) {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := asMap(rec[k]); ok {
			flatten(path, sub, out)
			continue
		}
		*out = append(*out, field{path: path, value: formatValue(rec[k])})
	}
}

func (m *browserModel) applyFilter() {
	q := strings.ToLower(strings.TrimSpace(m.filter.Value()))
	m.visible = m.visible[:0]
	for _, f := range m.fields {
		if q == "" || strings.Contains(strings.ToLower(f.path), q) {
			m.visible = append(m.visible, f)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) View() string {
	var b strings.Builder

	mode := "basic"
	if m.full {
		mode = "full"
	}
	b.WriteString(titleStyle.Render("LibRaw Metadata"))
	b.WriteString(" ")
	b.WriteString(filepath.Base(m.filename))
	b.WriteString(helpStyle.Render(" (" + mode + ")"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("esc quit"))
		return b.String()
	}
	if m.loading && len(m.fields) == 0 {
		return b.String() + "Decoding..."
	}

	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	width := 0
	for _, f := range m.visible {
		width = max(width, len(f.path))
	}

	start := 0
	if m.selected >= m.height {
		start = m.selected - m.height + 1
	}
	end := min(start+m.height, len(m.visible))
	for i := start; i < end; i++ {
		f := m.visible[i]
		line := fmt.Sprintf("%-*s  %s", width, f.path, f.value)
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + keyStyle.Render(fmt.Sprintf("%-*s", width, f.path)) + "  " + valueStyle.Render(f.value))
		}
		b.WriteString("\n")
	}
	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("no matching fields"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d fields • ↑/↓ move • type to filter • ctrl+f toggle full • esc quit",
		len(m.visible), len(m.fields))))
	return b.String()
}

func runInteractive(ctx context.Context, logger *zap.Logger, filename string) error {
	m := newBrowserModel(ctx, logger, filename)
	defer m.close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
