// Package tui provides the BubbleTea-based view of the window registry.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/winsync/internal/adapter/output"
	"github.com/jmylchreest/winsync/internal/config"
	"github.com/jmylchreest/winsync/internal/model"
)

// Mode represents the current UI mode.
type Mode int

const (
	ModeList Mode = iota
	ModeDetail
	ModeSearch
	ModeHelp
)

// mapRows is the height of the minimap, borders excluded.
const mapRows = 8

// Source is what the TUI displays. *registry.Manager satisfies it.
type Source interface {
	ID() string
	Windows() []model.WindowEntry
}

// Model is the main TUI model.
type Model struct {
	// Configuration
	cfg    config.TUIConfig
	source Source

	// Current mode
	mode Mode

	// Components
	list        list.Model
	viewport    viewport.Model
	searchInput textinput.Model
	help        help.Model

	// State
	windows     []model.WindowEntry
	selected    *model.WindowEntry
	searchQuery string
	showMap     bool
	width       int
	height      int
	ready       bool
	now         func() time.Time

	// Key bindings
	keys KeyMap

	// Status message
	statusMsg string
	statusErr bool

	// Registry change notifications
	changes <-chan struct{}
}

// windowItem wraps an entry for the list component.
type windowItem struct {
	window model.WindowEntry
	index  int
	self   bool
	now    time.Time
}

func (i windowItem) Title() string {
	title := fmt.Sprintf("%c  %s", mapLabel(i.index), i.window.ID)
	if i.self {
		title += "  (this window)"
	}
	return title
}

func (i windowItem) Description() string {
	desc := fmt.Sprintf("%s - seen %s", i.window.Shape.String(),
		humanize.RelTime(i.window.LastSeenTime(), i.now, "ago", "from now"))
	if meta := metadataSummary(i.window.Metadata); meta != "" {
		desc += " - " + meta
	}
	return desc
}

func (i windowItem) FilterValue() string {
	return i.window.ID + " " + metadataSummary(i.window.Metadata)
}

// windowDelegate highlights the local window in the list.
type windowDelegate struct {
	list.DefaultDelegate
}

func newWindowDelegate() windowDelegate {
	return windowDelegate{DefaultDelegate: list.NewDefaultDelegate()}
}

// Render renders a list item, drawing the local window's title in bold.
func (d windowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	wi, ok := item.(windowItem)
	if !ok {
		d.DefaultDelegate.Render(w, m, index, item)
		return
	}

	titleStyle, descStyle := d.Styles.NormalTitle, d.Styles.NormalDesc
	if index == m.Index() {
		titleStyle, descStyle = d.Styles.SelectedTitle, d.Styles.SelectedDesc
	}
	if wi.self {
		titleStyle = titleStyle.Bold(true)
	}

	itemWidth := m.Width() - d.Styles.NormalTitle.GetHorizontalPadding()
	title, desc := wi.Title(), wi.Description()
	if itemWidth > 0 && len(title) > itemWidth {
		title = title[:itemWidth-1] + "…"
	}
	if itemWidth > 0 && len(desc) > itemWidth {
		desc = desc[:itemWidth-1] + "…"
	}

	fmt.Fprint(w, titleStyle.Render(title))
	fmt.Fprint(w, "\n")
	fmt.Fprint(w, descStyle.Render(desc))
}

// New creates a new TUI model. changes is signalled whenever the registry
// or the local shape changes; it may be nil.
func New(cfg config.TUIConfig, source Source, changes <-chan struct{}) Model {
	l := list.New(nil, newWindowDelegate(), 0, 0)
	l.Title = "Windows"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	searchInput := textinput.New()
	searchInput.Placeholder = "Search id or metadata..."
	searchInput.CharLimit = 100

	return Model{
		cfg:         cfg,
		source:      source,
		mode:        ModeList,
		list:        l,
		searchInput: searchInput,
		help:        help.New(),
		keys:        DefaultKeyMap(),
		showMap:     cfg.ShowMap,
		now:         time.Now,
		changes:     changes,
	}
}

// Init initializes the TUI.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadWindows,
		m.watchForChanges,
		tickAges(),
	)
}

type loadWindowsMsg struct{}

func (m Model) loadWindows() tea.Msg {
	return loadWindowsMsg{}
}

type refreshMsg struct{}

// watchForChanges waits for the next registry change.
func (m Model) watchForChanges() tea.Msg {
	if m.changes == nil {
		return nil
	}
	if _, ok := <-m.changes; !ok {
		return nil
	}
	return refreshMsg{}
}

type ageTickMsg struct{}

// tickAges re-renders periodically so "seen" ages stay current.
func tickAges() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return ageTickMsg{}
	})
}

type statusMsg struct {
	text  string
	isErr bool
}

type clearStatusMsg struct{}

type copyResultMsg struct {
	err error
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case loadWindowsMsg:
		m.refresh()
		return m, nil

	case refreshMsg:
		m.refresh()
		return m, m.watchForChanges

	case ageTickMsg:
		m.list.SetItems(m.buildListItems())
		return m, tickAges()

	case statusMsg:
		m.statusMsg = msg.text
		m.statusErr = msg.isErr
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return clearStatusMsg{}
		})

	case clearStatusMsg:
		m.statusMsg = ""
		m.statusErr = false
		return m, nil

	case copyResultMsg:
		if msg.err != nil {
			return m, status("Copy failed: "+msg.err.Error(), true)
		}
		return m, status("Copied to clipboard", false)
	}

	// Update child components
	switch m.mode {
	case ModeList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	case ModeDetail:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	case ModeSearch:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func status(text string, isErr bool) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text, isErr: isErr}
	}
}

// refresh reloads the registry from the source.
func (m *Model) refresh() {
	if m.source == nil {
		return
	}
	m.windows = m.source.Windows()
	m.list.SetItems(m.buildListItems())

	if m.selected != nil {
		for i := range m.windows {
			if m.windows[i].ID == m.selected.ID {
				m.selected = &m.windows[i]
				m.viewport.SetContent(m.renderDetail(*m.selected))
				return
			}
		}
		// The window we were looking at left.
		m.selected = nil
		if m.mode == ModeDetail {
			m.mode = ModeList
		}
	}
}

// resize lays out the list below the minimap.
func (m *Model) resize() {
	listHeight := m.height - 2
	if m.showMap {
		listHeight -= mapRows + 2
	}
	m.list.SetSize(m.width, max(listHeight, 3))
	m.viewport = viewport.New(m.width, max(m.height-4, 1))
	m.viewport.YPosition = 2
}

// handleKey handles key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys, except while typing a search
	if m.mode != ModeSearch {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			if m.mode == ModeHelp {
				m.mode = ModeList
			} else {
				m.mode = ModeHelp
			}
			return m, nil
		}
	}

	// Mode-specific keys
	switch m.mode {
	case ModeList:
		return m.handleListKey(msg)
	case ModeDetail:
		return m.handleDetailKey(msg)
	case ModeSearch:
		return m.handleSearchKey(msg)
	case ModeHelp:
		if key.Matches(msg, m.keys.Back) {
			m.mode = ModeList
		}
		return m, nil
	}

	return m, nil
}

// handleListKey handles keys in list mode.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Enter):
		if item, ok := m.list.SelectedItem().(windowItem); ok {
			m.openDetail(item.window)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if item, ok := m.list.SelectedItem().(windowItem); ok {
			return m, m.copyToClipboard(item.window.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.CopyAllJSON):
		data, err := json.MarshalIndent(m.visibleWindows(), "", "  ")
		if err != nil {
			return m, status("Failed to marshal JSON: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.CopyAllYAML):
		data, err := yaml.Marshal(m.visibleWindows())
		if err != nil {
			return m, status("Failed to marshal YAML: "+err.Error(), true)
		}
		return m, m.copyToClipboard(string(data))

	case key.Matches(msg, m.keys.ToggleMap):
		m.showMap = !m.showMap
		m.resize()
		return m, nil

	case key.Matches(msg, m.keys.Search):
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		m.mode = ModeSearch
		m.searchInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadWindows
	}

	// Pass to list
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) openDetail(w model.WindowEntry) {
	m.selected = &w
	m.mode = ModeDetail
	m.viewport.SetContent(m.renderDetail(w))
	m.viewport.GotoTop()
}

// handleDetailKey handles keys in detail mode.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = ModeList
		m.selected = nil
		return m, nil

	case key.Matches(msg, m.keys.CopyID):
		if m.selected != nil {
			return m, m.copyToClipboard(m.selected.ID)
		}
		return m, nil
	}

	// Pass to viewport
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleSearchKey handles keys in search mode.
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyEsc:
		m.mode = ModeList
		m.searchInput.Blur()
		m.searchInput.SetValue("")
		m.searchQuery = ""
		m.list.SetItems(m.buildListItems())
		return m, nil

	case tea.KeyEnter:
		m.searchInput.Blur()
		if item, ok := m.list.SelectedItem().(windowItem); ok {
			m.openDetail(item.window)
		} else {
			m.mode = ModeList
		}
		return m, nil

	case tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	// Pass to text input
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)

	// Live filtering
	m.searchQuery = m.searchInput.Value()
	m.list.SetItems(m.buildListItems())

	return m, cmd
}

// visibleWindows returns the windows matching the current search.
func (m Model) visibleWindows() []model.WindowEntry {
	if m.searchQuery == "" {
		return m.windows
	}
	query := strings.ToLower(m.searchQuery)
	var filtered []model.WindowEntry
	for _, w := range m.windows {
		if strings.Contains(strings.ToLower(w.ID), query) ||
			strings.Contains(strings.ToLower(metadataSummary(w.Metadata)), query) {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// buildListItems creates list items from the visible windows. Items keep
// their registry index so labels match the minimap.
func (m Model) buildListItems() []list.Item {
	selfID := ""
	if m.source != nil {
		selfID = m.source.ID()
	}
	now := m.now()

	index := make(map[string]int, len(m.windows))
	for i, w := range m.windows {
		index[w.ID] = i
	}

	visible := m.visibleWindows()
	items := make([]list.Item, len(visible))
	for i, w := range visible {
		items[i] = windowItem{window: w, index: index[w.ID], self: w.ID == selfID, now: now}
	}
	return items
}

// renderDetail renders the detail view for a window.
func (m Model) renderDetail(w model.WindowEntry) string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(w.ID) + "\n\n")

	sb.WriteString(labelStyle.Render("Position: ") + fmt.Sprintf("%g, %g", w.Shape.X, w.Shape.Y) + "\n")
	sb.WriteString(labelStyle.Render("Size: ") + fmt.Sprintf("%g x %g", w.Shape.W, w.Shape.H) + "\n")
	sb.WriteString(labelStyle.Render("Center: ") + output.FormatField(&w, "center") + "\n")
	if joined := output.FormatField(&w, "joined"); joined != "" {
		sb.WriteString(labelStyle.Render("Joined: ") + joined + "\n")
	}
	sb.WriteString(labelStyle.Render("Last seen: ") +
		humanize.RelTime(w.LastSeenTime(), m.now(), "ago", "from now") +
		" (" + w.LastSeenTime().Format(time.RFC3339Nano) + ")\n")

	if len(w.Metadata) > 0 {
		sb.WriteString("\n" + labelStyle.Render("Metadata:") + "\n")
		data, err := yaml.Marshal(w.Metadata)
		if err != nil {
			sb.WriteString("  " + err.Error() + "\n")
		} else {
			for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
				sb.WriteString("  " + line + "\n")
			}
		}
	}

	return sb.String()
}

// copyToClipboard copies text to the system clipboard.
func (m Model) copyToClipboard(text string) tea.Cmd {
	command := m.cfg.ClipboardCommand
	return func() tea.Msg {
		return copyResultMsg{err: copyText(text, command)}
	}
}

// View renders the TUI.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.mode {
	case ModeList:
		return m.viewList()
	case ModeDetail:
		return m.viewDetail()
	case ModeSearch:
		return m.viewSearch()
	case ModeHelp:
		return m.viewHelp()
	default:
		return ""
	}
}

func (m Model) viewMap() string {
	cols := max(m.width-2, 3)
	lines := renderMinimap(m.windows, cols, mapRows)
	if lines == nil {
		return ""
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Render(strings.Join(lines, "\n")) + "\n"
}

func (m Model) viewList() string {
	var s string
	if m.showMap {
		s += m.viewMap()
	}
	s += m.list.View()

	// Status bar
	if m.statusMsg != "" {
		statusStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))
		if m.statusErr {
			statusStyle = statusStyle.Foreground(lipgloss.Color("9"))
		}
		s += "\n" + statusStyle.Render(m.statusMsg)
	} else if m.cfg.ShowHelp {
		s += "\n" + m.help.ShortHelpView(m.listBindings())
	}

	return s
}

// listBindings are the bindings shown in the list view help bar.
func (m Model) listBindings() []key.Binding {
	return []key.Binding{
		m.keys.Quit, m.keys.Enter, m.keys.Help, m.keys.Search,
		m.keys.ToggleMap, m.keys.CopyID, m.keys.Refresh,
	}
}

func (m Model) viewDetail() string {
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1)

	header := headerStyle.Render("Window Detail")
	bar := m.help.ShortHelpView([]key.Binding{m.keys.Quit, m.keys.Back, m.keys.CopyID, m.keys.Up, m.keys.Down})

	return header + "\n" + m.viewport.View() + "\n" + bar
}

func (m Model) viewSearch() string {
	countStr := fmt.Sprintf("(%d matches)", len(m.list.Items()))

	searchBar := "Search: " + m.searchInput.View() + " " +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(countStr)

	return searchBar + "\n" + m.list.View()
}

func (m Model) viewHelp() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		MarginBottom(1)

	h := m.help
	h.ShowAll = true
	h.Width = m.width

	return titleStyle.Render("Keyboard Shortcuts") + "\n\n" + h.View(m.keys) + "\n\n" +
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("Press ? or esc to return")
}

// metadataSummary renders metadata as sorted key=value pairs.
func metadataSummary(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(meta))
	for k, v := range meta {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	slices.Sort(pairs)
	return strings.Join(pairs, " ")
}

// RunOptions configures the TUI.
type RunOptions struct {
	Config  config.TUIConfig
	Source  Source
	Changes <-chan struct{}
	Input   io.Reader // Defaults to stdin
	Output  io.Writer // Defaults to stdout
}

// Run starts the TUI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts RunOptions) error {
	m := New(opts.Config, opts.Source, opts.Changes)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	_, err := tea.NewProgram(m, progOpts...).Run()
	if err != nil && ctx.Err() != nil {
		// Cancelled from outside, not a TUI failure.
		return nil
	}
	return err
}
