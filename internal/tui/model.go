// Package tui renders the file browser in the terminal.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/fruitsalade/docdesk/internal/browser"
	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/upload"
	"github.com/fruitsalade/docdesk/pkg/models"
)

// Mode is the input mode of the browser.
type Mode int

const (
	ModeNormal Mode = iota
	ModeConfirmDelete
	ModeDeleting
	ModeNewFolder
	ModeUpload
)

type (
	listedMsg      struct{ err error }
	deleteDoneMsg  struct{ err error }
	folderMadeMsg  struct{ err error }
	uploadsDoneMsg struct {
		sum upload.Summary
		err error
	}
	downloadDoneMsg struct {
		path string
		n    int64
		err  error
	}
	eventMsg events.Event
)

// Options configures the browser model.
type Options struct {
	Username    string
	Dark        bool
	DownloadDir string
	Events      *events.Broadcaster
}

// Model is the bubbletea model for the interactive browser.
type Model struct {
	ctx  context.Context
	b    *browser.Browser
	opts Options

	keys    KeyMap
	styles  Styles
	table   table.Model
	spinner spinner.Model
	input   textinput.Model
	help    help.Model
	events  chan events.Event

	mode      Mode
	loading   bool
	uploading bool
	status    string
	err       error
	width     int
	height    int
}

// New creates the browser model. ctx bounds every request it issues.
func New(ctx context.Context, b *browser.Browser, opts Options) *Model {
	styles := NewStyles(opts.Dark)

	t := table.New(
		table.WithColumns(columns(80)),
		table.WithHeight(20),
		table.WithFocused(true),
		table.WithStyles(styles.Table),
	)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Header

	in := textinput.New()
	in.CharLimit = 255

	m := &Model{
		ctx:     ctx,
		b:       b,
		opts:    opts,
		keys:    DefaultKeyMap(),
		styles:  styles,
		table:   t,
		spinner: s,
		input:   in,
		help:    help.New(),
		loading: true,
		width:   80,
		height:  24,
	}
	if opts.Events != nil {
		m.events = opts.Events.Subscribe()
	}
	return m
}

// Close releases the event subscription.
func (m *Model) Close() {
	if m.events != nil {
		m.opts.Events.Unsubscribe(m.events)
		m.events = nil
	}
}

// Mode returns the current input mode.
func (m *Model) Mode() Mode { return m.mode }

// Status returns the status line.
func (m *Model) Status() string { return m.status }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

func columns(width int) []table.Column {
	name := width - 10 - 8 - 17 - 8
	if name < 20 {
		name = 20
	}
	return []table.Column{
		{Title: "NAME", Width: name},
		{Title: "SIZE", Width: 10},
		{Title: "TYPE", Width: 8},
		{Title: "MODIFIED", Width: 17},
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(false), m.spinner.Tick, m.waitEvent())
}

func (m *Model) refresh(force bool) tea.Cmd {
	return func() tea.Msg {
		return listedMsg{err: m.b.Refresh(m.ctx, force)}
	}
}

func (m *Model) waitEvent() tea.Cmd {
	ch := m.events
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.mode {
		case ModeConfirmDelete, ModeDeleting:
			return m.handleConfirm(msg)
		case ModeNewFolder, ModeUpload:
			return m.handleInput(msg)
		}
		return m.handleNormal(msg)

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 8; h > 3 {
			m.table.SetHeight(h)
		}
		return m, nil

	case listedMsg:
		m.loading = false
		if msg.err != nil {
			m.showError(msg.err)
		} else {
			m.err = nil
		}
		m.syncRows()
		return m, nil

	case deleteDoneMsg:
		m.mode = ModeNormal
		if msg.err != nil {
			m.showError(msg.err)
		} else {
			m.status = "Deleted"
		}
		m.syncRows()
		return m, nil

	case folderMadeMsg:
		if msg.err != nil {
			m.showError(msg.err)
		} else {
			m.status = "Folder created"
		}
		m.syncRows()
		return m, nil

	case uploadsDoneMsg:
		m.uploading = false
		switch {
		case msg.err != nil:
			m.showError(msg.err)
		case msg.sum.Failed > 0:
			m.status = fmt.Sprintf("Uploaded %d, %d failed", msg.sum.Completed, msg.sum.Failed)
		default:
			m.status = fmt.Sprintf("Uploaded %d file(s)", msg.sum.Completed)
		}
		m.b.Uploads().Clear()
		m.syncRows()
		return m, nil

	case downloadDoneMsg:
		if msg.err != nil {
			m.showError(msg.err)
		} else {
			m.status = fmt.Sprintf("Saved %s (%s)", msg.path, models.FormatSize(msg.n))
		}
		return m, nil

	case eventMsg:
		if msg.Type == events.EventUploadProgress {
			m.status = fmt.Sprintf("Uploading %s: %d%%", msg.Path, msg.Progress)
		}
		return m, m.waitEvent()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) showError(err error) {
	m.err = err
	m.status = ""
}

func (m *Model) selected() (models.DirectoryEntry, bool) {
	entries := m.b.Entries()
	i := m.table.Cursor()
	if i < 0 || i >= len(entries) {
		return models.DirectoryEntry{}, false
	}
	return entries[i], true
}

func (m *Model) handleNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.b.Uploads().HasActive() {
			m.status = "Uploads in progress, wait for them to finish"
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		m.status = ""
		return m, cmd

	case key.Matches(msg, m.keys.Open):
		e, ok := m.selected()
		if !ok || !e.IsFolder {
			return m, nil
		}
		m.loading = true
		return m, m.navigate(func() error { return m.b.Enter(m.ctx, e.Name) })

	case key.Matches(msg, m.keys.Back):
		if m.b.Path().IsRoot() {
			return m, nil
		}
		m.loading = true
		return m, m.navigate(func() error { return m.b.Back(m.ctx) })

	case key.Matches(msg, m.keys.Home):
		m.loading = true
		return m, m.navigate(func() error { return m.b.Jump(m.ctx, -1) })

	case key.Matches(msg, m.keys.Crumb):
		crumbs := m.b.Breadcrumbs()
		i := int(msg.String()[0] - '1')
		if i >= len(crumbs) || i == len(crumbs)-1 {
			return m, nil
		}
		m.loading = true
		index := crumbs[i].Index
		return m, m.navigate(func() error { return m.b.Jump(m.ctx, index) })

	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.err = nil
		return m, m.refresh(true)

	case key.Matches(msg, m.keys.Delete):
		e, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.b.RequestDelete(e) {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case key.Matches(msg, m.keys.NewFolder):
		return m, m.prompt(ModeNewFolder, "Folder name")

	case key.Matches(msg, m.keys.Upload):
		if m.uploading {
			return m, nil
		}
		return m, m.prompt(ModeUpload, "Local files (space separated)")

	case key.Matches(msg, m.keys.Download):
		e, ok := m.selected()
		if !ok || e.IsFolder {
			return m, nil
		}
		m.status = "Downloading " + e.Name
		return m, m.download(e.Name)

	case key.Matches(msg, m.keys.View):
		m.b.ToggleView()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}
	return m, nil
}

func (m *Model) navigate(fn func() error) tea.Cmd {
	return func() tea.Msg {
		return listedMsg{err: fn()}
	}
}

func (m *Model) handleConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == ModeDeleting {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.mode = ModeDeleting
		return m, func() tea.Msg {
			return deleteDoneMsg{err: m.b.ConfirmDelete(m.ctx)}
		}
	case key.Matches(msg, m.keys.Cancel), key.Matches(msg, m.keys.Quit):
		m.b.CancelDelete()
		m.mode = ModeNormal
	}
	return m, nil
}

func (m *Model) prompt(mode Mode, placeholder string) tea.Cmd {
	m.mode = mode
	m.input.Reset()
	m.input.Placeholder = placeholder
	m.input.Focus()
	return textinput.Blink
}

func (m *Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := m.input.Value()
		mode := m.mode
		m.mode = ModeNormal
		m.input.Blur()
		if mode == ModeNewFolder {
			return m, m.createFolder(value)
		}
		return m, m.startUploads(strings.Fields(value))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) createFolder(name string) tea.Cmd {
	return func() tea.Msg {
		return folderMadeMsg{err: m.b.CreateFolder(m.ctx, name)}
	}
}

func (m *Model) startUploads(paths []string) tea.Cmd {
	var items []upload.Item
	for _, p := range paths {
		it, err := upload.FromFile(p)
		if err != nil {
			m.showError(err)
			return nil
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil
	}
	m.b.AddUploads(items...)
	m.uploading = true
	m.status = fmt.Sprintf("Uploading %d file(s)", len(items))
	return func() tea.Msg {
		sum, err := m.b.StartUploads(m.ctx)
		return uploadsDoneMsg{sum: sum, err: err}
	}
}

func (m *Model) download(name string) tea.Cmd {
	dir := m.opts.DownloadDir
	if dir == "" {
		dir = "."
	}
	dest := filepath.Join(dir, filepath.Base(name))
	return func() tea.Msg {
		f, err := os.Create(dest)
		if err != nil {
			return downloadDoneMsg{err: err}
		}
		n, err := m.b.Download(m.ctx, name, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dest)
			logging.Warn("download failed", logging.String("name", name), logging.Err(err))
		}
		return downloadDoneMsg{path: dest, n: n, err: err}
	}
}

func (m *Model) syncRows() {
	entries := m.b.Entries()
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		name := e.DisplayName()
		if e.IsFolder {
			name += "/"
		}
		rows[i] = table.Row{name, e.DisplaySize(), e.DisplayType(), e.DisplayModified()}
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var sb strings.Builder

	title := "docdesk"
	if m.opts.Username != "" {
		title += " - " + m.opts.Username
	}
	sb.WriteString(m.styles.Header.Render(title))
	sb.WriteString("\n")

	var crumbs []string
	for i, c := range m.b.Breadcrumbs() {
		if i < 9 {
			crumbs = append(crumbs, fmt.Sprintf("%d %s", i+1, c.Name))
		} else {
			crumbs = append(crumbs, c.Name)
		}
	}
	sb.WriteString(m.styles.Crumbs.Render(strings.Join(crumbs, " / ")))
	sb.WriteString("\n\n")

	switch {
	case m.loading && !m.b.Loaded():
		sb.WriteString(m.spinner.View() + " Loading files...")
	case len(m.b.Entries()) == 0:
		sb.WriteString(m.styles.Status.Render("This folder is empty"))
	case m.b.View() == browser.ViewGrid:
		sb.WriteString(m.gridView())
	default:
		sb.WriteString(m.table.View())
	}
	sb.WriteString("\n")

	switch m.mode {
	case ModeConfirmDelete, ModeDeleting:
		sb.WriteString(m.confirmView())
		sb.WriteString("\n")
	case ModeNewFolder, ModeUpload:
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
	}

	if m.uploading {
		sb.WriteString(m.queueView())
	}

	switch {
	case m.err != nil:
		sb.WriteString(m.styles.Error.Render("Error: " + m.err.Error()))
	case m.status != "":
		sb.WriteString(m.styles.Status.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

func (m *Model) confirmView() string {
	_, target := m.b.Deletes().State()
	kind := "file"
	if target.IsFolder {
		kind = "folder and all its contents"
	}
	body := fmt.Sprintf("Delete %s %q? This cannot be undone.\n\n[y] delete  [n] cancel", kind, target.Path)
	if m.mode == ModeDeleting {
		body = m.spinner.View() + " Deleting " + target.Path + "..."
	}
	return m.styles.Dialog.Render(body)
}

func (m *Model) queueView() string {
	var sb strings.Builder
	for _, it := range m.b.Uploads().Items() {
		line := fmt.Sprintf("  %-30s %3d%%  %s", it.Name, it.Progress, it.Status)
		if it.Err != "" {
			line += "  " + it.Err
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *Model) gridView() string {
	const cell = 24
	perRow := m.width / cell
	if perRow < 1 {
		perRow = 1
	}

	entries := m.b.Entries()
	cursor := m.table.Cursor()
	var rows []string
	var row []string
	for i, e := range entries {
		label := e.DisplayName()
		style := m.styles.Cell
		if e.IsFolder {
			label += "/"
			style = m.styles.Folder
		}
		label = ansi.Truncate(label, cell-2, "...")
		if i == cursor {
			style = m.styles.Selected
		}
		row = append(row, style.Width(cell).Render(label))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
