package tui

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docdesk/internal/browser"
	"github.com/fruitsalade/docdesk/pkg/client"
	"github.com/fruitsalade/docdesk/pkg/models"
)

type stubClient struct {
	listings map[string][]models.DirectoryEntry
	deleted  []string
	created  []string
	files    map[string]string
}

func (s *stubClient) ListFiles(ctx context.Context, userID int64, folder string, opts client.ListOptions) ([]models.DirectoryEntry, error) {
	return append([]models.DirectoryEntry(nil), s.listings[folder]...), nil
}

func (s *stubClient) CreateFolder(ctx context.Context, userID int64, folder, name string) error {
	s.created = append(s.created, name)
	return nil
}

func (s *stubClient) Download(ctx context.Context, userID int64, path string) (io.ReadCloser, int64, error) {
	c := s.files[path]
	return io.NopCloser(strings.NewReader(c)), int64(len(c)), nil
}

func (s *stubClient) Upload(ctx context.Context, userID int64, folder, name string, content io.Reader, size int64, progress client.Progress) error {
	return nil
}

func (s *stubClient) DeleteFile(ctx context.Context, userID int64, path string) error {
	s.deleted = append(s.deleted, path)
	return nil
}

func (s *stubClient) DeleteFolder(ctx context.Context, userID int64, path string) error {
	s.deleted = append(s.deleted, path+"/")
	return nil
}

func newTestModel(t *testing.T) (*Model, *stubClient) {
	t.Helper()
	sc := &stubClient{
		listings: map[string][]models.DirectoryEntry{
			"":        {{Name: "notes.txt", Size: 3}, {Name: "Reports/", IsFolder: true}},
			"Reports": {{Name: "q1.pdf", Size: 10}},
		},
		files: map[string]string{"notes.txt": "abc"},
	}
	b := browser.New(sc, 1, browser.Options{})
	m := New(context.Background(), b, Options{Username: "alice", DownloadDir: t.TempDir()})
	m.Update(m.refresh(false)())
	return m, sc
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command once.
func press(m *Model, s string) {
	_, cmd := m.Update(keyMsg(s))
	if cmd == nil {
		return
	}
	if msg := cmd(); msg != nil {
		m.Update(msg)
	}
}

func TestInitialListingFoldersFirst(t *testing.T) {
	m, _ := newTestModel(t)
	rows := m.table.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Reports/", rows[0][0])
	assert.Equal(t, "notes.txt", rows[1][0])
	assert.Contains(t, m.View(), "alice")
}

func TestEnterAndBack(t *testing.T) {
	m, _ := newTestModel(t)

	press(m, "enter")
	assert.Equal(t, "Reports", m.b.Path().String())
	require.Len(t, m.table.Rows(), 1)
	assert.Contains(t, m.View(), "Reports")

	press(m, "backspace")
	assert.True(t, m.b.Path().IsRoot())
	assert.Len(t, m.table.Rows(), 2)
}

func TestDeleteConfirmation(t *testing.T) {
	m, sc := newTestModel(t)

	press(m, "x")
	assert.Equal(t, ModeConfirmDelete, m.Mode())
	assert.Contains(t, m.View(), "Delete folder")

	press(m, "n")
	assert.Equal(t, ModeNormal, m.Mode())
	assert.Empty(t, sc.deleted)

	press(m, "x")
	press(m, "y")
	assert.Equal(t, ModeNormal, m.Mode())
	assert.Equal(t, []string{"Reports/"}, sc.deleted)
	assert.Equal(t, "Deleted", m.Status())
}

func TestNewFolderPrompt(t *testing.T) {
	m, sc := newTestModel(t)

	press(m, "m")
	assert.Equal(t, ModeNewFolder, m.Mode())
	for _, r := range "2025" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	press(m, "enter")

	assert.Equal(t, ModeNormal, m.Mode())
	assert.Equal(t, []string{"2025"}, sc.created)
	assert.Equal(t, "Folder created", m.Status())
}

func TestEmptyFolderNameShowsError(t *testing.T) {
	m, sc := newTestModel(t)
	press(m, "m")
	press(m, "enter")
	assert.Empty(t, sc.created)
	var verr *browser.ValidationError
	assert.ErrorAs(t, m.Err(), &verr)
}

func TestDownload(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "down")
	press(m, "d")
	require.NoError(t, m.Err())

	data, err := os.ReadFile(filepath.Join(m.opts.DownloadDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}

func TestToggleGridView(t *testing.T) {
	m, _ := newTestModel(t)
	press(m, "v")
	assert.Equal(t, browser.ViewGrid, m.b.View())
	view := m.View()
	assert.Contains(t, view, "Reports/")
	assert.Contains(t, view, "notes.txt")
}

func TestJumpToBreadcrumb(t *testing.T) {
	m, _ := newTestModel(t)
	ctx := context.Background()
	require.NoError(t, m.b.Enter(ctx, "Reports"))
	require.NoError(t, m.b.Enter(ctx, "2025"))
	assert.Contains(t, m.View(), "3 2025")

	press(m, "2")
	assert.Equal(t, "Reports", m.b.Path().String())
	assert.Len(t, m.table.Rows(), 1)

	press(m, "7")
	assert.Equal(t, "Reports", m.b.Path().String())

	press(m, "1")
	assert.True(t, m.b.Path().IsRoot())
	assert.Len(t, m.table.Rows(), 2)
}

func TestGridTruncatesMultibyteNames(t *testing.T) {
	m, sc := newTestModel(t)
	sc.listings[""] = append(sc.listings[""], models.DirectoryEntry{Name: "aaaaaaaaaaaaaaaaaaééé.pdf", Size: 1})
	press(m, "r")
	press(m, "v")

	view := m.View()
	assert.True(t, utf8.ValidString(view))
	assert.Contains(t, view, "...")
	assert.NotContains(t, view, "aaaaaaaaaaaaaaaaaaééé.pdf")
}
