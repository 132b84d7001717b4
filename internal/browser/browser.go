// Package browser is the file browser view model: the current folder, its
// listing, the upload queue and the delete confirmation, independent of
// how they are rendered.
package browser

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fruitsalade/docdesk/internal/deletion"
	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/metrics"
	"github.com/fruitsalade/docdesk/internal/upload"
	"github.com/fruitsalade/docdesk/pkg/client"
	"github.com/fruitsalade/docdesk/pkg/models"
	"github.com/fruitsalade/docdesk/pkg/vpath"
)

// Client is the directory client surface the browser uses.
type Client interface {
	upload.Uploader
	deletion.Deleter
	ListFiles(ctx context.Context, userID int64, folder string, opts client.ListOptions) ([]models.DirectoryEntry, error)
	CreateFolder(ctx context.Context, userID int64, folder, name string) error
	Download(ctx context.Context, userID int64, path string) (io.ReadCloser, int64, error)
}

// ValidationError is returned for input rejected before any request is
// made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ViewMode is how the listing is laid out.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewGrid
)

func (v ViewMode) String() string {
	if v == ViewGrid {
		return "grid"
	}
	return "list"
}

// DefaultRefreshDelay is the pause between the end of an upload batch and
// the re-list that picks up the new files.
const DefaultRefreshDelay = 500 * time.Millisecond

// Options configures a Browser.
type Options struct {
	Start        vpath.Path
	RefreshDelay time.Duration
	MaxParallel  int
	Events       *events.Broadcaster
}

// Browser holds the view state for one user.
type Browser struct {
	client       Client
	userID       int64
	nav          *vpath.Navigator
	events       *events.Broadcaster
	refreshDelay time.Duration

	uploads *upload.Queue
	deletes *deletion.Workflow

	navMu sync.Mutex

	mu      sync.RWMutex
	entries []models.DirectoryEntry
	view    ViewMode
	loaded  bool
}

// New creates a browser at opts.Start. Nothing is listed until Refresh.
func New(c Client, userID int64, opts Options) *Browser {
	delay := opts.RefreshDelay
	if delay < 0 {
		delay = 0
	}
	b := &Browser{
		client:       c,
		userID:       userID,
		nav:          vpath.NewNavigator(opts.Start),
		events:       opts.Events,
		refreshDelay: delay,
	}
	b.uploads = upload.NewQueue(c,
		upload.WithMaxParallel(opts.MaxParallel),
		upload.WithEvents(opts.Events))
	b.deletes = deletion.New(c, opts.Events)
	b.deletes.AfterDelete = func(ctx context.Context, _ deletion.Target, _ error) {
		b.Refresh(ctx, true)
	}
	return b
}

// Path returns the current folder.
func (b *Browser) Path() vpath.Path {
	b.navMu.Lock()
	defer b.navMu.Unlock()
	return b.nav.Path()
}

func (b *Browser) current() string {
	b.navMu.Lock()
	defer b.navMu.Unlock()
	return b.nav.Current()
}

// Breadcrumbs returns the crumbs for the current folder.
func (b *Browser) Breadcrumbs() []vpath.Crumb {
	b.navMu.Lock()
	defer b.navMu.Unlock()
	return b.nav.Breadcrumbs()
}

// Uploads returns the upload queue.
func (b *Browser) Uploads() *upload.Queue {
	return b.uploads
}

// Deletes returns the delete confirmation workflow.
func (b *Browser) Deletes() *deletion.Workflow {
	return b.deletes
}

// Entries returns the current listing, folders first.
func (b *Browser) Entries() []models.DirectoryEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.DirectoryEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Loaded reports whether at least one listing succeeded.
func (b *Browser) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// View returns the layout mode.
func (b *Browser) View() ViewMode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

// SetView sets the layout mode.
func (b *Browser) SetView(v ViewMode) {
	b.mu.Lock()
	b.view = v
	b.mu.Unlock()
}

// ToggleView switches between list and grid.
func (b *Browser) ToggleView() ViewMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.view == ViewList {
		b.view = ViewGrid
	} else {
		b.view = ViewList
	}
	return b.view
}

// Refresh lists the current folder. On failure the previous listing is
// kept and the error returned. A listing that finishes after the user has
// navigated elsewhere is dropped.
func (b *Browser) Refresh(ctx context.Context, force bool) error {
	folder := b.current()

	entries, err := b.client.ListFiles(ctx, b.userID, folder, client.ListOptions{Force: force})
	if err != nil {
		logging.Error("list failed", logging.String("folder", folder), logging.Err(err))
		b.events.Publish(events.Event{Type: events.EventError, Path: folder, Err: err})
		return fmt.Errorf("list %q: %w", folder, err)
	}

	if b.current() != folder {
		logging.Debug("discarding stale listing", logging.String("folder", folder))
		return nil
	}

	SortEntries(entries)

	b.mu.Lock()
	b.entries = entries
	b.loaded = true
	b.mu.Unlock()

	metrics.SetListingSize(len(entries))
	b.events.Publish(events.Event{Type: events.EventListed, Path: folder})
	return nil
}

// Enter opens a subfolder of the current folder and lists it.
func (b *Browser) Enter(ctx context.Context, name string) error {
	b.navMu.Lock()
	err := b.nav.Enter(name)
	b.navMu.Unlock()
	if err != nil {
		return &ValidationError{Field: "folder", Message: err.Error()}
	}
	return b.Refresh(ctx, false)
}

// Back goes to the parent folder and lists it. At the root it only
// re-lists.
func (b *Browser) Back(ctx context.Context) error {
	b.navMu.Lock()
	b.nav.Back()
	b.navMu.Unlock()
	return b.Refresh(ctx, false)
}

// Jump truncates the path to a breadcrumb and lists it. -1 is the root.
func (b *Browser) Jump(ctx context.Context, index int) error {
	b.navMu.Lock()
	b.nav.Jump(index)
	b.navMu.Unlock()
	return b.Refresh(ctx, false)
}

// CreateFolder creates name inside the current folder and re-lists.
func (b *Browser) CreateFolder(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Message: "folder name is required"}
	}
	if !vpath.ValidSegment(name) {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a valid folder name", name)}
	}

	folder := b.current()
	if err := b.client.CreateFolder(ctx, b.userID, folder, name); err != nil {
		logging.Error("create folder failed",
			logging.String("folder", folder),
			logging.String("name", name),
			logging.Err(err))
		b.events.Publish(events.Event{Type: events.EventError, Path: vpath.Join(folder, name), Err: err})
		return fmt.Errorf("create folder %q: %w", name, err)
	}

	b.events.Publish(events.Event{Type: events.EventFolderCreated, Path: vpath.Join(folder, name)})
	return b.Refresh(ctx, true)
}

// AddUploads queues local files for upload into the current folder.
func (b *Browser) AddUploads(items ...upload.Item) {
	b.uploads.Enqueue(items...)
}

// StartUploads runs every pending upload into the current folder. When the
// batch has settled it waits the refresh delay and forces a re-list.
func (b *Browser) StartUploads(ctx context.Context) (upload.Summary, error) {
	sum := b.uploads.StartAll(ctx, b.userID, b.current())
	if sum.Started == 0 {
		return sum, nil
	}

	if b.refreshDelay > 0 {
		t := time.NewTimer(b.refreshDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return sum, ctx.Err()
		case <-t.C:
		}
	}
	return sum, b.Refresh(ctx, true)
}

// RequestDelete asks for confirmation to delete an entry of the current
// folder.
func (b *Browser) RequestDelete(entry models.DirectoryEntry) bool {
	return b.deletes.Request(vpath.Join(b.current(), entry.DisplayName()), entry.IsFolder)
}

// ConfirmDelete deletes the pending target. The listing is refreshed
// afterwards whatever the outcome.
func (b *Browser) ConfirmDelete(ctx context.Context) error {
	return b.deletes.Confirm(ctx, b.userID)
}

// CancelDelete dismisses a pending confirmation.
func (b *Browser) CancelDelete() {
	b.deletes.Cancel()
}

// Download copies a file of the current folder to w.
func (b *Browser) Download(ctx context.Context, name string, w io.Writer) (int64, error) {
	path := vpath.Join(b.current(), name)
	rc, _, err := b.client.Download(ctx, b.userID, path)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", path, err)
	}
	defer rc.Close()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", path, err)
	}
	return n, nil
}

// SortEntries orders a listing folders first, then by name ignoring case.
func SortEntries(entries []models.DirectoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsFolder != b.IsFolder {
			return a.IsFolder
		}
		an, bn := strings.ToLower(a.DisplayName()), strings.ToLower(b.DisplayName())
		if an != bn {
			return an < bn
		}
		return a.Name < b.Name
	})
}
