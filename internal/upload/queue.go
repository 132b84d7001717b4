// Package upload implements the batch upload queue used by the browser and
// the upload command.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/metrics"
	"github.com/fruitsalade/docdesk/pkg/client"
	"github.com/fruitsalade/docdesk/pkg/vpath"
)

// Status is the lifecycle state of a queued item.
type Status int

const (
	StatusPending Status = iota
	StatusUploading
	StatusCompleted
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Item is one file selected for upload.
type Item struct {
	Name string
	Size int64
	// Open returns the content. It is called once, when the upload starts.
	Open func() (io.ReadCloser, error)

	Progress int
	Status   Status
	Err      string
}

// FromFile builds an item for a local file. The upload name is the base
// name of path.
func FromFile(path string) (Item, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Item{}, err
	}
	if info.IsDir() {
		return Item{}, fmt.Errorf("%s is a directory", path)
	}
	return Item{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Uploader is the part of the directory client the queue needs.
type Uploader interface {
	Upload(ctx context.Context, userID int64, folder, name string, content io.Reader, size int64, progress client.Progress) error
}

// Summary describes a finished batch.
type Summary struct {
	Started   int
	Completed int
	Failed    int
}

// Queue holds items selected for upload and runs them as batches.
type Queue struct {
	uploader    Uploader
	maxParallel int
	events      *events.Broadcaster

	mu    sync.Mutex
	items []*Item

	// OnComplete is called once after every batch that started at least
	// one item, when all of the batch's items have settled.
	OnComplete func(Summary)
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxParallel bounds concurrent uploads. n <= 0 starts every pending
// item at once.
func WithMaxParallel(n int) Option {
	return func(q *Queue) { q.maxParallel = n }
}

// WithEvents publishes progress and completion events.
func WithEvents(b *events.Broadcaster) Option {
	return func(q *Queue) { q.events = b }
}

// NewQueue creates an empty queue.
func NewQueue(u Uploader, opts ...Option) *Queue {
	q := &Queue{uploader: u}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends items as pending.
func (q *Queue) Enqueue(items ...Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range items {
		it := it
		it.Status = StatusPending
		it.Progress = 0
		it.Err = ""
		q.items = append(q.items, &it)
	}
}

// Items returns a snapshot of the queue.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	for i, it := range q.items {
		out[i] = *it
	}
	return out
}

// Len returns the number of items in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Remove drops the item at index if it is still pending.
func (q *Queue) Remove(index int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if index < 0 || index >= len(q.items) {
		return false
	}
	if q.items[index].Status != StatusPending {
		return false
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	return true
}

// Clear empties the queue. Uploads already in flight keep running but are
// no longer tracked.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// HasActive reports whether any item is uploading.
func (q *Queue) HasActive() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.Status == StatusUploading {
			return true
		}
	}
	return false
}

// StartAll uploads every pending item into folder and blocks until all of
// them have settled. Items fail independently; a failure never cancels its
// siblings. With nothing pending no call is made and OnComplete is not
// invoked.
func (q *Queue) StartAll(ctx context.Context, userID int64, folder string) Summary {
	q.mu.Lock()
	var batch []*Item
	for _, it := range q.items {
		if it.Status == StatusPending {
			it.Status = StatusUploading
			batch = append(batch, it)
		}
	}
	onComplete := q.OnComplete
	q.mu.Unlock()

	if len(batch) == 0 {
		return Summary{}
	}

	logging.Info("upload batch started",
		logging.Int("items", len(batch)),
		logging.String("folder", folder))

	var g errgroup.Group
	if q.maxParallel > 0 {
		g.SetLimit(q.maxParallel)
	}
	for _, it := range batch {
		it := it
		g.Go(func() error {
			q.run(ctx, userID, folder, it)
			return nil
		})
	}
	g.Wait()

	sum := Summary{Started: len(batch)}
	q.mu.Lock()
	for _, it := range batch {
		if it.Status == StatusCompleted {
			sum.Completed++
		} else {
			sum.Failed++
		}
	}
	q.mu.Unlock()

	logging.Info("upload batch finished",
		logging.Int("completed", sum.Completed),
		logging.Int("failed", sum.Failed))
	q.events.Publish(events.Event{Type: events.EventBatchDone, Path: folder})

	if onComplete != nil {
		onComplete(sum)
	}
	return sum
}

func (q *Queue) run(ctx context.Context, userID int64, folder string, it *Item) {
	target := vpath.Join(folder, it.Name)

	err := q.upload(ctx, userID, folder, it)

	q.mu.Lock()
	if err != nil {
		it.Status = StatusError
		it.Err = err.Error()
	} else {
		it.Status = StatusCompleted
		it.Progress = 100
	}
	q.mu.Unlock()

	metrics.RecordUpload(err == nil)
	if err != nil {
		logging.Warn("upload failed", logging.String("path", target), logging.Err(err))
		q.events.Publish(events.Event{Type: events.EventError, Path: target, Err: err})
		return
	}
	metrics.AddBytesUploaded(it.Size)
	q.events.Publish(events.Event{Type: events.EventUploadDone, Path: target, Progress: 100})
}

func (q *Queue) upload(ctx context.Context, userID int64, folder string, it *Item) error {
	if it.Open == nil {
		return fmt.Errorf("no content for %s", it.Name)
	}
	r, err := it.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", it.Name, err)
	}
	defer r.Close()

	target := vpath.Join(folder, it.Name)
	return q.uploader.Upload(ctx, userID, folder, it.Name, r, it.Size, func(pct int) {
		if q.setProgress(it, pct) {
			q.events.Publish(events.Event{Type: events.EventUploadProgress, Path: target, Progress: pct})
		}
	})
}

// setProgress applies pct if it moves the item forward.
func (q *Queue) setProgress(it *Item, pct int) bool {
	if pct > 100 {
		pct = 100
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if it.Status != StatusUploading || pct <= it.Progress {
		return false
	}
	it.Progress = pct
	return true
}
