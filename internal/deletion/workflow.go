// Package deletion implements the confirm-before-delete workflow shared by
// the rm command and the interactive browser.
package deletion

import (
	"context"
	"fmt"
	"sync"

	"github.com/fruitsalade/docdesk/internal/events"
	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/internal/metrics"
)

// State of the workflow.
type State int

const (
	Idle State = iota
	Pending
	Deleting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Deleting:
		return "deleting"
	}
	return "unknown"
}

// Deleter is the part of the directory client the workflow needs.
type Deleter interface {
	DeleteFile(ctx context.Context, userID int64, path string) error
	DeleteFolder(ctx context.Context, userID int64, path string) error
}

// Target is the entry awaiting confirmation.
type Target struct {
	Path     string
	IsFolder bool
}

// Workflow guards a destructive delete behind an explicit confirmation.
// At most one delete is in flight.
type Workflow struct {
	deleter Deleter
	events  *events.Broadcaster

	mu     sync.Mutex
	state  State
	target Target

	// AfterDelete runs after every delete call, successful or not, once
	// the workflow is back to Idle.
	AfterDelete func(ctx context.Context, t Target, err error)
}

// New creates an idle workflow. b may be nil.
func New(d Deleter, b *events.Broadcaster) *Workflow {
	return &Workflow{deleter: d, events: b}
}

// State returns the current state and target.
func (w *Workflow) State() (State, Target) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.target
}

// Request asks for confirmation to delete path. A request while pending
// replaces the target; a request while deleting is ignored.
func (w *Workflow) Request(path string, isFolder bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Deleting {
		return false
	}
	w.state = Pending
	w.target = Target{Path: path, IsFolder: isFolder}
	return true
}

// Cancel dismisses a pending confirmation. It does nothing while a delete
// is in flight.
func (w *Workflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == Pending {
		w.state = Idle
		w.target = Target{}
	}
}

// Confirm issues exactly one delete call for the pending target. It is a
// no-op returning nil unless the workflow is pending.
func (w *Workflow) Confirm(ctx context.Context, userID int64) error {
	w.mu.Lock()
	if w.state != Pending {
		w.mu.Unlock()
		return nil
	}
	w.state = Deleting
	t := w.target
	w.mu.Unlock()

	var err error
	if t.IsFolder {
		err = w.deleter.DeleteFolder(ctx, userID, t.Path)
	} else {
		err = w.deleter.DeleteFile(ctx, userID, t.Path)
	}
	metrics.RecordDelete(t.IsFolder, err == nil)

	w.mu.Lock()
	w.state = Idle
	w.target = Target{}
	after := w.AfterDelete
	w.mu.Unlock()

	if err != nil {
		logging.Warn("delete failed",
			logging.String("path", t.Path),
			logging.Any("folder", t.IsFolder),
			logging.Err(err))
		w.events.Publish(events.Event{Type: events.EventError, Path: t.Path, Err: err})
		err = fmt.Errorf("delete %s: %w", t.Path, err)
	} else {
		logging.Info("deleted", logging.String("path", t.Path), logging.Any("folder", t.IsFolder))
		w.events.Publish(events.Event{Type: events.EventDeleted, Path: t.Path})
	}

	if after != nil {
		after(ctx, t, err)
	}
	return err
}
