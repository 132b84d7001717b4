// Package vpath handles slash-delimited virtual folder paths and the
// navigation between them.
package vpath

import (
	"errors"
	"strings"
)

// ErrInvalidSegment is returned for empty segments or segments containing
// a separator.
var ErrInvalidSegment = errors.New("invalid path segment")

// Path is a sequence of folder names relative to the user's root.
// The empty path is the root.
type Path []string

// Parse splits a slash-delimited path, dropping empty segments.
func Parse(s string) Path {
	var p Path
	for _, seg := range strings.Split(s, "/") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// String joins the segments with "/". The root is "".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// IsRoot returns true for the empty path.
func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Join builds a child path from a folder and a name.
func Join(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// ValidSegment reports whether name can be used as a single segment.
func ValidSegment(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

// Crumb is a single breadcrumb.
type Crumb struct {
	Index int    // -1 for root
	Name  string // display name
	Path  string // full path up to and including this crumb
}

// Navigator tracks the current folder. It is a plain state container and
// is not safe for concurrent use.
type Navigator struct {
	path Path
}

// NewNavigator creates a navigator positioned at start.
func NewNavigator(start Path) *Navigator {
	n := &Navigator{}
	for _, seg := range start {
		if ValidSegment(seg) {
			n.path = append(n.path, seg)
		}
	}
	return n
}

// Path returns a copy of the current path.
func (n *Navigator) Path() Path {
	out := make(Path, len(n.path))
	copy(out, n.path)
	return out
}

// Current returns the current folder as a string.
func (n *Navigator) Current() string {
	return n.path.String()
}

// Enter descends into a child folder. A single trailing separator, as
// returned by the backend for folder entries, is accepted.
func (n *Navigator) Enter(name string) error {
	name = strings.TrimSuffix(name, "/")
	if !ValidSegment(name) {
		return ErrInvalidSegment
	}
	n.path = append(n.path, name)
	return nil
}

// Back moves to the parent folder. No-op at root.
func (n *Navigator) Back() {
	if len(n.path) > 0 {
		n.path = n.path[:len(n.path)-1]
	}
}

// Jump truncates the path to index+1 segments. -1 returns to root;
// indexes past the end leave the path unchanged.
func (n *Navigator) Jump(index int) {
	if index < 0 {
		n.path = nil
		return
	}
	if index+1 < len(n.path) {
		n.path = n.path[:index+1]
	}
}

// Breadcrumbs returns the root crumb followed by one crumb per segment.
func (n *Navigator) Breadcrumbs() []Crumb {
	crumbs := []Crumb{{Index: -1, Name: "Home"}}
	for i, seg := range n.path {
		crumbs = append(crumbs, Crumb{
			Index: i,
			Name:  seg,
			Path:  n.path[:i+1].String(),
		})
	}
	return crumbs
}
