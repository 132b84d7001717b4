// Package models contains data types shared by the client and the views.
package models

import (
	"fmt"
	"strings"
	"time"
)

// PlaceholderName is the zero-byte marker object that keeps an otherwise
// empty folder visible in listings.
const PlaceholderName = ".placeholder"

// Session is the authenticated identity. All four fields are set together
// or the value is zero.
type Session struct {
	UserID   int64  `json:"userId"`
	Token    string `json:"token"`
	UserType string `json:"userType"`
	Username string `json:"username"`
}

// Valid returns true if the session carries a full identity.
func (s Session) Valid() bool {
	return s.UserID != 0 && s.Token != "" && s.UserType != "" && s.Username != ""
}

// DirectoryEntry is a single row of a folder listing.
type DirectoryEntry struct {
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified"`
	IsFolder     bool       `json:"folder"`
}

// IsPlaceholder returns true for folder marker objects.
func (e DirectoryEntry) IsPlaceholder() bool {
	return strings.HasSuffix(e.Name, PlaceholderName)
}

// DisplayName returns the entry name without the trailing separator the
// backend appends to folders.
func (e DirectoryEntry) DisplayName() string {
	if e.IsFolder {
		return strings.TrimSuffix(e.Name, "/")
	}
	return e.Name
}

// DisplaySize formats the size for humans; folders render "-".
func (e DirectoryEntry) DisplaySize() string {
	if e.IsFolder {
		return "-"
	}
	return FormatSize(e.Size)
}

// DisplayType returns the file type label; folders render "-".
func (e DirectoryEntry) DisplayType() string {
	if e.IsFolder || e.Type == "" {
		return "-"
	}
	return e.Type
}

// DisplayModified formats the last modified time; folders and unknown
// times render "-".
func (e DirectoryEntry) DisplayModified() string {
	if e.IsFolder || e.LastModified == nil {
		return "-"
	}
	return e.LastModified.Local().Format("2006-01-02 15:04")
}

// FormatSize renders a byte count with binary units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
