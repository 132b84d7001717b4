package models

import (
	"testing"
	"time"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1000, "1000 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.n); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestDirectoryEntryDisplay(t *testing.T) {
	mod := time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)
	f := DirectoryEntry{Name: "q1.pdf", Type: "pdf", Size: 2048, LastModified: &mod}
	d := DirectoryEntry{Name: "Reports/", IsFolder: true, Size: 99, Type: "folder", LastModified: &mod}

	if got := f.DisplayName(); got != "q1.pdf" {
		t.Errorf("file name = %q", got)
	}
	if got := f.DisplaySize(); got != "2.0 KiB" {
		t.Errorf("file size = %q", got)
	}
	if got := f.DisplayModified(); got != "2024-03-01 12:30" {
		t.Errorf("file modified = %q", got)
	}

	if got := d.DisplayName(); got != "Reports" {
		t.Errorf("folder name = %q", got)
	}
	for label, got := range map[string]string{
		"size":     d.DisplaySize(),
		"type":     d.DisplayType(),
		"modified": d.DisplayModified(),
	} {
		if got != "-" {
			t.Errorf("folder %s = %q, want -", label, got)
		}
	}

	if got := (DirectoryEntry{Name: "notes"}).DisplayType(); got != "-" {
		t.Errorf("untyped file type = %q", got)
	}
}

func TestIsPlaceholder(t *testing.T) {
	if !(DirectoryEntry{Name: "Reports/.placeholder"}).IsPlaceholder() {
		t.Error("nested placeholder not detected")
	}
	if (DirectoryEntry{Name: "placeholder.txt"}).IsPlaceholder() {
		t.Error("ordinary file detected as placeholder")
	}
}

func TestSessionValid(t *testing.T) {
	full := Session{UserID: 1, Token: "t", UserType: "STUDENT", Username: "u"}
	if !full.Valid() {
		t.Error("full session should be valid")
	}
	partial := full
	partial.Token = ""
	if partial.Valid() {
		t.Error("session without token should be invalid")
	}
	if (Session{}).Valid() {
		t.Error("zero session should be invalid")
	}
}
