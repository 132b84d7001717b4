// Package settings implements the account settings: profile, password and
// the display theme.
package settings

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fruitsalade/docdesk/internal/logging"
	"github.com/fruitsalade/docdesk/pkg/protocol"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 6

// Themes.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// ValidationError is returned for input rejected before any request is
// made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Client is the part of the directory client used for account data.
type Client interface {
	GetUser(ctx context.Context, userID int64) (*protocol.UserResponse, error)
	UpdateUser(ctx context.Context, userID int64, patch protocol.UserPatch) (*protocol.UserResponse, error)
}

// ThemeStore persists the theme preference.
type ThemeStore interface {
	Theme() string
	DarkMode() bool
	SetTheme(theme string, dark bool) error
}

// Profile is what the settings screen shows.
type Profile struct {
	Username string
	FullName string
	Email    string
	UserType string
}

func profileFrom(u *protocol.UserResponse) Profile {
	p := Profile{Username: u.Username, UserType: u.UserType}
	if u.Student != nil {
		p.FullName = u.Student.FullName
		p.Email = u.Student.Email
	}
	if p.Email == "" && p.Username != "" {
		p.Email = p.Username + "@example.com"
	}
	return p
}

// Service applies settings changes for one user.
type Service struct {
	client Client
	store  ThemeStore
	userID int64

	// SystemDark reports whether the terminal background is dark. It
	// resolves the "system" theme.
	SystemDark func() bool
}

// New creates a settings service.
func New(c Client, store ThemeStore, userID int64) *Service {
	return &Service{client: c, store: store, userID: userID}
}

// LoadProfile fetches the user's profile.
func (s *Service) LoadProfile(ctx context.Context) (Profile, error) {
	u, err := s.client.GetUser(ctx, s.userID)
	if err != nil {
		logging.Error("load profile failed", logging.Int64("user_id", s.userID), logging.Err(err))
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return profileFrom(u), nil
}

// UpdateProfile changes the full name.
func (s *Service) UpdateProfile(ctx context.Context, fullName string) (Profile, error) {
	if strings.TrimSpace(fullName) == "" {
		return Profile{}, &ValidationError{Field: "fullName", Message: "full name cannot be empty"}
	}

	u, err := s.client.UpdateUser(ctx, s.userID, protocol.UserPatch{
		Student: &protocol.Student{FullName: fullName},
	})
	if err != nil {
		logging.Error("update profile failed", logging.Int64("user_id", s.userID), logging.Err(err))
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	logging.Info("profile updated", logging.Int64("user_id", s.userID))
	return profileFrom(u), nil
}

// ChangePassword sets a new password after checking the confirmation and
// the minimum length.
func (s *Service) ChangePassword(ctx context.Context, newPassword, confirm string) error {
	if newPassword != confirm {
		return &ValidationError{Field: "password", Message: "new passwords don't match"}
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters long", MinPasswordLength)}
	}

	if _, err := s.client.UpdateUser(ctx, s.userID, protocol.UserPatch{Password: &newPassword}); err != nil {
		logging.Error("change password failed", logging.Int64("user_id", s.userID), logging.Err(err))
		return fmt.Errorf("change password: %w", err)
	}
	logging.Info("password changed", logging.Int64("user_id", s.userID))
	return nil
}

// Theme returns the stored preference and whether dark colours apply.
func (s *Service) Theme() (string, bool) {
	return s.store.Theme(), s.store.DarkMode()
}

// SetTheme stores a theme preference and returns the resolved dark flag.
func (s *Service) SetTheme(theme string) (bool, error) {
	var dark bool
	switch theme {
	case ThemeLight:
	case ThemeDark:
		dark = true
	case ThemeSystem:
		if s.SystemDark != nil {
			dark = s.SystemDark()
		}
	default:
		return false, &ValidationError{Field: "theme", Message: fmt.Sprintf("unknown theme %q (want light, dark or system)", theme)}
	}

	if err := s.store.SetTheme(theme, dark); err != nil {
		return false, fmt.Errorf("save theme: %w", err)
	}
	return dark, nil
}
