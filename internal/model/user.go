package model

import (
	"time"
)

// User roles. Admin accounts reach the administrative API surface.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User model
//
// PasswordHash carries a JSON tag because the store serializes entities as
// JSON; the API layer returns UserVO, never this struct. Consumed draw/win
// counts live in QuotaCount entities, not here.
type User struct {
	ID           uint64     `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash,omitempty"`
	Role         string     `json:"role,omitempty"`
	DrawQuota    int        `json:"draw_quota"`
	WinQuota     int        `json:"win_quota"`
	Status       int8       `json:"status"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserStatus user status const
const (
	UserStatusNormal   = 1
	UserStatusDisabled = 2
)

// IsActive check if user is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusNormal
}

// EffectiveRole returns the user's role, defaulting to RoleUser for records
// written before roles existed.
func (u *User) EffectiveRole() string {
	if u.Role == "" {
		return RoleUser
	}
	return u.Role
}

// UserVO is the user view exposed by the API, without credentials.
type UserVO struct {
	ID          uint64     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	DrawQuota   int        `json:"draw_quota"`
	WinQuota    int        `json:"win_quota"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// View returns the API view of the user.
func (u *User) View() *UserVO {
	return &UserVO{
		ID:          u.ID,
		Username:    u.Username,
		Role:        u.EffectiveRole(),
		DrawQuota:   u.DrawQuota,
		WinQuota:    u.WinQuota,
		LastLoginAt: u.LastLoginAt,
	}
}
