package domain

import "time"

// Account is the authentication record. PasswordHash never leaves the service.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	// Version is bumped on every credential write and used for conditional updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the mutable metadata kept 1:1 with an Account.
type Profile struct {
	AccountID   string
	Email       string
	DisplayName string
	Role        Role
	IsActive    bool
	CreatedAt   time.Time
	LastLoginAt time.Time
	UpdatedAt   time.Time
	Version     int64
}

// NewProfile builds the default profile written at sign-up (and on repair).
func NewProfile(a Account, displayName string, now time.Time) Profile {
	return Profile{
		AccountID:   a.ID,
		Email:       a.Email,
		DisplayName: displayName,
		Role:        RoleUser,
		IsActive:    true,
		CreatedAt:   now,
		LastLoginAt: now,
		UpdatedAt:   now,
		Version:     1,
	}
}

// ProfilePatch is a sparse store-level update. Nil fields are left untouched.
type ProfilePatch struct {
	DisplayName *string
	LastLoginAt *time.Time
	UpdatedAt   *time.Time
}

func (p ProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.LastLoginAt == nil && p.UpdatedAt == nil
}

// Apply returns a copy of prof with the patch applied and the version bumped.
func (p ProfilePatch) Apply(prof Profile) Profile {
	if p.DisplayName != nil {
		prof.DisplayName = *p.DisplayName
	}
	if p.LastLoginAt != nil {
		prof.LastLoginAt = *p.LastLoginAt
	}
	if p.UpdatedAt != nil {
		prof.UpdatedAt = *p.UpdatedAt
	}
	prof.Version++
	return prof
}
