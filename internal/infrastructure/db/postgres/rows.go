package postgres

import (
	"time"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

type accountRow struct {
	ID           string
	Email        string
	PasswordHash string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Version:      r.Version,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type profileRow struct {
	AccountID   string
	Email       string
	DisplayName string
	Role        string
	IsActive    bool
	CreatedAt   time.Time
	LastLoginAt time.Time
	UpdatedAt   time.Time
	Version     int64
}

func (r profileRow) toDomain() domain.Profile {
	return domain.Profile{
		AccountID:   r.AccountID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		Role:        domain.Role(r.Role),
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt.UTC(),
		LastLoginAt: r.LastLoginAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
		Version:     r.Version,
	}
}
