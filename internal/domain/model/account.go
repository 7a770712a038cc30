package model

import (
	"strings"
	"time"

	"trailroom-billing/internal/domain"

	"github.com/google/uuid"
)

// Account owns a credit balance. Credits is only ever changed by the credit
// use case, paired with exactly one ledger entry.
type Account struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	Phone               string     `json:"phone,omitempty"`
	Credits             int64      `json:"credits"`
	LastFreeCreditReset *time.Time `json:"last_free_credit_reset,omitempty"`
	IsActive            bool       `json:"is_active"`
	IsSuspended         bool       `json:"is_suspended"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func NewAccount(id, email, name string) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		Email:     email,
		Name:      strings.TrimSpace(name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DisplayName falls back to the email when no name is set.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Email
}

// GrantedOn reports whether the daily free grant was already applied on the
// UTC calendar day of t.
func (a *Account) GrantedOn(t time.Time) bool {
	if a.LastFreeCreditReset == nil {
		return false
	}
	return a.LastFreeCreditReset.UTC().Format("2006-01-02") == t.UTC().Format("2006-01-02")
}

// StartOfDayUTC truncates t to midnight UTC.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
