package model

import "time"

type EntryKind string

const (
	EntryKindUsage           EntryKind = "usage"
	EntryKindPurchase        EntryKind = "purchase"
	EntryKindFree            EntryKind = "free"
	EntryKindRefund          EntryKind = "refund"
	EntryKindAdminAdjustment EntryKind = "admin_adjustment"
)

// IsCredit reports whether entries of this kind may increase a balance.
func (k EntryKind) IsCredit() bool {
	switch k {
	case EntryKindPurchase, EntryKindFree, EntryKindAdminAdjustment:
		return true
	}
	return false
}

// IsDebit reports whether entries of this kind may decrease a balance.
func (k EntryKind) IsDebit() bool {
	switch k {
	case EntryKindUsage, EntryKindRefund, EntryKindAdminAdjustment:
		return true
	}
	return false
}

// LedgerEntry is immutable once written. Delta is signed; BalanceAfter is the
// account balance right after this entry was applied.
type LedgerEntry struct {
	ID           string    `json:"id"` // ULID, sorts by creation time
	AccountID    string    `json:"account_id"`
	Kind         EntryKind `json:"type"`
	Delta        int64     `json:"credits"`
	BalanceAfter int64     `json:"balance_after"`
	Description  string    `json:"description"`
	ReferenceID  *string   `json:"reference_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
