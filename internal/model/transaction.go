package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// TransactionStatus indicates the settlement state of a transaction.
type TransactionStatus string

// Transaction status constants.
const (
	StatusCompleted TransactionStatus = "completed"
	StatusPending   TransactionStatus = "pending"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction represents a single financial transaction belonging to a
// household account. Amounts are signed: positive is an inflow, negative an
// outflow.
type Transaction struct {
	Date                  time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ID                    string
	HouseholdID           string
	AccountID             string
	Description           string // Raw transaction description
	MerchantName          string // Cleaned merchant name, may be empty
	Subcategory           string
	Notes                 string
	TransferAccountID     string // Set when linked into a transfer pair
	TransferTransactionID string // Set when linked into a transfer pair
	Tags                  []string
	Category              Category
	Status                TransactionStatus
	Amount                float64
	IsTransfer            bool
	ExcludeFromBudget     bool
}

// Hash creates a stable fingerprint for duplicate detection during imports.
// Two rows with the same account, date, amount, and description collide.
func (t *Transaction) Hash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s",
		t.AccountID,
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.Description)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// HasTag reports whether the transaction already carries the given tag.
func (t *Transaction) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// AddTag appends a tag unless it is already present. Tags behave as a set.
func (t *Transaction) AddTag(tag string) {
	if !t.HasTag(tag) {
		t.Tags = append(t.Tags, tag)
	}
}
