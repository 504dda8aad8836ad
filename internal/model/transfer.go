package model

import "time"

// TransferPair links an outflow and an inflow that together represent an
// internal transfer between two accounts of the same household. Source is
// the outflow side, target the inflow side; Amount is the absolute value
// moved. A transaction belongs to at most one pair.
type TransferPair struct {
	CreatedAt           time.Time `json:"created_at"`
	ID                  string    `json:"id"`
	HouseholdID         string    `json:"household_id"`
	SourceTransactionID string    `json:"source_transaction_id"`
	TargetTransactionID string    `json:"target_transaction_id"`
	Amount              float64   `json:"amount"`
	Confidence          float64   `json:"confidence"`
	Confirmed           bool      `json:"confirmed"`
}
