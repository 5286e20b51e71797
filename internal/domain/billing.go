package domain

import "time"

// Wallet transaction kinds.
const (
	TransactionTopUp        = "topup"
	TransactionLaunchCharge = "launch_charge"
)

// Wallet holds a user's fuel balance in millicredits.
type Wallet struct {
	UserID       string
	BalanceMilli int64
	UpdatedAt    time.Time
}

// WalletTransaction records a balance mutation.
type WalletTransaction struct {
	ID          string
	UserID      string
	AmountMilli int64
	Kind        string
	Reference   string
	CreatedAt   time.Time
}

// LaunchQuote is a server-computed cost estimate for a launch.
type LaunchQuote struct {
	Profile     string    `json:"profile"`
	Apps        []string  `json:"apps"`
	AmountMilli int64     `json:"amount_milli"`
	Currency    string    `json:"currency"`
	ComputedAt  time.Time `json:"computed_at"`
}
