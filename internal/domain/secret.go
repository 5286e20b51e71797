package domain

import "time"

// SecretEntry stores an encrypted key/value pair keyed by (user, profile).
type SecretEntry struct {
	UserID    string
	Profile   string
	Key       string
	Value     []byte
	Checksum  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SecretSummary is the masked view returned to clients.
type SecretSummary struct {
	Key       string    `json:"key"`
	Masked    string    `json:"masked"`
	UpdatedAt time.Time `json:"updated_at"`
}
