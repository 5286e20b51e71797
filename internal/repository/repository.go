package repository

import (
	"context"
	"time"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
)

// UserRepository persists operator accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// ShipRepository stores ship deployments and lifecycle updates.
type ShipRepository interface {
	CreateShip(ctx context.Context, ship *domain.ShipDeployment) error
	GetShipByID(ctx context.Context, shipID string) (*domain.ShipDeployment, error)
	ListShipsByOwner(ctx context.Context, ownerID string) ([]domain.ShipDeployment, error)
	UpdateShipStatus(ctx context.Context, update domain.ShipStatusUpdate) error
	PatchShip(ctx context.Context, patch domain.ShipPatch) error
	TransferShipOwner(ctx context.Context, shipID, newOwnerID string) error
	DeleteShip(ctx context.Context, shipID string) error
	CountShipsByStatus(ctx context.Context, ownerID string) (map[string]int, error)
}

// CrewRepository persists bridge crew records.
type CrewRepository interface {
	CreateCrewRecords(ctx context.Context, records []domain.BridgeCrewRecord) error
	ListCrewByShip(ctx context.Context, shipID string) ([]domain.BridgeCrewRecord, error)
	GetCrewByID(ctx context.Context, crewID string) (*domain.BridgeCrewRecord, error)
	UpdateCrewRecord(ctx context.Context, record *domain.BridgeCrewRecord) error
}

// SecretRepository stores encrypted secret entries keyed by (user, profile).
type SecretRepository interface {
	UpsertSecret(ctx context.Context, entry *domain.SecretEntry) error
	ListSecrets(ctx context.Context, userID, profile string) ([]domain.SecretEntry, error)
	DeleteSecret(ctx context.Context, userID, profile, key string) error
}

// WalletRepository tracks balances and transactions.
type WalletRepository interface {
	GetWallet(ctx context.Context, userID string) (*domain.Wallet, error)
	ApplyTransaction(ctx context.Context, tx *domain.WalletTransaction) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.WalletTransaction, error)
}

// SessionRepository stores crew sessions and ship tasks.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.CrewSession) error
	ListSessions(ctx context.Context, ownerID string, status string) ([]domain.CrewSession, error)
	MarkSessionPrompted(ctx context.Context, sessionID string, at time.Time) error
	CreateTasks(ctx context.Context, tasks []domain.Task) error
	ListTasks(ctx context.Context, ownerID string, status string) ([]domain.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, status, detail string) error
	CountSessionsByStatus(ctx context.Context, ownerID string) (map[string]int, error)
	CountTasksByStatus(ctx context.Context, ownerID string) (map[string]int, error)
}

// EventRepository keeps a persisted log of broadcast events.
type EventRepository interface {
	AppendEvent(ctx context.Context, record *domain.EventRecord) error
	ListEventsByShip(ctx context.Context, shipID string, limit int) ([]domain.EventRecord, error)
}
