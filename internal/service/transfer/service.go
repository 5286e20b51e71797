package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
)

// Service reassigns ship ownership between operators.
type Service struct {
	ships  repository.ShipRepository
	users  repository.UserRepository
	events events.Service
	logger *slog.Logger
}

// New returns a transfer service.
func New(ships repository.ShipRepository, users repository.UserRepository, eventSvc events.Service, logger *slog.Logger) Service {
	return Service{ships: ships, users: users, events: eventSvc, logger: logger}
}

var (
	errShipRequired   = fmt.Errorf("%w: ship_id required", repository.ErrInvalidArgument)
	errTargetRequired = fmt.Errorf("%w: target_email required", repository.ErrInvalidArgument)
	errSelfTransfer   = fmt.Errorf("%w: ship already owned by target", repository.ErrInvalidArgument)
)

// Result reports a completed ownership transfer.
type Result struct {
	ShipID        string    `json:"ship_id"`
	NewOwnerID    string    `json:"new_owner_id"`
	NewOwnerEmail string    `json:"new_owner_email"`
	TransferredAt time.Time `json:"transferred_at"`
}

// Transfer moves a ship to the operator identified by targetEmail. The
// caller must own the ship.
func (s Service) Transfer(ctx context.Context, ownerID, shipID, targetEmail string) (*Result, error) {
	shipID = strings.TrimSpace(shipID)
	if shipID == "" {
		return nil, errShipRequired
	}
	targetEmail = strings.ToLower(strings.TrimSpace(targetEmail))
	if targetEmail == "" {
		return nil, errTargetRequired
	}

	ship, err := s.ships.GetShipByID(ctx, shipID)
	if err != nil {
		return nil, err
	}
	if ship.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}

	target, err := s.users.GetUserByEmail(ctx, targetEmail)
	if err != nil {
		return nil, err
	}
	if target.ID == ownerID {
		return nil, errSelfTransfer
	}

	if err := s.ships.TransferShipOwner(ctx, shipID, target.ID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	payload, _ := json.Marshal(map[string]any{
		"previous_owner": ownerID,
		"new_owner":      target.ID,
		"transferred_at": now.Format(time.RFC3339),
	})
	s.events.Publish(ctx, domain.Event{Type: domain.EventShipUpdated, ShipID: shipID, Payload: payload})
	s.logger.Info("ship ownership transferred", "ship_id", shipID, "from", ownerID, "to", target.ID)

	return &Result{
		ShipID:        shipID,
		NewOwnerID:    target.ID,
		NewOwnerEmail: target.Email,
		TransferredAt: now,
	}, nil
}
