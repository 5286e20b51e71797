package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
)

// Service manages bridge crew records attached to ship deployments.
type Service struct {
	crew   repository.CrewRepository
	ships  repository.ShipRepository
	logger *slog.Logger
}

// New returns a crew service.
func New(crew repository.CrewRepository, ships repository.ShipRepository, logger *slog.Logger) Service {
	return Service{crew: crew, ships: ships, logger: logger}
}

var (
	errUnknownRole   = fmt.Errorf("%w: unknown crew role", repository.ErrInvalidArgument)
	errUnknownStatus = fmt.Errorf("%w: crew status must be active or inactive", repository.ErrInvalidArgument)
)

// defaultCallsigns seed the bootstrap roster with readable handles.
var defaultCallsigns = map[string]string{
	domain.CrewRoleCaptain:       "CAP",
	domain.CrewRoleFirstOfficer:  "XO",
	domain.CrewRoleHelmsman:      "HELM",
	domain.CrewRoleEngineer:      "ENG",
	domain.CrewRoleQuartermaster: "QM",
	domain.CrewRoleCommsOfficer:  "COMMS",
}

// Bootstrap creates the six fixed bridge crew records for a new ship.
func (s Service) Bootstrap(ctx context.Context, shipID, shipName string, overrides map[string]string) ([]domain.BridgeCrewRecord, error) {
	for role := range overrides {
		if !domain.KnownCrewRole(role) {
			return nil, fmt.Errorf("%w %q", errUnknownRole, role)
		}
	}
	now := time.Now().UTC()
	records := make([]domain.BridgeCrewRecord, 0, len(domain.BridgeCrewRoles))
	for _, role := range domain.BridgeCrewRoles {
		content := overrides[role]
		records = append(records, domain.BridgeCrewRecord{
			ID:           uuid.NewString(),
			DeploymentID: shipID,
			Role:         role,
			Callsign:     defaultCallsigns[role],
			Name:         roleTitle(role) + " of " + shipName,
			Content:      content,
			Status:       domain.CrewStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := s.crew.CreateCrewRecords(ctx, records); err != nil {
		return nil, err
	}
	s.logger.Info("bridge crew bootstrapped", "ship_id", shipID, "count", len(records))
	return records, nil
}

// Roster lists crew records for a ship, verifying the caller owns the ship.
func (s Service) Roster(ctx context.Context, ownerID, shipID string) ([]domain.BridgeCrewRecord, error) {
	ship, err := s.ships.GetShipByID(ctx, shipID)
	if err != nil {
		return nil, err
	}
	if ship.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return s.crew.ListCrewByShip(ctx, shipID)
}

// UpdateInput carries optional crew record edits.
type UpdateInput struct {
	Callsign    *string `json:"callsign"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Content     *string `json:"content"`
	Status      *string `json:"status"`
}

// Update applies edits to a crew record owned by the caller.
func (s Service) Update(ctx context.Context, ownerID, crewID string, input UpdateInput) (*domain.BridgeCrewRecord, error) {
	record, err := s.crew.GetCrewByID(ctx, crewID)
	if err != nil {
		return nil, err
	}
	ship, err := s.ships.GetShipByID(ctx, record.DeploymentID)
	if err != nil {
		return nil, err
	}
	if ship.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	if input.Callsign != nil {
		record.Callsign = strings.TrimSpace(*input.Callsign)
	}
	if input.Name != nil {
		record.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		record.Description = *input.Description
	}
	if input.Content != nil {
		record.Content = *input.Content
	}
	if input.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*input.Status))
		if status != domain.CrewStatusActive && status != domain.CrewStatusInactive {
			return nil, errUnknownStatus
		}
		record.Status = status
	}
	record.UpdatedAt = time.Now().UTC()
	if err := s.crew.UpdateCrewRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func roleTitle(role string) string {
	switch role {
	case domain.CrewRoleCaptain:
		return "Captain"
	case domain.CrewRoleFirstOfficer:
		return "First Officer"
	case domain.CrewRoleHelmsman:
		return "Helmsman"
	case domain.CrewRoleEngineer:
		return "Engineer"
	case domain.CrewRoleQuartermaster:
		return "Quartermaster"
	case domain.CrewRoleCommsOfficer:
		return "Comms Officer"
	}
	return role
}
