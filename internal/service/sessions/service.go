package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
)

// Service tracks crew sessions and ship tasks, and aggregates the fleet
// runtime snapshot consumed by the dashboard refresh.
type Service struct {
	sessions repository.SessionRepository
	ships    repository.ShipRepository
	events   events.Service
	logger   *slog.Logger
}

// New returns a sessions service.
func New(sessions repository.SessionRepository, ships repository.ShipRepository, eventSvc events.Service, logger *slog.Logger) Service {
	return Service{sessions: sessions, ships: ships, events: eventSvc, logger: logger}
}

var errSessionRequired = fmt.Errorf("%w: session id required", repository.ErrInvalidArgument)

// Open starts a crew session on a ship the caller owns.
func (s Service) Open(ctx context.Context, ownerID, shipID, crewID string) (*domain.CrewSession, error) {
	shipID = strings.TrimSpace(shipID)
	if shipID == "" {
		return nil, fmt.Errorf("%w: ship_id required", repository.ErrInvalidArgument)
	}
	ship, err := s.ships.GetShipByID(ctx, shipID)
	if err != nil {
		return nil, err
	}
	if ship.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	session := &domain.CrewSession{
		ID:           uuid.NewString(),
		DeploymentID: shipID,
		CrewID:       strings.TrimSpace(crewID),
		Status:       domain.SessionStatusOpen,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("session opened", "session_id", session.ID, "ship_id", shipID)
	return session, nil
}

// List returns sessions for the caller's fleet, optionally by status.
func (s Service) List(ctx context.Context, ownerID, status string) ([]domain.CrewSession, error) {
	return s.sessions.ListSessions(ctx, ownerID, strings.TrimSpace(status))
}

// Prompt marks a session as awaiting operator input and broadcasts the
// session.prompted event that drives the dashboard refresh.
func (s Service) Prompt(ctx context.Context, sessionID, shipID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errSessionRequired
	}
	now := time.Now().UTC()
	if err := s.sessions.MarkSessionPrompted(ctx, sessionID, now); err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{"session_id": sessionID})
	s.events.Publish(ctx, domain.Event{Type: domain.EventSessionPrompted, ShipID: shipID, Payload: payload})
	s.logger.Info("session prompted", "session_id", sessionID, "ship_id", shipID)
	return nil
}

// Tasks returns tasks for the caller's fleet, optionally by status.
func (s Service) Tasks(ctx context.Context, ownerID, status string) ([]domain.Task, error) {
	return s.sessions.ListTasks(ctx, ownerID, strings.TrimSpace(status))
}

// UpdateTask moves a task through its lifecycle.
func (s Service) UpdateTask(ctx context.Context, taskID, status, detail string) error {
	switch status {
	case domain.TaskStatusQueued, domain.TaskStatusRunning, domain.TaskStatusDone, domain.TaskStatusFailed:
	default:
		return fmt.Errorf("%w: unknown task status %q", repository.ErrInvalidArgument, status)
	}
	return s.sessions.UpdateTaskStatus(ctx, taskID, status, detail)
}

// Snapshot aggregates session, task and ship counts for one owner.
func (s Service) Snapshot(ctx context.Context, ownerID string) (*domain.RuntimeSnapshot, error) {
	sessionCounts, err := s.sessions.CountSessionsByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	taskCounts, err := s.sessions.CountTasksByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	shipCounts, err := s.ships.CountShipsByStatus(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if shipCounts == nil {
		shipCounts = map[string]int{}
	}
	return &domain.RuntimeSnapshot{
		OpenSessions:  sessionCounts[domain.SessionStatusOpen] + sessionCounts[domain.SessionStatusPrompted],
		PendingTasks:  taskCounts[domain.TaskStatusQueued],
		RunningTasks:  taskCounts[domain.TaskStatusRunning],
		ShipsByStatus: shipCounts,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}
