package ship

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/QSchlegel/OrchWiz-sub000/internal/catalog"
	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/billing"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/crew"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
)

// SecretSource reveals the stored secret bundle for a (user, profile) pair
// so launches can hand it to bootstrap.
type SecretSource interface {
	Reveal(ctx context.Context, userID, profile string) (map[string]string, error)
}

// Service orchestrates ship launches and fleet lifecycle operations.
type Service struct {
	ships    repository.ShipRepository
	sessions repository.SessionRepository
	crew     crew.Service
	billing  billing.Service
	events   events.Service
	secrets  SecretSource
	catalog  *catalog.Catalog
	logger   *slog.Logger
	cfg      config.ShipyardConfig
}

// New returns a ship service.
func New(ships repository.ShipRepository, sessions repository.SessionRepository, crewSvc crew.Service, billingSvc billing.Service, eventSvc events.Service, secretSvc SecretSource, cat *catalog.Catalog, logger *slog.Logger, cfg config.ShipyardConfig) Service {
	return Service{
		ships:    ships,
		sessions: sessions,
		crew:     crewSvc,
		billing:  billingSvc,
		events:   eventSvc,
		secrets:  secretSvc,
		catalog:  cat,
		logger:   logger,
		cfg:      cfg,
	}
}

var (
	errNameRequired   = fmt.Errorf("%w: ship name or node id required", repository.ErrInvalidArgument)
	errUnknownProfile = fmt.Errorf("%w: unknown deployment profile", repository.ErrInvalidArgument)
	errUnknownInfra   = fmt.Errorf("%w: unknown infrastructure kind", repository.ErrInvalidArgument)
	errUnknownStatus  = fmt.Errorf("%w: unknown ship status", repository.ErrInvalidArgument)
)

// LaunchInput is the accumulated wizard form submitted to the yard.
type LaunchInput struct {
	Name           string            `json:"name"`
	NodeID         string            `json:"node_id"`
	NodeType       string            `json:"node_type"`
	Profile        string            `json:"deployment_profile"`
	InfraKind      string            `json:"infrastructure_kind"`
	Apps           []string          `json:"apps"`
	CrewContent    map[string]string `json:"crew_content"`
	Config         json.RawMessage   `json:"config"`
	MonitoringURLs []string          `json:"monitoring_urls"`
}

// LaunchResult is the launch response: the created deployment plus a
// bootstrap report. Warnings carry partial-success notices.
type LaunchResult struct {
	Deployment *domain.ShipDeployment    `json:"deployment"`
	Crew       []domain.BridgeCrewRecord `json:"crew"`
	Quote      *domain.LaunchQuote       `json:"quote,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// Launch validates the wizard form, charges cloud launches against the
// wallet, and creates the ship with its bridge crew and bootstrap tasks.
// Partial bootstrap failures return the created deployment together with
// warnings instead of an error.
func (s Service) Launch(ctx context.Context, ownerID string, input LaunchInput) (*LaunchResult, error) {
	name := strings.TrimSpace(input.Name)
	nodeID := strings.TrimSpace(input.NodeID)
	if name == "" && nodeID == "" {
		return nil, errNameRequired
	}
	if name == "" {
		name = "ship-" + nodeID
	}
	if nodeID == "" {
		nodeID = "node-" + uuid.NewString()[:8]
	}

	profile := strings.ToLower(strings.TrimSpace(input.Profile))
	if profile == "" {
		profile = domain.ProfileLocalDock
	}
	if profile != domain.ProfileLocalDock && profile != domain.ProfileCloudShipyard {
		return nil, fmt.Errorf("%w %q", errUnknownProfile, profile)
	}

	infra := strings.ToLower(strings.TrimSpace(input.InfraKind))
	if infra == "" {
		infra = domain.InfraKindExistingK8s
	}
	if infra != domain.InfraKindExistingK8s && infra != domain.InfraKindProvisionNew {
		return nil, fmt.Errorf("%w %q", errUnknownInfra, infra)
	}
	// Cloud shipyard launches always target an existing cluster.
	if profile == domain.ProfileCloudShipyard {
		infra = domain.InfraKindExistingK8s
	}

	apps := input.Apps
	if len(apps) == 0 {
		apps = s.catalog.Defaults()
	}
	if unknown := s.catalog.Validate(apps); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown bootstrap apps %s", repository.ErrInvalidArgument, strings.Join(unknown, ", "))
	}

	quote, err := s.billing.Quote(ctx, profile, apps)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ship := &domain.ShipDeployment{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Name:             name,
		Status:           domain.ShipStatusPending,
		NodeID:           nodeID,
		NodeType:         strings.TrimSpace(input.NodeType),
		Profile:          profile,
		ProvisioningMode: infra,
		Config:           input.Config,
		HealthStatus:     "unknown",
		MonitoringURLs:   trimURLs(input.MonitoringURLs),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// Charge before any record exists so a declined launch leaves no trace.
	if err := s.billing.ChargeLaunch(ctx, ownerID, quote, ship.ID); err != nil {
		return nil, err
	}

	if err := s.ships.CreateShip(ctx, ship); err != nil {
		return nil, err
	}

	result := &LaunchResult{Deployment: ship, Quote: quote}

	crewRecords, err := s.crew.Bootstrap(ctx, ship.ID, ship.Name, input.CrewContent)
	if err != nil {
		s.logger.Warn("crew bootstrap failed", "ship_id", ship.ID, "error", err)
		result.Warnings = append(result.Warnings, "bridge crew bootstrap incomplete: "+err.Error())
	} else {
		result.Crew = crewRecords
	}

	if err := s.createBootstrapTasks(ctx, ship.ID, apps); err != nil {
		s.logger.Warn("bootstrap tasks failed", "ship_id", ship.ID, "error", err)
		result.Warnings = append(result.Warnings, "bootstrap tasks not queued: "+err.Error())
	}

	if err := s.injectSecrets(ctx, ownerID, ship.ID, profile); err != nil {
		s.logger.Warn("secret injection failed", "ship_id", ship.ID, "error", err)
		result.Warnings = append(result.Warnings, "secret bundle not injected: "+err.Error())
	}

	if len(result.Warnings) == 0 {
		s.updateStatus(ctx, domain.ShipStatusUpdate{
			ShipID: ship.ID,
			Status: domain.ShipStatusDeploying,
		})
		ship.Status = domain.ShipStatusDeploying
	}

	s.publish(ctx, domain.EventShipUpdated, ship.ID, map[string]any{
		"status": ship.Status,
		"name":   ship.Name,
	})
	s.logger.Info("ship launched", "ship_id", ship.ID, "owner_id", ownerID, "profile", profile, "apps", len(apps))
	return result, nil
}

func (s Service) createBootstrapTasks(ctx context.Context, shipID string, apps []string) error {
	now := time.Now().UTC()
	tasks := make([]domain.Task, 0, len(apps))
	for _, app := range apps {
		tasks = append(tasks, domain.Task{
			ID:           uuid.NewString(),
			DeploymentID: shipID,
			Kind:         "bootstrap:" + app,
			Status:       domain.TaskStatusQueued,
			Detail:       "install " + app,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if len(tasks) == 0 {
		return nil
	}
	return s.sessions.CreateTasks(ctx, tasks)
}

// injectSecrets decrypts the profile's stored bundle and queues a bootstrap
// task carrying the keys to inject. Values stay out of task records.
func (s Service) injectSecrets(ctx context.Context, ownerID, shipID, profile string) error {
	bundle, err := s.secrets.Reveal(ctx, ownerID, profile)
	if err != nil {
		return err
	}
	if len(bundle) == 0 {
		return nil
	}
	keys := make([]string, 0, len(bundle))
	for key := range bundle {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	now := time.Now().UTC()
	task := domain.Task{
		ID:           uuid.NewString(),
		DeploymentID: shipID,
		Kind:         "bootstrap:secrets",
		Status:       domain.TaskStatusQueued,
		Detail:       "inject secrets " + strings.Join(keys, ", "),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return s.sessions.CreateTasks(ctx, []domain.Task{task})
}

func trimURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// List returns the caller's fleet, most recently updated first.
func (s Service) List(ctx context.Context, ownerID string) ([]domain.ShipDeployment, error) {
	return s.ships.ListShipsByOwner(ctx, ownerID)
}

// Get returns one ship the caller owns.
func (s Service) Get(ctx context.Context, ownerID, shipID string) (*domain.ShipDeployment, error) {
	ship, err := s.ships.GetShipByID(ctx, shipID)
	if err != nil {
		return nil, err
	}
	if ship.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return ship, nil
}

// PatchInput carries operator-driven edits to a ship.
type PatchInput struct {
	Name           *string         `json:"name"`
	Status         *string         `json:"status"`
	MonitoringURLs *[]string       `json:"monitoring_urls"`
	Config         json.RawMessage `json:"config"`
}

// Patch applies edits and broadcasts the change.
func (s Service) Patch(ctx context.Context, ownerID, shipID string, input PatchInput) (*domain.ShipDeployment, error) {
	if _, err := s.Get(ctx, ownerID, shipID); err != nil {
		return nil, err
	}
	if input.Status != nil && !domain.KnownShipStatus(*input.Status) {
		return nil, fmt.Errorf("%w %q", errUnknownStatus, *input.Status)
	}
	patch := domain.ShipPatch{
		ShipID:         shipID,
		Name:           input.Name,
		Status:         input.Status,
		MonitoringURLs: input.MonitoringURLs,
		Config:         input.Config,
	}
	if err := s.ships.PatchShip(ctx, patch); err != nil {
		return nil, err
	}
	ship, err := s.ships.GetShipByID(ctx, shipID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, domain.EventShipUpdated, shipID, map[string]any{"status": ship.Status, "name": ship.Name})
	return ship, nil
}

// Scrap removes a ship and its cascaded records.
func (s Service) Scrap(ctx context.Context, ownerID, shipID string) error {
	if _, err := s.Get(ctx, ownerID, shipID); err != nil {
		return err
	}
	if err := s.ships.DeleteShip(ctx, shipID); err != nil {
		return err
	}
	s.publish(ctx, domain.EventShipUpdated, shipID, map[string]any{"status": "scrapped"})
	s.logger.Info("ship scrapped", "ship_id", shipID, "owner_id", ownerID)
	return nil
}

// Connection builds a connection summary for a running ship.
func (s Service) Connection(ctx context.Context, ownerID, shipID string) (*domain.ConnectionSummary, error) {
	ship, err := s.Get(ctx, ownerID, shipID)
	if err != nil {
		return nil, err
	}
	return &domain.ConnectionSummary{
		ShipID:          ship.ID,
		ClusterEndpoint: "https://" + ship.NodeID + s.cfg.ClusterDomainSuffix + ":6443",
		Namespace:       "ship-" + shortID(ship.ID),
		KubeconfigHint:  "shipyard ships kubeconfig " + ship.ID,
		MonitoringURLs:  ship.MonitoringURLs,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// Overview summarizes fleet readiness by status for the caller.
func (s Service) Overview(ctx context.Context, ownerID string) (map[string]int, error) {
	return s.ships.CountShipsByStatus(ctx, ownerID)
}

// CallbackPayload carries provisioner progress for a launched ship.
type CallbackPayload struct {
	ShipID       string          `json:"ship_id"`
	Status       string          `json:"status"`
	HealthStatus string          `json:"health_status"`
	Message      string          `json:"message"`
	Metadata     json.RawMessage `json:"metadata"`
	Timestamp    time.Time       `json:"timestamp"`
}

// ProcessCallback ingests progress notifications from the provisioner.
func (s Service) ProcessCallback(ctx context.Context, payload CallbackPayload) error {
	if strings.TrimSpace(payload.ShipID) == "" {
		return fmt.Errorf("%w: ship_id required", repository.ErrInvalidArgument)
	}
	status := mapProvisionerStatus(payload.Status)
	update := domain.ShipStatusUpdate{
		ShipID:       payload.ShipID,
		Status:       status,
		HealthStatus: payload.HealthStatus,
		Message:      payload.Message,
		Metadata:     payload.Metadata,
	}
	if status == domain.ShipStatusActive {
		at := payload.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		update.LaunchedAt = &at
	}
	if err := s.ships.UpdateShipStatus(ctx, update); err != nil {
		return err
	}
	s.publish(ctx, domain.EventDeploymentUpdated, payload.ShipID, map[string]any{
		"status":  status,
		"message": payload.Message,
	})
	s.logger.Info("ship progress", "ship_id", payload.ShipID, "status", status, "message", payload.Message)
	return nil
}

func mapProvisionerStatus(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ready", "active", "running":
		return domain.ShipStatusActive
	case "failed", "error":
		return domain.ShipStatusFailed
	case "provisioning", "deploying", "bootstrapping":
		return domain.ShipStatusDeploying
	case "stopped", "inactive":
		return domain.ShipStatusInactive
	case "updating":
		return domain.ShipStatusUpdating
	default:
		return domain.ShipStatusDeploying
	}
}

func (s Service) updateStatus(ctx context.Context, update domain.ShipStatusUpdate) {
	if err := s.ships.UpdateShipStatus(ctx, update); err != nil {
		s.logger.Warn("ship status update failed", "ship_id", update.ShipID, "error", err)
	}
}

func (s Service) publish(ctx context.Context, eventType, shipID string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload marshal failed", "ship_id", shipID, "error", err)
		return
	}
	s.events.Publish(ctx, domain.Event{Type: eventType, ShipID: shipID, Payload: body})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
