package ship

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/QSchlegel/OrchWiz-sub000/internal/catalog"
	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/billing"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/crew"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
	"github.com/QSchlegel/OrchWiz-sub000/pkg/config"
)

type fakeShipRepo struct {
	ships map[string]*domain.ShipDeployment
}

func newFakeShipRepo() *fakeShipRepo {
	return &fakeShipRepo{ships: map[string]*domain.ShipDeployment{}}
}

func (f *fakeShipRepo) CreateShip(_ context.Context, ship *domain.ShipDeployment) error {
	clone := *ship
	f.ships[ship.ID] = &clone
	return nil
}

func (f *fakeShipRepo) GetShipByID(_ context.Context, shipID string) (*domain.ShipDeployment, error) {
	ship, ok := f.ships[shipID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *ship
	return &clone, nil
}

func (f *fakeShipRepo) ListShipsByOwner(_ context.Context, ownerID string) ([]domain.ShipDeployment, error) {
	var out []domain.ShipDeployment
	for _, ship := range f.ships {
		if ship.OwnerID == ownerID {
			out = append(out, *ship)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *fakeShipRepo) UpdateShipStatus(_ context.Context, update domain.ShipStatusUpdate) error {
	ship, ok := f.ships[update.ShipID]
	if !ok {
		return repository.ErrNotFound
	}
	ship.Status = update.Status
	if update.HealthStatus != "" {
		ship.HealthStatus = update.HealthStatus
	}
	if update.LaunchedAt != nil {
		ship.LaunchedAt = update.LaunchedAt
	}
	ship.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeShipRepo) PatchShip(_ context.Context, patch domain.ShipPatch) error {
	ship, ok := f.ships[patch.ShipID]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.Name != nil {
		ship.Name = *patch.Name
	}
	if patch.Status != nil {
		ship.Status = *patch.Status
	}
	if patch.MonitoringURLs != nil {
		ship.MonitoringURLs = *patch.MonitoringURLs
	}
	if len(patch.Config) > 0 {
		ship.Config = patch.Config
	}
	ship.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeShipRepo) TransferShipOwner(_ context.Context, shipID, newOwnerID string) error {
	ship, ok := f.ships[shipID]
	if !ok {
		return repository.ErrNotFound
	}
	ship.OwnerID = newOwnerID
	return nil
}

func (f *fakeShipRepo) DeleteShip(_ context.Context, shipID string) error {
	if _, ok := f.ships[shipID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.ships, shipID)
	return nil
}

func (f *fakeShipRepo) CountShipsByStatus(_ context.Context, ownerID string) (map[string]int, error) {
	counts := map[string]int{}
	for _, ship := range f.ships {
		if ship.OwnerID == ownerID {
			counts[ship.Status]++
		}
	}
	return counts, nil
}

type fakeCrewRepo struct {
	records []domain.BridgeCrewRecord
	failing bool
}

func (f *fakeCrewRepo) CreateCrewRecords(_ context.Context, records []domain.BridgeCrewRecord) error {
	if f.failing {
		return errors.New("crew store unavailable")
	}
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeCrewRepo) ListCrewByShip(_ context.Context, shipID string) ([]domain.BridgeCrewRecord, error) {
	var out []domain.BridgeCrewRecord
	for _, record := range f.records {
		if record.DeploymentID == shipID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (f *fakeCrewRepo) GetCrewByID(context.Context, string) (*domain.BridgeCrewRecord, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeCrewRepo) UpdateCrewRecord(context.Context, *domain.BridgeCrewRecord) error {
	return nil
}

type fakeWalletRepo struct {
	balances map[string]int64
	txns     []domain.WalletTransaction
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{balances: map[string]int64{}}
}

func (f *fakeWalletRepo) GetWallet(_ context.Context, userID string) (*domain.Wallet, error) {
	return &domain.Wallet{UserID: userID, BalanceMilli: f.balances[userID]}, nil
}

func (f *fakeWalletRepo) ApplyTransaction(_ context.Context, txn *domain.WalletTransaction) error {
	if f.balances[txn.UserID]+txn.AmountMilli < 0 {
		return repository.ErrInsufficientFunds
	}
	f.balances[txn.UserID] += txn.AmountMilli
	f.txns = append(f.txns, *txn)
	return nil
}

func (f *fakeWalletRepo) ListTransactions(_ context.Context, userID string, _ int) ([]domain.WalletTransaction, error) {
	var out []domain.WalletTransaction
	for _, txn := range f.txns {
		if txn.UserID == userID {
			out = append(out, txn)
		}
	}
	return out, nil
}

type fakeSessionRepo struct {
	tasks   []domain.Task
	failing bool
}

func (f *fakeSessionRepo) CreateSession(context.Context, *domain.CrewSession) error { return nil }
func (f *fakeSessionRepo) ListSessions(context.Context, string, string) ([]domain.CrewSession, error) {
	return nil, nil
}
func (f *fakeSessionRepo) MarkSessionPrompted(context.Context, string, time.Time) error { return nil }
func (f *fakeSessionRepo) CreateTasks(_ context.Context, tasks []domain.Task) error {
	if f.failing {
		return errors.New("task store unavailable")
	}
	f.tasks = append(f.tasks, tasks...)
	return nil
}
func (f *fakeSessionRepo) ListTasks(context.Context, string, string) ([]domain.Task, error) {
	return nil, nil
}
func (f *fakeSessionRepo) UpdateTaskStatus(context.Context, string, string, string) error {
	return nil
}
func (f *fakeSessionRepo) CountSessionsByStatus(context.Context, string) (map[string]int, error) {
	return nil, nil
}
func (f *fakeSessionRepo) CountTasksByStatus(context.Context, string) (map[string]int, error) {
	return nil, nil
}

type fakeSecretSource struct {
	bundles map[string]map[string]string
	err     error
}

func (f *fakeSecretSource) Reveal(_ context.Context, userID, profile string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bundles[userID+"/"+profile], nil
}

type testEnv struct {
	svc      Service
	ships    *fakeShipRepo
	crew     *fakeCrewRepo
	wallet   *fakeWalletRepo
	sessions *fakeSessionRepo
	secrets  *fakeSecretSource
}

func newTestEnv(t *testing.T, balance int64) *testEnv {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ShipyardConfig{
		ClusterDomainSuffix: ".fleet.local",
		CloudLaunchCost:     25000,
		CloudAppCost:        5000,
		QuoteCurrency:       "credits",
	}
	ships := newFakeShipRepo()
	crewRepo := &fakeCrewRepo{}
	wallet := newFakeWalletRepo()
	sessions := &fakeSessionRepo{}
	secretSrc := &fakeSecretSource{bundles: map[string]map[string]string{}}
	wallet.balances["owner-1"] = balance

	crewSvc := crew.New(crewRepo, ships, logger)
	billingSvc := billing.New(wallet, logger, cfg)
	eventSvc := events.New(nil, nil, logger)
	svc := New(ships, sessions, crewSvc, billingSvc, eventSvc, secretSrc, cat, logger, cfg)
	return &testEnv{svc: svc, ships: ships, crew: crewRepo, wallet: wallet, sessions: sessions, secrets: secretSrc}
}

func TestLaunchLocalDock(t *testing.T) {
	env := newTestEnv(t, 0)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name:    "Nebula",
		NodeID:  "dock-1",
		Profile: domain.ProfileLocalDock,
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if result.Deployment == nil || result.Deployment.ID == "" {
		t.Fatal("expected deployment in result")
	}
	if result.Deployment.Status != domain.ShipStatusDeploying {
		t.Fatalf("expected deploying status, got %s", result.Deployment.Status)
	}
	if len(result.Crew) != len(domain.BridgeCrewRoles) {
		t.Fatalf("expected %d crew records, got %d", len(domain.BridgeCrewRoles), len(result.Crew))
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
	if len(env.sessions.tasks) == 0 {
		t.Fatal("expected bootstrap tasks for default apps")
	}
	if env.wallet.balances["owner-1"] != 0 {
		t.Fatalf("local launch must be free, balance now %d", env.wallet.balances["owner-1"])
	}
}

func TestLaunchCloudRequiresFuel(t *testing.T) {
	env := newTestEnv(t, 1000)

	_, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name:    "Nebula",
		NodeID:  "cloud-1",
		Profile: domain.ProfileCloudShipyard,
	})
	if !errors.Is(err, billing.ErrInsufficientFuel) {
		t.Fatalf("expected insufficient fuel, got %v", err)
	}
	if len(env.ships.ships) != 0 {
		t.Fatal("declined launch must not create a ship")
	}
}

func TestLaunchCloudChargesWallet(t *testing.T) {
	env := newTestEnv(t, 100000)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name:    "Nebula",
		NodeID:  "cloud-1",
		Profile: domain.ProfileCloudShipyard,
		Apps:    []string{"helm-controller"},
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	want := int64(100000 - 25000 - 5000)
	if env.wallet.balances["owner-1"] != want {
		t.Fatalf("expected balance %d, got %d", want, env.wallet.balances["owner-1"])
	}
	if result.Deployment.ProvisioningMode != domain.InfraKindExistingK8s {
		t.Fatalf("cloud launches must use existing_k8s, got %s", result.Deployment.ProvisioningMode)
	}
}

func TestLaunchCloudForcesExistingCluster(t *testing.T) {
	env := newTestEnv(t, 1000000)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name:      "Nebula",
		NodeID:    "cloud-1",
		Profile:   domain.ProfileCloudShipyard,
		InfraKind: domain.InfraKindProvisionNew,
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if result.Deployment.ProvisioningMode != domain.InfraKindExistingK8s {
		t.Fatalf("expected existing_k8s, got %s", result.Deployment.ProvisioningMode)
	}
}

func TestLaunchPersistsMonitoringURLs(t *testing.T) {
	env := newTestEnv(t, 0)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name:           "Nebula",
		MonitoringURLs: []string{"https://grafana.fleet.local", "  ", "https://prometheus.fleet.local"},
	})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	stored, err := env.svc.Get(context.Background(), "owner-1", result.Deployment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := []string{"https://grafana.fleet.local", "https://prometheus.fleet.local"}
	if len(stored.MonitoringURLs) != len(want) {
		t.Fatalf("expected %v, got %v", want, stored.MonitoringURLs)
	}
	for i, url := range want {
		if stored.MonitoringURLs[i] != url {
			t.Fatalf("expected %v, got %v", want, stored.MonitoringURLs)
		}
	}
}

func TestLaunchQueuesSecretInjection(t *testing.T) {
	env := newTestEnv(t, 0)
	env.secrets.bundles["owner-1/"+domain.ProfileLocalDock] = map[string]string{
		"API_TOKEN":    "hunter2",
		"DATABASE_URL": "postgres://dock",
	}

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings %v", result.Warnings)
	}
	var injection *domain.Task
	for i := range env.sessions.tasks {
		if env.sessions.tasks[i].Kind == "bootstrap:secrets" {
			injection = &env.sessions.tasks[i]
		}
	}
	if injection == nil {
		t.Fatal("expected a secret injection task")
	}
	if injection.DeploymentID != result.Deployment.ID {
		t.Fatalf("injection task bound to %s, want %s", injection.DeploymentID, result.Deployment.ID)
	}
	if injection.Detail != "inject secrets API_TOKEN, DATABASE_URL" {
		t.Fatalf("unexpected detail %q", injection.Detail)
	}
	if strings.Contains(injection.Detail, "hunter2") {
		t.Fatal("secret values must not reach task records")
	}
}

func TestLaunchSecretRevealFailureWarns(t *testing.T) {
	env := newTestEnv(t, 0)
	env.secrets.err = errors.New("cipher key rotated")

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula"})
	if err != nil {
		t.Fatalf("reveal failure must not fail the launch: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning when the bundle cannot be revealed")
	}
	if result.Deployment.Status != domain.ShipStatusPending {
		t.Fatalf("partial launch should stay pending, got %s", result.Deployment.Status)
	}
}

func TestLaunchRequiresNameOrNode(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	if _, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{NodeID: "dock-9"}); err != nil {
		t.Fatalf("node id alone should satisfy mission step: %v", err)
	}
}

func TestLaunchRejectsUnknownApps(t *testing.T) {
	env := newTestEnv(t, 0)

	_, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{
		Name: "Nebula",
		Apps: []string{"mystery-app"},
	})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestLaunchPartialSuccessReturnsWarnings(t *testing.T) {
	env := newTestEnv(t, 0)
	env.sessions.failing = true

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula"})
	if err != nil {
		t.Fatalf("partial bootstrap must not fail the launch: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected warnings on partial bootstrap")
	}
	if result.Deployment.Status != domain.ShipStatusPending {
		t.Fatalf("partial launch should stay pending, got %s", result.Deployment.Status)
	}
}

func TestCallbackActivatesShip(t *testing.T) {
	env := newTestEnv(t, 0)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	err = env.svc.ProcessCallback(context.Background(), CallbackPayload{
		ShipID:       result.Deployment.ID,
		Status:       "ready",
		HealthStatus: "healthy",
		Message:      "cluster bootstrapped",
	})
	if err != nil {
		t.Fatalf("callback: %v", err)
	}

	ship, err := env.svc.Get(context.Background(), "owner-1", result.Deployment.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ship.Status != domain.ShipStatusActive {
		t.Fatalf("expected active, got %s", ship.Status)
	}
	if ship.LaunchedAt == nil {
		t.Fatal("expected launched_at to be set")
	}
}

func TestGetHidesOtherOwners(t *testing.T) {
	env := newTestEnv(t, 0)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if _, err := env.svc.Get(context.Background(), "owner-2", result.Deployment.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConnectionSummary(t *testing.T) {
	env := newTestEnv(t, 0)

	result, err := env.svc.Launch(context.Background(), "owner-1", LaunchInput{Name: "Nebula", NodeID: "dock-7"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	summary, err := env.svc.Connection(context.Background(), "owner-1", result.Deployment.ID)
	if err != nil {
		t.Fatalf("connection: %v", err)
	}
	if summary.ClusterEndpoint != "https://dock-7.fleet.local:6443" {
		t.Fatalf("unexpected endpoint %s", summary.ClusterEndpoint)
	}
}
