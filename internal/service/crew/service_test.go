package crew

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
)

type fakeCrewRepo struct {
	records map[string]*domain.BridgeCrewRecord
}

func newFakeCrewRepo() *fakeCrewRepo {
	return &fakeCrewRepo{records: map[string]*domain.BridgeCrewRecord{}}
}

func (f *fakeCrewRepo) CreateCrewRecords(_ context.Context, records []domain.BridgeCrewRecord) error {
	for i := range records {
		record := records[i]
		f.records[record.ID] = &record
	}
	return nil
}

func (f *fakeCrewRepo) ListCrewByShip(_ context.Context, shipID string) ([]domain.BridgeCrewRecord, error) {
	var out []domain.BridgeCrewRecord
	for _, record := range f.records {
		if record.DeploymentID == shipID {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (f *fakeCrewRepo) GetCrewByID(_ context.Context, crewID string) (*domain.BridgeCrewRecord, error) {
	record, ok := f.records[crewID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeCrewRepo) UpdateCrewRecord(_ context.Context, record *domain.BridgeCrewRecord) error {
	if _, ok := f.records[record.ID]; !ok {
		return repository.ErrNotFound
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

type fakeShipLookup struct {
	ships map[string]*domain.ShipDeployment
}

func (f *fakeShipLookup) CreateShip(context.Context, *domain.ShipDeployment) error { return nil }
func (f *fakeShipLookup) GetShipByID(_ context.Context, shipID string) (*domain.ShipDeployment, error) {
	ship, ok := f.ships[shipID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ship, nil
}
func (f *fakeShipLookup) ListShipsByOwner(context.Context, string) ([]domain.ShipDeployment, error) {
	return nil, nil
}
func (f *fakeShipLookup) UpdateShipStatus(context.Context, domain.ShipStatusUpdate) error {
	return nil
}
func (f *fakeShipLookup) PatchShip(context.Context, domain.ShipPatch) error        { return nil }
func (f *fakeShipLookup) TransferShipOwner(context.Context, string, string) error  { return nil }
func (f *fakeShipLookup) DeleteShip(context.Context, string) error                 { return nil }
func (f *fakeShipLookup) CountShipsByStatus(context.Context, string) (map[string]int, error) {
	return nil, nil
}

func newTestService(ships map[string]*domain.ShipDeployment) (Service, *fakeCrewRepo) {
	repo := newFakeCrewRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, &fakeShipLookup{ships: ships}, logger), repo
}

func TestBootstrapCreatesAllRoles(t *testing.T) {
	svc, repo := newTestService(nil)

	records, err := svc.Bootstrap(context.Background(), "ship-1", "Nebula", map[string]string{
		domain.CrewRoleCaptain: "command deck briefing",
	})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if len(records) != len(domain.BridgeCrewRoles) {
		t.Fatalf("expected %d records, got %d", len(domain.BridgeCrewRoles), len(records))
	}
	seen := map[string]bool{}
	for _, record := range records {
		seen[record.Role] = true
		if record.Status != domain.CrewStatusActive {
			t.Fatalf("role %s not active", record.Role)
		}
	}
	for _, role := range domain.BridgeCrewRoles {
		if !seen[role] {
			t.Fatalf("missing role %s", role)
		}
	}
	if len(repo.records) != len(domain.BridgeCrewRoles) {
		t.Fatalf("expected %d persisted records", len(domain.BridgeCrewRoles))
	}
}

func TestBootstrapRejectsUnknownRoleOverride(t *testing.T) {
	svc, _ := newTestService(nil)
	_, err := svc.Bootstrap(context.Background(), "ship-1", "Nebula", map[string]string{"navigator": "x"})
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRosterHidesOtherOwners(t *testing.T) {
	ships := map[string]*domain.ShipDeployment{
		"ship-1": {ID: "ship-1", OwnerID: "owner-a"},
	}
	svc, _ := newTestService(ships)

	if _, err := svc.Bootstrap(context.Background(), "ship-1", "Nebula", nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := svc.Roster(context.Background(), "owner-b", "ship-1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	roster, err := svc.Roster(context.Background(), "owner-a", "ship-1")
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != len(domain.BridgeCrewRoles) {
		t.Fatalf("expected full roster, got %d", len(roster))
	}
}

func TestUpdateValidatesStatus(t *testing.T) {
	ships := map[string]*domain.ShipDeployment{
		"ship-1": {ID: "ship-1", OwnerID: "owner-a"},
	}
	svc, _ := newTestService(ships)

	records, err := svc.Bootstrap(context.Background(), "ship-1", "Nebula", nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	bad := "retired"
	if _, err := svc.Update(context.Background(), "owner-a", records[0].ID, UpdateInput{Status: &bad}); !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	callsign := "SKIPPER"
	status := domain.CrewStatusInactive
	updated, err := svc.Update(context.Background(), "owner-a", records[0].ID, UpdateInput{Callsign: &callsign, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Callsign != "SKIPPER" || updated.Status != domain.CrewStatusInactive {
		t.Fatalf("unexpected record %+v", updated)
	}
}
