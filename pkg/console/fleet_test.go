package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

func shipAt(id, name, node, status string, updated time.Time) client.Ship {
	return client.Ship{ID: id, Name: name, NodeID: node, Status: status, UpdatedAt: updated}
}

func TestRosterSortedMostRecentFirst(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	api := newFakeAPI()
	api.ships = []client.Ship{
		shipAt("s1", "aurora", "node-1", "active", base),
		shipAt("s2", "borealis", "node-2", "deploying", base.Add(2*time.Hour)),
		shipAt("s3", "caledonia", "node-3", "failed", base.Add(time.Hour)),
	}
	view := NewFleetView(api, "tok")
	view.Refresh(context.Background())

	roster, empty := view.Roster()
	if empty != EmptyNone {
		t.Fatalf("unexpected empty state %v", empty)
	}
	if len(roster) != 3 {
		t.Fatalf("expected 3 ships, got %d", len(roster))
	}
	if roster[0].ID != "s2" || roster[1].ID != "s3" || roster[2].ID != "s1" {
		t.Fatalf("roster not sorted by update time: %s %s %s", roster[0].ID, roster[1].ID, roster[2].ID)
	}
}

func TestRosterEmptyStates(t *testing.T) {
	api := newFakeAPI()
	view := NewFleetView(api, "tok")
	view.Refresh(context.Background())

	if _, empty := view.Roster(); empty != EmptyNoShips {
		t.Fatalf("expected no-ships state, got %v", empty)
	}

	api.ships = []client.Ship{shipAt("s1", "aurora", "node-1", "active", time.Now())}
	view.Refresh(context.Background())
	view.SetStatusFilter("failed")
	if _, empty := view.Roster(); empty != EmptyNoMatch {
		t.Fatalf("expected no-match state, got %v", empty)
	}

	view.SetStatusFilter("")
	view.SetSearch("zeph")
	if _, empty := view.Roster(); empty != EmptyNoMatch {
		t.Fatalf("expected no-match state for search, got %v", empty)
	}

	view.SetSearch("auro")
	roster, empty := view.Roster()
	if empty != EmptyNone || len(roster) != 1 {
		t.Fatalf("search should match aurora, got %d ships, state %v", len(roster), empty)
	}
}

func TestRefreshCapturesErrorsIndependently(t *testing.T) {
	api := newFakeAPI()
	api.ships = []client.Ship{shipAt("s1", "aurora", "node-1", "active", time.Now())}
	api.snapshotErr = errors.New("snapshot unavailable")
	api.crew = []client.CrewRecord{{ID: "c1", Role: "captain"}}
	api.connErr = errors.New("connection unavailable")

	view := NewFleetView(api, "tok")
	view.SelectShip("s1")
	state := view.Refresh(context.Background())

	if state.ShipsErr != nil || len(state.Ships) != 1 {
		t.Fatalf("ships fetch should succeed, got %v", state.ShipsErr)
	}
	if state.SnapshotErr == nil {
		t.Fatal("snapshot error was swallowed")
	}
	if state.CrewErr != nil || len(state.Crew) != 1 {
		t.Fatalf("crew fetch should succeed, got %v", state.CrewErr)
	}
	if state.ConnectionErr == nil || state.Connection != nil {
		t.Fatal("connection error was swallowed")
	}
}

func TestRefreshSkipsShipPanelsWithoutSelection(t *testing.T) {
	api := newFakeAPI()
	api.crew = []client.CrewRecord{{ID: "c1"}}
	view := NewFleetView(api, "tok")
	state := view.Refresh(context.Background())
	if state.Crew != nil || state.Connection != nil {
		t.Fatal("crew and connection should not be fetched without a selected ship")
	}
}

func TestStaleRefreshDoesNotOverwriteNewerState(t *testing.T) {
	api := newFakeAPI()
	release := make(chan struct{})
	started := make(chan struct{})
	stale := []client.Ship{shipAt("old", "old", "node-0", "active", time.Now())}
	api.listShipsHook = func(ctx context.Context) ([]client.Ship, error) {
		close(started)
		select {
		case <-release:
			return stale, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	view := NewFleetView(api, "tok")
	done := make(chan FleetState, 1)
	go func() {
		done <- view.Refresh(context.Background())
	}()
	<-started

	// A second refresh supersedes the blocked one and must win.
	fresh := []client.Ship{shipAt("new", "new", "node-1", "active", time.Now())}
	api.mu.Lock()
	api.listShipsHook = nil
	api.ships = fresh
	api.mu.Unlock()
	view.Refresh(context.Background())

	close(release)
	<-done

	state := view.State()
	if len(state.Ships) != 1 || state.Ships[0].ID != "new" {
		t.Fatalf("stale refresh overwrote newer state: %+v", state.Ships)
	}
}
