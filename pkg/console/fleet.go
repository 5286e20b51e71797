package console

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// EmptyState distinguishes why a roster rendered empty.
type EmptyState int

const (
	// EmptyNone means the roster has ships to show.
	EmptyNone EmptyState = iota
	// EmptyNoShips means the fleet itself is empty.
	EmptyNoShips
	// EmptyNoMatch means ships exist but none pass the active filter.
	EmptyNoMatch
)

func (e EmptyState) String() string {
	switch e {
	case EmptyNoShips:
		return "no ships launched yet"
	case EmptyNoMatch:
		return "no ships match filter"
	default:
		return ""
	}
}

// FleetState is one consistent snapshot of everything the fleet view shows.
// Each field carries its own error so one failed fetch never hides the rest.
type FleetState struct {
	Ships    []client.Ship
	ShipsErr error

	Snapshot    client.RuntimeSnapshot
	SnapshotErr error

	Crew    []client.CrewRecord
	CrewErr error

	Connection    *client.ConnectionSummary
	ConnectionErr error
}

// FleetView holds the roster plus the runtime counters shown alongside it.
// Refresh fans out over the API; completions from a superseded refresh are
// discarded so stale responses never overwrite newer state.
type FleetView struct {
	api   API
	token string

	mu           sync.Mutex
	selectedShip string
	statusFilter string
	search       string
	generation   uint64
	cancel       context.CancelFunc
	state        FleetState
}

// NewFleetView builds an empty fleet view.
func NewFleetView(api API, token string) *FleetView {
	return &FleetView{api: api, token: token}
}

// SelectShip records which ship the crew and connection panels follow.
func (v *FleetView) SelectShip(shipID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selectedShip = shipID
}

// SelectedShip returns the currently followed ship ID.
func (v *FleetView) SelectedShip() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selectedShip
}

// SetStatusFilter narrows the roster to one ship status. Empty clears it.
func (v *FleetView) SetStatusFilter(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statusFilter = strings.TrimSpace(status)
}

// SetSearch narrows the roster to ships whose name or node contains the
// query. Empty clears it.
func (v *FleetView) SetSearch(query string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = strings.TrimSpace(query)
}

// State returns the latest committed snapshot.
func (v *FleetView) State() FleetState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Refresh issues the four fleet fetches concurrently and blocks until all
// settle. Re-triggering cancels the previous in-flight refresh, and a
// refresh that lost the race commits nothing.
func (v *FleetView) Refresh(ctx context.Context) FleetState {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.generation++
	gen := v.generation
	selected := v.selectedShip
	v.mu.Unlock()

	var next FleetState
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		next.Ships, next.ShipsErr = v.api.ListShips(fetchCtx, v.token)
	}()
	go func() {
		defer wg.Done()
		next.Snapshot, next.SnapshotErr = v.api.GetRuntimeSnapshot(fetchCtx, v.token)
	}()
	if selected != "" {
		wg.Add(2)
		go func() {
			defer wg.Done()
			next.Crew, next.CrewErr = v.api.ListCrew(fetchCtx, v.token, selected)
		}()
		go func() {
			defer wg.Done()
			summary, err := v.api.GetConnection(fetchCtx, v.token, selected)
			if err != nil {
				next.ConnectionErr = err
				return
			}
			next.Connection = &summary
		}()
	}
	wg.Wait()
	cancel()

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		// A newer refresh started while this one was in flight.
		return v.state
	}
	v.state = next
	return v.state
}

// Roster returns the filtered roster sorted most recently updated first,
// together with the empty state to render when it has no rows.
func (v *FleetView) Roster() ([]client.Ship, EmptyState) {
	v.mu.Lock()
	ships := append([]client.Ship(nil), v.state.Ships...)
	status := v.statusFilter
	query := strings.ToLower(v.search)
	v.mu.Unlock()

	sort.SliceStable(ships, func(i, j int) bool {
		return ships[i].UpdatedAt.After(ships[j].UpdatedAt)
	})

	if len(ships) == 0 {
		return nil, EmptyNoShips
	}

	filtered := ships[:0]
	for _, ship := range ships {
		if status != "" && ship.Status != status {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(ship.Name), query) &&
			!strings.Contains(strings.ToLower(ship.NodeID), query) {
			continue
		}
		filtered = append(filtered, ship)
	}
	if len(filtered) == 0 {
		return nil, EmptyNoMatch
	}
	return filtered, EmptyNone
}
