package console

import (
	"context"
	"sync"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// fakeAPI is an in-memory API with per-call overrides.
type fakeAPI struct {
	mu sync.Mutex

	ships       []client.Ship
	shipsErr    error
	snapshot    client.RuntimeSnapshot
	snapshotErr error
	crew        []client.CrewRecord
	crewErr     error
	connection  client.ConnectionSummary
	connErr     error
	quote       client.Quote
	quoteErr    error

	launchResp client.LaunchResponse
	launchErr  error
	launched   []client.LaunchInput

	storedSecrets map[string][]client.SecretEntry
	secretsErr    error

	listShipsHook func(ctx context.Context) ([]client.Ship, error)
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{storedSecrets: make(map[string][]client.SecretEntry)}
}

func (f *fakeAPI) Launch(_ context.Context, _ string, input client.LaunchInput) (client.LaunchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.launched = append(f.launched, input)
	if f.launchErr != nil {
		return client.LaunchResponse{}, f.launchErr
	}
	return f.launchResp, nil
}

func (f *fakeAPI) PutSecrets(_ context.Context, _ string, profile string, entries []client.SecretEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.secretsErr != nil {
		return f.secretsErr
	}
	f.storedSecrets[profile] = append(f.storedSecrets[profile], entries...)
	return nil
}

func (f *fakeAPI) ListShips(ctx context.Context, _ string) ([]client.Ship, error) {
	f.mu.Lock()
	hook := f.listShipsHook
	ships, err := append([]client.Ship(nil), f.ships...), f.shipsErr
	f.mu.Unlock()
	if hook != nil {
		return hook(ctx)
	}
	return ships, err
}

func (f *fakeAPI) GetRuntimeSnapshot(_ context.Context, _ string) (client.RuntimeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, f.snapshotErr
}

func (f *fakeAPI) ListCrew(_ context.Context, _ string, _ string) ([]client.CrewRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]client.CrewRecord(nil), f.crew...), f.crewErr
}

func (f *fakeAPI) GetConnection(_ context.Context, _ string, _ string) (client.ConnectionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connection, f.connErr
}

func (f *fakeAPI) GetQuote(_ context.Context, _ string, _ string, _ []string) (client.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quote, f.quoteErr
}
