package console

import (
	"context"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// API is the slice of the REST client the console depends on. *client.Client
// satisfies it; tests substitute fakes.
type API interface {
	Launch(ctx context.Context, token string, input client.LaunchInput) (client.LaunchResponse, error)
	PutSecrets(ctx context.Context, token, profile string, entries []client.SecretEntry) error
	ListShips(ctx context.Context, token string) ([]client.Ship, error)
	GetRuntimeSnapshot(ctx context.Context, token string) (client.RuntimeSnapshot, error)
	ListCrew(ctx context.Context, token, shipID string) ([]client.CrewRecord, error)
	GetConnection(ctx context.Context, token, shipID string) (client.ConnectionSummary, error)
	GetQuote(ctx context.Context, token, profile string, apps []string) (client.Quote, error)
}
