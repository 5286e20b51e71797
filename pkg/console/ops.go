package console

import (
	"context"
	"sync"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// Panel is one independently loaded section of the ops view.
type Panel struct {
	Loading bool
	Err     error
}

// OpsState carries the panels shown for the selected ship. Each panel loads
// and fails on its own.
type OpsState struct {
	CrewPanel Panel
	Crew      []client.CrewRecord

	ConnectionPanel Panel
	Connection      client.ConnectionSummary

	QuotePanel Panel
	Quote      client.Quote

	MonitoringURLs []string
}

// OpsPanel fetches the operational detail for one ship.
type OpsPanel struct {
	api   API
	token string

	mu    sync.Mutex
	state OpsState
}

// NewOpsPanel builds an ops panel bound to an API session.
func NewOpsPanel(api API, token string) *OpsPanel {
	return &OpsPanel{api: api, token: token}
}

// State returns the latest panel snapshot.
func (p *OpsPanel) State() OpsState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Load fetches crew roster, connection summary and launch quote for the
// ship in parallel and blocks until all three settle. Monitoring URLs come
// from the ship record itself.
func (p *OpsPanel) Load(ctx context.Context, ship client.Ship) OpsState {
	p.mu.Lock()
	p.state = OpsState{
		CrewPanel:       Panel{Loading: true},
		ConnectionPanel: Panel{Loading: true},
		QuotePanel:      Panel{Loading: true},
		MonitoringURLs:  append([]string(nil), ship.MonitoringURLs...),
	}
	p.mu.Unlock()

	var (
		crew     []client.CrewRecord
		crewErr  error
		conn     client.ConnectionSummary
		connErr  error
		quote    client.Quote
		quoteErr error
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		crew, crewErr = p.api.ListCrew(ctx, p.token, ship.ID)
	}()
	go func() {
		defer wg.Done()
		conn, connErr = p.api.GetConnection(ctx, p.token, ship.ID)
	}()
	go func() {
		defer wg.Done()
		quote, quoteErr = p.api.GetQuote(ctx, p.token, ship.Profile, nil)
	}()
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Crew, p.state.CrewPanel = crew, Panel{Err: crewErr}
	p.state.Connection, p.state.ConnectionPanel = conn, Panel{Err: connErr}
	p.state.Quote, p.state.QuotePanel = quote, Panel{Err: quoteErr}
	return p.state
}
