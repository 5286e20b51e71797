package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides typed access to the ship yard API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4100"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API, carrying the optional
// machine-readable code and suggested follow-up commands.
type APIError struct {
	Status            int
	Message           string
	Code              string
	SuggestedCommands []string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	if body == nil {
		return apiErr
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error             string   `json:"error"`
		Code              string   `json:"code"`
		SuggestedCommands []string `json:"suggested_commands"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Code = payload.Code
	apiErr.SuggestedCommands = payload.SuggestedCommands
	return apiErr
}

// TokenPair includes access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	User   User      `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// Signup registers a new operator account.
func (c *Client) Signup(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Ship represents an API ship deployment payload.
type Ship struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	NodeID           string          `json:"node_id"`
	NodeType         string          `json:"node_type"`
	Profile          string          `json:"deployment_profile"`
	ProvisioningMode string          `json:"provisioning_mode"`
	Config           json.RawMessage `json:"config"`
	Metadata         json.RawMessage `json:"metadata"`
	HealthStatus     string          `json:"health_status"`
	MonitoringURLs   []string        `json:"monitoring_urls"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	LaunchedAt       *time.Time      `json:"launched_at"`
}

// ListShips returns the caller's fleet, most recently updated first.
func (c *Client) ListShips(ctx context.Context, token string) ([]Ship, error) {
	var resp struct {
		Ships []Ship `json:"ships"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ships", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Ships, nil
}

// GetShip fetches one ship by id.
func (c *Client) GetShip(ctx context.Context, token, shipID string) (Ship, error) {
	path := fmt.Sprintf("/api/ships/%s", url.PathEscape(shipID))
	var ship Ship
	if err := c.do(ctx, http.MethodGet, path, nil, token, &ship); err != nil {
		return Ship{}, err
	}
	return ship, nil
}

// PatchShipInput carries optional ship edits.
type PatchShipInput struct {
	Name           *string         `json:"name,omitempty"`
	Status         *string         `json:"status,omitempty"`
	MonitoringURLs *[]string       `json:"monitoring_urls,omitempty"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// PatchShip applies edits to a ship.
func (c *Client) PatchShip(ctx context.Context, token, shipID string, input PatchShipInput) (Ship, error) {
	path := fmt.Sprintf("/api/ships/%s", url.PathEscape(shipID))
	var ship Ship
	if err := c.do(ctx, http.MethodPatch, path, input, token, &ship); err != nil {
		return Ship{}, err
	}
	return ship, nil
}

// ScrapShip deletes a ship.
func (c *Client) ScrapShip(ctx context.Context, token, shipID string) error {
	path := fmt.Sprintf("/api/ships/%s", url.PathEscape(shipID))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// ConnectionSummary describes how to reach a running ship.
type ConnectionSummary struct {
	ShipID          string    `json:"ship_id"`
	ClusterEndpoint string    `json:"cluster_endpoint"`
	Namespace       string    `json:"namespace"`
	KubeconfigHint  string    `json:"kubeconfig_hint"`
	MonitoringURLs  []string  `json:"monitoring_urls"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// GetConnection fetches the connection summary for a ship.
func (c *Client) GetConnection(ctx context.Context, token, shipID string) (ConnectionSummary, error) {
	path := fmt.Sprintf("/api/ships/%s/connection", url.PathEscape(shipID))
	var summary ConnectionSummary
	if err := c.do(ctx, http.MethodGet, path, nil, token, &summary); err != nil {
		return ConnectionSummary{}, err
	}
	return summary, nil
}

// CrewRecord models a bridge crew entry.
type CrewRecord struct {
	ID           string    `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Role         string    `json:"role"`
	Callsign     string    `json:"callsign"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListCrew returns the bridge crew roster for a ship.
func (c *Client) ListCrew(ctx context.Context, token, shipID string) ([]CrewRecord, error) {
	path := fmt.Sprintf("/api/bridge-crew?ship_id=%s", url.QueryEscape(shipID))
	var resp struct {
		Crew []CrewRecord `json:"crew"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Crew, nil
}

// UpdateCrewInput carries optional crew record edits.
type UpdateCrewInput struct {
	Callsign    *string `json:"callsign,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// UpdateCrew edits one bridge crew record.
func (c *Client) UpdateCrew(ctx context.Context, token, crewID string, input UpdateCrewInput) (CrewRecord, error) {
	path := fmt.Sprintf("/api/bridge-crew/%s", url.PathEscape(crewID))
	var record CrewRecord
	if err := c.do(ctx, http.MethodPut, path, input, token, &record); err != nil {
		return CrewRecord{}, err
	}
	return record, nil
}

// LaunchInput is the accumulated wizard form submitted to the yard.
type LaunchInput struct {
	Name           string            `json:"name"`
	NodeID         string            `json:"node_id"`
	NodeType       string            `json:"node_type,omitempty"`
	Profile        string            `json:"deployment_profile"`
	InfraKind      string            `json:"infrastructure_kind"`
	Apps           []string          `json:"apps,omitempty"`
	CrewContent    map[string]string `json:"crew_content,omitempty"`
	Config         json.RawMessage   `json:"config,omitempty"`
	MonitoringURLs []string          `json:"monitoring_urls,omitempty"`
}

// Quote is a server-computed launch cost.
type Quote struct {
	Profile     string    `json:"profile"`
	Apps        []string  `json:"apps"`
	AmountMilli int64     `json:"amount_milli"`
	Currency    string    `json:"currency"`
	ComputedAt  time.Time `json:"computed_at"`
}

// LaunchResponse is the launch result: deployment plus bootstrap report.
type LaunchResponse struct {
	Deployment Ship         `json:"deployment"`
	Crew       []CrewRecord `json:"crew"`
	Quote      *Quote       `json:"quote"`
	Warnings   []string     `json:"warnings"`
}

// Launch submits the wizard form.
func (c *Client) Launch(ctx context.Context, token string, input LaunchInput) (LaunchResponse, error) {
	var resp LaunchResponse
	if err := c.do(ctx, http.MethodPost, "/api/ship-yard/launch", input, token, &resp); err != nil {
		return LaunchResponse{}, err
	}
	return resp, nil
}

// SecretEntry is a plaintext key/value pair sent for storage.
type SecretEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SecretSummary is the masked view returned by the API.
type SecretSummary struct {
	Key       string    `json:"key"`
	Masked    string    `json:"masked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListSecrets returns masked secrets for a profile.
func (c *Client) ListSecrets(ctx context.Context, token, profile string) ([]SecretSummary, error) {
	path := fmt.Sprintf("/api/ship-yard/secrets?profile=%s", url.QueryEscape(profile))
	var resp struct {
		Secrets []SecretSummary `json:"secrets"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Secrets, nil
}

// PutSecrets stores secret entries for a profile.
func (c *Client) PutSecrets(ctx context.Context, token, profile string, entries []SecretEntry) error {
	body := map[string]any{"profile": profile, "entries": entries}
	return c.do(ctx, http.MethodPut, "/api/ship-yard/secrets", body, token, nil)
}

// DeleteSecret removes one secret entry.
func (c *Client) DeleteSecret(ctx context.Context, token, profile, key string) error {
	path := fmt.Sprintf("/api/ship-yard/secrets?profile=%s&key=%s", url.QueryEscape(profile), url.QueryEscape(key))
	return c.do(ctx, http.MethodDelete, path, nil, token, nil)
}

// Wallet reflects the refueling balance.
type Wallet struct {
	UserID       string    `json:"user_id"`
	BalanceMilli int64     `json:"balance_milli"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GetWallet returns the caller's wallet.
func (c *Client) GetWallet(ctx context.Context, token string) (Wallet, error) {
	var wallet Wallet
	if err := c.do(ctx, http.MethodGet, "/api/ship-yard/billing/wallet", nil, token, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// GetQuote fetches the launch cost for a profile and app selection.
func (c *Client) GetQuote(ctx context.Context, token, profile string, apps []string) (Quote, error) {
	path := fmt.Sprintf("/api/ship-yard/billing/quote?profile=%s", url.QueryEscape(profile))
	if len(apps) > 0 {
		path += "&apps=" + url.QueryEscape(strings.Join(apps, ","))
	}
	var quote Quote
	if err := c.do(ctx, http.MethodGet, path, nil, token, &quote); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// TopUp credits the wallet.
func (c *Client) TopUp(ctx context.Context, token string, amountMilli int64, reference string) (Wallet, error) {
	body := map[string]any{"amount_milli": amountMilli, "reference": reference}
	var wallet Wallet
	if err := c.do(ctx, http.MethodPost, "/api/ship-yard/billing/topup", body, token, &wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// Transaction is one wallet ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	AmountMilli int64     `json:"amount_milli"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListTransactions returns the wallet ledger, newest first.
func (c *Client) ListTransactions(ctx context.Context, token string) ([]Transaction, error) {
	var resp struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/ship-yard/billing/transactions", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// TransferResult reports a completed ownership transfer.
type TransferResult struct {
	ShipID        string    `json:"ship_id"`
	NewOwnerID    string    `json:"new_owner_id"`
	NewOwnerEmail string    `json:"new_owner_email"`
	TransferredAt time.Time `json:"transferred_at"`
}

// TransferOwnership moves a ship to another operator by email.
func (c *Client) TransferOwnership(ctx context.Context, token, shipID, targetEmail string) (TransferResult, error) {
	body := map[string]string{"ship_id": shipID, "target_email": targetEmail}
	var result TransferResult
	if err := c.do(ctx, http.MethodPost, "/api/ship-yard/ownership/transfer", body, token, &result); err != nil {
		return TransferResult{}, err
	}
	return result, nil
}

// ShipOverview combines one ship with its roster and fleet-wide counters.
type ShipOverview struct {
	Ship          Ship           `json:"ship"`
	Crew          []CrewRecord   `json:"crew"`
	FleetByStatus map[string]int `json:"fleet_by_status"`
}

// GetShipOverview fetches the aggregate detail view for a ship.
func (c *Client) GetShipOverview(ctx context.Context, token, shipID string) (ShipOverview, error) {
	path := fmt.Sprintf("/api/ships/%s/overview", url.PathEscape(shipID))
	var overview ShipOverview
	if err := c.do(ctx, http.MethodGet, path, nil, token, &overview); err != nil {
		return ShipOverview{}, err
	}
	return overview, nil
}

// ShipEvents returns the recent persisted events for a ship.
func (c *Client) ShipEvents(ctx context.Context, token, shipID string, limit int) ([]Event, error) {
	path := fmt.Sprintf("/api/ships/%s/events", url.PathEscape(shipID))
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var resp struct {
		Events []Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// Session models an active crew session.
type Session struct {
	ID           string     `json:"id"`
	DeploymentID string     `json:"deployment_id"`
	CrewID       string     `json:"crew_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	LastPromptAt *time.Time `json:"last_prompt_at"`
}

// ListSessions returns crew sessions, optionally filtered by status.
func (c *Client) ListSessions(ctx context.Context, token, status string) ([]Session, error) {
	path := "/api/sessions"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// OpenSession starts a crew session on one of the caller's ships.
func (c *Client) OpenSession(ctx context.Context, token, shipID, crewID string) (*Session, error) {
	body := map[string]string{"ship_id": shipID, "crew_id": crewID}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, token, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// PromptSession marks a session as waiting on operator input.
func (c *Client) PromptSession(ctx context.Context, token, sessionID, shipID string) error {
	path := fmt.Sprintf("/api/sessions/%s/prompt", url.PathEscape(sessionID))
	body := map[string]string{"ship_id": shipID}
	return c.do(ctx, http.MethodPost, path, body, token, nil)
}

// Task models a bootstrap or operational task.
type Task struct {
	ID           string    `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListTasks returns fleet tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, token, status string) ([]Task, error) {
	path := "/api/tasks"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

// UpdateTask moves a task to a new status with an optional detail note.
func (c *Client) UpdateTask(ctx context.Context, token, taskID, status, detail string) error {
	path := fmt.Sprintf("/api/tasks/%s", url.PathEscape(taskID))
	body := map[string]string{"status": status, "detail": detail}
	return c.do(ctx, http.MethodPut, path, body, token, nil)
}

// RuntimeSnapshot aggregates fleet activity counters.
type RuntimeSnapshot struct {
	OpenSessions  int            `json:"open_sessions"`
	PendingTasks  int            `json:"pending_tasks"`
	RunningTasks  int            `json:"running_tasks"`
	ShipsByStatus map[string]int `json:"ships_by_status"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// GetRuntimeSnapshot fetches fleet activity counters.
func (c *Client) GetRuntimeSnapshot(ctx context.Context, token string) (RuntimeSnapshot, error) {
	var snapshot RuntimeSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/runtime/snapshot", nil, token, &snapshot); err != nil {
		return RuntimeSnapshot{}, err
	}
	return snapshot, nil
}

// CatalogApp describes one selectable bootstrap application.
type CatalogApp struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	CPUMilli    int    `json:"cpu_milli"`
	MemoryMB    int    `json:"memory_mb"`
	DiskMB      int    `json:"disk_mb"`
	Default     bool   `json:"default"`
}

// CatalogResponse lists bootstrap apps plus the preselected defaults.
type CatalogResponse struct {
	Apps     []CatalogApp `json:"apps"`
	Defaults []string     `json:"defaults"`
}

// GetCatalog fetches the bootstrap application catalog.
func (c *Client) GetCatalog(ctx context.Context, token string) (CatalogResponse, error) {
	var resp CatalogResponse
	if err := c.do(ctx, http.MethodGet, "/api/catalog/apps", nil, token, &resp); err != nil {
		return CatalogResponse{}, err
	}
	return resp, nil
}
