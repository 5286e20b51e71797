package httpx

import (
	"bufio"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/QSchlegel/OrchWiz-sub000/internal/catalog"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/auth"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/billing"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/crew"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/events"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/secrets"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/sessions"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/ship"
	"github.com/QSchlegel/OrchWiz-sub000/internal/service/transfer"
	"github.com/QSchlegel/OrchWiz-sub000/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux              *http.ServeMux
	logger           *slog.Logger
	auth             auth.Service
	ship             ship.Service
	crew             crew.Service
	secrets          secrets.Service
	billing          billing.Service
	transfer         transfer.Service
	sessions         sessions.Service
	events           events.Service
	catalog          *catalog.Catalog
	upgrader         websocket.Upgrader
	limiter          RateLimiter
	provisionerToken string
	dbHealth         func(context.Context) error
	sseHeartbeat     time.Duration

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault      = time.Minute
	rateWindowRealtime     = 30 * time.Second
	rateLimitSignup        = 5
	rateLimitLogin         = 12
	rateLimitUserWrite     = 60
	rateLimitUserRead      = 120
	rateLimitStream        = 30
	rateLimitProvisioner   = 600
	healthCheckTimeout     = 2 * time.Second
	defaultEventHistoryCap = 100
)

// Deps bundles router dependencies.
type Deps struct {
	Logger           *slog.Logger
	Auth             auth.Service
	Ship             ship.Service
	Crew             crew.Service
	Secrets          secrets.Service
	Billing          billing.Service
	Transfer         transfer.Service
	Sessions         sessions.Service
	Events           events.Service
	Catalog          *catalog.Catalog
	Limiter          RateLimiter
	ProvisionerToken string
	DBHealth         func(context.Context) error
	SSEHeartbeat     time.Duration
}

// NewRouter assembles routes with dependencies.
func NewRouter(deps Deps) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   deps.Logger,
		auth:     deps.Auth,
		ship:     deps.Ship,
		crew:     deps.Crew,
		secrets:  deps.Secrets,
		billing:  deps.Billing,
		transfer: deps.Transfer,
		sessions: deps.Sessions,
		events:   deps.Events,
		catalog:  deps.Catalog,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:          deps.Limiter,
		provisionerToken: strings.TrimSpace(deps.ProvisionerToken),
		dbHealth:         deps.DBHealth,
		sseHeartbeat:     deps.SSEHeartbeat,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	if r.sseHeartbeat <= 0 {
		r.sseHeartbeat = 25 * time.Second
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/signup", r.audit(r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.audit(r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/ship-yard/launch", r.audit(r.handlerAuthRate("/api/ship-yard/launch", rateLimitUserWrite, rateWindowDefault, r.handleLaunch)))
	r.mux.HandleFunc("/api/ships", r.audit(r.handlerAuthRate("/api/ships", rateLimitUserRead, rateWindowDefault, r.handleShips)))
	r.mux.HandleFunc("/api/ships/", r.audit(r.handlerAuthRate("/api/ships/", rateLimitUserWrite, rateWindowDefault, r.handleShipSubroutes)))
	r.mux.HandleFunc("/api/bridge-crew", r.audit(r.handlerAuthRate("/api/bridge-crew", rateLimitUserRead, rateWindowDefault, r.handleCrewList)))
	r.mux.HandleFunc("/api/bridge-crew/", r.audit(r.handlerAuthRate("/api/bridge-crew/", rateLimitUserWrite, rateWindowDefault, r.handleCrewUpdate)))
	r.mux.HandleFunc("/api/ship-yard/secrets", r.audit(r.handlerAuthRate("/api/ship-yard/secrets", rateLimitUserWrite, rateWindowDefault, r.handleSecrets)))
	r.mux.HandleFunc("/api/ship-yard/billing/wallet", r.audit(r.handlerAuthRate("/api/ship-yard/billing/wallet", rateLimitUserRead, rateWindowDefault, r.handleWallet)))
	r.mux.HandleFunc("/api/ship-yard/billing/quote", r.audit(r.handlerAuthRate("/api/ship-yard/billing/quote", rateLimitUserRead, rateWindowDefault, r.handleQuote)))
	r.mux.HandleFunc("/api/ship-yard/billing/topup", r.audit(r.handlerAuthRate("/api/ship-yard/billing/topup", rateLimitUserWrite, rateWindowDefault, r.handleTopUp)))
	r.mux.HandleFunc("/api/ship-yard/billing/transactions", r.audit(r.handlerAuthRate("/api/ship-yard/billing/transactions", rateLimitUserRead, rateWindowDefault, r.handleTransactions)))
	r.mux.HandleFunc("/api/ship-yard/ownership/transfer", r.audit(r.handlerAuthRate("/api/ship-yard/ownership/transfer", rateLimitUserWrite, rateWindowDefault, r.handleTransfer)))
	r.mux.HandleFunc("/api/sessions", r.audit(r.handlerAuthRate("/api/sessions", rateLimitUserRead, rateWindowDefault, r.handleSessions)))
	r.mux.HandleFunc("/api/sessions/", r.audit(r.handlerAuthRate("/api/sessions/", rateLimitUserWrite, rateWindowDefault, r.handleSessionSubroutes)))
	r.mux.HandleFunc("/api/tasks", r.audit(r.handlerAuthRate("/api/tasks", rateLimitUserRead, rateWindowDefault, r.handleTasks)))
	r.mux.HandleFunc("/api/tasks/", r.audit(r.handlerAuthRate("/api/tasks/", rateLimitUserWrite, rateWindowDefault, r.handleTaskUpdate)))
	r.mux.HandleFunc("/api/runtime/snapshot", r.audit(r.handlerAuthRate("/api/runtime/snapshot", rateLimitUserRead, rateWindowDefault, r.handleSnapshot)))
	r.mux.HandleFunc("/api/catalog/apps", r.audit(r.handlerAuthRate("/api/catalog/apps", rateLimitUserRead, rateWindowDefault, r.handleCatalog)))
	r.mux.HandleFunc("/api/events", r.audit(r.handleEventsSSE))
	r.mux.HandleFunc("/api/ws/events", r.audit(r.handlerAuthRate("/api/ws/events", rateLimitStream, rateWindowRealtime, r.handleEventsWS)))
	r.mux.HandleFunc("/api/provisioner/callback", r.audit(r.withRateLimit("/api/provisioner/callback", rateLimitProvisioner, rateWindowDefault, rateLimitKeyIP, r.handleProvisionerCallback)))
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"tokens": map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    int(tokens.ExpiresIn.Seconds()),
		},
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
		},
		"tokens": map[string]any{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_in":    int(tokens.ExpiresIn.Seconds()),
		},
	})
}

func (r *Router) handleLaunch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	var payload ship.LaunchInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := r.ship.Launch(req.Context(), info.UserID, payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	body := map[string]any{
		"deployment": toShipView(*result.Deployment),
		"crew":       toCrewViews(result.Crew),
	}
	if result.Quote != nil {
		body["quote"] = result.Quote
	}
	if len(result.Warnings) > 0 {
		body["warnings"] = result.Warnings
	}
	writeJSON(w, http.StatusCreated, body)
}

func (r *Router) handleShips(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	ships, err := r.ship.List(req.Context(), info.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ships": toShipViews(ships)})
}

func (r *Router) handleShipSubroutes(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/api/ships/")
	if trimmed == "" {
		r.notFound(w)
		return
	}
	parts := strings.Split(trimmed, "/")
	shipID := parts[0]
	if len(parts) == 1 {
		r.handleShipByID(w, req, info, shipID)
		return
	}
	if len(parts) != 2 || req.Method != http.MethodGet {
		r.notFound(w)
		return
	}
	switch parts[1] {
	case "connection":
		summary, err := r.ship.Connection(req.Context(), info.UserID, shipID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	case "overview":
		r.handleShipOverview(w, req, info, shipID)
	case "events":
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		if limit <= 0 || limit > defaultEventHistoryCap {
			limit = defaultEventHistoryCap
		}
		if _, err := r.ship.Get(req.Context(), info.UserID, shipID); err != nil {
			writeServiceError(w, err)
			return
		}
		history, err := r.events.History(req.Context(), shipID, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": toEventViews(history)})
	default:
		r.notFound(w)
	}
}

func (r *Router) handleShipByID(w http.ResponseWriter, req *http.Request, info authInfo, shipID string) {
	switch req.Method {
	case http.MethodGet:
		result, err := r.ship.Get(req.Context(), info.UserID, shipID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toShipView(*result))
	case http.MethodPatch:
		var payload ship.PatchInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		result, err := r.ship.Patch(req.Context(), info.UserID, shipID, payload)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toShipView(*result))
	case http.MethodDelete:
		if err := r.ship.Scrap(req.Context(), info.UserID, shipID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "scrapped"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleShipOverview(w http.ResponseWriter, req *http.Request, info authInfo, shipID string) {
	result, err := r.ship.Get(req.Context(), info.UserID, shipID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	roster, err := r.crew.Roster(req.Context(), info.UserID, shipID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	counts, err := r.ship.Overview(req.Context(), info.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ship":            toShipView(*result),
		"crew":            toCrewViews(roster),
		"fleet_by_status": counts,
	})
}

func (r *Router) handleCrewList(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	shipID := strings.TrimSpace(req.URL.Query().Get("ship_id"))
	if shipID == "" {
		writeErrorCode(w, http.StatusBadRequest, "ship_id query parameter required", "invalid_argument", nil)
		return
	}
	roster, err := r.crew.Roster(req.Context(), info.UserID, shipID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"crew": toCrewViews(roster)})
}

func (r *Router) handleCrewUpdate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	crewID := strings.TrimPrefix(req.URL.Path, "/api/bridge-crew/")
	if crewID == "" || strings.Contains(crewID, "/") {
		r.notFound(w)
		return
	}
	var payload crew.UpdateInput
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	record, err := r.crew.Update(req.Context(), info.UserID, crewID, payload)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCrewView(*record))
}

func (r *Router) handleSecrets(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	profile := strings.TrimSpace(req.URL.Query().Get("profile"))
	switch req.Method {
	case http.MethodGet:
		summaries, err := r.secrets.Summaries(req.Context(), info.UserID, profile)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"secrets": summaries})
	case http.MethodPut:
		var payload struct {
			Profile string          `json:"profile"`
			Entries []secrets.Input `json:"entries"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if payload.Profile == "" {
			payload.Profile = profile
		}
		if err := r.secrets.Upsert(req.Context(), info.UserID, payload.Profile, payload.Entries); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "stored"})
	case http.MethodDelete:
		key := strings.TrimSpace(req.URL.Query().Get("key"))
		if err := r.secrets.Delete(req.Context(), info.UserID, profile, key); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleWallet(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	wallet, err := r.billing.Wallet(req.Context(), info.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       wallet.UserID,
		"balance_milli": wallet.BalanceMilli,
		"updated_at":    wallet.UpdatedAt,
	})
}

func (r *Router) handleQuote(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if _, ok := r.mustAuthInfo(w, req); !ok {
		return
	}
	profile := strings.TrimSpace(req.URL.Query().Get("profile"))
	var apps []string
	if raw := strings.TrimSpace(req.URL.Query().Get("apps")); raw != "" {
		apps = strings.Split(raw, ",")
	}
	quote, err := r.billing.Quote(req.Context(), profile, apps)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (r *Router) handleTopUp(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	var payload struct {
		AmountMilli int64  `json:"amount_milli"`
		Reference   string `json:"reference"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	wallet, err := r.billing.TopUp(req.Context(), info.UserID, payload.AmountMilli, payload.Reference)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":       wallet.UserID,
		"balance_milli": wallet.BalanceMilli,
		"updated_at":    wallet.UpdatedAt,
	})
}

func (r *Router) handleTransactions(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	txns, err := r.billing.Transactions(req.Context(), info.UserID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": toTransactionViews(txns)})
}

func (r *Router) handleTransfer(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	var payload struct {
		ShipID      string `json:"ship_id"`
		TargetEmail string `json:"target_email"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := r.transfer.Transfer(req.Context(), info.UserID, payload.ShipID, payload.TargetEmail)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleSessions(w http.ResponseWriter, req *http.Request) {
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodGet:
		list, err := r.sessions.List(req.Context(), info.UserID, req.URL.Query().Get("status"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": toSessionViews(list)})
	case http.MethodPost:
		var payload struct {
			ShipID string `json:"ship_id"`
			CrewID string `json:"crew_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		session, err := r.sessions.Open(req.Context(), info.UserID, payload.ShipID, payload.CrewID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionView(*session))
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleSessionSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/api/sessions/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "prompt" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		ShipID string `json:"ship_id"`
	}
	_ = json.NewDecoder(req.Body).Decode(&payload)
	if err := r.sessions.Prompt(req.Context(), parts[0], payload.ShipID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "prompted"})
}

func (r *Router) handleTasks(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	list, err := r.sessions.Tasks(req.Context(), info.UserID, req.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": toTaskViews(list)})
}

func (r *Router) handleTaskUpdate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	taskID := strings.TrimPrefix(req.URL.Path, "/api/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		r.notFound(w)
		return
	}
	var payload struct {
		Status string `json:"status"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.sessions.UpdateTask(req.Context(), taskID, payload.Status, payload.Detail); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (r *Router) handleSnapshot(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.mustAuthInfo(w, req)
	if !ok {
		return
	}
	snapshot, err := r.sessions.Snapshot(req.Context(), info.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (r *Router) handleCatalog(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"apps":     r.catalog.List(),
		"defaults": r.catalog.Defaults(),
	})
}

func (r *Router) handleEventsSSE(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	ctx, info, ok := r.ensureAuth(w, req)
	if !ok {
		return
	}
	if setter, ok := w.(contextSetter); ok {
		setter.SetContext(ctx)
	}
	req = req.WithContext(ctx)
	decision := r.limiter.Allow("user:"+info.UserID, rateLimitStream, rateWindowRealtime)
	r.applyRateHeaders(w, rateLimitStream, decision)
	if !decision.allowed {
		writeErrorCode(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limited", nil)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	topic := strings.TrimSpace(req.URL.Query().Get("ship_id"))
	if topic == "" {
		topic = ws.TopicFleet
	}
	types := splitTypes(req.URL.Query().Get("types"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	subscriber := events.NewTypeFilter(client, types)
	hub := r.events.Hub()
	hub.Register(topic, subscriber)
	defer func() {
		hub.Unregister(topic, subscriber)
		subscriber.Close()
	}()

	ticker := time.NewTicker(r.sseHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	if _, ok := authInfoFromContext(req.Context()); !ok {
		r.logger.Error("auth context missing for event websocket", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	topic := strings.TrimSpace(req.URL.Query().Get("ship_id"))
	if topic == "" {
		topic = ws.TopicFleet
	}
	types := splitTypes(req.URL.Query().Get("types"))

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	subscriber := events.NewTypeFilter(client, types)
	hub := r.events.Hub()
	hub.Register(topic, subscriber)
	go func() {
		defer func() {
			hub.Unregister(topic, subscriber)
			subscriber.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleProvisionerCallback(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if !r.verifyProvisionerToken(w, req) {
		return
	}
	var payload ship.CallbackPayload
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := r.ship.ProcessCallback(req.Context(), payload); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) mustAuthInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return authInfo{}, false
	}
	return info, true
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, req.URL.Path, status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "operator"
			fields = append(fields, "user_id", info.UserID)
		} else if strings.HasPrefix(req.URL.Path, "/api/provisioner/") {
			actor = "provisioner"
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// verifyProvisionerToken ensures provisioner callbacks include the configured secret.
func (r *Router) verifyProvisionerToken(w http.ResponseWriter, req *http.Request) bool {
	expected := r.provisionerToken
	if expected == "" {
		r.logger.Error("provisioner token not configured", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "provisioner authentication misconfigured")
		return false
	}
	token := strings.TrimSpace(req.Header.Get("X-Provisioner-Token"))
	if token == "" {
		token = strings.TrimSpace(req.URL.Query().Get("provisioner_token"))
	}
	if len(token) != len(expected) || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		r.logger.Warn("provisioner token mismatch", "path", req.URL.Path)
		writeError(w, http.StatusUnauthorized, "invalid provisioner token")
		return false
	}
	return true
}

func splitTypes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	types := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			types = append(types, t)
		}
	}
	return types
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
