package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
	"github.com/QSchlegel/OrchWiz-sub000/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository    = (*Repository)(nil)
	_ repository.ShipRepository    = (*Repository)(nil)
	_ repository.CrewRepository    = (*Repository)(nil)
	_ repository.SecretRepository  = (*Repository)(nil)
	_ repository.WalletRepository  = (*Repository)(nil)
	_ repository.SessionRepository = (*Repository)(nil)
	_ repository.EventRepository   = (*Repository)(nil)
)

// CreateUser inserts an operator account.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

const shipColumns = `id, owner_id, name, status, node_id, node_type, profile, provisioning_mode,
	config, metadata, health_status, monitoring_urls, created_at, updated_at, launched_at`

func scanShip(row pgx.Row) (*domain.ShipDeployment, error) {
	var ship domain.ShipDeployment
	err := row.Scan(&ship.ID, &ship.OwnerID, &ship.Name, &ship.Status, &ship.NodeID,
		&ship.NodeType, &ship.Profile, &ship.ProvisioningMode, &ship.Config, &ship.Metadata,
		&ship.HealthStatus, &ship.MonitoringURLs, &ship.CreatedAt, &ship.UpdatedAt, &ship.LaunchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &ship, nil
}

// CreateShip inserts a ship deployment.
func (r *Repository) CreateShip(ctx context.Context, ship *domain.ShipDeployment) error {
	const query = `INSERT INTO ships (id, owner_id, name, status, node_id, node_type, profile,
		provisioning_mode, config, metadata, health_status, monitoring_urls, created_at, updated_at, launched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.pool.Exec(ctx, query, ship.ID, ship.OwnerID, ship.Name, ship.Status, ship.NodeID,
		ship.NodeType, ship.Profile, ship.ProvisioningMode, ship.Config, ship.Metadata,
		ship.HealthStatus, ship.MonitoringURLs, ship.CreatedAt, ship.UpdatedAt, ship.LaunchedAt)
	return err
}

// GetShipByID fetches a ship.
func (r *Repository) GetShipByID(ctx context.Context, shipID string) (*domain.ShipDeployment, error) {
	const query = `SELECT ` + shipColumns + ` FROM ships WHERE id = $1`
	return scanShip(r.pool.QueryRow(ctx, query, shipID))
}

// ListShipsByOwner returns the owner's fleet, most recently updated first.
func (r *Repository) ListShipsByOwner(ctx context.Context, ownerID string) ([]domain.ShipDeployment, error) {
	const query = `SELECT ` + shipColumns + ` FROM ships WHERE owner_id = $1 ORDER BY updated_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ships := make([]domain.ShipDeployment, 0)
	for rows.Next() {
		ship, err := scanShip(rows)
		if err != nil {
			return nil, err
		}
		ships = append(ships, *ship)
	}
	return ships, rows.Err()
}

// UpdateShipStatus applies a lifecycle update.
func (r *Repository) UpdateShipStatus(ctx context.Context, update domain.ShipStatusUpdate) error {
	const query = `UPDATE ships SET
		status = COALESCE(NULLIF($2, ''), status),
		health_status = COALESCE(NULLIF($3, ''), health_status),
		metadata = COALESCE($4, metadata),
		launched_at = COALESCE($5, launched_at),
		updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, update.ShipID, update.Status, update.HealthStatus,
		update.Metadata, update.LaunchedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// PatchShip applies operator edits.
func (r *Repository) PatchShip(ctx context.Context, patch domain.ShipPatch) error {
	const query = `UPDATE ships SET
		name = COALESCE($2, name),
		status = COALESCE($3, status),
		monitoring_urls = COALESCE($4, monitoring_urls),
		config = COALESCE($5, config),
		updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, patch.ShipID, patch.Name, patch.Status,
		patch.MonitoringURLs, patch.Config)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TransferShipOwner reassigns ownership.
func (r *Repository) TransferShipOwner(ctx context.Context, shipID, newOwnerID string) error {
	const query = `UPDATE ships SET owner_id = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, shipID, newOwnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteShip scraps a ship and cascades crew, sessions and tasks.
func (r *Repository) DeleteShip(ctx context.Context, shipID string) error {
	const query = `DELETE FROM ships WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, shipID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountShipsByStatus aggregates the owner's fleet per status.
func (r *Repository) CountShipsByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	const query = `SELECT status, COUNT(1) FROM ships WHERE owner_id = $1 GROUP BY status`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CreateCrewRecords inserts a batch of bridge crew records.
func (r *Repository) CreateCrewRecords(ctx context.Context, records []domain.BridgeCrewRecord) error {
	const query = `INSERT INTO bridge_crew (id, deployment_id, role, callsign, name, description, content, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	batch := &pgx.Batch{}
	for _, record := range records {
		batch.Queue(query, record.ID, record.DeploymentID, record.Role, record.Callsign,
			record.Name, record.Description, record.Content, record.Status,
			record.CreatedAt, record.UpdatedAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range records {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListCrewByShip returns crew records in bootstrap role order.
func (r *Repository) ListCrewByShip(ctx context.Context, shipID string) ([]domain.BridgeCrewRecord, error) {
	const query = `SELECT id, deployment_id, role, callsign, name, description, content, status, created_at, updated_at
		FROM bridge_crew WHERE deployment_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, shipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	crew := make([]domain.BridgeCrewRecord, 0)
	for rows.Next() {
		var record domain.BridgeCrewRecord
		if err := rows.Scan(&record.ID, &record.DeploymentID, &record.Role, &record.Callsign,
			&record.Name, &record.Description, &record.Content, &record.Status,
			&record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, err
		}
		crew = append(crew, record)
	}
	return crew, rows.Err()
}

// GetCrewByID fetches a single crew record.
func (r *Repository) GetCrewByID(ctx context.Context, crewID string) (*domain.BridgeCrewRecord, error) {
	const query = `SELECT id, deployment_id, role, callsign, name, description, content, status, created_at, updated_at
		FROM bridge_crew WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, crewID)
	var record domain.BridgeCrewRecord
	if err := row.Scan(&record.ID, &record.DeploymentID, &record.Role, &record.Callsign,
		&record.Name, &record.Description, &record.Content, &record.Status,
		&record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdateCrewRecord persists operator edits to a crew record.
func (r *Repository) UpdateCrewRecord(ctx context.Context, record *domain.BridgeCrewRecord) error {
	const query = `UPDATE bridge_crew SET callsign = $2, name = $3, description = $4, content = $5,
		status = $6, updated_at = $7 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, record.ID, record.Callsign, record.Name,
		record.Description, record.Content, record.Status, record.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpsertSecret stores or replaces an encrypted secret entry.
func (r *Repository) UpsertSecret(ctx context.Context, entry *domain.SecretEntry) error {
	const query = `INSERT INTO secrets (user_id, profile, key, value, checksum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, profile, key) DO UPDATE SET value = EXCLUDED.value,
			checksum = EXCLUDED.checksum, updated_at = EXCLUDED.updated_at`
	_, err := r.pool.Exec(ctx, query, entry.UserID, entry.Profile, entry.Key, entry.Value,
		entry.Checksum, entry.CreatedAt, entry.UpdatedAt)
	return err
}

// ListSecrets returns secret entries for a user and profile, ordered by key.
func (r *Repository) ListSecrets(ctx context.Context, userID, profile string) ([]domain.SecretEntry, error) {
	const query = `SELECT user_id, profile, key, value, checksum, created_at, updated_at
		FROM secrets WHERE user_id = $1 AND profile = $2 ORDER BY key`
	rows, err := r.pool.Query(ctx, query, userID, profile)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.SecretEntry, 0)
	for rows.Next() {
		var entry domain.SecretEntry
		if err := rows.Scan(&entry.UserID, &entry.Profile, &entry.Key, &entry.Value,
			&entry.Checksum, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// DeleteSecret removes a secret entry.
func (r *Repository) DeleteSecret(ctx context.Context, userID, profile, key string) error {
	const query = `DELETE FROM secrets WHERE user_id = $1 AND profile = $2 AND key = $3`
	tag, err := r.pool.Exec(ctx, query, userID, profile, key)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetWallet fetches a wallet, creating a zero balance row on first access.
func (r *Repository) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	const query = `INSERT INTO wallets (user_id, balance_milli, updated_at)
		VALUES ($1, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance_milli, updated_at`
	row := r.pool.QueryRow(ctx, query, userID)
	var wallet domain.Wallet
	if err := row.Scan(&wallet.UserID, &wallet.BalanceMilli, &wallet.UpdatedAt); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ApplyTransaction records a transaction and adjusts the balance atomically.
// Debits are conditional on the current balance covering the amount, so two
// concurrent charges cannot drive a wallet negative.
func (r *Repository) ApplyTransaction(ctx context.Context, txn *domain.WalletTransaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if txn.AmountMilli < 0 {
		const debit = `UPDATE wallets SET balance_milli = balance_milli + $2, updated_at = NOW()
			WHERE user_id = $1 AND balance_milli + $2 >= 0`
		tag, err := tx.Exec(ctx, debit, txn.UserID, txn.AmountMilli)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrInsufficientFunds
		}
	} else {
		const credit = `INSERT INTO wallets (user_id, balance_milli, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id) DO UPDATE SET balance_milli = wallets.balance_milli + EXCLUDED.balance_milli,
				updated_at = NOW()`
		if _, err := tx.Exec(ctx, credit, txn.UserID, txn.AmountMilli); err != nil {
			return err
		}
	}

	const insert = `INSERT INTO wallet_transactions (id, user_id, amount_milli, kind, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insert, txn.ID, txn.UserID, txn.AmountMilli, txn.Kind,
		txn.Reference, txn.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListTransactions returns recent transactions for a user.
func (r *Repository) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, user_id, amount_milli, kind, reference, created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	txns := make([]domain.WalletTransaction, 0)
	for rows.Next() {
		var txn domain.WalletTransaction
		if err := rows.Scan(&txn.ID, &txn.UserID, &txn.AmountMilli, &txn.Kind,
			&txn.Reference, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// CreateSession inserts a crew session.
func (r *Repository) CreateSession(ctx context.Context, session *domain.CrewSession) error {
	const query = `INSERT INTO crew_sessions (id, deployment_id, crew_id, status, started_at, last_prompt_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, session.ID, session.DeploymentID, session.CrewID,
		session.Status, session.StartedAt, session.LastPromptAt, session.ClosedAt)
	return err
}

// ListSessions returns sessions for ships the owner controls.
func (r *Repository) ListSessions(ctx context.Context, ownerID string, status string) ([]domain.CrewSession, error) {
	const query = `SELECT s.id, s.deployment_id, s.crew_id, s.status, s.started_at, s.last_prompt_at, s.closed_at
		FROM crew_sessions s
		INNER JOIN ships sh ON sh.id = s.deployment_id
		WHERE sh.owner_id = $1 AND ($2 = '' OR s.status = $2)
		ORDER BY s.started_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]domain.CrewSession, 0)
	for rows.Next() {
		var session domain.CrewSession
		if err := rows.Scan(&session.ID, &session.DeploymentID, &session.CrewID, &session.Status,
			&session.StartedAt, &session.LastPromptAt, &session.ClosedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// MarkSessionPrompted stamps the session and flips it to prompted.
func (r *Repository) MarkSessionPrompted(ctx context.Context, sessionID string, at time.Time) error {
	const query = `UPDATE crew_sessions SET status = $2, last_prompt_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, sessionID, domain.SessionStatusPrompted, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateTasks inserts a batch of tasks.
func (r *Repository) CreateTasks(ctx context.Context, tasks []domain.Task) error {
	const query = `INSERT INTO tasks (id, deployment_id, kind, status, detail, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	batch := &pgx.Batch{}
	for _, task := range tasks {
		batch.Queue(query, task.ID, task.DeploymentID, task.Kind, task.Status, task.Detail,
			task.CreatedAt, task.UpdatedAt)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range tasks {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListTasks returns tasks for ships the owner controls.
func (r *Repository) ListTasks(ctx context.Context, ownerID string, status string) ([]domain.Task, error) {
	const query = `SELECT t.id, t.deployment_id, t.kind, t.status, t.detail, t.created_at, t.updated_at
		FROM tasks t
		INNER JOIN ships sh ON sh.id = t.deployment_id
		WHERE sh.owner_id = $1 AND ($2 = '' OR t.status = $2)
		ORDER BY t.created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(&task.ID, &task.DeploymentID, &task.Kind, &task.Status,
			&task.Detail, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus advances a task.
func (r *Repository) UpdateTaskStatus(ctx context.Context, taskID, status, detail string) error {
	const query = `UPDATE tasks SET status = $2, detail = COALESCE(NULLIF($3, ''), detail), updated_at = NOW()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, taskID, status, detail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountSessionsByStatus aggregates session counts for an owner.
func (r *Repository) CountSessionsByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	const query = `SELECT s.status, COUNT(1)
		FROM crew_sessions s
		INNER JOIN ships sh ON sh.id = s.deployment_id
		WHERE sh.owner_id = $1 GROUP BY s.status`
	return r.countByStatus(ctx, query, ownerID)
}

// CountTasksByStatus aggregates task counts for an owner.
func (r *Repository) CountTasksByStatus(ctx context.Context, ownerID string) (map[string]int, error) {
	const query = `SELECT t.status, COUNT(1)
		FROM tasks t
		INNER JOIN ships sh ON sh.id = t.deployment_id
		WHERE sh.owner_id = $1 GROUP BY t.status`
	return r.countByStatus(ctx, query, ownerID)
}

func (r *Repository) countByStatus(ctx context.Context, query, ownerID string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// AppendEvent stores a broadcast event.
func (r *Repository) AppendEvent(ctx context.Context, record *domain.EventRecord) error {
	const query = `INSERT INTO events (type, ship_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	row := r.pool.QueryRow(ctx, query, record.Type, record.ShipID, record.Payload, record.OccurredAt)
	return row.Scan(&record.ID)
}

// ListEventsByShip returns recent events for a ship.
func (r *Repository) ListEventsByShip(ctx context.Context, shipID string, limit int) ([]domain.EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, type, ship_id, payload, occurred_at
		FROM events WHERE ship_id = $1 ORDER BY occurred_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, shipID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.EventRecord, 0)
	for rows.Next() {
		var record domain.EventRecord
		if err := rows.Scan(&record.ID, &record.Type, &record.ShipID, &record.Payload,
			&record.OccurredAt); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
