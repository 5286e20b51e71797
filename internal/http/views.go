package httpx

import (
	"encoding/json"
	"time"

	"github.com/QSchlegel/OrchWiz-sub000/internal/domain"
)

// shipView is the wire representation of a ship deployment.
type shipView struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"owner_id"`
	Name             string          `json:"name"`
	Status           string          `json:"status"`
	NodeID           string          `json:"node_id"`
	NodeType         string          `json:"node_type,omitempty"`
	Profile          string          `json:"deployment_profile"`
	ProvisioningMode string          `json:"provisioning_mode"`
	Config           json.RawMessage `json:"config,omitempty"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
	HealthStatus     string          `json:"health_status"`
	MonitoringURLs   []string        `json:"monitoring_urls,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	LaunchedAt       *time.Time      `json:"launched_at,omitempty"`
}

func toShipView(ship domain.ShipDeployment) shipView {
	return shipView{
		ID:               ship.ID,
		OwnerID:          ship.OwnerID,
		Name:             ship.Name,
		Status:           ship.Status,
		NodeID:           ship.NodeID,
		NodeType:         ship.NodeType,
		Profile:          ship.Profile,
		ProvisioningMode: ship.ProvisioningMode,
		Config:           ship.Config,
		Metadata:         ship.Metadata,
		HealthStatus:     ship.HealthStatus,
		MonitoringURLs:   ship.MonitoringURLs,
		CreatedAt:        ship.CreatedAt,
		UpdatedAt:        ship.UpdatedAt,
		LaunchedAt:       ship.LaunchedAt,
	}
}

func toShipViews(ships []domain.ShipDeployment) []shipView {
	views := make([]shipView, 0, len(ships))
	for _, ship := range ships {
		views = append(views, toShipView(ship))
	}
	return views
}

// crewView is the wire representation of a bridge crew record.
type crewView struct {
	ID           string    `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Role         string    `json:"role"`
	Callsign     string    `json:"callsign"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Content      string    `json:"content,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toCrewView(record domain.BridgeCrewRecord) crewView {
	return crewView{
		ID:           record.ID,
		DeploymentID: record.DeploymentID,
		Role:         record.Role,
		Callsign:     record.Callsign,
		Name:         record.Name,
		Description:  record.Description,
		Content:      record.Content,
		Status:       record.Status,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func toCrewViews(records []domain.BridgeCrewRecord) []crewView {
	views := make([]crewView, 0, len(records))
	for _, record := range records {
		views = append(views, toCrewView(record))
	}
	return views
}

type sessionView struct {
	ID           string     `json:"id"`
	DeploymentID string     `json:"deployment_id"`
	CrewID       string     `json:"crew_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	LastPromptAt *time.Time `json:"last_prompt_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

func toSessionView(session domain.CrewSession) sessionView {
	return sessionView{
		ID:           session.ID,
		DeploymentID: session.DeploymentID,
		CrewID:       session.CrewID,
		Status:       session.Status,
		StartedAt:    session.StartedAt,
		LastPromptAt: session.LastPromptAt,
		ClosedAt:     session.ClosedAt,
	}
}

func toSessionViews(sessions []domain.CrewSession) []sessionView {
	views := make([]sessionView, 0, len(sessions))
	for _, session := range sessions {
		views = append(views, toSessionView(session))
	}
	return views
}

type taskView struct {
	ID           string    `json:"id"`
	DeploymentID string    `json:"deployment_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toTaskViews(tasks []domain.Task) []taskView {
	views := make([]taskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView{
			ID:           task.ID,
			DeploymentID: task.DeploymentID,
			Kind:         task.Kind,
			Status:       task.Status,
			Detail:       task.Detail,
			CreatedAt:    task.CreatedAt,
			UpdatedAt:    task.UpdatedAt,
		})
	}
	return views
}

type transactionView struct {
	ID          string    `json:"id"`
	AmountMilli int64     `json:"amount_milli"`
	Kind        string    `json:"kind"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransactionViews(txns []domain.WalletTransaction) []transactionView {
	views := make([]transactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, transactionView{
			ID:          txn.ID,
			AmountMilli: txn.AmountMilli,
			Kind:        txn.Kind,
			Reference:   txn.Reference,
			CreatedAt:   txn.CreatedAt,
		})
	}
	return views
}

type eventView struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	ShipID     string          `json:"ship_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func toEventViews(records []domain.EventRecord) []eventView {
	views := make([]eventView, 0, len(records))
	for _, record := range records {
		views = append(views, eventView{
			ID:         record.ID,
			Type:       record.Type,
			ShipID:     record.ShipID,
			Payload:    record.Payload,
			OccurredAt: record.OccurredAt,
		})
	}
	return views
}
