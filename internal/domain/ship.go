package domain

import (
	"encoding/json"
	"time"
)

// Ship status values as exposed by the fleet API.
const (
	ShipStatusPending   = "pending"
	ShipStatusDeploying = "deploying"
	ShipStatusActive    = "active"
	ShipStatusInactive  = "inactive"
	ShipStatusFailed    = "failed"
	ShipStatusUpdating  = "updating"
)

// Deployment profiles select default infrastructure values.
const (
	ProfileLocalDock     = "local_dock"
	ProfileCloudShipyard = "cloud_shipyard"
)

// Infrastructure kinds a ship can be provisioned onto.
const (
	InfraKindExistingK8s  = "existing_k8s"
	InfraKindProvisionNew = "provision_new"
)

// ShipDeployment captures a provisioned Kubernetes-backed environment.
type ShipDeployment struct {
	ID               string
	OwnerID          string
	Name             string
	Status           string
	NodeID           string
	NodeType         string
	Profile          string
	ProvisioningMode string
	Config           json.RawMessage
	Metadata         json.RawMessage
	HealthStatus     string
	MonitoringURLs   []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LaunchedAt       *time.Time
}

// ShipStatusUpdate captures mutable lifecycle fields for a ship.
type ShipStatusUpdate struct {
	ShipID       string
	Status       string
	HealthStatus string
	Message      string
	Metadata     json.RawMessage
	LaunchedAt   *time.Time
}

// ShipPatch carries optional fields for operator-driven edits.
type ShipPatch struct {
	ShipID         string
	Name           *string
	Status         *string
	MonitoringURLs *[]string
	Config         json.RawMessage
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

// KnownShipStatus reports whether a status string is one the API emits.
func KnownShipStatus(status string) bool {
	switch status {
	case ShipStatusPending, ShipStatusDeploying, ShipStatusActive,
		ShipStatusInactive, ShipStatusFailed, ShipStatusUpdating:
		return true
	}
	return false
}
