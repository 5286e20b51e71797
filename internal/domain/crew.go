package domain

import "time"

// Bridge crew roles bootstrapped alongside every launch.
const (
	CrewRoleCaptain       = "captain"
	CrewRoleFirstOfficer  = "first_officer"
	CrewRoleHelmsman      = "helmsman"
	CrewRoleEngineer      = "engineer"
	CrewRoleQuartermaster = "quartermaster"
	CrewRoleCommsOfficer  = "comms_officer"
)

// BridgeCrewRoles lists the six fixed roles in bootstrap order.
var BridgeCrewRoles = []string{
	CrewRoleCaptain,
	CrewRoleFirstOfficer,
	CrewRoleHelmsman,
	CrewRoleEngineer,
	CrewRoleQuartermaster,
	CrewRoleCommsOfficer,
}

// Crew record status values.
const (
	CrewStatusActive   = "active"
	CrewStatusInactive = "inactive"
)

// BridgeCrewRecord is one agent configured for a ship.
type BridgeCrewRecord struct {
	ID           string
	DeploymentID string
	Role         string
	Callsign     string
	Name         string
	Description  string
	Content      string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// KnownCrewRole reports whether role is one of the six fixed roles.
func KnownCrewRole(role string) bool {
	for _, r := range BridgeCrewRoles {
		if r == role {
			return true
		}
	}
	return false
}
