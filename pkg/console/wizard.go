// Package console implements the interactive ship yard: the launch wizard,
// the fleet roster and the ops panel used by the shipyard CLI.
package console

import (
	"encoding/json"
	"strings"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// Step identifies one wizard screen.
type Step int

const (
	StepMission Step = iota
	StepEnvironment
	StepSecrets
	StepApps
	StepCrew
	StepReview
)

// stepCount is the number of screens in the fixed sequence.
const stepCount = int(StepReview) + 1

func (s Step) String() string {
	switch s {
	case StepMission:
		return "mission"
	case StepEnvironment:
		return "environment"
	case StepSecrets:
		return "secrets"
	case StepApps:
		return "apps"
	case StepCrew:
		return "crew"
	case StepReview:
		return "review"
	default:
		return "unknown"
	}
}

// LaunchForm is the single mutable snapshot spanning all wizard steps.
type LaunchForm struct {
	Name           string
	NodeID         string
	NodeType       string
	Profile        string
	InfraKind      string
	MonitoringURLs []string
	Secrets        []client.SecretEntry
	Apps           []string
	CrewContent    map[string]string
	Config         json.RawMessage
}

// Placeholders are fallback identity values applied when the operator leaves
// the mission fields blank.
type Placeholders struct {
	Name   string
	NodeID string
}

// Wizard walks the fixed launch sequence
// mission, environment, secrets, apps, crew, review.
type Wizard struct {
	step        int
	form        LaunchForm
	placeholder Placeholders
}

// NewWizard returns a wizard positioned on the mission step with the
// local dock defaults selected.
func NewWizard(placeholder Placeholders) *Wizard {
	w := &Wizard{placeholder: placeholder}
	w.Reset()
	return w
}

// Reset returns the wizard to the mission step with a fresh form.
func (w *Wizard) Reset() {
	w.step = 0
	w.form = LaunchForm{
		Profile:     "local_dock",
		InfraKind:   "existing_k8s",
		CrewContent: make(map[string]string),
	}
}

// Step reports the current screen.
func (w *Wizard) Step() Step {
	return Step(w.step)
}

// Form exposes the mutable form snapshot.
func (w *Wizard) Form() *LaunchForm {
	return &w.form
}

// CanAdvance reports whether the Next action is enabled for the current
// step. Only the mission step gates: it requires a ship name or a node ID,
// where placeholder defaults count via fallback.
func (w *Wizard) CanAdvance() bool {
	if Step(w.step) != StepMission {
		return true
	}
	return w.EffectiveName() != "" || w.EffectiveNodeID() != ""
}

// Next advances one step when permitted. It reports whether the wizard moved.
func (w *Wizard) Next() bool {
	if !w.CanAdvance() || w.step >= stepCount-1 {
		return false
	}
	w.step++
	return true
}

// Back retreats one step. It reports whether the wizard moved.
func (w *Wizard) Back() bool {
	if w.step <= 0 {
		return false
	}
	w.step--
	return true
}

// SetProfile records the deployment profile. Selecting the cloud shipyard
// always forces the infrastructure kind to an existing cluster, regardless
// of any prior selection.
func (w *Wizard) SetProfile(profile string) {
	w.form.Profile = strings.TrimSpace(profile)
	if w.form.Profile == "cloud_shipyard" {
		w.form.InfraKind = "existing_k8s"
	}
}

// SetInfraKind records the infrastructure kind. The cloud shipyard profile
// pins the kind to existing_k8s and ignores other values.
func (w *Wizard) SetInfraKind(kind string) {
	if w.form.Profile == "cloud_shipyard" {
		w.form.InfraKind = "existing_k8s"
		return
	}
	w.form.InfraKind = strings.TrimSpace(kind)
}

// EffectiveName resolves the ship name, falling back to the placeholder.
func (w *Wizard) EffectiveName() string {
	if name := strings.TrimSpace(w.form.Name); name != "" {
		return name
	}
	return strings.TrimSpace(w.placeholder.Name)
}

// EffectiveNodeID resolves the node ID, falling back to the placeholder.
func (w *Wizard) EffectiveNodeID() string {
	if node := strings.TrimSpace(w.form.NodeID); node != "" {
		return node
	}
	return strings.TrimSpace(w.placeholder.NodeID)
}

// LaunchInput serializes the accumulated form for submission.
func (w *Wizard) LaunchInput() client.LaunchInput {
	return client.LaunchInput{
		Name:           w.EffectiveName(),
		NodeID:         w.EffectiveNodeID(),
		NodeType:       w.form.NodeType,
		Profile:        w.form.Profile,
		InfraKind:      w.form.InfraKind,
		Apps:           append([]string(nil), w.form.Apps...),
		CrewContent:    w.form.CrewContent,
		Config:         w.form.Config,
		MonitoringURLs: append([]string(nil), w.form.MonitoringURLs...),
	}
}
