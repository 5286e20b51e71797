package console

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

// Baseline footprint of an empty ship plus the marginal cost of each crew
// member's runtime.
const (
	baseCPUMilli = 500
	baseMemoryMB = 1024
	baseDiskMB   = 2048
	crewCPUMilli = 100
	crewMemoryMB = 256
	crewDiskMB   = 512
	mib          = 1024 * 1024
)

// Requirements is an estimated resource footprint for a launch.
type Requirements struct {
	CPUMilli int
	MemoryMB int
	DiskMB   int
}

// CPU renders the CPU requirement in cores.
func (r Requirements) CPU() string {
	return fmt.Sprintf("%.1f cores", float64(r.CPUMilli)/1000)
}

// Memory renders the memory requirement.
func (r Requirements) Memory() string {
	return humanize.IBytes(uint64(r.MemoryMB) * mib)
}

// Disk renders the disk requirement.
func (r Requirements) Disk() string {
	return humanize.IBytes(uint64(r.DiskMB) * mib)
}

// EstimateShipBaseRequirements derives the footprint of a launch from the
// selected bootstrap apps plus the crew size. Unknown app names contribute
// nothing.
func EstimateShipBaseRequirements(catalog []client.CatalogApp, selected []string, crewSize int) Requirements {
	byName := make(map[string]client.CatalogApp, len(catalog))
	for _, app := range catalog {
		byName[app.Name] = app
	}
	req := Requirements{
		CPUMilli: baseCPUMilli + crewSize*crewCPUMilli,
		MemoryMB: baseMemoryMB + crewSize*crewMemoryMB,
		DiskMB:   baseDiskMB + crewSize*crewDiskMB,
	}
	for _, name := range selected {
		app, ok := byName[strings.TrimSpace(name)]
		if !ok {
			continue
		}
		req.CPUMilli += app.CPUMilli
		req.MemoryMB += app.MemoryMB
		req.DiskMB += app.DiskMB
	}
	return req
}

// DeploymentOverview summarises fleet readiness.
type DeploymentOverview struct {
	Total    int
	Ready    int
	Failed   int
	ByStatus map[string]int
}

// ReadyPercent reports the active share of the fleet, 0 to 100.
func (o DeploymentOverview) ReadyPercent() float64 {
	if o.Total == 0 {
		return 0
	}
	return float64(o.Ready) / float64(o.Total) * 100
}

// BuildShipDeploymentOverview folds the fleet into readiness counters.
func BuildShipDeploymentOverview(ships []client.Ship) DeploymentOverview {
	overview := DeploymentOverview{ByStatus: make(map[string]int)}
	for _, ship := range ships {
		overview.Total++
		overview.ByStatus[ship.Status]++
		switch ship.Status {
		case "active":
			overview.Ready++
		case "failed":
			overview.Failed++
		}
	}
	return overview
}

// ReviewSummary is the aggregation shown on the wizard's review step.
type ReviewSummary struct {
	Name        string
	NodeID      string
	Profile     string
	InfraKind   string
	Apps        []string
	SecretCount int
	CrewRoles   []string
	Estimate    Requirements
	Quote       *client.Quote
}

// Cost renders the quoted launch cost, or "free" for a zero quote.
func (s ReviewSummary) Cost() string {
	if s.Quote == nil || s.Quote.AmountMilli == 0 {
		return "free"
	}
	return fmt.Sprintf("%s milli%s", humanize.Comma(s.Quote.AmountMilli), s.Quote.Currency)
}

// Lines renders the summary one row per concern for terminal display.
func (s ReviewSummary) Lines() []string {
	apps := "none"
	if len(s.Apps) > 0 {
		apps = strings.Join(s.Apps, ", ")
	}
	crew := "defaults"
	if len(s.CrewRoles) > 0 {
		crew = strings.Join(s.CrewRoles, ", ")
	}
	return []string{
		fmt.Sprintf("ship: %s (node %s)", s.Name, s.NodeID),
		fmt.Sprintf("profile: %s on %s", s.Profile, s.InfraKind),
		fmt.Sprintf("apps: %s", apps),
		fmt.Sprintf("crew overrides: %s", crew),
		fmt.Sprintf("secrets: %d stored", s.SecretCount),
		fmt.Sprintf("estimated footprint: %s, %s memory, %s disk", s.Estimate.CPU(), s.Estimate.Memory(), s.Estimate.Disk()),
		fmt.Sprintf("launch cost: %s", s.Cost()),
	}
}

// BuildReviewLaunchSummary aggregates the wizard form for the review step.
func BuildReviewLaunchSummary(w *Wizard, catalog []client.CatalogApp, crewSize int, quote *client.Quote) ReviewSummary {
	form := w.Form()
	roles := make([]string, 0, len(form.CrewContent))
	for role := range form.CrewContent {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return ReviewSummary{
		Name:        w.EffectiveName(),
		NodeID:      w.EffectiveNodeID(),
		Profile:     form.Profile,
		InfraKind:   form.InfraKind,
		Apps:        append([]string(nil), form.Apps...),
		SecretCount: len(form.Secrets),
		CrewRoles:   roles,
		Estimate:    EstimateShipBaseRequirements(catalog, form.Apps, crewSize),
		Quote:       quote,
	}
}
