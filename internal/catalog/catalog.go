package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed apps.yaml
var defaultManifest []byte

// App describes one bootstrap application selectable in the launch wizard.
type App struct {
	Name        string `yaml:"name" json:"name"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
	CPUMilli    int    `yaml:"cpu_milli" json:"cpu_milli"`
	MemoryMB    int    `yaml:"memory_mb" json:"memory_mb"`
	DiskMB      int    `yaml:"disk_mb" json:"disk_mb"`
	Default     bool   `yaml:"default" json:"default"`
}

type manifest struct {
	Apps []App `yaml:"apps"`
}

// Catalog indexes bootstrap applications by name.
type Catalog struct {
	apps map[string]App
}

// Load reads a catalog manifest from path, falling back to the embedded
// default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultManifest
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog manifest: %w", err)
		}
		data = raw
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse catalog manifest: %w", err)
	}
	if len(m.Apps) == 0 {
		return nil, fmt.Errorf("catalog manifest lists no apps")
	}
	apps := make(map[string]App, len(m.Apps))
	for _, app := range m.Apps {
		name := strings.TrimSpace(app.Name)
		if name == "" {
			return nil, fmt.Errorf("catalog app missing name")
		}
		if _, dup := apps[name]; dup {
			return nil, fmt.Errorf("catalog app %q defined twice", name)
		}
		if app.CPUMilli < 0 || app.MemoryMB < 0 || app.DiskMB < 0 {
			return nil, fmt.Errorf("catalog app %q has negative resources", name)
		}
		app.Name = name
		apps[name] = app
	}
	return &Catalog{apps: apps}, nil
}

// Get returns the named app.
func (c *Catalog) Get(name string) (App, bool) {
	app, ok := c.apps[name]
	return app, ok
}

// List returns all apps sorted by name.
func (c *Catalog) List() []App {
	apps := make([]App, 0, len(c.apps))
	for _, app := range c.apps {
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })
	return apps
}

// Defaults returns the names of apps preselected by the wizard.
func (c *Catalog) Defaults() []string {
	names := make([]string, 0)
	for _, app := range c.List() {
		if app.Default {
			names = append(names, app.Name)
		}
	}
	return names
}

// Validate checks that every requested app exists and returns the unknown ones.
func (c *Catalog) Validate(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := c.apps[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}
