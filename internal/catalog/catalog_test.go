package catalog

import "testing"

func TestLoadEmbeddedManifest(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	apps := cat.List()
	if len(apps) == 0 {
		t.Fatal("embedded catalog is empty")
	}
	for i := 1; i < len(apps); i++ {
		if apps[i-1].Name >= apps[i].Name {
			t.Fatalf("List not sorted: %s before %s", apps[i-1].Name, apps[i].Name)
		}
	}
	if _, ok := cat.Get("helm-controller"); !ok {
		t.Fatal("helm-controller missing from embedded catalog")
	}
}

func TestDefaultsArePreselected(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	defaults := cat.Defaults()
	if len(defaults) == 0 {
		t.Fatal("catalog has no default apps")
	}
	for _, name := range defaults {
		app, ok := cat.Get(name)
		if !ok || !app.Default {
			t.Fatalf("default app %q not marked default in catalog", name)
		}
	}
}

func TestValidateReportsUnknownApps(t *testing.T) {
	cat, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	unknown := cat.Validate([]string{"helm-controller", "warp-drive"})
	if len(unknown) != 1 || unknown[0] != "warp-drive" {
		t.Fatalf("unexpected unknown list %v", unknown)
	}
	if unknown := cat.Validate(nil); len(unknown) != 0 {
		t.Fatalf("empty selection should validate, got %v", unknown)
	}
}

func TestParseRejectsBadManifests(t *testing.T) {
	cases := map[string]string{
		"no apps":      "apps: []",
		"missing name": "apps:\n  - title: Unnamed",
		"duplicate":    "apps:\n  - name: a\n  - name: a",
		"negative":     "apps:\n  - name: a\n    cpu_milli: -1",
	}
	for label, manifest := range cases {
		if _, err := parse([]byte(manifest)); err == nil {
			t.Errorf("%s: parse accepted invalid manifest", label)
		}
	}
}
