package console

import (
	"context"
	"net/http"
	"testing"

	"github.com/QSchlegel/OrchWiz-sub000/pkg/api/client"
)

func TestSubmitLaunchSuccessResetsWizard(t *testing.T) {
	api := newFakeAPI()
	api.launchResp = client.LaunchResponse{
		Deployment: client.Ship{ID: "ship-1", Name: "endeavour", Status: "deploying"},
	}
	c := New(api, "tok", Placeholders{})
	c.Wizard.Form().Name = "endeavour"
	c.Wizard.Next()
	c.Wizard.Next()

	resp, err := c.SubmitLaunch(context.Background())
	if err != nil {
		t.Fatalf("SubmitLaunch returned error: %v", err)
	}
	if resp.Deployment.ID != "ship-1" {
		t.Fatalf("unexpected deployment %+v", resp.Deployment)
	}
	if c.Wizard.Step() != StepMission {
		t.Fatalf("wizard should reset to mission, on %s", c.Wizard.Step())
	}
	if got := c.Fleet.SelectedShip(); got != "ship-1" {
		t.Fatalf("selected ship not updated, got %q", got)
	}
	notices := c.Notices()
	if len(notices) != 1 || notices[0].Level != NoticeSuccess {
		t.Fatalf("expected one success notice, got %+v", notices)
	}
}

func TestSubmitLaunchErrorKeepsWizardInPlace(t *testing.T) {
	api := newFakeAPI()
	api.launchErr = client.APIError{
		Status:            http.StatusPaymentRequired,
		Message:           "insufficient fuel for launch",
		Code:              "insufficient_fuel",
		SuggestedCommands: []string{"shipyard billing topup --amount 25000"},
	}
	c := New(api, "tok", Placeholders{})
	c.Wizard.Form().Name = "endeavour"
	c.Wizard.Next()
	c.Wizard.Next()

	if _, err := c.SubmitLaunch(context.Background()); err == nil {
		t.Fatal("expected launch error")
	}
	if c.Wizard.Step() != StepSecrets {
		t.Fatalf("failed launch must not reset the wizard, on %s", c.Wizard.Step())
	}
	notices := c.Notices()
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	n := notices[0]
	if n.Level != NoticeError || n.Text != "insufficient fuel for launch" {
		t.Fatalf("unexpected notice %+v", n)
	}
	if n.Code != "insufficient_fuel" || len(n.SuggestedCommands) != 1 {
		t.Fatalf("notice lost the error code or suggestions: %+v", n)
	}
}

func TestSubmitLaunchWarningsSurfaceAsInfo(t *testing.T) {
	api := newFakeAPI()
	api.launchResp = client.LaunchResponse{
		Deployment: client.Ship{ID: "ship-1", Name: "endeavour", Status: "pending"},
		Warnings:   []string{"bootstrap task queue unavailable"},
	}
	c := New(api, "tok", Placeholders{})
	c.Wizard.Form().Name = "endeavour"

	if _, err := c.SubmitLaunch(context.Background()); err != nil {
		t.Fatalf("partial success should not be an error: %v", err)
	}
	notices := c.Notices()
	if len(notices) != 1 || notices[0].Level != NoticeInfo {
		t.Fatalf("expected one info notice, got %+v", notices)
	}
	if got := c.Fleet.SelectedShip(); got != "ship-1" {
		t.Fatalf("selected ship not updated on partial success, got %q", got)
	}
}

func TestSubmitLaunchStoresSecretsFirst(t *testing.T) {
	api := newFakeAPI()
	api.launchResp = client.LaunchResponse{Deployment: client.Ship{ID: "ship-1"}}
	c := New(api, "tok", Placeholders{})
	form := c.Wizard.Form()
	form.Name = "endeavour"
	form.Profile = "cloud_shipyard"
	form.Secrets = []client.SecretEntry{{Key: "registry_token", Value: "hunter2"}}

	if _, err := c.SubmitLaunch(context.Background()); err != nil {
		t.Fatalf("SubmitLaunch returned error: %v", err)
	}
	stored := api.storedSecrets["cloud_shipyard"]
	if len(stored) != 1 || stored[0].Key != "registry_token" {
		t.Fatalf("secrets were not stored before launch: %+v", stored)
	}
	if len(api.launched) != 1 {
		t.Fatalf("expected one launch call, got %d", len(api.launched))
	}
}

func TestDismissNotices(t *testing.T) {
	api := newFakeAPI()
	api.launchResp = client.LaunchResponse{Deployment: client.Ship{ID: "ship-1"}}
	c := New(api, "tok", Placeholders{})
	c.Wizard.Form().Name = "endeavour"
	if _, err := c.SubmitLaunch(context.Background()); err != nil {
		t.Fatalf("SubmitLaunch returned error: %v", err)
	}
	c.DismissNotices()
	if len(c.Notices()) != 0 {
		t.Fatal("notices were not cleared")
	}
}
