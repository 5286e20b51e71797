package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewNormalizesBaseURL(t *testing.T) {
	c, err := New("localhost:4100/")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if c.baseURL != "http://localhost:4100" {
		t.Fatalf("unexpected base URL %q", c.baseURL)
	}

	c, err = New("")
	if err != nil {
		t.Fatalf("New with empty base returned error: %v", err)
	}
	if c.baseURL != "http://localhost:4100" {
		t.Fatalf("expected default base URL, got %q", c.baseURL)
	}
}

func TestLaunchDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ship-yard/launch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		var input LaunchInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Errorf("decode launch input: %v", err)
		}
		if input.Name != "endeavour" {
			t.Errorf("unexpected ship name %q", input.Name)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"deployment": map[string]any{"id": "ship-1", "status": "deploying"},
			"crew":       []map[string]any{{"id": "crew-1", "role": "captain"}},
			"warnings":   []string{},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	resp, err := c.Launch(context.Background(), "tok", LaunchInput{Name: "endeavour", Profile: "local_dock"})
	if err != nil {
		t.Fatalf("Launch returned error: %v", err)
	}
	if resp.Deployment.ID != "ship-1" || resp.Deployment.Status != "deploying" {
		t.Fatalf("unexpected deployment %+v", resp.Deployment)
	}
	if len(resp.Crew) != 1 || resp.Crew[0].Role != "captain" {
		t.Fatalf("unexpected crew %+v", resp.Crew)
	}
}

func TestAPIErrorCarriesCodeAndSuggestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(map[string]any{
			"error":              "insufficient fuel for launch",
			"code":               "insufficient_fuel",
			"suggested_commands": []string{"shipyard billing topup --amount 25000"},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = c.Launch(context.Background(), "tok", LaunchInput{Name: "x", Profile: "cloud_shipyard"})
	apiErr, ok := err.(APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", apiErr.Status)
	}
	if apiErr.Code != "insufficient_fuel" {
		t.Fatalf("unexpected code %q", apiErr.Code)
	}
	if len(apiErr.SuggestedCommands) != 1 {
		t.Fatalf("expected one suggested command, got %v", apiErr.SuggestedCommands)
	}
}

func TestExtractErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	_, err = c.ListShips(context.Background(), "tok")
	apiErr, ok := err.(APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.Message != "upstream unavailable" {
		t.Fatalf("unexpected message %q", apiErr.Message)
	}
}
