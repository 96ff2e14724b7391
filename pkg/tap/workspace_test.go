package tap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWorkspaceLayout(t *testing.T) {
	ws := NewWorkspace("/data", "user-1", "proj-9", "woocommerce")

	want := filepath.Join("/data", "user-1", "proj-9", "connections", "woocommerce")
	if ws.Dir() != want {
		t.Fatalf("unexpected workspace dir: %s", ws.Dir())
	}
	if filepath.Base(ws.ConfigPath()) != "config.json" {
		t.Fatalf("unexpected config path: %s", ws.ConfigPath())
	}
	if filepath.Base(ws.CatalogPath()) != "catalog.json" {
		t.Fatalf("unexpected catalog path: %s", ws.CatalogPath())
	}
	if filepath.Base(ws.StatePath()) != "state.json" {
		t.Fatalf("unexpected state path: %s", ws.StatePath())
	}
}

func TestWorkspaceWriteConfig(t *testing.T) {
	ws := NewWorkspace(t.TempDir(), "u1", "p1", "woocommerce")
	if err := ws.Ensure(); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	err := ws.WriteConfig(map[string]interface{}{
		"site_url":     "https://shop.example.com",
		"consumer_key": "ck_123",
	})
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	content, err := os.ReadFile(ws.ConfigPath())
	if err != nil {
		t.Fatalf("failed to read config back: %v", err)
	}
	if !strings.Contains(string(content), `  "site_url": "https://shop.example.com"`) {
		t.Fatalf("config not written with two-space indent: %s", content)
	}
}

func TestWorkspaceStateRoundTrip(t *testing.T) {
	ws := NewWorkspace(t.TempDir(), "u1", "p1", "woocommerce")
	if err := ws.Ensure(); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}

	state, err := ws.ReadState()
	if err != nil {
		t.Fatalf("missing checkpoint should not be an error: %v", err)
	}
	if state != nil {
		t.Fatalf("expected no checkpoint, got %s", state)
	}

	value := []byte(`{"bookmarks":{"orders":"2024-05-01T00:00:00Z"}}`)
	if err := ws.WriteState(value); err != nil {
		t.Fatalf("failed to write checkpoint: %v", err)
	}

	got, err := ws.ReadState()
	if err != nil {
		t.Fatalf("failed to read checkpoint: %v", err)
	}
	if string(got) != string(value) {
		t.Fatalf("checkpoint changed on round trip: %s", got)
	}
}

func TestWorkspaceCorruptState(t *testing.T) {
	ws := NewWorkspace(t.TempDir(), "u1", "p1", "woocommerce")
	if err := ws.Ensure(); err != nil {
		t.Fatalf("failed to create workspace: %v", err)
	}
	if err := os.WriteFile(ws.StatePath(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to plant corrupt checkpoint: %v", err)
	}

	if _, err := ws.ReadState(); err == nil {
		t.Fatal("expected an error for a corrupt checkpoint")
	}
}
