package tap

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oguidomingos/datagem2/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func writeConfigFile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestValidateConfigMissingFieldsNamed(t *testing.T) {
	path := writeConfigFile(t, `{"site_url": "https://shop.example.com"}`)

	err := ValidateConfig(path)
	if !IsConfigError(err) {
		t.Fatalf("expected a config error, got %v", err)
	}
	if !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing-fields error, got %v", err)
	}
	for _, field := range []string{"consumer_key", "consumer_secret", "start_date"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error does not name missing field %s: %v", field, err)
		}
	}
}

func TestValidateConfigInvalidScheme(t *testing.T) {
	path := writeConfigFile(t, `{"site_url":"shop.example.com","consumer_key":"ck","consumer_secret":"cs","start_date":"2024-01-01Z"}`)

	err := ValidateConfig(path)
	if !errors.Is(err, ErrInvalidScheme) {
		t.Fatalf("expected scheme error, got %v", err)
	}
}

func TestValidateConfigMalformed(t *testing.T) {
	path := writeConfigFile(t, `{"site_url": `)

	err := ValidateConfig(path)
	if !errors.Is(err, ErrConfigMalformed) {
		t.Fatalf("expected malformed-config error, got %v", err)
	}
	if !strings.Contains(err.Error(), "offset") {
		t.Fatalf("expected parse position in error, got %v", err)
	}
}

func TestValidateConfigNormalizesStartDate(t *testing.T) {
	path := writeConfigFile(t, `{"site_url":"https://shop.example.com","consumer_key":"ck","consumer_secret":"cs","start_date":"2024-01-01"}`)

	if err := ValidateConfig(path); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config back: %v", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		t.Fatalf("rewritten config is not valid JSON: %v", err)
	}
	if doc["start_date"] != "2024-01-01Z" {
		t.Fatalf("start_date not normalized: %v", doc["start_date"])
	}

	// Re-running on the corrected file must change nothing.
	if err := ValidateConfig(path); err != nil {
		t.Fatalf("second validate failed: %v", err)
	}
	again, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to re-read config: %v", err)
	}
	if string(again) != string(content) {
		t.Fatal("validation rewrote an already-normalized config")
	}
}

func TestValidateConfigMissingFile(t *testing.T) {
	err := ValidateConfig(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected config-not-found, got %v", err)
	}
}
