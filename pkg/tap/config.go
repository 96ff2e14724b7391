package tap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oguidomingos/datagem2/pkg/common/logger"
)

var requiredConfigFields = []string{"site_url", "consumer_key", "consumer_secret", "start_date"}

// ValidateConfig checks the tap config document at path against the fields
// the WooCommerce-style taps require. As a side effect it normalizes
// start_date to carry a UTC marker, rewriting the file in place; running
// it again on the corrected file changes nothing.
func ValidateConfig(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrConfigNotFound
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return ConfigError{Path: path, reason: fmt.Errorf("%w: parse error at offset %d", ErrConfigMalformed, syntaxErr.Offset)}
		}
		return ConfigError{Path: path, reason: fmt.Errorf("%w: %v", ErrConfigMalformed, err)}
	}

	var missing []string
	for _, field := range requiredConfigFields {
		if _, ok := doc[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return ConfigError{Path: path, reason: fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))}
	}

	siteURL, _ := doc["site_url"].(string)
	if !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		return ConfigError{Path: path, reason: fmt.Errorf("%w, got %q", ErrInvalidScheme, siteURL)}
	}

	if startDate, ok := doc["start_date"].(string); ok && !strings.HasSuffix(startDate, "Z") {
		doc["start_date"] = startDate + "Z"
		normalized, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling normalized config: %w", err)
		}
		if err := os.WriteFile(path, normalized, 0o644); err != nil {
			return fmt.Errorf("rewriting config %s: %w", path, err)
		}
		logger.Log.WithField("start_date", doc["start_date"]).Info("Added UTC marker to start_date")
	}

	return nil
}
