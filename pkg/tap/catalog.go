package tap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Catalog describes the streams a tap can extract.
type Catalog struct {
	Streams []Stream `json:"streams"`
}

type Stream struct {
	TapStreamID string          `json:"tap_stream_id"`
	Stream      string          `json:"stream"`
	Schema      json.RawMessage `json:"schema,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// ParseCatalog validates that raw discovery output is a usable catalog
// document.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &catalog, nil
}

// Discoverer runs a tap in discovery mode to produce the stream catalog
// for a connection. Discovery happens at most once per connection: callers
// only invoke it when no cached catalog file exists.
type Discoverer struct {
	log *logrus.Entry
}

func NewDiscoverer(log *logrus.Entry) *Discoverer {
	return &Discoverer{log: log}
}

// Discover invokes `<command> --config <configPath> --discover`, capturing
// the whole of stdout as one document. Discovery output is a single catalog
// object, not a protocol stream, so it is not read line by line. On success
// the raw output is written verbatim to catalogPath and the parsed catalog
// is returned.
func (d *Discoverer) Discover(ctx context.Context, command, configPath, catalogPath string) (*Catalog, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, ErrConfigNotFound
	}

	cmd := exec.CommandContext(ctx, command, "--config", configPath, "--discover")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.log.WithField("command", command).Info("Running catalog discovery")

	if err := cmd.Run(); err != nil {
		return nil, DiscoveryError{
			ExitCode: exitCode(err),
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	}

	catalog, err := ParseCatalog(stdout.Bytes())
	if err != nil {
		return nil, DiscoveryError{reason: err}
	}

	if err := os.WriteFile(catalogPath, stdout.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("writing catalog %s: %w", catalogPath, err)
	}

	d.log.WithField("streams", len(catalog.Streams)).Info("Catalog generated")
	return catalog, nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
