package tap

import (
	"errors"
	"fmt"
)

var (
	ErrConfigMalformed = errors.New("config is not valid JSON")
	ErrMissingFields   = errors.New("config is missing required fields")
	ErrInvalidScheme   = errors.New("site_url must start with http:// or https://")
	ErrInvalidCatalog  = errors.New("discovery output is not a valid catalog")
	ErrConfigNotFound  = errors.New("tap config file not found")
	ErrCatalogNotFound = errors.New("tap catalog file not found")
)

// ConfigError reports a source config document that failed validation.
// It aborts a sync before any tap process is spawned.
type ConfigError struct {
	Path   string
	reason error
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("invalid tap config %s: %v", e.Path, e.reason)
}

func (e ConfigError) Unwrap() error {
	return e.reason
}

func IsConfigError(err error) bool {
	var ce ConfigError
	return errors.As(err, &ce)
}

// DiscoveryError reports a catalog discovery run that failed, either
// because the tap exited non-zero or because its output was unusable.
type DiscoveryError struct {
	ExitCode int
	Stderr   string
	reason   error
}

func (e DiscoveryError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("catalog discovery exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	if e.reason != nil {
		return fmt.Sprintf("catalog discovery failed: %v", e.reason)
	}
	return fmt.Sprintf("catalog discovery exited with code %d", e.ExitCode)
}

func (e DiscoveryError) Unwrap() error {
	return e.reason
}

func IsDiscoveryError(err error) bool {
	var de DiscoveryError
	return errors.As(err, &de)
}

// ExecError reports an extraction run whose tap process exited non-zero.
// The checkpoint on disk must not be touched when this is returned.
type ExecError struct {
	ExitCode int
	Stderr   string
}

func (e ExecError) Error() string {
	return fmt.Sprintf("tap exited with code %d: %s", e.ExitCode, e.Stderr)
}

func IsExecError(err error) bool {
	var ee ExecError
	return errors.As(err, &ee)
}
