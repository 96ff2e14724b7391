package tap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configFileName  = "config.json"
	catalogFileName = "catalog.json"
	stateFileName   = "state.json"
)

// Workspace is the private on-disk directory holding one connection's
// config, catalog and checkpoint documents, keyed by owner, project and
// connection type so concurrent syncs of different connections never
// touch each other's files.
type Workspace struct {
	dir string
}

func NewWorkspace(root, ownerID, projectID, connType string) *Workspace {
	return &Workspace{
		dir: filepath.Join(root, ownerID, projectID, "connections", connType),
	}
}

func (w *Workspace) Ensure() error {
	return os.MkdirAll(w.dir, 0o755)
}

func (w *Workspace) Dir() string {
	return w.dir
}

func (w *Workspace) ConfigPath() string {
	return filepath.Join(w.dir, configFileName)
}

func (w *Workspace) CatalogPath() string {
	return filepath.Join(w.dir, catalogFileName)
}

func (w *Workspace) StatePath() string {
	return filepath.Join(w.dir, stateFileName)
}

// WriteConfig renders the connection's source config to disk for the tap
// binary to read. The document is rewritten on every run so edits made in
// the platform take effect without manual cleanup.
func (w *Workspace) WriteConfig(config map[string]interface{}) error {
	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(w.ConfigPath(), content, 0o644)
}

func (w *Workspace) HasCatalog() bool {
	_, err := os.Stat(w.CatalogPath())
	return err == nil
}

func (w *Workspace) ReadCatalog() ([]byte, error) {
	return os.ReadFile(w.CatalogPath())
}

// ReadState returns the stored checkpoint. A missing file yields (nil, nil):
// the tap simply starts a full extraction. An unreadable or corrupt file is
// reported so the caller can log it and start fresh; it is never fatal.
func (w *Workspace) ReadState() ([]byte, error) {
	content, err := os.ReadFile(w.StatePath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(content) {
		return nil, fmt.Errorf("checkpoint %s is not valid JSON", w.StatePath())
	}
	return content, nil
}

// WriteState stores the checkpoint exactly as the tap emitted it, byte for
// byte, so the next run resumes from the same bookmark.
func (w *Workspace) WriteState(value []byte) error {
	return os.WriteFile(w.StatePath(), value, 0o644)
}
