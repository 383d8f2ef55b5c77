package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/domain/incident"
)

// Status is the persisted status record read by the status-reporting surface.
type Status struct {
	// CurrentVersion is the release the current pointer names.
	CurrentVersion string `yaml:"current_version"`
	// IncidentPhase is the alerting lifecycle phase.
	IncidentPhase incident.Phase `yaml:"incident_phase"`
	// PinnedMessageID is the notifier id pinned while an incident is active.
	PinnedMessageID string `yaml:"pinned_message_id,omitempty"`
	// IncidentStartedAt is when the active episode began.
	IncidentStartedAt time.Time `yaml:"incident_started_at,omitempty"`
	// UpdatedAt is when this record was last written.
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Incident extracts the incident portion of the record.
func (s *Status) Incident() *incident.Incident {
	return &incident.Incident{
		Phase:           s.IncidentPhase,
		PinnedMessageID: s.PinnedMessageID,
		StartedAt:       s.IncidentStartedAt,
	}
}

// SetIncident stores the incident portion of the record.
func (s *Status) SetIncident(inc *incident.Incident) {
	if inc == nil {
		inc = &incident.Incident{Phase: incident.PhaseNone}
	}

	s.IncidentPhase = inc.Phase
	s.PinnedMessageID = inc.PinnedMessageID
	s.IncidentStartedAt = inc.StartedAt
}

// Repository defines persistence operations for the status record.
type Repository interface {
	Load(ctx context.Context) (*Status, error)
	Save(ctx context.Context, status *Status) error
}

// FileRepository persists the status record to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the status file.
	path string
	// mu protects concurrent access to the status file.
	mu sync.Mutex
}

// ErrNotFound is returned when the status file does not exist yet.
var ErrNotFound = errors.New("status not found")

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the status record from disk.
func (r *FileRepository) Load(_ context.Context) (*Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read status file: %w", err)
	}

	var status Status
	if err = yaml.Unmarshal(contents, &status); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}

	if status.IncidentPhase == "" {
		status.IncidentPhase = incident.PhaseNone
	}

	return &status, nil
}

// Save writes the status record to disk, stamping UpdatedAt.
func (r *FileRepository) Save(_ context.Context, status *Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	status.UpdatedAt = time.Now().UTC()

	data, err := yaml.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	return nil
}
