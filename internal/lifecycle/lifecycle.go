package lifecycle

import (
	"context"

	"github.com/nodewarden/nodewarden/internal/version"
)

// Status is the observed runtime state of one managed process.
type Status struct {
	// Running reports whether the process is up.
	Running bool
	// Healthy reports whether the process passes its own health check.
	// A running process without a health check counts as healthy.
	Healthy bool
}

// Lifecycle drives the managed node processes. Implementations talk to a real
// container runtime; the orchestrator and probe only ever see this interface
// so their control flow is testable with fakes.
type Lifecycle interface {
	// Start brings up every process of the given bundle version with the
	// provided identity parameters.
	Start(ctx context.Context, versionID string, identity map[string]string) error
	// Stop brings down the processes of the given bundle version. Best-effort.
	Stop(ctx context.Context, versionID string) error
	// Status reports the runtime state of one named process.
	Status(ctx context.Context, service string) (Status, error)
	// ImageVersion introspects the running image tag of one named process.
	// ok is false when the process is not running or the tag is unparseable.
	ImageVersion(ctx context.Context, service string) (version.V, bool)
	// Pull fetches the runtime images of the given bundle version without
	// touching running processes.
	Pull(ctx context.Context, versionID string) error
	// Restart bounces one named process in place.
	Restart(ctx context.Context, service string) error
}
