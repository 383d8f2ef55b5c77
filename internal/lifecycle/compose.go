package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/nodewarden/nodewarden/internal/logger"
	"github.com/nodewarden/nodewarden/internal/version"
)

const (
	// composeFilename is the process definition inside every bundle.
	composeFilename = "docker-compose.yml"

	// healthyStatus is the runtime's health probe verdict for a passing check.
	healthyStatus = "healthy"

	// noHealthCheck marks a container without a configured health check.
	noHealthCheck = "none"
)

// Compose drives the node processes through the docker compose CLI.
// Every call shells out with its own timeout; no state is kept between calls.
type Compose struct {
	// bundleRoot is the directory holding one unpacked bundle per version.
	bundleRoot string
	// project is the compose project name shared by all versions, so that
	// starting a new bundle replaces rather than duplicates the process set.
	project string
	// callTimeout bounds each runtime invocation.
	callTimeout time.Duration
}

// NewCompose creates a runtime adapter over the docker compose CLI.
func NewCompose(bundleRoot, project string, callTimeout time.Duration) *Compose {
	return &Compose{
		bundleRoot:  bundleRoot,
		project:     project,
		callTimeout: callTimeout,
	}
}

// composeArgs assembles the base compose invocation for a bundle version.
func (c *Compose) composeArgs(versionID string, rest ...string) []string {
	args := []string{
		"compose",
		"--project-name", c.project,
		"--file", filepath.Join(c.bundleRoot, versionID, composeFilename),
	}

	return append(args, rest...)
}

// run executes one docker invocation with the per-call timeout and the
// provided extra environment.
func (c *Compose) run(ctx context.Context, env map[string]string, args ...string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, "docker", args...)
	cmd.Env = os.Environ()

	for key, value := range env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("docker %s: %w: %s",
			strings.Join(args[:min(len(args), 2)], " "), err, strings.TrimSpace(string(output)))
	}

	return string(output), nil
}

// Start brings up the bundle's process set with the node identity applied.
func (c *Compose) Start(ctx context.Context, versionID string, identity map[string]string) error {
	logger.InfoKV(ctx, "Starting node processes", "version", versionID)

	_, err := c.run(ctx, identity, c.composeArgs(versionID, "up", "--detach")...)
	if err != nil {
		return fmt.Errorf("start version %s: %w", versionID, err)
	}

	return nil
}

// Stop brings down the bundle's process set. Best-effort: callers treat a
// failure here as a warning, not a terminal condition.
func (c *Compose) Stop(ctx context.Context, versionID string) error {
	logger.InfoKV(ctx, "Stopping node processes", "version", versionID)

	_, err := c.run(ctx, nil, c.composeArgs(versionID, "down")...)
	if err != nil {
		return fmt.Errorf("stop version %s: %w", versionID, err)
	}

	return nil
}

// Status inspects the runtime state of one named process.
func (c *Compose) Status(ctx context.Context, service string) (Status, error) {
	output, err := c.run(ctx, nil,
		"inspect",
		"--format", "{{.State.Running}} {{if .State.Health}}{{.State.Health.Status}}{{else}}none{{end}}",
		c.containerName(service),
	)
	if err != nil {
		return Status{}, fmt.Errorf("inspect %s: %w", service, err)
	}

	fields := strings.Fields(output)
	if len(fields) != 2 { //nolint:mnd // Running flag plus health status.
		return Status{}, fmt.Errorf("inspect %s: unexpected output %q", service, strings.TrimSpace(output))
	}

	running := fields[0] == "true"

	return Status{
		Running: running,
		Healthy: running && (fields[1] == healthyStatus || fields[1] == noHealthCheck),
	}, nil
}

// ImageVersion parses the release version out of the running image tag.
func (c *Compose) ImageVersion(ctx context.Context, service string) (version.V, bool) {
	output, err := c.run(ctx, nil,
		"inspect", "--format", "{{.Config.Image}}", c.containerName(service))
	if err != nil {
		return version.V{}, false
	}

	image := strings.TrimSpace(output)

	tagIndex := strings.LastIndex(image, ":")
	if tagIndex < 0 {
		return version.V{}, false
	}

	v, err := version.Parse(image[tagIndex+1:])
	if err != nil {
		return version.V{}, false
	}

	return v, true
}

// Pull fetches the bundle's images while the old version keeps serving.
func (c *Compose) Pull(ctx context.Context, versionID string) error {
	logger.InfoKV(ctx, "Pre-pulling images", "version", versionID)

	_, err := c.run(ctx, nil, c.composeArgs(versionID, "pull", "--quiet")...)
	if err != nil {
		return fmt.Errorf("pull version %s: %w", versionID, err)
	}

	return nil
}

// Restart bounces one named process in place.
func (c *Compose) Restart(ctx context.Context, service string) error {
	logger.InfoKV(ctx, "Restarting process", "service", service)

	_, err := c.run(ctx, nil, "restart", c.containerName(service))
	if err != nil {
		return fmt.Errorf("restart %s: %w", service, err)
	}

	return nil
}

// containerName maps a compose service to its default container name.
func (c *Compose) containerName(service string) string {
	return c.project + "-" + service + "-1"
}
