package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings shared by the warden binaries. It is loaded once
// at startup and passed explicitly; nothing reads it through a global.
type Config struct {
	// Environment selects which endpoint list the version source probes.
	Environment string `yaml:"environment"`
	// VersionEndpoints maps environment names to ordered lists of URLs
	// answering the current network version.
	VersionEndpoints map[string][]string `yaml:"version_endpoints"`
	// CatalogURL is the last-resort release catalog probed when every
	// environment endpoint fails.
	CatalogURL string `yaml:"catalog_url"`
	// ReleaseURLTemplate is the artifact location pattern; %s is replaced
	// with the release version.
	ReleaseURLTemplate string `yaml:"release_url_template"`

	// BundleRoot is the directory holding one unpacked bundle per version.
	BundleRoot string `yaml:"bundle_root"`
	// CurrentPointerFile stores the version name of the live bundle.
	CurrentPointerFile string `yaml:"current_pointer_file"`
	// StatusFile stores the persisted status record (version + incident).
	StatusFile string `yaml:"status_file"`
	// LockFile guards against concurrent upgrade runs.
	LockFile string `yaml:"lock_file"`

	// ComposeProject is the compose project name of the managed node.
	ComposeProject string `yaml:"compose_project"`
	// NodeServices are the managed process names, in start order.
	NodeServices []string `yaml:"node_services"`
	// IdentityParams are environment overrides (validator identity, network
	// name) applied on every start so that a new version keeps the old
	// identity.
	IdentityParams map[string]string `yaml:"identity_params"`

	// TelegramToken authenticates the notifier bot. Empty disables notifications.
	TelegramToken string `yaml:"telegram_token"`
	// TelegramChatID is the chat receiving operator notifications.
	TelegramChatID string `yaml:"telegram_chat_id"`

	// SyncLagWarn is the ingestion lag above which a warning issue fires.
	SyncLagWarn time.Duration `yaml:"sync_lag_warn"`
	// SyncLagCritical is the ingestion lag above which a critical issue fires.
	SyncLagCritical time.Duration `yaml:"sync_lag_critical"`
	// FailureThreshold is the monotonic failure-counter limit.
	FailureThreshold int `yaml:"failure_threshold"`
	// DiskFloorBytes is the minimal acceptable free space on the data disk.
	DiskFloorBytes uint64 `yaml:"disk_floor_bytes"`
	// DataDir is the filesystem checked for free space. Defaults to BundleRoot.
	DataDir string `yaml:"data_dir"`
	// FailureCounterFile is the counter the node tooling increments on
	// failed retries. Empty disables the check.
	FailureCounterFile string `yaml:"failure_counter_file"`
	// AutoRestart lets the probe restart a crashed process before reporting.
	AutoRestart bool `yaml:"auto_restart"`

	// VerifyInterval is the pause between post-cutover health polls.
	VerifyInterval time.Duration `yaml:"verify_interval"`
	// VerifyAttempts bounds the post-cutover health polls.
	VerifyAttempts int `yaml:"verify_attempts"`
	// MinReleaseAge gates the automatic path: candidates younger than this
	// are skipped until they mature.
	MinReleaseAge time.Duration `yaml:"min_release_age"`
	// CallTimeout is the per-call timeout for network and runtime operations.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// BackupCommand is run synchronously before automatic upgrades.
	// Empty skips the backup step.
	BackupCommand []string `yaml:"backup_command"`
	// MetricsAddress enables the Prometheus listener on the monitor when set.
	MetricsAddress string `yaml:"metrics_address"`
}

const (
	// DefaultConfigFilename is the default filename for warden settings.
	DefaultConfigFilename = "nodewarden.yaml"

	// DefaultStatusFilename is the default filename for the status record.
	DefaultStatusFilename = "nodewarden-status.yaml"

	// DefaultLockFilename is the default filename for the run lock.
	DefaultLockFilename = "nodewarden.lock"

	// DefaultCurrentPointerFilename names the live-bundle pointer file.
	DefaultCurrentPointerFilename = "current"

	// DefaultCallTimeout is the default duration for external calls.
	DefaultCallTimeout = 10 * time.Second

	// DefaultSyncLagWarn is the default warning threshold for ingestion lag.
	DefaultSyncLagWarn = 60 * time.Second

	// DefaultSyncLagCritical is the default critical threshold for ingestion lag.
	DefaultSyncLagCritical = 120 * time.Second

	// DefaultVerifyInterval is the default pause between health polls after cutover.
	DefaultVerifyInterval = 5 * time.Second

	// DefaultVerifyAttempts is the default number of health polls after cutover.
	DefaultVerifyAttempts = 12

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errEnvironmentRequired is returned when no environment is selected.
	errEnvironmentRequired = errors.New("environment must be provided")
	// errNoEndpoints is returned when the selected environment has no version endpoints.
	errNoEndpoints = errors.New("no version endpoints for environment")
	// errBundleRootRequired is returned when the bundle root directory is missing.
	errBundleRootRequired = errors.New("bundle root must be provided")
	// errNoServices is returned when no managed services are configured.
	errNoServices = errors.New("node services must be provided")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and applies defaults.
//
//nolint:cyclop // Field-by-field defaulting is straightforward and readable.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Environment == "" {
		return errEnvironmentRequired
	}

	endpoints := cfg.VersionEndpoints[cfg.Environment]
	if len(endpoints) == 0 {
		return fmt.Errorf("%w: %s", errNoEndpoints, cfg.Environment)
	}

	for _, endpoint := range endpoints {
		if _, err := url.ParseRequestURI(endpoint); err != nil {
			return fmt.Errorf("invalid version endpoint %q: %w", endpoint, err)
		}
	}

	if cfg.CatalogURL != "" {
		if _, err := url.ParseRequestURI(cfg.CatalogURL); err != nil {
			return fmt.Errorf("invalid catalog URL: %w", err)
		}
	}

	if cfg.BundleRoot == "" {
		return errBundleRootRequired
	}

	if len(cfg.NodeServices) == 0 {
		return errNoServices
	}

	if cfg.DataDir == "" {
		cfg.DataDir = cfg.BundleRoot
	}

	if cfg.CurrentPointerFile == "" {
		cfg.CurrentPointerFile = filepath.Join(cfg.BundleRoot, DefaultCurrentPointerFilename)
	}

	if cfg.StatusFile == "" {
		cfg.StatusFile = DefaultStatusFilename
	}

	if cfg.LockFile == "" {
		cfg.LockFile = DefaultLockFilename
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	if cfg.SyncLagWarn <= 0 {
		cfg.SyncLagWarn = DefaultSyncLagWarn
	}

	if cfg.SyncLagCritical <= cfg.SyncLagWarn {
		cfg.SyncLagCritical = DefaultSyncLagCritical
	}

	if cfg.VerifyInterval <= 0 {
		cfg.VerifyInterval = DefaultVerifyInterval
	}

	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = DefaultVerifyAttempts
	}

	return nil
}

// Endpoints returns the ordered version endpoints for the selected environment.
func (c *Config) Endpoints() []string {
	return c.VersionEndpoints[c.Environment]
}
