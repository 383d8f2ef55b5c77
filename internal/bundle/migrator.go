package bundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nodewarden/nodewarden/internal/config"
	"github.com/nodewarden/nodewarden/internal/version"
)

// ErrMissingEnvFile is returned when the source bundle has no environment
// file to migrate. Without it the new version would lose the node identity.
var ErrMissingEnvFile = errors.New("source environment file missing")

const (
	// envFilename carries the node identity and deployment variables.
	envFilename = ".env"

	// proxyAuthDir holds the reverse-proxy auth artifacts carried across versions.
	proxyAuthDir = "proxy/auth"

	// versionVariable is the env var naming the release the bundle runs.
	versionVariable = "NODE_VERSION"

	// authURLVariable must never be empty or the proxy rejects every request.
	authURLVariable = "AUTH_URL"

	// authURLPlaceholder is substituted when no auth URL is configured.
	authURLPlaceholder = "http://127.0.0.1:9090/auth"

	// composeFileVariable lists the compose files the runtime loads.
	composeFileVariable = "COMPOSE_FILE"

	// authBypassOverlay must be referenced so local tooling can reach the
	// node without going through the proxy.
	authBypassOverlay = "docker-compose.auth-bypass.yml"
)

// brandingVariables must all exist or the downstream UI stalls on boot.
//
//nolint:gochecknoglobals // Fixed variable set, read-only.
var brandingVariables = map[string]string{
	"UI_BRAND_NAME":      "NodeWarden",
	"UI_BRAND_LOGO":      "/assets/logo.svg",
	"UI_BRAND_ACCENT":    "#1f6feb",
	"UI_BRAND_SUPPORT":   "https://github.com/nodewarden/nodewarden/issues",
	"UI_BRAND_NETWORK":   "mainnet",
	"UI_BRAND_SHOW_LAG":  "true",
	"UI_BRAND_SHOW_PEER": "true",
}

// Migrator copies and patches identity and auth state from one bundle into
// the next so a freshly extracted version starts with the old node identity.
type Migrator struct{}

// NewMigrator creates a config migrator.
func NewMigrator() *Migrator {
	return &Migrator{}
}

// MigrateConfig copies the environment file and the reverse-proxy auth
// artifacts from the old bundle directory into the new one. A missing source
// environment file is fatal: proceeding would cut over to an identity-less node.
func (m *Migrator) MigrateConfig(fromDir, toDir string) error {
	source := filepath.Join(fromDir, envFilename)
	if _, err := os.Stat(source); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingEnvFile, source)
	}

	if err := copyFile(source, filepath.Join(toDir, envFilename)); err != nil {
		return fmt.Errorf("migrate environment file: %w", err)
	}

	authSource := filepath.Join(fromDir, proxyAuthDir)
	if _, err := os.Stat(authSource); err != nil {
		// Nothing to carry over; fresh deployments have no auth artifacts yet.
		return nil
	}

	if err := copyDir(authSource, filepath.Join(toDir, proxyAuthDir)); err != nil {
		return fmt.Errorf("migrate proxy auth artifacts: %w", err)
	}

	return nil
}

// PatchConfig rewrites the migrated environment file for the new version:
// the version tag, a non-empty auth URL, the auth-bypass overlay reference
// and the fixed branding-variable set. Patch is idempotent.
func (m *Migrator) PatchConfig(toDir string, v version.V) error {
	path := filepath.Join(toDir, envFilename)

	vars, order, err := readEnvFile(path)
	if err != nil {
		return err
	}

	order = setVar(vars, order, versionVariable, v.String())

	if strings.TrimSpace(vars[authURLVariable]) == "" {
		order = setVar(vars, order, authURLVariable, authURLPlaceholder)
	}

	composeFiles := vars[composeFileVariable]
	if composeFiles == "" {
		composeFiles = "docker-compose.yml"
	}

	if !strings.Contains(composeFiles, authBypassOverlay) {
		composeFiles += ":" + authBypassOverlay
	}

	order = setVar(vars, order, composeFileVariable, composeFiles)

	for name, value := range brandingVariables {
		if _, exists := vars[name]; !exists {
			order = setVar(vars, order, name, value)
		}
	}

	return writeEnvFile(path, vars, order)
}

// readEnvFile parses KEY=VALUE lines preserving declaration order.
func readEnvFile(path string) (map[string]string, []string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("read environment file: %w", err)
	}

	vars := make(map[string]string)
	order := make([]string, 0)

	for _, line := range strings.Split(string(contents), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, found := strings.Cut(trimmed, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		if _, exists := vars[key]; !exists {
			order = append(order, key)
		}

		vars[key] = strings.TrimSpace(value)
	}

	return vars, order, nil
}

// setVar assigns a variable, appending it to the order when new.
func setVar(vars map[string]string, order []string, key, value string) []string {
	if _, exists := vars[key]; !exists {
		order = append(order, key)
	}

	vars[key] = value

	return order
}

// writeEnvFile renders the variables back in declaration order.
func writeEnvFile(path string, vars map[string]string, order []string) error {
	builder := strings.Builder{}
	for _, key := range order {
		builder.WriteString(key)
		builder.WriteString("=")
		builder.WriteString(vars[key])
		builder.WriteString("\n")
	}

	if err := os.WriteFile(filepath.Clean(path), []byte(builder.String()), config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write environment file: %w", err)
	}

	return nil
}

// copyFile copies one regular file preserving nothing but contents.
func copyFile(source, target string) error {
	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if err = os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}

	out, err := os.OpenFile(filepath.Clean(target),
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, config.DefaultFilePermissions)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// copyDir recursively copies regular files from source into target.
func copyDir(source, target string) error {
	return filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relative, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}

		if info.IsDir() {
			return os.MkdirAll(filepath.Join(target, relative), 0o750)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return copyFile(path, filepath.Join(target, relative))
	})
}
