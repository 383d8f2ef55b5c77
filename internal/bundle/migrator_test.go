package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodewarden/nodewarden/internal/version"
)

// readEnv loads the env file of a bundle directory into a map.
func readEnv(t *testing.T, dir string) map[string]string {
	t.Helper()

	vars, _, err := readEnvFile(filepath.Join(dir, envFilename))
	require.NoError(t, err)

	return vars
}

// TestMigrateConfig copies identity and proxy auth state into the new bundle.
func TestMigrateConfig(t *testing.T) {
	t.Parallel()

	fromDir := t.TempDir()
	toDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(fromDir, envFilename),
		[]byte("NODE_PUBLIC_KEY=01abc\nNETWORK=mainnet\n"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(fromDir, proxyAuthDir), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(fromDir, proxyAuthDir, "htpasswd"),
		[]byte("operator:secret"), 0o600))

	require.NoError(t, NewMigrator().MigrateConfig(fromDir, toDir))

	vars := readEnv(t, toDir)
	require.Equal(t, "01abc", vars["NODE_PUBLIC_KEY"])
	require.Equal(t, "mainnet", vars["NETWORK"])

	contents, err := os.ReadFile(filepath.Join(toDir, proxyAuthDir, "htpasswd"))
	require.NoError(t, err)
	require.Equal(t, "operator:secret", string(contents))
}

// TestMigrateConfig_MissingEnvIsFatal refuses to continue without the source env file.
func TestMigrateConfig_MissingEnvIsFatal(t *testing.T) {
	t.Parallel()

	err := NewMigrator().MigrateConfig(t.TempDir(), t.TempDir())
	require.ErrorIs(t, err, ErrMissingEnvFile)
}

// TestPatchConfig rewrites version, auth URL, overlay reference and branding.
func TestPatchConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFilename),
		[]byte("NODE_PUBLIC_KEY=01abc\nNODE_VERSION=0.5.9\nAUTH_URL=\n"), 0o600))

	require.NoError(t, NewMigrator().PatchConfig(dir, version.MustParse("0.5.10")))

	vars := readEnv(t, dir)
	require.Equal(t, "0.5.10", vars[versionVariable])
	require.Equal(t, authURLPlaceholder, vars[authURLVariable])
	require.Contains(t, vars[composeFileVariable], authBypassOverlay)

	for name := range brandingVariables {
		require.NotEmpty(t, vars[name], name)
	}

	// Untouched identity survives.
	require.Equal(t, "01abc", vars["NODE_PUBLIC_KEY"])
}

// TestPatchConfig_Idempotent produces identical output when applied twice.
func TestPatchConfig_Idempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, envFilename)
	require.NoError(t, os.WriteFile(path,
		[]byte("NODE_PUBLIC_KEY=01abc\nCOMPOSE_FILE=docker-compose.yml\n"), 0o600))

	migrator := NewMigrator()
	v := version.MustParse("0.5.10")

	require.NoError(t, migrator.PatchConfig(dir, v))

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, migrator.PatchConfig(dir, v))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))

	// The overlay is referenced exactly once.
	vars := readEnv(t, dir)
	require.Equal(t, 1, strings.Count(vars[composeFileVariable], authBypassOverlay))
}

// TestPatchConfig_PreservesCustomAuthURL never overwrites a configured value.
func TestPatchConfig_PreservesCustomAuthURL(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, envFilename),
		[]byte("AUTH_URL=https://sso.example.net/auth\n"), 0o600))

	require.NoError(t, NewMigrator().PatchConfig(dir, version.MustParse("0.5.10")))

	vars := readEnv(t, dir)
	require.Equal(t, "https://sso.example.net/auth", vars[authURLVariable])
}
