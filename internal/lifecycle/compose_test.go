package lifecycle

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestComposeArgs pins the compose invocation shape per bundle version.
func TestComposeArgs(t *testing.T) {
	t.Parallel()

	c := NewCompose("/var/lib/warden/bundles", "casper", 5*time.Second)

	args := c.composeArgs("0.5.10", "up", "--detach")
	require.Equal(t, []string{
		"compose",
		"--project-name", "casper",
		"--file", filepath.Join("/var/lib/warden/bundles", "0.5.10", composeFilename),
		"up", "--detach",
	}, args)
}

// TestContainerName pins the compose default container naming.
func TestContainerName(t *testing.T) {
	t.Parallel()

	c := NewCompose("/tmp", "casper", time.Second)
	require.Equal(t, "casper-node-1", c.containerName("node"))
}
