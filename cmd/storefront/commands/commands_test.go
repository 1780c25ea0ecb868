package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/core/internal/domain/entities"
)

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func withStoreFile(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shoppingcart.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("STORAGE_DRIVER", "file")
	t.Setenv("STORAGE_PATH", path)
}

func TestCartList(t *testing.T) {
	withStoreFile(t, "42,1,2,0\n7,0,0,5\n")

	out, err := runCommand(t, NewCartCommand(), "list")
	require.NoError(t, err)

	assert.Contains(t, out, "COMPUTERS")
	assert.Regexp(t, `42\s+1\s+2\s+0`, out)
	assert.Regexp(t, `7\s+0\s+0\s+5`, out)
	assert.Contains(t, out, "2 visitor(s)")
	assert.Less(t, bytes.Index([]byte(out), []byte("42 ")), bytes.Index([]byte(out), []byte("7 ")))
}

func TestCartShow(t *testing.T) {
	withStoreFile(t, "42,1,2,0\n")

	out, err := runCommand(t, NewCartCommand(), "show", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Phones:    2")

	_, err = runCommand(t, NewCartCommand(), "show", "99")
	assert.ErrorIs(t, err, entities.ErrVisitorNotFound)
}

func TestCartListCorruptStore(t *testing.T) {
	withStoreFile(t, "42,1,two,0\n")

	_, err := runCommand(t, NewCartCommand(), "list")
	assert.ErrorIs(t, err, entities.ErrCorruptStore)
}

func TestVersion(t *testing.T) {
	out, err := runCommand(t, NewVersionCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Storefront dev")
}
