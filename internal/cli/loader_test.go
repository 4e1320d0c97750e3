package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textilio/intake/internal/order"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConversation(t *testing.T) {
	path := writeFile(t, "conv.yaml", `
messages:
  - role: user
    content: Vreau 30 de tricouri rosii
  - id: q-sizes
    role: assistant
    content: Ce marimi doriti?
  - role: user
    content: 10 M si 20 L
`)

	msgs, err := LoadConversation(path)
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	// Positional ids are assigned only where missing.
	assert.Equal(t, "msg-001", msgs[0].ID)
	assert.Equal(t, "q-sizes", msgs[1].ID)
	assert.Equal(t, "msg-003", msgs[2].ID)
	assert.Equal(t, order.RoleAssistant, msgs[1].Role)
}

func TestLoadConversation_UnknownRole(t *testing.T) {
	path := writeFile(t, "conv.yaml", `
messages:
  - role: system
    content: hello
`)

	_, err := LoadConversation(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestLoadConversation_EmptyContent(t *testing.T) {
	path := writeFile(t, "conv.yaml", `
messages:
  - role: user
    content: ""
`)

	_, err := LoadConversation(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty content")
}

func TestLoadConversation_NoMessages(t *testing.T) {
	path := writeFile(t, "conv.yaml", "messages: []\n")

	_, err := LoadConversation(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no messages")
}

func TestLoadConversation_MissingFile(t *testing.T) {
	_, err := LoadConversation(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestCaller(t *testing.T) {
	_, err := caller(&RootOptions{})
	require.Error(t, err)

	_, err = caller(&RootOptions{AsUser: "a@example.com", AsRole: "root"})
	require.Error(t, err)

	provider, err := caller(&RootOptions{AsUser: "a@example.com", AsRole: "admin"})
	require.NoError(t, err)
	user, err := provider.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())
}
