package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with the given args and returns its
// combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestParse_MessagesFlag(t *testing.T) {
	out, err := runCLI(t,
		"parse",
		"-m", "Vreau 30 de tricouri rosii",
		"-m", "10 M si 20 L",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Product: tricouri")
	assert.Contains(t, out, "✓ Roșu (30/30)")
	assert.Contains(t, out, "L: 20")
	assert.Contains(t, out, "M: 10")
}

func TestParse_ConversationFile(t *testing.T) {
	path := writeFile(t, "conv.yaml", `
messages:
  - role: user
    content: Vreau 30 de tricouri rosii
  - role: assistant
    content: Cate bucati M doriti?
  - role: user
    content: "10"
`)

	out, err := runCLI(t, "parse", path)
	require.NoError(t, err)

	// The bare number answers the size question.
	assert.Contains(t, out, "M: 10")
	assert.Contains(t, out, "remaining: 20")
}

func TestParse_JSONFormat(t *testing.T) {
	out, err := runCLI(t,
		"parse", "--format", "json",
		"-m", "Vreau 30 de tricouri rosii",
	)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Messages int `json:"messages"`
			State    struct {
				ProductType string `json:"product_type"`
			} `json:"state"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Messages)
	assert.Equal(t, "tricouri", resp.Data.State.ProductType)
}

func TestParse_ContradictionFails(t *testing.T) {
	out, err := runCLI(t,
		"parse",
		"-m", "Vreau 30 de tricouri rosii",
		"-m", "30 M",
		"-m", "restul L",
	)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Parse failed")
}

func TestParse_NoInput(t *testing.T) {
	_, err := runCLI(t, "parse")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParse_FileAndFlagsRejected(t *testing.T) {
	path := writeFile(t, "conv.yaml", `
messages:
  - role: user
    content: 10 M
`)

	_, err := runCLI(t, "parse", path, "-m", "20 L")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
