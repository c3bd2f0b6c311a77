package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrDefault_BuiltinExamplePrompt(t *testing.T) {
	pf, err := LoadOrDefault("", ExampleGenerator)
	require.NoError(t, err)
	assert.Zero(t, pf.Config.MaxTokens, "built-in prompts defer to config.yaml")

	msgs, err := pf.RenderMessages(TaskData{Task: "A robotics SDK translator", Delimiter: "-----------"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "`A robotics SDK translator`")
	assert.Equal(t, 4, strings.Count(msgs[0].Content, "-----------"))
	assert.Contains(t, msgs[0].Content, "Only one prompt/response pair should be generated per turn.")
}

func TestLoadOrDefault_BuiltinSystemPrompt(t *testing.T) {
	pf, err := LoadOrDefault(t.TempDir(), SystemGenerator)
	require.NoError(t, err)

	msgs, err := pf.RenderMessages(TaskData{Task: "Translate commands"})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "Translate commands", msgs[1].Content)
}

func TestLoadOrDefault_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	custom := `
config:
  temperature: 0.9
messages:
  - role: system
    content: "Custom generator for {{.Task}}"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ExampleGenerator+".yaml"), []byte(custom), 0644))

	pf, err := LoadOrDefault(dir, ExampleGenerator)
	require.NoError(t, err)
	require.NotNil(t, pf.Config.Temperature)
	assert.Equal(t, 0.9, *pf.Config.Temperature)

	msgs, err := pf.RenderMessages(TaskData{Task: "X"})
	require.NoError(t, err)
	assert.Equal(t, "Custom generator for X", msgs[0].Content)
}

func TestLoadOrDefault_BrokenFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SystemGenerator+".yaml"), []byte("messages: [oops"), 0644))

	_, err := LoadOrDefault(dir, SystemGenerator)
	assert.ErrorContains(t, err, "yaml parse error")
}

func TestLoadOrDefault_Unknown(t *testing.T) {
	_, err := LoadOrDefault("", "nope")
	assert.ErrorContains(t, err, "no built-in prompt")
}

func TestRenderMessages_MissingKey(t *testing.T) {
	pf, err := Parse([]byte("messages:\n  - role: user\n    content: \"{{.Missing}}\"\n"))
	require.NoError(t, err)

	_, err = pf.RenderMessages(map[string]string{"Task": "x"})
	assert.ErrorContains(t, err, "template execute error")
}

func TestParse_NoMessages(t *testing.T) {
	_, err := Parse([]byte("config:\n  max_tokens: 5\n"))
	assert.ErrorContains(t, err, "no messages")
}
