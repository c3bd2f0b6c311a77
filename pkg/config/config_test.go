package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
models:
  data_model: gpt-4
  base_model: gpt-3.5-turbo
  definitions:
    gpt-4:
      provider: openai
      model_name: gpt-4
      api_key: ${TEST_OPENAI_KEY}
    gpt-3.5-turbo:
      provider: openai
      model_name: gpt-3.5-turbo
      api_key: ${TEST_OPENAI_KEY}
task:
  description: "A model that translates commands into robot SDK calls."
`

func TestParse_AppliesDefaults(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Task.GetTemperature())
	assert.Equal(t, 100, cfg.Task.NumberOfExamples)
	assert.Equal(t, 8, cfg.Task.MaxPriorExamples)
	assert.Equal(t, 1000, cfg.Task.ExampleMaxTokens)
	assert.Equal(t, 500, cfg.Task.SystemMaxTokens)

	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 4*time.Second, cfg.Retry.MinWait)
	assert.Equal(t, 70*time.Second, cfg.Retry.MaxWait)
	assert.Equal(t, 1.0, cfg.Retry.Multiplier)

	assert.Equal(t, 1, cfg.Generation.Workers)
	assert.Equal(t, 10*time.Second, cfg.Training.PollInterval)
	assert.Equal(t, 10, cfg.Training.EventsLimit)
	assert.Equal(t, "training_examples.jsonl", cfg.Files.Dataset)
	assert.Equal(t, "model_name.txt", cfg.Files.ModelName)
	assert.Equal(t, 5, cfg.Tester.NumTests)
}

func TestParse_ZeroTemperatureKept(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	cfg, err := Parse([]byte(minimalYAML + "  temperature: 0\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.Task.Temperature)
	assert.Equal(t, 0.0, cfg.Task.GetTemperature())
}

func TestParse_TemperatureOutOfRange(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	_, err := Parse([]byte(minimalYAML + "  temperature: 2.5\n"))
	assert.ErrorContains(t, err, "task.temperature")
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-from-env")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "sk-from-env", cfg.GetDataModel().APIKey)
	assert.Equal(t, "gpt-3.5-turbo", cfg.GetBaseModel().ModelName)
}

func TestParse_Durations(t *testing.T) {
	raw := minimalYAML + `
retry:
  attempts: 5
  min_wait: 1s
  max_wait: 30s
training:
  poll_interval: 2s
  timeout: 45m
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.MinWait)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxWait)
	assert.Equal(t, 2*time.Second, cfg.Training.PollInterval)
	assert.Equal(t, 45*time.Minute, cfg.Training.Timeout)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{
			name: "missing description",
			raw: `
models:
  data_model: m
  base_model: m
  definitions:
    m: {model_name: m}
`,
			wantErr: "task.description is required",
		},
		{
			name: "undefined data model",
			raw: `
models:
  data_model: missing
  base_model: m
  definitions:
    m: {model_name: m}
task:
  description: x
`,
			wantErr: "data_model 'missing' is not defined",
		},
		{
			name:    "min wait above max wait",
			raw:     minimalYAML + "retry:\n  min_wait: 90s\n  max_wait: 10s\n",
			wantErr: "exceeds retry.max_wait",
		},
		{
			name:    "s3 enabled without bucket",
			raw:     minimalYAML + "s3:\n  enabled: true\n  endpoint: localhost:9000\n",
			wantErr: "s3.bucket is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4", cfg.Models.DataModel)
}
