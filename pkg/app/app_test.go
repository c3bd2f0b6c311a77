package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/ledger"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/llm/llmtest"
	"github.com/ilkoid/poncho-tune/pkg/s3storage"
	"github.com/ilkoid/poncho-tune/pkg/trainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
models:
  data_model: gpt-4
  base_model: gpt-3.5-turbo
  definitions:
    gpt-4:
      provider: openai
      model_name: gpt-4
      api_key: sk-test
    gpt-3.5-turbo:
      provider: openai
      model_name: gpt-3.5-turbo
      api_key: sk-test
task:
  description: "A model that translates natural language commands into robot SDK calls."
  number_of_examples: 3
retry:
  attempts: 1
tester:
  color_scheme: plain
`

const systemMessage = "Given a command, you will output robot SDK calls."

// memStore - ArtifactStore в памяти.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

var _ s3storage.ArtifactStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Upload(ctx context.Context, localPath, name string) (s3storage.StoredObject, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return s3storage.StoredObject{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = data
	return s3storage.StoredObject{Key: "poncho-tune/" + name, Size: int64(len(data))}, nil
}

func (m *memStore) DownloadToFile(ctx context.Context, name, localPath string) error {
	m.mu.Lock()
	data, ok := m.objects[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("no such key %s", name)
	}
	return os.WriteFile(localPath, data, 0644)
}

func (m *memStore) List(ctx context.Context) ([]s3storage.StoredObject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []s3storage.StoredObject
	for name, data := range m.objects {
		out = append(out, s3storage.StoredObject{Key: name, Size: int64(len(data))})
	}
	return out, nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()

	cfg, err := config.Parse([]byte(testYAML))
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Files.Dataset = filepath.Join(dir, "training_examples.jsonl")
	cfg.Files.ModelName = filepath.Join(dir, "model_name.txt")
	cfg.Generation.RateLimit = 0
	cfg.Training.PollInterval = time.Millisecond
	cfg.Training.Timeout = 10 * time.Second
	return cfg
}

func testComponents(t *testing.T, cfg *config.AppConfig) *Components {
	t.Helper()

	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	c := &Components{
		Config: cfg,
		Store:  newMemStore(),
		Ledger: l,
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func exampleProvider() *llmtest.Provider {
	var n int32
	provider := llmtest.NewProvider()
	provider.Fallback = func(call llmtest.Call) (string, error) {
		last := call.Messages[len(call.Messages)-1]
		if len(call.Messages) == 2 && last.Role == llm.RoleUser {
			return systemMessage, nil
		}
		i := atomic.AddInt32(&n, 1)
		d := dataset.Delimiter
		return fmt.Sprintf("prompt\n%s\ncommand %d\n%s\n\nresponse\n%s\n['call_%d()']\n%s", d, i, d, d, i, d), nil
	}
	return provider
}

func writeDataset(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, dataset.WriteJSONL(path, []dataset.Record{
		dataset.NewRecord(systemMessage, dataset.Example{Prompt: "go to dock", Response: "['go(dock)']"}),
		dataset.NewRecord(systemMessage, dataset.Example{Prompt: "report battery", Response: "['battery()']"}),
	}))
}

func TestGenerate(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	c.DataLLM = exampleProvider()

	var last int
	res, err := Generate(context.Background(), c, 0, func(done, total int) { last = done })
	require.NoError(t, err)
	assert.Equal(t, 3, last)
	assert.Equal(t, 3, res.Report.Written)

	records, err := dataset.ReadJSONL(cfg.Files.Dataset)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	run, err := c.Ledger.LatestGeneration(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, run.Requested)
	assert.Equal(t, res.Report, run.Report)
	assert.Equal(t, systemMessage, run.SystemMessage)
	assert.Equal(t, "gpt-4", run.DataModel)
	assert.Empty(t, run.Error)

	store := c.Store.(*memStore)
	assert.Contains(t, store.objects, "training_examples.jsonl")
}

func TestGenerate_FailureRecorded(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	c.DataLLM = llmtest.NewProvider(llmtest.Response{Err: &llm.APIError{StatusCode: 401, Message: "bad key"}})

	_, err := Generate(context.Background(), c, 2, nil)
	require.Error(t, err)

	run, err := c.Ledger.LatestGeneration(context.Background())
	require.NoError(t, err)
	assert.Contains(t, run.Error, "authentication_failed")
	assert.NoFileExists(t, cfg.Files.Dataset)
	assert.Empty(t, c.Store.(*memStore).objects)
}

func TestTrain(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	writeDataset(t, cfg.Files.Dataset)

	ft := &llmtest.FineTuner{
		FileID:   "file-abc",
		JobID:    "ftjob-1",
		Statuses: []llm.JobStatus{llm.JobRunning, llm.JobRunning, llm.JobSucceeded},
		Model:    "ft:gpt-3.5-turbo:org::xyz",
		Events: [][]llm.FineTuneEvent{
			{{ID: "e1", Message: "Fine-tuning job started"}},
		},
	}
	c.FineTuner = ft

	var events []string
	res, err := Train(context.Background(), c, func(ev llm.FineTuneEvent) { events = append(events, ev.Message) })
	require.NoError(t, err)
	assert.Equal(t, "ft:gpt-3.5-turbo:org::xyz", res.Model)
	assert.Equal(t, []string{"Fine-tuning job started"}, events)

	name, err := trainer.LoadModelName(cfg.Files.ModelName)
	require.NoError(t, err)
	assert.Equal(t, res.Model, name)

	job, err := c.Ledger.Job(context.Background(), "ftjob-1")
	require.NoError(t, err)
	assert.Equal(t, llm.JobSucceeded, job.Status)
	assert.Equal(t, "file-abc", job.FileID)
	assert.Equal(t, "gpt-3.5-turbo", job.BaseModel)
	assert.Equal(t, res.Model, job.FineTunedModel)

	history, err := c.Ledger.StatusHistory(context.Background(), "ftjob-1")
	require.NoError(t, err)
	assert.Equal(t, []llm.JobStatus{llm.JobValidatingFiles, llm.JobRunning, llm.JobSucceeded}, history)

	assert.Equal(t, []byte(res.Model), c.Store.(*memStore).objects["model_name.txt"])
}

func TestTrain_FailedJobLeavesNoModelName(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	writeDataset(t, cfg.Files.Dataset)

	c.FineTuner = &llmtest.FineTuner{FileID: "file-abc", JobID: "ftjob-1", Statuses: []llm.JobStatus{llm.JobFailed}}

	_, err := Train(context.Background(), c, nil)
	require.ErrorIs(t, err, trainer.ErrJobFailed)
	assert.NoFileExists(t, cfg.Files.ModelName)

	job, err := c.Ledger.Job(context.Background(), "ftjob-1")
	require.NoError(t, err)
	assert.Equal(t, llm.JobFailed, job.Status)
}

func TestTrain_MissingDataset(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	c.Store = nil
	c.FineTuner = &llmtest.FineTuner{}

	_, err := Train(context.Background(), c, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTest_ModelFromFile(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	writeDataset(t, cfg.Files.Dataset)
	require.NoError(t, trainer.SaveModelName(cfg.Files.ModelName, "ft:model-from-file"))

	provider := llmtest.NewProvider()
	provider.Fallback = func(call llmtest.Call) (string, error) { return "['ok()']", nil }
	c.TestLLM = provider

	var out bytes.Buffer
	cases, err := Test(context.Background(), c, "", &out)
	require.NoError(t, err)
	assert.Len(t, cases, 2)

	for _, call := range provider.Calls() {
		assert.Equal(t, "ft:model-from-file", call.Options.Model)
	}
	assert.Contains(t, out.String(), "Testing model: ft:model-from-file")
}

func TestTest_FlagOverridesFile(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	writeDataset(t, cfg.Files.Dataset)

	provider := llmtest.NewProvider()
	provider.Fallback = func(call llmtest.Call) (string, error) { return "ok", nil }
	c.TestLLM = provider

	_, err := Test(context.Background(), c, "ft:from-flag", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "ft:from-flag", provider.Calls()[0].Options.Model)
}

func TestTest_ModelNameMissing(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)
	c.Store = nil
	writeDataset(t, cfg.Files.Dataset)
	c.TestLLM = llmtest.NewProvider()

	_, err := Test(context.Background(), c, "", &bytes.Buffer{})
	assert.ErrorIs(t, err, trainer.ErrModelNameMissing)
}

func TestTest_RestoresArtifactsFromStore(t *testing.T) {
	cfg := testConfig(t)
	c := testComponents(t, cfg)

	// Артефакты есть только в S3
	src := t.TempDir()
	writeDataset(t, filepath.Join(src, "training_examples.jsonl"))
	require.NoError(t, trainer.SaveModelName(filepath.Join(src, "model_name.txt"), "ft:restored"))
	for _, name := range []string{"training_examples.jsonl", "model_name.txt"} {
		_, err := c.Store.Upload(context.Background(), filepath.Join(src, name), name)
		require.NoError(t, err)
	}

	provider := llmtest.NewProvider()
	provider.Fallback = func(call llmtest.Call) (string, error) { return "ok", nil }
	c.TestLLM = provider

	cases, err := Test(context.Background(), c, "", &bytes.Buffer{})
	require.NoError(t, err)
	assert.Len(t, cases, 2)
	assert.FileExists(t, cfg.Files.Dataset)
	assert.Equal(t, "ft:restored", provider.Calls()[0].Options.Model)
}

func TestInitialize(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "state", "ledger.db")

	c, err := Initialize(cfg)
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.DataLLM)
	assert.NotNil(t, c.TestLLM)
	assert.NotNil(t, c.FineTuner)
	assert.NotNil(t, c.Ledger)
	assert.Nil(t, c.Store)
}

func TestInitialize_UnsupportedFineTuner(t *testing.T) {
	cfg := testConfig(t)
	def := cfg.Models.Definitions["gpt-3.5-turbo"]
	def.Provider = "zai"
	cfg.Models.Definitions["gpt-3.5-turbo"] = def

	_, err := Initialize(cfg)
	assert.ErrorContains(t, err, "does not support fine-tuning")
}

func TestValidateAPIKey(t *testing.T) {
	assert.NoError(t, ValidateAPIKey("gpt-4", config.ModelDef{APIKey: "sk-123"}))

	err := ValidateAPIKey("gpt-4", config.ModelDef{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpt-4")

	assert.Error(t, ValidateAPIKey("gpt-4", config.ModelDef{APIKey: "${OPENAI_API_KEY}"}))
}

func TestInitializeConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0644))

	cfg, found, err := InitializeConfig(&DefaultConfigPathFinder{ConfigFlag: path})
	require.NoError(t, err)
	assert.Equal(t, path, found)
	assert.Equal(t, 3, cfg.Task.NumberOfExamples)

	_, _, err = InitializeConfig(&DefaultConfigPathFinder{ConfigFlag: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "missing.yaml"))
}
