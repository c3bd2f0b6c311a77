package datagen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeline_EndToEnd(t *testing.T) {
	const system = "Given a command, you will output SDK calls."

	var n int32
	provider := llmtest.NewProvider()
	provider.Fallback = func(call llmtest.Call) (string, error) {
		if isSystemRequest(call) {
			return system, nil
		}
		i := atomic.AddInt32(&n, 1)
		return example(fmt.Sprintf("command %d", i), fmt.Sprintf("['call_%d()']", i)), nil
	}

	// Каталог датасета ещё не существует
	path := filepath.Join(t.TempDir(), "data", "training_data.jsonl")
	pipeline := NewPipeline(newTestGenerator(t, provider, testConfig()), path)

	res, err := pipeline.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, provider.Calls(), 4)
	assert.Equal(t, dataset.Report{Raw: 3, Parsed: 3, Written: 3}, res.Report)
	assert.Equal(t, system, res.SystemMessage)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "\n"))

	records, err := dataset.ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 3)

	users := map[string]bool{}
	assistants := map[string]bool{}
	for _, r := range records {
		require.NoError(t, r.Validate())
		assert.Equal(t, system, r.System())
		users[r.User()] = true
		assistants[r.Assistant()] = true
	}
	assert.Len(t, users, 3)
	assert.Len(t, assistants, 3)

	loaded, err := dataset.LoadSystemMessage(path)
	require.NoError(t, err)
	assert.Equal(t, system, loaded)
}

func TestPipeline_ReportsDroppedAndDuplicates(t *testing.T) {
	provider := llmtest.NewProvider(
		llmtest.Response{Content: example("a", "1")},
		llmtest.Response{Content: "the model ignored the format"},
		llmtest.Response{Content: example("a", "1")},
		llmtest.Response{Content: example("b", "2")},
		llmtest.Response{Content: "You translate commands."},
	)

	path := filepath.Join(t.TempDir(), "ds.jsonl")
	pipeline := NewPipeline(newTestGenerator(t, provider, testConfig()), path)

	res, err := pipeline.Run(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, dataset.Report{Raw: 4, Parsed: 3, Dropped: 1, Duplicates: 1, Written: 2}, res.Report)
}

func TestPipeline_NothingUsable(t *testing.T) {
	provider := llmtest.NewProvider(
		llmtest.Response{Content: "junk"},
		llmtest.Response{Content: "System."},
	)

	path := filepath.Join(t.TempDir(), "ds.jsonl")
	pipeline := NewPipeline(newTestGenerator(t, provider, testConfig()), path)

	_, err := pipeline.Run(context.Background(), 1)
	assert.ErrorContains(t, err, "no usable examples")
	assert.NoFileExists(t, path)
}
