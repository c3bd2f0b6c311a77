package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/datagen"
	"github.com/ilkoid/poncho-tune/pkg/ledger"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/tester"
	"github.com/ilkoid/poncho-tune/pkg/trainer"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Generate выполняет стадию генерации датасета.
//
// n <= 0 означает task.number_of_examples. Запуск (в том числе неудачный)
// записывается в журнал, готовый датасет зеркалируется в S3.
func Generate(ctx context.Context, c *Components, n int, progress func(done, total int)) (datagen.Result, error) {
	cfg := c.Config
	if n <= 0 {
		n = cfg.Task.NumberOfExamples
	}

	gen, err := datagen.New(c.DataLLM, datagen.ConfigFromApp(cfg))
	if err != nil {
		return datagen.Result{}, err
	}
	pipeline := datagen.NewPipeline(gen, cfg.Files.Dataset)
	pipeline.OnProgress(progress)

	utils.Info("Generation started", "examples", n, "dataset", cfg.Files.Dataset)
	started := time.Now()

	res, runErr := pipeline.Run(ctx, n)
	c.recordGeneration(ctx, n, started, res, runErr)
	if runErr != nil {
		return res, runErr
	}

	c.mirror(ctx, res.DatasetPath)
	return res, nil
}

// Train выполняет стадию обучения и сохраняет имя модели в files.model_name.
//
// onEvent (может быть nil) получает новые события задачи для вывода оператору.
func Train(ctx context.Context, c *Components, onEvent func(ev llm.FineTuneEvent)) (trainer.Result, error) {
	cfg := c.Config
	datasetPath := cfg.Files.Dataset

	if err := c.ensureLocal(ctx, datasetPath); err != nil {
		return trainer.Result{}, err
	}

	tr, err := trainer.New(c.FineTuner, trainer.ConfigFromApp(cfg))
	if err != nil {
		return trainer.Result{}, err
	}

	tr.OnJobCreated = func(job llm.FineTuneJob) {
		c.recordJob(ctx, job, datasetPath)
	}
	tr.Poller().OnStatus = func(job llm.FineTuneJob) {
		c.updateJob(ctx, job)
	}
	tr.Poller().OnEvent = onEvent

	res, err := tr.Run(ctx, datasetPath)
	if err != nil {
		return res, err
	}

	if err := trainer.SaveModelName(cfg.Files.ModelName, res.Model); err != nil {
		return res, err
	}
	utils.Info("Model name saved", "path", cfg.Files.ModelName, "model", res.Model)

	c.mirror(ctx, cfg.Files.ModelName)
	return res, nil
}

// Test прогоняет дообученную модель на запросах из датасета.
//
// model пустой - имя берётся из files.model_name (локально или из S3).
func Test(ctx context.Context, c *Components, model string, out io.Writer) ([]tester.Case, error) {
	cfg := c.Config

	if model == "" {
		if err := c.ensureLocal(ctx, cfg.Files.ModelName); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		name, err := trainer.LoadModelName(cfg.Files.ModelName)
		if err != nil {
			return nil, err
		}
		model = name
	}

	if err := c.ensureLocal(ctx, cfg.Files.Dataset); err != nil {
		return nil, err
	}

	t, err := tester.New(c.TestLLM, tester.ConfigFromApp(cfg), out)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx, model, cfg.Files.Dataset)
}

// mirror загружает артефакт в S3. Ошибка зеркалирования не валит стадию.
func (c *Components) mirror(ctx context.Context, path string) {
	if c.Store == nil {
		return
	}

	obj, err := c.Store.Upload(ctx, path, filepath.Base(path))
	if err != nil {
		utils.Warn("Artifact mirror failed", "path", path, "error", err)
		return
	}
	utils.Info("Artifact mirrored", "path", path, "key", obj.Key, "size", obj.Size)
}

// ensureLocal скачивает артефакт из S3, если локального файла нет.
// Без S3 отсутствие файла возвращается как ошибка с os.ErrNotExist.
func (c *Components) ensureLocal(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if c.Store == nil {
		return fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}

	if err := c.Store.DownloadToFile(ctx, filepath.Base(path), path); err != nil {
		return fmt.Errorf("%s not found locally, S3 fallback failed: %w", path, err)
	}
	utils.Info("Artifact restored from S3", "path", path)
	return nil
}

// recordGeneration пишет запуск в журнал и после отмены ctx:
// запись о прерванном запуске тоже нужна.
func (c *Components) recordGeneration(ctx context.Context, requested int, started time.Time, res datagen.Result, runErr error) {
	if c.Ledger == nil {
		return
	}

	run := ledger.GenerationRun{
		StartedAt:     started,
		FinishedAt:    time.Now(),
		DataModel:     c.Config.GetDataModel().ModelName,
		DatasetPath:   c.Config.Files.Dataset,
		SystemMessage: res.SystemMessage,
		Requested:     requested,
		Report:        res.Report,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	if _, err := c.Ledger.RecordGeneration(context.WithoutCancel(ctx), run); err != nil {
		utils.Warn("Ledger write failed", "error", err)
	}
}

func (c *Components) recordJob(ctx context.Context, job llm.FineTuneJob, datasetPath string) {
	if c.Ledger == nil {
		return
	}

	baseModel := job.Model
	if baseModel == "" {
		baseModel = c.Config.GetBaseModel().ModelName
	}

	err := c.Ledger.RecordJob(context.WithoutCancel(ctx), ledger.Job{
		JobID:       job.ID,
		FileID:      job.TrainingFile,
		BaseModel:   baseModel,
		DatasetPath: datasetPath,
		Status:      job.Status,
	})
	if err != nil {
		utils.Warn("Ledger write failed", "job_id", job.ID, "error", err)
	}
}

func (c *Components) updateJob(ctx context.Context, job llm.FineTuneJob) {
	if c.Ledger == nil {
		return
	}

	if err := c.Ledger.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, job.Status, job.FineTunedModel); err != nil {
		utils.Warn("Ledger write failed", "job_id", job.ID, "error", err)
	}
}
