// Package trainer загружает датасет, запускает fine-tuning и дожидается модели.
package trainer

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/retry"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// cancelTimeout ограничивает запрос отмены задачи после прерывания.
const cancelTimeout = 15 * time.Second

// Config - параметры обучения.
type Config struct {
	BaseModel    string
	Suffix       string
	PollInterval time.Duration
	Timeout      time.Duration
	EventsLimit  int
	Retry        retry.Policy
}

// ConfigFromApp собирает Config из config.yaml.
func ConfigFromApp(cfg *config.AppConfig) Config {
	return Config{
		BaseModel:    cfg.GetBaseModel().ModelName,
		Suffix:       cfg.Training.Suffix,
		PollInterval: cfg.Training.PollInterval,
		Timeout:      cfg.Training.Timeout,
		EventsLimit:  cfg.Training.EventsLimit,
		Retry:        retry.FromConfig(cfg.Retry),
	}
}

// Result - итог обучения.
type Result struct {
	FileID string
	JobID  string
	Model  string
}

// Trainer - стадия Trainer: upload → create job → poll.
type Trainer struct {
	ft     llm.FineTuner
	cfg    Config
	poller *Poller

	// OnJobCreated вызывается сразу после создания задачи.
	OnJobCreated func(job llm.FineTuneJob)
}

// New создаёт Trainer.
func New(ft llm.FineTuner, cfg Config) (*Trainer, error) {
	if ft == nil {
		return nil, fmt.Errorf("fine-tuner is required")
	}
	if cfg.BaseModel == "" {
		return nil, fmt.Errorf("base model is required")
	}
	return &Trainer{
		ft:     ft,
		cfg:    cfg,
		poller: NewPoller(ft, cfg),
	}, nil
}

// Poller возвращает поллер для настройки колбэков и sleep.
func (t *Trainer) Poller() *Poller {
	return t.poller
}

// Upload загружает датасет с purpose fine-tune и возвращает id файла.
func (t *Trainer) Upload(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("dataset %s: %w", path, err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("dataset %s is empty", path)
	}

	fileID, err := t.ft.UploadTrainingFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}

	utils.Info("Training file uploaded", "path", path, "file_id", fileID, "bytes", info.Size())
	return fileID, nil
}

// CreateJob создаёт задачу fine-tuning на базовой модели.
func (t *Trainer) CreateJob(ctx context.Context, fileID string) (llm.FineTuneJob, error) {
	job, err := t.ft.CreateFineTuneJob(ctx, llm.FineTuneRequest{
		TrainingFileID: fileID,
		BaseModel:      t.cfg.BaseModel,
		Suffix:         t.cfg.Suffix,
	})
	if err != nil {
		return llm.FineTuneJob{}, fmt.Errorf("create fine-tuning job: %w", err)
	}

	utils.Info("Fine-tuning job created",
		"job_id", job.ID,
		"base_model", t.cfg.BaseModel,
		"file_id", fileID,
		"status", string(job.Status))
	return job, nil
}

// Cancel отменяет задачу. Используется, когда оператор прервал ожидание.
func (t *Trainer) Cancel(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	job, err := t.ft.CancelFineTuneJob(ctx, jobID)
	if err != nil {
		return llm.FineTuneJob{}, fmt.Errorf("cancel job %s: %w", jobID, err)
	}
	utils.Info("Fine-tuning job cancelled", "job_id", jobID, "status", string(job.Status))
	return job, nil
}

// Run загружает датасет, создаёт задачу и ждёт её завершения.
//
// Неуспешная задача не перезапускается. При отмене ctx задача отменяется
// у провайдера. По истечении Timeout задача остаётся работать, её id
// возвращается в Result для ручной проверки.
func (t *Trainer) Run(ctx context.Context, datasetPath string) (Result, error) {
	fileID, err := t.Upload(ctx, datasetPath)
	if err != nil {
		return Result{}, err
	}
	res := Result{FileID: fileID}

	job, err := t.CreateJob(ctx, fileID)
	if err != nil {
		return res, err
	}
	res.JobID = job.ID
	if t.OnJobCreated != nil {
		t.OnJobCreated(job)
	}

	model, err := t.poller.Wait(ctx, job.ID)
	if err != nil {
		if ctx.Err() != nil {
			cancelCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
			defer cancel()
			cancelled, cerr := t.Cancel(cancelCtx, job.ID)
			if cerr != nil {
				utils.Error("Cancel after interrupt failed", "job_id", job.ID, "error", cerr)
			} else if t.poller.OnStatus != nil {
				t.poller.OnStatus(cancelled)
			}
		}
		return res, err
	}

	res.Model = model
	utils.Info("Fine-tuning completed", "job_id", job.ID, "model", model)
	return res, nil
}
