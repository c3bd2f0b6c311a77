package trainer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/retry"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

var (
	// ErrJobFailed - задача завершилась статусом failed или cancelled.
	ErrJobFailed = errors.New("fine-tuning job did not succeed")

	// ErrJobTimeout - задача не завершилась за training.timeout.
	ErrJobTimeout = errors.New("timed out waiting for fine-tuning job")
)

// JobError несёт терминальный статус неуспешной задачи.
// errors.Is(err, ErrJobFailed) == true.
type JobError struct {
	JobID  string
	Status llm.JobStatus
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s finished with status %s: %v", e.JobID, e.Status, ErrJobFailed)
}

func (e *JobError) Unwrap() error {
	return ErrJobFailed
}

// Poller опрашивает задачу до терминального статуса.
type Poller struct {
	ft llm.FineTuner

	Interval    time.Duration // Пауза между опросами
	Timeout     time.Duration // 0 = без ограничения сверху
	EventsLimit int
	Retry       retry.Policy // Повторы одиночного опроса при сетевых сбоях
	Sleep       retry.SleepFunc

	// OnStatus вызывается при каждой смене статуса (включая первый опрос).
	OnStatus func(job llm.FineTuneJob)
	// OnEvent вызывается для каждого ещё не показанного события, от старых к новым.
	OnEvent func(ev llm.FineTuneEvent)
}

// NewPoller создаёт Poller с параметрами из Config.
func NewPoller(ft llm.FineTuner, cfg Config) *Poller {
	return &Poller{
		ft:          ft,
		Interval:    cfg.PollInterval,
		Timeout:     cfg.Timeout,
		EventsLimit: cfg.EventsLimit,
		Retry:       cfg.Retry,
	}
}

// Wait опрашивает задачу jobID каждые Interval, пока она не завершится.
//
// Возвращает имя дообученной модели при succeeded, *JobError при failed
// или cancelled, ошибку с ErrJobTimeout при превышении Timeout.
// Отмена ctx прерывает ожидание немедленно и возвращает ctx.Err().
func (p *Poller) Wait(ctx context.Context, jobID string) (string, error) {
	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	sleep := p.Sleep
	if sleep == nil {
		sleep = retry.Sleep
	}

	seen := make(map[string]struct{})
	var last llm.JobStatus

	for fetches := 1; ; fetches++ {
		job, err := p.retrieve(ctx, jobID)
		if err != nil {
			return "", p.ctxError(parent, ctx, jobID, err)
		}

		if job.Status != last {
			utils.Info("Fine-tuning job status", "job_id", jobID, "status", string(job.Status), "fetch", fetches)
			if p.OnStatus != nil {
				p.OnStatus(job)
			}
			last = job.Status
		}

		p.reportEvents(ctx, jobID, seen)

		switch job.Status {
		case llm.JobSucceeded:
			if job.FineTunedModel == "" {
				return "", fmt.Errorf("job %s succeeded without a fine-tuned model name", jobID)
			}
			return job.FineTunedModel, nil
		case llm.JobFailed, llm.JobCancelled:
			return "", &JobError{JobID: jobID, Status: job.Status}
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return "", p.ctxError(parent, ctx, jobID, err)
		}
	}
}

func (p *Poller) retrieve(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	return retry.Do(ctx, p.Retry, "retrieve_job", func(ctx context.Context) (llm.FineTuneJob, error) {
		job, err := p.ft.RetrieveFineTuneJob(ctx, jobID)
		if err != nil {
			if kind := llm.ClassifyError(err); !kind.Transient() {
				return llm.FineTuneJob{}, retry.Permanent(fmt.Errorf("%s: %w", kind, err))
			}
			return llm.FineTuneJob{}, err
		}
		return job, nil
	})
}

// reportEvents показывает новые события. Ошибка списка событий не прерывает опрос.
func (p *Poller) reportEvents(ctx context.Context, jobID string, seen map[string]struct{}) {
	events, err := p.ft.ListFineTuneEvents(ctx, jobID, p.EventsLimit)
	if err != nil {
		utils.Warn("List fine-tuning events failed", "job_id", jobID, "error", err)
		return
	}

	// API отдаёт события от новых к старым, время - с точностью до секунды.
	// Разворот сохраняет порядок событий внутри одной секунды.
	slices.Reverse(events)
	slices.SortStableFunc(events, func(a, b llm.FineTuneEvent) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	for _, ev := range events {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}

		utils.Info("Fine-tuning event", "job_id", jobID, "level", ev.Level, "message", ev.Message)
		if p.OnEvent != nil {
			p.OnEvent(ev)
		}
	}
}

// ctxError отличает истечение Timeout от отмены родительского контекста.
func (p *Poller) ctxError(parent, ctx context.Context, jobID string, err error) error {
	if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("job %s after %s: %w", jobID, p.Timeout, ErrJobTimeout)
	}
	if perr := parent.Err(); perr != nil {
		return perr
	}
	return fmt.Errorf("poll job %s: %w", jobID, err)
}
