// Package llmtest содержит фейковые реализации llm.Provider и llm.FineTuner для тестов.
package llmtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/ilkoid/poncho-tune/pkg/llm"
)

// Response - заскриптованный ответ провайдера.
type Response struct {
	Content string
	Err     error
}

// Call - запомненный вызов Generate.
type Call struct {
	Messages []llm.Message
	Options  llm.GenerateOptions
}

// Provider отдаёт ответы из Script по порядку, затем вызывает Fallback.
type Provider struct {
	mu       sync.Mutex
	Script   []Response
	Fallback func(call Call) (string, error)
	calls    []Call
}

var _ llm.Provider = (*Provider)(nil)

// NewProvider создаёт провайдера с заданным сценарием.
func NewProvider(script ...Response) *Provider {
	return &Provider{Script: script}
}

// Generate реализует llm.Provider.
func (p *Provider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	if err := ctx.Err(); err != nil {
		return llm.Message{}, err
	}

	call := Call{
		Messages: append([]llm.Message(nil), messages...),
		Options:  llm.ApplyOptions(opts...),
	}

	p.mu.Lock()
	idx := len(p.calls)
	p.calls = append(p.calls, call)
	var resp *Response
	if idx < len(p.Script) {
		resp = &p.Script[idx]
	}
	fallback := p.Fallback
	p.mu.Unlock()

	if resp != nil {
		if resp.Err != nil {
			return llm.Message{}, resp.Err
		}
		return llm.NewMessage(llm.RoleAssistant, resp.Content), nil
	}
	if fallback != nil {
		content, err := fallback(call)
		if err != nil {
			return llm.Message{}, err
		}
		return llm.NewMessage(llm.RoleAssistant, content), nil
	}
	return llm.Message{}, fmt.Errorf("llmtest: unexpected call #%d", idx+1)
}

// Calls возвращает копию запомненных вызовов.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// FineTuner проигрывает последовательность статусов задачи.
type FineTuner struct {
	mu sync.Mutex

	FileID   string
	JobID    string
	Statuses []llm.JobStatus // Статус на каждый RetrieveFineTuneJob, последний повторяется
	Model    string          // FineTunedModel при JobSucceeded
	Events   [][]llm.FineTuneEvent

	UploadErr   error
	CreateErr   error
	RetrieveErr error

	Uploaded  []string
	Created   []llm.FineTuneRequest
	Retrieves int
	Cancelled []string
}

var _ llm.FineTuner = (*FineTuner)(nil)

// UploadTrainingFile реализует llm.FineTuner.
func (f *FineTuner) UploadTrainingFile(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.UploadErr != nil {
		return "", f.UploadErr
	}
	f.Uploaded = append(f.Uploaded, path)
	return f.FileID, nil
}

// CreateFineTuneJob реализует llm.FineTuner.
func (f *FineTuner) CreateFineTuneJob(ctx context.Context, req llm.FineTuneRequest) (llm.FineTuneJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CreateErr != nil {
		return llm.FineTuneJob{}, f.CreateErr
	}
	f.Created = append(f.Created, req)
	return llm.FineTuneJob{
		ID:           f.JobID,
		Model:        req.BaseModel,
		Status:       llm.JobValidatingFiles,
		TrainingFile: req.TrainingFileID,
	}, nil
}

// RetrieveFineTuneJob реализует llm.FineTuner.
func (f *FineTuner) RetrieveFineTuneJob(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RetrieveErr != nil {
		return llm.FineTuneJob{}, f.RetrieveErr
	}

	status := llm.JobRunning
	if len(f.Statuses) > 0 {
		i := f.Retrieves
		if i >= len(f.Statuses) {
			i = len(f.Statuses) - 1
		}
		status = f.Statuses[i]
	}
	f.Retrieves++

	job := llm.FineTuneJob{ID: jobID, Status: status}
	if status == llm.JobSucceeded {
		job.FineTunedModel = f.Model
	}
	return job, nil
}

// ListFineTuneEvents реализует llm.FineTuner: отдаёт Events[Retrieves-1].
func (f *FineTuner) ListFineTuneEvents(ctx context.Context, jobID string, limit int) ([]llm.FineTuneEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.Retrieves - 1
	if i < 0 || i >= len(f.Events) {
		return nil, nil
	}
	events := f.Events[i]
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return slices.Clone(events), nil
}

// CancelFineTuneJob реализует llm.FineTuner.
func (f *FineTuner) CancelFineTuneJob(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Cancelled = append(f.Cancelled, jobID)
	return llm.FineTuneJob{ID: jobID, Status: llm.JobCancelled}, nil
}
