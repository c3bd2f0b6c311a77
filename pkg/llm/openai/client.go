// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API.
//
// Один Client закрывает оба контракта пайплайна:
//   - llm.Provider: chat completions (генерация данных, проверка модели)
//   - llm.FineTuner: загрузка файлов и задачи fine-tuning
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path/filepath"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/utils"
	openai "github.com/sashabaranov/go-openai"
)

// Client реализует llm.Provider и llm.FineTuner для OpenAI-совместимых API.
type Client struct {
	api   *openai.Client
	model string
}

var (
	_ llm.Provider  = (*Client)(nil)
	_ llm.FineTuner = (*Client)(nil)
)

// NewClient создает OpenAI клиент на основе конфигурации модели.
//
// BaseURL позволяет ходить в non-OpenAI провайдеров (Zai, DeepSeek и т.д.),
// Timeout ограничивает один HTTP запрос.
func NewClient(modelDef config.ModelDef) *Client {
	cfg := openai.DefaultConfig(modelDef.APIKey)
	if modelDef.BaseURL != "" {
		cfg.BaseURL = modelDef.BaseURL
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	return &Client{
		api:   openai.NewClientWithConfig(cfg),
		model: modelDef.ModelName,
	}
}

// Generate выполняет chat completion и возвращает ответ модели.
//
// Модель по умолчанию берётся из ModelDef, llm.WithModel переопределяет её
// (так Tester обращается к дообученной модели через клиент базовой).
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	startTime := time.Now()
	o := llm.ApplyOptions(opts...)

	model := c.model
	if o.Model != "" {
		model = o.Model
	}

	utils.Debug("LLM request started",
		"model", model,
		"messages_count", len(messages))

	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  mapToOpenAI(messages),
		MaxTokens: o.MaxTokens,
	}
	if o.Temperature != nil {
		req.Temperature = float32(*o.Temperature)
		if req.Temperature == 0 {
			// Поле в SDK с omitempty: ноль не дошёл бы до API
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, fmt.Errorf("openai chat completion: %w", wrapError(err))
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0].Message
	result := llm.Message{
		Role:    llm.Role(choice.Role),
		Content: choice.Content,
	}

	utils.Info("LLM response received",
		"model", model,
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// UploadTrainingFile загружает JSONL файл с purpose=fine-tune.
func (c *Client) UploadTrainingFile(ctx context.Context, path string) (string, error) {
	file, err := c.api.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  string(openai.PurposeFineTune),
	})
	if err != nil {
		return "", fmt.Errorf("openai upload %s: %w", path, wrapError(err))
	}

	utils.Info("Training file uploaded", "file_id", file.ID, "bytes", file.Bytes)
	return file.ID, nil
}

// CreateFineTuneJob создаёт задачу дообучения.
func (c *Client) CreateFineTuneJob(ctx context.Context, req llm.FineTuneRequest) (llm.FineTuneJob, error) {
	job, err := c.api.CreateFineTuningJob(ctx, openai.FineTuningJobRequest{
		TrainingFile: req.TrainingFileID,
		Model:        req.BaseModel,
		Suffix:       req.Suffix,
	})
	if err != nil {
		return llm.FineTuneJob{}, fmt.Errorf("openai create fine-tuning job: %w", wrapError(err))
	}
	return mapJob(job), nil
}

// RetrieveFineTuneJob возвращает текущее состояние задачи.
func (c *Client) RetrieveFineTuneJob(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	job, err := c.api.RetrieveFineTuningJob(ctx, jobID)
	if err != nil {
		return llm.FineTuneJob{}, fmt.Errorf("openai retrieve fine-tuning job %s: %w", jobID, wrapError(err))
	}
	return mapJob(job), nil
}

// ListFineTuneEvents возвращает последние события задачи.
func (c *Client) ListFineTuneEvents(ctx context.Context, jobID string, limit int) ([]llm.FineTuneEvent, error) {
	var params []openai.ListFineTuningJobEventsParameter
	if limit > 0 {
		params = append(params, openai.ListFineTuningJobEventsWithLimit(limit))
	}

	list, err := c.api.ListFineTuningJobEvents(ctx, jobID, params...)
	if err != nil {
		return nil, fmt.Errorf("openai list fine-tuning events %s: %w", jobID, wrapError(err))
	}

	events := make([]llm.FineTuneEvent, len(list.Data))
	for i, e := range list.Data {
		events[i] = llm.FineTuneEvent{
			// API SDK не отдаёт id события, ключом служит время + текст
			ID:        fmt.Sprintf("%d:%s", e.CreatedAt, e.Message),
			CreatedAt: unixTime(e.CreatedAt),
			Level:     e.Level,
			Message:   e.Message,
		}
	}
	return events, nil
}

// CancelFineTuneJob отменяет задачу.
func (c *Client) CancelFineTuneJob(ctx context.Context, jobID string) (llm.FineTuneJob, error) {
	job, err := c.api.CancelFineTuningJob(ctx, jobID)
	if err != nil {
		return llm.FineTuneJob{}, fmt.Errorf("openai cancel fine-tuning job %s: %w", jobID, wrapError(err))
	}
	return mapJob(job), nil
}

// mapToOpenAI конвертирует внутренние сообщения в формат SDK.
func mapToOpenAI(messages []llm.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}
	return out
}

func mapJob(job openai.FineTuningJob) llm.FineTuneJob {
	return llm.FineTuneJob{
		ID:             job.ID,
		Model:          job.Model,
		FineTunedModel: job.FineTunedModel,
		Status:         llm.JobStatus(job.Status),
		TrainingFile:   job.TrainingFile,
		CreatedAt:      unixTime(job.CreatedAt),
		FinishedAt:     unixTime(job.FinishedAt),
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// wrapError переводит ошибки SDK в llm.APIError, чтобы retry и трейнер
// могли классифицировать их без импорта go-openai.
func wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Err: err}
	}

	return err
}
