// Package tester прогоняет дообученную модель на запросах из датасета.
package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Config - параметры проверки.
type Config struct {
	NumTests    int
	MaxTokens   int
	WrapWidth   int
	ColorScheme string
}

// ConfigFromApp собирает Config из config.yaml.
func ConfigFromApp(cfg *config.AppConfig) Config {
	return Config{
		NumTests:    cfg.Tester.NumTests,
		MaxTokens:   cfg.Tester.MaxTokens,
		WrapWidth:   cfg.Tester.WrapWidth,
		ColorScheme: cfg.Tester.ColorScheme,
	}
}

// Case - один тест-кейс: запрос из датасета и ответ модели.
type Case struct {
	Prompt   string
	Response string
	Err      error
}

// Tester отправляет дообученной модели случайные запросы из датасета.
type Tester struct {
	provider llm.Provider
	cfg      Config
	renderer *Renderer
	rng      *rand.Rand
}

// Option настраивает Tester.
type Option func(*Tester)

// WithRand задаёт источник случайности для выборки запросов.
func WithRand(rng *rand.Rand) Option {
	return func(t *Tester) {
		t.rng = rng
	}
}

// New создаёт Tester, печатающий результаты в out.
func New(provider llm.Provider, cfg Config, out io.Writer, opts ...Option) (*Tester, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.NumTests < 1 {
		cfg.NumTests = 5
	}

	t := &Tester{
		provider: provider,
		cfg:      cfg,
		renderer: NewRenderer(out, cfg.WrapWidth, GetColorScheme(cfg.ColorScheme)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Run проверяет model на NumTests случайных запросах из датасета.
//
// Системное сообщение берётся из первой записи датасета. Если запросов
// меньше NumTests, используются все. Ошибка отдельного кейса печатается и
// не прерывает прогон; Run возвращает ошибку, только если упали все кейсы.
func (t *Tester) Run(ctx context.Context, model, datasetPath string) ([]Case, error) {
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	system, err := dataset.LoadSystemMessage(datasetPath)
	if err != nil {
		return nil, err
	}
	records, err := dataset.ReadJSONL(datasetPath)
	if err != nil {
		return nil, err
	}

	prompts := dataset.Sample(dataset.UserPrompts(records), t.cfg.NumTests, t.rng)
	if len(prompts) == 0 {
		return nil, fmt.Errorf("dataset %s has no user prompts", datasetPath)
	}

	utils.Info("Testing model", "model", model, "cases", len(prompts), "available", len(records))
	t.renderer.Header(model, system)

	cases := make([]Case, 0, len(prompts))
	failed := 0
	for i, p := range prompts {
		if err := ctx.Err(); err != nil {
			return cases, err
		}

		c := t.runCase(ctx, model, system, p)
		if c.Err != nil {
			failed++
			utils.Error("Test case failed", "model", model, "case", i+1, "error", c.Err)
		}
		t.renderer.Case(i+1, c)
		cases = append(cases, c)
	}

	if failed == len(cases) {
		return cases, fmt.Errorf("all %d test cases failed: %w", failed, errors.Join(caseErrors(cases)...))
	}
	return cases, nil
}

func (t *Tester) runCase(ctx context.Context, model, system, userPrompt string) Case {
	opts := []llm.GenerateOption{llm.WithModel(model)}
	if t.cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(t.cfg.MaxTokens))
	}

	msg, err := t.provider.Generate(ctx, []llm.Message{
		llm.NewMessage(llm.RoleSystem, system),
		llm.NewMessage(llm.RoleUser, userPrompt),
	}, opts...)
	if err != nil {
		return Case{Prompt: userPrompt, Err: err}
	}
	return Case{Prompt: userPrompt, Response: msg.Content}
}

func caseErrors(cases []Case) []error {
	errs := make([]error, 0, len(cases))
	for _, c := range cases {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errs
}
