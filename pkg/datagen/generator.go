// Package datagen синтезирует обучающие примеры вызовами генерирующей модели.
//
// Каждый вызов модели обёрнут в retry.Do и проходит через rate limiter.
// Генерация может идти в несколько воркеров: порядок примеров не важен,
// дедупликация в dataset.Assemble от него не зависит.
package datagen

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/prompt"
	"github.com/ilkoid/poncho-tune/pkg/retry"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Config - параметры генерации.
type Config struct {
	Task             string
	Temperature      float64
	MaxPriorExamples int
	ExampleMaxTokens int
	SystemMaxTokens  int

	Workers   int
	RateLimit int // Запросов в минуту, <= 0 без ограничения
	Burst     int

	Retry      retry.Policy
	PromptsDir string
}

// ConfigFromApp собирает Config из config.yaml.
func ConfigFromApp(cfg *config.AppConfig) Config {
	return Config{
		Task:             strings.TrimSpace(cfg.Task.Description),
		Temperature:      cfg.Task.GetTemperature(),
		MaxPriorExamples: cfg.Task.MaxPriorExamples,
		ExampleMaxTokens: cfg.Task.ExampleMaxTokens,
		SystemMaxTokens:  cfg.Task.SystemMaxTokens,
		Workers:          cfg.Generation.Workers,
		RateLimit:        cfg.Generation.RateLimit,
		Burst:            cfg.Generation.Burst,
		Retry:            retry.FromConfig(cfg.Retry),
		PromptsDir:       cfg.App.PromptsDir,
	}
}

// Generator запрашивает у модели примеры и системное сообщение.
type Generator struct {
	provider llm.Provider
	cfg      Config

	examplePrompt *prompt.PromptFile
	systemPrompt  *prompt.PromptFile

	limiter *rate.Limiter

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option настраивает Generator.
type Option func(*Generator)

// WithRand задаёт источник случайности для выборки прошлых примеров.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) {
		g.rng = rng
	}
}

// New создаёт генератор. Промпты берутся из cfg.PromptsDir или встроенные.
func New(provider llm.Provider, cfg Config, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Task == "" {
		return nil, fmt.Errorf("task description is required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	examplePrompt, err := prompt.LoadOrDefault(cfg.PromptsDir, prompt.ExampleGenerator)
	if err != nil {
		return nil, fmt.Errorf("load example prompt: %w", err)
	}
	systemPrompt, err := prompt.LoadOrDefault(cfg.PromptsDir, prompt.SystemGenerator)
	if err != nil {
		return nil, fmt.Errorf("load system prompt: %w", err)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		// запросов в минуту → запросов в секунду
		limit = rate.Limit(float64(cfg.RateLimit) / 60.0)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	g := &Generator{
		provider:      provider,
		cfg:           cfg,
		examplePrompt: examplePrompt,
		systemPrompt:  systemPrompt,
		limiter:       rate.NewLimiter(limit, burst),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// GenerateExample запрашивает один новый пример.
//
// До MaxPriorExamples случайных прошлых генераций добавляются как ответы
// ассистента: это ограничивает размер запроса и подталкивает модель
// к разнообразию. Структура ответа здесь не проверяется.
func (g *Generator) GenerateExample(ctx context.Context, prior []string) (string, error) {
	messages, err := g.examplePrompt.RenderMessages(prompt.TaskData{
		Task:      g.cfg.Task,
		Delimiter: dataset.Delimiter,
	})
	if err != nil {
		return "", fmt.Errorf("render example prompt: %w", err)
	}

	if len(prior) > g.cfg.MaxPriorExamples && g.cfg.MaxPriorExamples > 0 {
		prior = g.sample(prior, g.cfg.MaxPriorExamples)
	}
	for _, ex := range prior {
		messages = append(messages, llm.NewMessage(llm.RoleAssistant, ex))
	}

	opts := g.callOptions(g.examplePrompt.Config, g.cfg.ExampleMaxTokens)
	msg, err := g.call(ctx, "generate_example", messages, opts)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// GenerateSystemMessage запрашивает системное сообщение для инференса.
func (g *Generator) GenerateSystemMessage(ctx context.Context) (string, error) {
	messages, err := g.systemPrompt.RenderMessages(prompt.TaskData{
		Task:      g.cfg.Task,
		Delimiter: dataset.Delimiter,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}

	opts := g.callOptions(g.systemPrompt.Config, g.cfg.SystemMaxTokens)
	msg, err := g.call(ctx, "generate_system_message", messages, opts)
	if err != nil {
		return "", err
	}

	system := utils.CleanSystemMessage(msg.Content)
	if system == "" {
		return "", fmt.Errorf("model returned an empty system message")
	}
	return system, nil
}

// Run генерирует n сырых примеров.
//
// С одним воркером примеры идут строго последовательно и каждый видит все
// предыдущие. С несколькими воркерами каждый запрос видит снимок уже готовых.
// Пример, исчерпавший попытки, прерывает весь запуск.
// progress (может быть nil) вызывается после каждого готового примера.
func (g *Generator) Run(ctx context.Context, n int, progress func(done, total int)) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		results = make([]string, 0, n)
	)

	snapshot := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), results...)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)

	for i := 0; i < n; i++ {
		if egCtx.Err() != nil {
			break
		}

		idx := i
		eg.Go(func() error {
			utils.Debug("Generating example", "index", idx)

			example, err := g.GenerateExample(egCtx, snapshot())
			if err != nil {
				return fmt.Errorf("example %d: %w", idx, err)
			}

			mu.Lock()
			results = append(results, example)
			done := len(results)
			mu.Unlock()

			if progress != nil {
				progress(done, n)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	utils.Info("Examples generated", "count", len(results), "workers", g.cfg.Workers)
	return results, nil
}

// call выполняет один вызов модели с rate limit и retry.
func (g *Generator) call(ctx context.Context, op string, messages []llm.Message, opts []llm.GenerateOption) (llm.Message, error) {
	return retry.Do(ctx, g.cfg.Retry, op, func(ctx context.Context) (llm.Message, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return llm.Message{}, retry.Permanent(fmt.Errorf("rate limiter wait: %w", err))
		}

		msg, err := g.provider.Generate(ctx, messages, opts...)
		if err != nil {
			if kind := llm.ClassifyError(err); !kind.Transient() {
				return llm.Message{}, retry.Permanent(fmt.Errorf("%s: %w", kind, err))
			}
			return llm.Message{}, err
		}
		return msg, nil
	})
}

// callOptions: значения из файла промпта перекрывают config.yaml.
func (g *Generator) callOptions(pc prompt.PromptConfig, maxTokens int) []llm.GenerateOption {
	temperature := g.cfg.Temperature
	if pc.Temperature != nil {
		temperature = *pc.Temperature
	}
	if pc.MaxTokens != 0 {
		maxTokens = pc.MaxTokens
	}

	opts := []llm.GenerateOption{llm.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(maxTokens))
	}
	return opts
}

func (g *Generator) sample(items []string, n int) []string {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return dataset.Sample(items, n, g.rng)
}
