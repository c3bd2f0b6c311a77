package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig - корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models     ModelsConfig     `yaml:"models"`
	Task       TaskConfig       `yaml:"task"`
	Retry      RetryConfig      `yaml:"retry"`
	Generation GenerationConfig `yaml:"generation"`
	Training   TrainingConfig   `yaml:"training"`
	Files      FilesConfig      `yaml:"files"`
	Tester     TesterConfig     `yaml:"tester"`
	S3         S3Config         `yaml:"s3"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	App        AppSpecific      `yaml:"app"`
}

// ModelsConfig - настройки AI моделей.
type ModelsConfig struct {
	DataModel   string              `yaml:"data_model"`  // Алиас модели для генерации данных (например, "gpt-4")
	BaseModel   string              `yaml:"base_model"`  // Алиас базовой модели для дообучения
	Definitions map[string]ModelDef `yaml:"definitions"` // Словарь определений моделей
}

// ModelDef - параметры конкретной модели.
type ModelDef struct {
	Provider  string        `yaml:"provider"`   // "openai", "zai", "deepseek"
	ModelName string        `yaml:"model_name"` // Реальное имя в API
	APIKey    string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"` // Go умеет парсить строки вида "60s", "1m"
}

// TaskConfig описывает модель, которую мы хотим обучить.
type TaskConfig struct {
	Description      string   `yaml:"description"`
	Temperature      *float64 `yaml:"temperature"` // nil = DefaultTemperature, 0 допустим
	NumberOfExamples int      `yaml:"number_of_examples"`
	MaxPriorExamples int      `yaml:"max_prior_examples"` // Сколько прошлых примеров показывать модели
	ExampleMaxTokens int      `yaml:"example_max_tokens"`
	SystemMaxTokens  int      `yaml:"system_max_tokens"`
}

// DefaultTemperature - температура генерации, если task.temperature не задан.
const DefaultTemperature = 0.2

// GetTemperature возвращает task.temperature или DefaultTemperature.
func (t TaskConfig) GetTemperature() float64 {
	if t.Temperature == nil {
		return DefaultTemperature
	}
	return *t.Temperature
}

// RetryConfig - политика повторов для вызовов генерации.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	MinWait    time.Duration `yaml:"min_wait"`
	MaxWait    time.Duration `yaml:"max_wait"`
	Multiplier float64       `yaml:"multiplier"`
}

// GenerationConfig - параллелизм и rate limit генерации.
type GenerationConfig struct {
	Workers   int `yaml:"workers"`    // 1 = последовательная генерация
	RateLimit int `yaml:"rate_limit"` // Запросов в минуту
	Burst     int `yaml:"burst"`
}

// TrainingConfig - параметры fine-tuning задачи и поллинга.
type TrainingConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"` // Максимальное время ожидания задачи
	EventsLimit  int           `yaml:"events_limit"`
	Suffix       string        `yaml:"suffix"`
}

// FilesConfig - пути файлов, через которые общаются стадии.
type FilesConfig struct {
	Dataset   string `yaml:"dataset"`
	ModelName string `yaml:"model_name"`
}

// TesterConfig - параметры проверки дообученной модели.
type TesterConfig struct {
	NumTests    int    `yaml:"num_tests"`
	WrapWidth   int    `yaml:"wrap_width"`
	MaxTokens   int    `yaml:"max_tokens"`
	ColorScheme string `yaml:"color_scheme"` // default, dark, light, dracula, plain
}

// S3Config - настройки объектного хранилища для зеркалирования артефактов.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// LedgerConfig - журнал запусков в SQLite. Пустой Path отключает журнал.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// AppSpecific - общие настройки приложения.
type AppSpecific struct {
	Debug      bool   `yaml:"debug"`
	PromptsDir string `yaml:"prompts_dir"`
	LogsDir    string `yaml:"logs_dir"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml.
//
// os.ExpandEnv заменяет ${VAR} или $VAR на значение из окружения,
// после чего применяются дефолты и валидация.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults заполняет незаданные поля дефолтными значениями.
func (c *AppConfig) applyDefaults() {
	if c.Task.Temperature == nil {
		t := DefaultTemperature
		c.Task.Temperature = &t
	}
	if c.Task.NumberOfExamples == 0 {
		c.Task.NumberOfExamples = 100
	}
	if c.Task.MaxPriorExamples == 0 {
		c.Task.MaxPriorExamples = 8
	}
	if c.Task.ExampleMaxTokens == 0 {
		c.Task.ExampleMaxTokens = 1000
	}
	if c.Task.SystemMaxTokens == 0 {
		c.Task.SystemMaxTokens = 500
	}

	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.MinWait == 0 {
		c.Retry.MinWait = 4 * time.Second
	}
	if c.Retry.MaxWait == 0 {
		c.Retry.MaxWait = 70 * time.Second
	}
	if c.Retry.Multiplier == 0 {
		c.Retry.Multiplier = 1
	}

	if c.Generation.Workers == 0 {
		c.Generation.Workers = 1
	}
	if c.Generation.RateLimit == 0 {
		c.Generation.RateLimit = 60 // запросов в минуту
	}
	if c.Generation.Burst == 0 {
		c.Generation.Burst = 1
	}

	if c.Training.PollInterval == 0 {
		c.Training.PollInterval = 10 * time.Second
	}
	if c.Training.Timeout == 0 {
		c.Training.Timeout = 6 * time.Hour
	}
	if c.Training.EventsLimit == 0 {
		c.Training.EventsLimit = 10
	}

	if c.Files.Dataset == "" {
		c.Files.Dataset = "training_examples.jsonl"
	}
	if c.Files.ModelName == "" {
		c.Files.ModelName = "model_name.txt"
	}

	if c.Tester.NumTests == 0 {
		c.Tester.NumTests = 5
	}
	if c.Tester.WrapWidth == 0 {
		c.Tester.WrapWidth = 100
	}

	if c.S3.Prefix == "" {
		c.S3.Prefix = "poncho-tune"
	}
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Task.Description) == "" {
		return fmt.Errorf("task.description is required")
	}
	if c.Task.NumberOfExamples < 0 {
		return fmt.Errorf("task.number_of_examples must be positive")
	}
	if t := c.Task.GetTemperature(); t < 0 || t > 2 {
		return fmt.Errorf("task.temperature must be in [0, 2], got %v", t)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if c.Retry.MinWait > c.Retry.MaxWait {
		return fmt.Errorf("retry.min_wait (%s) exceeds retry.max_wait (%s)", c.Retry.MinWait, c.Retry.MaxWait)
	}
	if c.Generation.Workers < 1 {
		return fmt.Errorf("generation.workers must be at least 1")
	}

	if c.Models.DataModel == "" {
		return fmt.Errorf("models.data_model is required")
	}
	if _, ok := c.Models.Definitions[c.Models.DataModel]; !ok {
		return fmt.Errorf("data_model '%s' is not defined in definitions", c.Models.DataModel)
	}
	if c.Models.BaseModel == "" {
		return fmt.Errorf("models.base_model is required")
	}
	if _, ok := c.Models.Definitions[c.Models.BaseModel]; !ok {
		return fmt.Errorf("base_model '%s' is not defined in definitions", c.Models.BaseModel)
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required")
		}
		if c.S3.Endpoint == "" {
			return fmt.Errorf("s3.endpoint is required")
		}
	}
	return nil
}

// Helper методы для удобства доступа (Syntactic sugar)

// GetDataModel возвращает конфигурацию модели для генерации данных.
func (c *AppConfig) GetDataModel() ModelDef {
	return c.Models.Definitions[c.Models.DataModel]
}

// GetBaseModel возвращает конфигурацию базовой модели для fine-tuning.
func (c *AppConfig) GetBaseModel() ModelDef {
	return c.Models.Definitions[c.Models.BaseModel]
}
