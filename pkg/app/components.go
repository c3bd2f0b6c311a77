// Package app собирает компоненты пайплайна дообучения и запускает его стадии.
//
// cmd/* утилиты только разбирают флаги и вызывают функции этого пакета:
// генерация датасета, обучение, проверка модели. Здесь же живёт
// побочная обвязка стадий (журнал в SQLite, зеркало артефактов в S3),
// чтобы пакеты стадий от неё не зависели.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/factory"
	"github.com/ilkoid/poncho-tune/pkg/ledger"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/s3storage"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Components содержит все компоненты приложения для переиспользования.
//
// Store и Ledger опциональны: nil, если выключены в config.yaml.
type Components struct {
	Config *config.AppConfig

	DataLLM   llm.Provider  // Генерация примеров и системного сообщения
	TestLLM   llm.Provider  // Запросы к дообученной модели
	FineTuner llm.FineTuner // Загрузка файлов и задачи fine-tuning

	Store  s3storage.ArtifactStore
	Ledger *ledger.Ledger
}

// Close освобождает ресурсы компонентов.
func (c *Components) Close() error {
	if c.Ledger != nil {
		return c.Ledger.Close()
	}
	return nil
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
//
// По умолчанию используется DefaultConfigPathFinder, но можно
// реализовать свою стратегию для тестов или специальных случаев.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг -config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
// 4. Родительские директории (для запуска из cmd/<tool>/)
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага -config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	// 2. Текущая директория
	if _, err := os.Stat("config.yaml"); err == nil {
		return resolveAbsPath("config.yaml")
	}

	// 3. Директория бинарника
	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), "config.yaml")
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	// 4. Родительские директории
	for _, cfgPath := range []string{
		filepath.Join("..", "config.yaml"),
		filepath.Join("..", "..", "config.yaml"),
	} {
		if _, err := os.Stat(cfgPath); err == nil {
			return resolveAbsPath(cfgPath)
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath("config.yaml")
}

// InitializeConfig находит и загружает конфигурацию.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// Initialize создаёт компоненты по конфигурации.
//
// Все провайдеры создаются сразу: ошибка в описании любой модели
// видна при старте любой стадии.
func Initialize(cfg *config.AppConfig) (*Components, error) {
	dataDef := cfg.GetDataModel()
	baseDef := cfg.GetBaseModel()

	dataLLM, err := factory.NewLLMProvider(dataDef)
	if err != nil {
		return nil, fmt.Errorf("data model: %w", err)
	}
	testLLM, err := factory.NewLLMProvider(baseDef)
	if err != nil {
		return nil, fmt.Errorf("base model: %w", err)
	}
	fineTuner, err := factory.NewFineTuner(baseDef)
	if err != nil {
		return nil, fmt.Errorf("base model: %w", err)
	}
	utils.Info("LLM providers created",
		"data_model", dataDef.ModelName,
		"data_provider", dataDef.Provider,
		"base_model", baseDef.ModelName,
		"base_provider", baseDef.Provider)

	c := &Components{
		Config:    cfg,
		DataLLM:   dataLLM,
		TestLLM:   testLLM,
		FineTuner: fineTuner,
	}

	if cfg.S3.Enabled {
		store, err := s3storage.New(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		c.Store = store
		utils.Info("S3 artifact mirror enabled", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	if cfg.Ledger.Path != "" {
		l, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		c.Ledger = l
		utils.Info("Ledger opened", "path", cfg.Ledger.Path)
	}

	return c, nil
}

// ValidateAPIKey проверяет что ключ модели задан и переменная окружения раскрыта.
//
// Используется в утилитах (cmd/) для ранней проверки конфигурации
// перед первым запросом к провайдеру.
func ValidateAPIKey(alias string, def config.ModelDef) error {
	key := strings.TrimSpace(def.APIKey)
	if key == "" || strings.HasPrefix(key, "${") {
		return fmt.Errorf("API key for model '%s' is not set.\n\n"+
			"Set it in .env or the environment, for example:\n"+
			"  export OPENAI_API_KEY=your_api_key_here\n\n"+
			"and reference it in config.yaml:\n"+
			"  models:\n"+
			"    definitions:\n"+
			"      %s:\n"+
			"        api_key: \"${OPENAI_API_KEY}\"", alias, alias)
	}
	return nil
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
