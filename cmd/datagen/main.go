// datagen - генерирует обучающий датасет для fine-tuning.
//
// Использование:
//   ./datagen
//   ./datagen -n 20
//   ./datagen -config ./configs/robot.yaml
//
// Описание задачи, модель-генератор и параметры берутся из config.yaml.
// Результат: files.dataset (JSONL, одна запись на строку).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ilkoid/poncho-tune/pkg/app"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Version - версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	// 1. Парсим флаги
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml, binary dir, parents)")
		numExamples = flag.Int("n", 0, "Number of examples to generate (default: task.number_of_examples)")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("datagen version %s\n", Version)
		os.Exit(0)
	}

	if err := run(*configPath, *numExamples); err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, n int) error {
	// 2. .env до загрузки конфига: config.yaml ссылается на ${VAR}
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file found, using process environment")
	}

	// 3. Конфигурация
	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: configPath})
	if err != nil {
		return err
	}

	// 4. Логгер
	if err := utils.InitLogger(cfg.App.LogsDir, cfg.App.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	utils.Info("Starting datagen", "version", Version, "config", cfgPath)

	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	if err := app.ValidateAPIKey(cfg.Models.DataModel, cfg.GetDataModel()); err != nil {
		return err
	}

	// 5. Компоненты
	comps, err := app.Initialize(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	if n <= 0 {
		n = cfg.Task.NumberOfExamples
	}
	fmt.Printf("🤖 Data model: %s\n", cfg.GetDataModel().ModelName)
	fmt.Printf("📝 Generating %d examples (workers: %d)...\n", n, cfg.Generation.Workers)

	// 6. Генерация
	res, err := app.Generate(ctx, comps, n, func(done, total int) {
		fmt.Printf("\r   %d/%d", done, total)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("✅ System message: %s\n", res.SystemMessage)
	fmt.Printf("✅ Dataset: %s\n", res.DatasetPath)
	fmt.Printf("   generated: %d, parsed: %d, dropped: %d, duplicates: %d, written: %d\n",
		res.Report.Raw, res.Report.Parsed, res.Report.Dropped, res.Report.Duplicates, res.Report.Written)
	if res.Report.Dropped > 0 {
		fmt.Printf("⚠️  %d examples did not follow the prompt/response format and were dropped\n", res.Report.Dropped)
	}
	return nil
}
