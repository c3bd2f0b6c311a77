// train - загружает датасет, запускает fine-tuning и ждёт готовую модель.
//
// Использование:
//   ./train
//   ./train -config ./configs/robot.yaml
//
// Ctrl+C во время ожидания отменяет задачу у провайдера.
// Имя дообученной модели сохраняется в files.model_name.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ilkoid/poncho-tune/pkg/app"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/trainer"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Version - версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml, binary dir, parents)")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("train version %s\n", Version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file found, using process environment")
	}

	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: configPath})
	if err != nil {
		return err
	}

	if err := utils.InitLogger(cfg.App.LogsDir, cfg.App.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	utils.Info("Starting train", "version", Version, "config", cfgPath)

	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
	defer shutdown()

	if err := app.ValidateAPIKey(cfg.Models.BaseModel, cfg.GetBaseModel()); err != nil {
		return err
	}

	comps, err := app.Initialize(cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	fmt.Printf("📤 Uploading %s and starting fine-tuning of %s...\n", cfg.Files.Dataset, cfg.GetBaseModel().ModelName)
	fmt.Printf("⏳ Polling every %s (timeout %s)\n", cfg.Training.PollInterval, cfg.Training.Timeout)

	res, err := app.Train(ctx, comps, func(ev llm.FineTuneEvent) {
		fmt.Printf("   %s\n", ev.Message)
	})

	var jobErr *trainer.JobError
	switch {
	case errors.As(err, &jobErr):
		fmt.Printf("❌ Fine-tuning did not succeed. Status: %s\n", jobErr.Status)
		return err
	case errors.Is(err, trainer.ErrJobTimeout):
		fmt.Printf("⌛ Job %s is still running. Check it later with the provider dashboard.\n", res.JobID)
		return err
	case err != nil:
		return err
	}

	fmt.Printf("✅ Fine-tuned model name: %s\n", res.Model)
	fmt.Printf("   saved to %s\n", cfg.Files.ModelName)
	return nil
}
