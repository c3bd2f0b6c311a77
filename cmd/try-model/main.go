// try-model - прогоняет дообученную модель на случайных запросах из датасета.
//
// Использование:
//   ./try-model
//   ./try-model -model ft:gpt-3.5-turbo:org::abc123
//   ./try-model -n 10
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
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml, binary dir, parents)")
		modelName   = flag.String("model", "", "Fine-tuned model name (default: read from files.model_name)")
		numTests    = flag.Int("n", 0, "Number of test cases (default: tester.num_tests)")
		noColor     = flag.Bool("no-color", false, "Disable colors in output")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("try-model version %s\n", Version)
		os.Exit(0)
	}

	if err := run(*configPath, *modelName, *numTests, *noColor); err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, model string, numTests int, noColor bool) error {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file found, using process environment")
	}

	cfg, cfgPath, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: configPath})
	if err != nil {
		return err
	}
	if numTests > 0 {
		cfg.Tester.NumTests = numTests
	}
	if noColor {
		cfg.Tester.ColorScheme = "plain"
	}

	if err := utils.InitLogger(cfg.App.LogsDir, cfg.App.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	utils.Info("Starting try-model", "version", Version, "config", cfgPath, "model", model)

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

	_, err = app.Test(ctx, comps, model, os.Stdout)
	return err
}
