package datagen

import (
	"context"
	"fmt"

	"github.com/ilkoid/poncho-tune/pkg/dataset"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// Result - итог стадии генерации данных.
type Result struct {
	SystemMessage string
	DatasetPath   string
	Report        dataset.Report
}

// Pipeline - стадия Data Generator: генерация, разбор, дедупликация, запись.
type Pipeline struct {
	gen         *Generator
	datasetPath string
	progress    func(done, total int)
}

// NewPipeline создаёт стадию, пишущую датасет в datasetPath.
func NewPipeline(gen *Generator, datasetPath string) *Pipeline {
	return &Pipeline{gen: gen, datasetPath: datasetPath}
}

// OnProgress задаёт колбэк прогресса генерации примеров.
func (p *Pipeline) OnProgress(fn func(done, total int)) {
	p.progress = fn
}

// Run генерирует n примеров и системное сообщение и записывает датасет.
//
// Отброшенные из-за формата примеры не добираются повторно: итоговый размер
// датасета может быть меньше n, и это видно в Result.Report.
func (p *Pipeline) Run(ctx context.Context, n int) (Result, error) {
	raws, err := p.gen.Run(ctx, n, p.progress)
	if err != nil {
		return Result{}, fmt.Errorf("generate examples: %w", err)
	}

	system, err := p.gen.GenerateSystemMessage(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("generate system message: %w", err)
	}
	utils.Info("System message generated", "system_message", system)

	records, report, err := dataset.Assemble(system, raws)
	if err != nil {
		return Result{}, fmt.Errorf("assemble dataset: %w", err)
	}
	if report.Dropped > 0 {
		utils.Warn("Malformed examples dropped", "dropped", report.Dropped, "raw", report.Raw)
	}
	if report.Written == 0 {
		return Result{}, fmt.Errorf("no usable examples out of %d generations", report.Raw)
	}

	if err := dataset.WriteJSONL(p.datasetPath, records); err != nil {
		return Result{}, fmt.Errorf("write dataset: %w", err)
	}

	utils.Info("Dataset written",
		"path", p.datasetPath,
		"written", report.Written,
		"dropped", report.Dropped,
		"duplicates", report.Duplicates)

	return Result{
		SystemMessage: system,
		DatasetPath:   p.datasetPath,
		Report:        report,
	}, nil
}
