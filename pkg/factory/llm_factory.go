package factory

import (
	"fmt"

	"github.com/ilkoid/poncho-tune/pkg/config"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/llm/openai"
)

// NewLLMProvider создает chat-провайдера на основе конфигурации модели
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "", "zai", "openai", "deepseek":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}

// NewFineTuner создает клиента хостинга дообучения.
//
// Из OpenAI-совместимых провайдеров fine-tuning API есть только у OpenAI.
func NewFineTuner(modelDef config.ModelDef) (llm.FineTuner, error) {
	switch modelDef.Provider {
	case "", "openai":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("provider %q does not support fine-tuning", modelDef.Provider)
	}
}
