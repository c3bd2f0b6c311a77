// Package llm provides options pattern for LLM generation parameters.
package llm

// GenerateOptions holds parameters for a single generation call.
// Zero values mean "use the provider default" (model from config.yaml,
// provider-side temperature and token limit).
type GenerateOptions struct {
	// Model is the API model identifier (e.g., "gpt-4", "ft:gpt-3.5-turbo:org::abc").
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic).
	// nil = provider default.
	Temperature *float64

	// MaxTokens limits the response length. 0 = provider default.
	MaxTokens int
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
// Runtime override: takes precedence over config.yaml default.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// ApplyOptions folds opts into a GenerateOptions value.
func ApplyOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
