// Package dataset разбирает сгенерированные примеры и хранит их в JSONL
// формате, который принимает fine-tuning API.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter разделяет блоки prompt и response в ответе генератора:
//
//	prompt
//	-----------
//	$prompt_goes_here
//	-----------
//
//	response
//	-----------
//	$response_goes_here
//	-----------
const Delimiter = "-----------"

// ErrMalformedExample - ответ генератора не соответствует формату.
var ErrMalformedExample = errors.New("malformed example")

// Example - одна пара prompt/response.
type Example struct {
	Prompt   string
	Response string
}

// ParseExample извлекает пару из сырого текста генерации.
//
// Текст режется по Delimiter, prompt - вторая часть, response - четвёртая,
// обе без окружающих пробелов. Меньше четырёх разделителей или пустые поля
// дают ErrMalformedExample.
func ParseExample(raw string) (Example, error) {
	if n := strings.Count(raw, Delimiter); n < 4 {
		return Example{}, fmt.Errorf("%w: expected 4 delimiters, got %d", ErrMalformedExample, n)
	}

	parts := strings.Split(raw, Delimiter)

	ex := Example{
		Prompt:   strings.TrimSpace(parts[1]),
		Response: strings.TrimSpace(parts[3]),
	}
	if ex.Prompt == "" || ex.Response == "" {
		return Example{}, fmt.Errorf("%w: empty prompt or response", ErrMalformedExample)
	}

	return ex, nil
}
