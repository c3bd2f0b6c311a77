package trainer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrModelNameMissing - файла с именем модели нет или он пуст.
var ErrModelNameMissing = errors.New("fine-tuned model name not found")

// SaveModelName записывает имя модели в path одной строкой без перевода строки.
func SaveModelName(path, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("model name is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		return fmt.Errorf("write model name: %w", err)
	}
	return nil
}

// LoadModelName читает имя модели, сохранённое SaveModelName.
func LoadModelName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s does not exist, run training first or pass a model name", ErrModelNameMissing, path)
	}
	if err != nil {
		return "", fmt.Errorf("read model name: %w", err)
	}

	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrModelNameMissing, path)
	}
	return name, nil
}
