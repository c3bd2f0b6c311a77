// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/ilkoid/poncho-tune/pkg/llm"
	"gopkg.in/yaml.v3"
)

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	// 1. Проверяем наличие
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	// 2. Читаем байты
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	return Parse(data)
}

// Parse разбирает YAML промпта из памяти.
func Parse(data []byte) (*PromptFile, error) {
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error: %w", err)
	}
	if len(pf.Messages) == 0 {
		return nil, fmt.Errorf("prompt has no messages")
	}
	return &pf, nil
}

// LoadOrDefault загружает {dir}/{name}.yaml, а если файла нет - встроенный промпт.
//
// Ошибка разбора существующего файла возвращается: тихо подменять
// сломанный пользовательский промпт дефолтным хуже, чем упасть.
func LoadOrDefault(dir, name string) (*PromptFile, error) {
	if dir != "" {
		path := filepath.Join(dir, name+".yaml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	raw, ok := defaults[name]
	if !ok {
		return nil, fmt.Errorf("no built-in prompt %q", name)
	}
	return Parse([]byte(raw))
}

// RenderMessages принимает данные (struct или map) и возвращает готовые сообщения
// где все {{.Field}} заменены на значения.
func (pf *PromptFile) RenderMessages(data interface{}) ([]llm.Message, error) {
	rendered := make([]llm.Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		// Создаем шаблон
		tmpl, err := template.New("msg").Option("missingkey=error").Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}

		// Рендерим в буфер
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = llm.Message{
			Role:    llm.Role(msg.Role),
			Content: buf.String(),
		}
	}

	return rendered, nil
}
