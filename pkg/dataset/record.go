package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/poncho-tune/pkg/llm"
)

// Message - сообщение в формате fine-tuning датасета.
type Message struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

// Record - одна строка датасета: system, user, assistant.
type Record struct {
	Messages []Message `json:"messages"`
}

// NewRecord собирает запись из системного сообщения и примера.
func NewRecord(system string, ex Example) Record {
	return Record{Messages: []Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: ex.Prompt},
		{Role: llm.RoleAssistant, Content: ex.Response},
	}}
}

// System возвращает содержимое системного сообщения ("" если его нет).
func (r Record) System() string {
	return r.content(llm.RoleSystem)
}

// User возвращает prompt записи.
func (r Record) User() string {
	return r.content(llm.RoleUser)
}

// Assistant возвращает эталонный ответ записи.
func (r Record) Assistant() string {
	return r.content(llm.RoleAssistant)
}

func (r Record) content(role llm.Role) string {
	for _, m := range r.Messages {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}

// Validate проверяет, что все три роли на месте и непустые.
func (r Record) Validate() error {
	if len(r.Messages) != 3 {
		return fmt.Errorf("expected 3 messages, got %d", len(r.Messages))
	}
	want := []llm.Role{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant}
	for i, m := range r.Messages {
		if m.Role != want[i] {
			return fmt.Errorf("message #%d: expected role %s, got %s", i, want[i], m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message #%d (%s): empty content", i, m.Role)
		}
	}
	return nil
}

// Report - итог сборки датасета.
type Report struct {
	Raw        int // Сырых генераций на входе
	Parsed     int // Успешно разобрано
	Dropped    int // Отброшено из-за формата
	Duplicates int // Удалено повторов (prompt, response)
	Written    int // Записей в датасете
}

// Assemble разбирает сырые генерации, удаляет дубликаты и строит записи.
//
// Порядок сохраняется, из повторов остаётся первое вхождение.
// Неразобранные генерации не прерывают сборку, а учитываются в Report.Dropped.
func Assemble(system string, raws []string) ([]Record, Report, error) {
	system = strings.TrimSpace(system)
	if system == "" {
		return nil, Report{}, errors.New("system message is empty")
	}

	report := Report{Raw: len(raws)}
	seen := make(map[Example]struct{}, len(raws))
	records := make([]Record, 0, len(raws))

	for _, raw := range raws {
		ex, err := ParseExample(raw)
		if err != nil {
			report.Dropped++
			continue
		}
		report.Parsed++

		if _, dup := seen[ex]; dup {
			report.Duplicates++
			continue
		}
		seen[ex] = struct{}{}
		records = append(records, NewRecord(system, ex))
	}

	report.Written = len(records)
	return records, report, nil
}
