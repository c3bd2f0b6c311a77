// Package utils предоставляет вспомогательные функции для обработки ответов LLM.
package utils

import (
	"strings"
)

// CleanCodeFence удаляет markdown-обёртку вокруг ответа.
//
// LLM часто возвращает текст обёрнутым в кодовые блоки:
//   ```
//   Given a command, you will ...
//   ```
//
// Снимается только внешняя пара ```, язык после открывающей обёртки отбрасывается.
// Если закрывающей обёртки нет, строка возвращается как есть (после TrimSpace).
func CleanCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}

	inner := strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")

	// Отрезаем метку языка в первой строке: ```text\n...
	if nl := strings.Index(inner, "\n"); nl >= 0 && !strings.ContainsAny(inner[:nl], " \t") {
		inner = inner[nl+1:]
	}

	return strings.TrimSpace(inner)
}

// CleanSystemMessage приводит сгенерированный системный промпт к чистой строке.
//
// Модель иногда игнорирует просьбу не оборачивать ответ и возвращает
// "`$SYSTEM_PROMPT`" или "\"$SYSTEM_PROMPT\"". Снимаем одну парную обёртку
// из кавычек или бэктиков.
func CleanSystemMessage(s string) string {
	s = CleanCodeFence(s)

	for _, q := range []string{`"`, "`", "'"} {
		if len(s) >= 2 && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			break
		}
	}

	return s
}
