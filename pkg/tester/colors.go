package tester

import "github.com/charmbracelet/lipgloss"

// ColorScheme задаёт цвета вывода тестера.
// Значения lipgloss.Color: hex, ANSI или пустая строка (без цвета).
type ColorScheme struct {
	Title    lipgloss.Color // Заголовок и имя модели
	System   lipgloss.Color // Системное сообщение
	Prompt   lipgloss.Color // Запрос пользователя
	Response lipgloss.Color // Ответ модели
	Error    lipgloss.Color
	Border   lipgloss.Color // Разделители
}

// ColorSchemes - предустановленные схемы, выбираются через tester.color_scheme.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		Title:    lipgloss.Color("252"),
		System:   lipgloss.Color("242"),
		Prompt:   lipgloss.Color("226"),
		Response: lipgloss.Color("86"),
		Error:    lipgloss.Color("196"),
		Border:   lipgloss.Color("240"),
	},
	"dark": {
		Title:    lipgloss.Color("15"),
		System:   lipgloss.Color("8"),
		Prompt:   lipgloss.Color("11"),
		Response: lipgloss.Color("14"),
		Error:    lipgloss.Color("9"),
		Border:   lipgloss.Color("4"),
	},
	"light": {
		Title:    lipgloss.Color("0"),
		System:   lipgloss.Color("8"),
		Prompt:   lipgloss.Color("130"),
		Response: lipgloss.Color("31"),
		Error:    lipgloss.Color("1"),
		Border:   lipgloss.Color("8"),
	},
	"dracula": {
		Title:    lipgloss.Color("#f8f8f2"),
		System:   lipgloss.Color("#6272a4"),
		Prompt:   lipgloss.Color("#f1fa8c"),
		Response: lipgloss.Color("#8be9fd"),
		Error:    lipgloss.Color("#ff5555"),
		Border:   lipgloss.Color("#44475a"),
	},
	"plain": {},
}

// GetColorScheme возвращает схему по имени, для неизвестного имени - default.
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return ColorSchemes["default"]
}
