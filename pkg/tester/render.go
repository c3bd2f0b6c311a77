package tester

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const ruleWidth = 50

// Renderer печатает результаты проверки модели в терминал.
type Renderer struct {
	w     io.Writer
	width int

	title    lipgloss.Style
	label    lipgloss.Style
	system   lipgloss.Style
	prompt   lipgloss.Style
	response lipgloss.Style
	errStyle lipgloss.Style
	rule     lipgloss.Style
}

// NewRenderer создаёт рендерер. width <= 0 отключает перенос строк.
func NewRenderer(w io.Writer, width int, scheme ColorScheme) *Renderer {
	return &Renderer{
		w:        w,
		width:    width,
		title:    lipgloss.NewStyle().Bold(true).Foreground(scheme.Title),
		label:    lipgloss.NewStyle().Bold(true),
		system:   lipgloss.NewStyle().Italic(true).Foreground(scheme.System),
		prompt:   lipgloss.NewStyle().Foreground(scheme.Prompt),
		response: lipgloss.NewStyle().Foreground(scheme.Response),
		errStyle: lipgloss.NewStyle().Foreground(scheme.Error),
		rule:     lipgloss.NewStyle().Foreground(scheme.Border),
	}
}

// Header печатает модель и системное сообщение перед прогоном.
func (r *Renderer) Header(model, system string) {
	fmt.Fprintln(r.w, r.title.Render("Testing model: "+model))
	fmt.Fprintln(r.w, r.label.Render("System message: ")+r.system.Render(r.wrap(system)))
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.label.Render("Running test cases:"))
	r.Rule()
}

// Case печатает один тест-кейс, i с единицы.
func (r *Renderer) Case(i int, c Case) {
	fmt.Fprintln(r.w)
	fmt.Fprintln(r.w, r.title.Render(fmt.Sprintf("Test case %d:", i)))
	fmt.Fprintln(r.w, r.label.Render("Prompt: ")+r.prompt.Render(r.wrap(c.Prompt)))

	if c.Err != nil {
		fmt.Fprintln(r.w, r.errStyle.Render("Error: "+r.wrap(c.Err.Error())))
	} else {
		fmt.Fprintln(r.w, r.label.Render("Response:"))
		fmt.Fprintln(r.w, r.response.Render(r.wrap(c.Response)))
	}
	r.Rule()
}

// Rule печатает горизонтальный разделитель.
func (r *Renderer) Rule() {
	fmt.Fprintln(r.w, r.rule.Render(strings.Repeat("-", ruleWidth)))
}

// wrap переносит по словам, затем режет слишком длинные слова.
func (r *Renderer) wrap(s string) string {
	if r.width <= 0 {
		return s
	}
	return wrap.String(wordwrap.String(s, r.width), r.width)
}
