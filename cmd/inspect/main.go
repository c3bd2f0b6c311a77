// inspect - TUI просмотр артефактов в S3 и задач fine-tuning из журнала.
//
// Использование:
//   ./inspect
//   ./inspect -limit 50
//
// Нужен хотя бы один из s3.enabled или ledger.path в config.yaml.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"github.com/ilkoid/poncho-tune/pkg/app"
	"github.com/ilkoid/poncho-tune/pkg/ledger"
	"github.com/ilkoid/poncho-tune/pkg/llm"
	"github.com/ilkoid/poncho-tune/pkg/s3storage"
	"github.com/ilkoid/poncho-tune/pkg/utils"
)

// --- Стили ---
var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	statusStyles = map[llm.JobStatus]lipgloss.Style{
		llm.JobSucceeded: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		llm.JobFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		llm.JobCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
)

// --- Сообщения (Messages) ---
type errMsg error

type contentMsg struct {
	objects []s3storage.StoredObject
	jobs    []ledger.Job
	lastRun *ledger.GenerationRun
}

// --- Модель ---
type model struct {
	comps    *app.Components
	limit    int
	spinner  spinner.Model
	viewport viewport.Model

	content string
	loading bool
	err     error
	ready   bool
}

func initialModel(comps *app.Components, limit int) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		comps:   comps,
		limit:   limit,
		spinner: s,
		loading: true,
	}
}

// Init запускает спиннер и команду загрузки
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchContents(m.comps, m.limit),
	)
}

// Update - обработка событий
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if !m.loading {
				m.loading = true
				return m, tea.Batch(m.spinner.Tick, fetchContents(m.comps, m.limit))
			}
		}

	case errMsg:
		m.err = msg
		m.loading = false
		return m, nil

	case contentMsg:
		m.loading = false
		m.content = formatContents(msg)
		m.viewport.SetContent(m.content)
		return m, nil

	case tea.WindowSizeMsg:
		headerHeight := 2
		verticalMarginHeight := 2

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - verticalMarginHeight
		}
	}

	if m.loading {
		m.spinner, cmd = m.spinner.Update(msg)
	} else {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View - отрисовка
func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("\n❌ Error: %v\n\nPress 'q' to quit.", m.err)
	}

	if m.loading {
		return fmt.Sprintf("\n %s Loading artifacts and jobs...\n\n", m.spinner.View())
	}

	header := titleStyle.Render("📦 poncho-tune inspector")
	return fmt.Sprintf("%s\n%s\n\n(Press 'q' to quit, 'r' to refresh, arrows to scroll)", header, m.viewport.View())
}

// --- Бизнес-логика (Commands) ---

func fetchContents(comps *app.Components, limit int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var msg contentMsg

		if comps.Store != nil {
			objects, err := comps.Store.List(ctx)
			if err != nil {
				return errMsg(err)
			}
			msg.objects = objects
		}

		if comps.Ledger != nil {
			jobs, err := comps.Ledger.ListJobs(ctx, limit)
			if err != nil {
				return errMsg(err)
			}
			msg.jobs = jobs

			run, err := comps.Ledger.LatestGeneration(ctx)
			if err == nil {
				msg.lastRun = &run
			}
		}
		return msg
	}
}

// Форматирование в строку для вьюпорта
func formatContents(c contentMsg) string {
	var b strings.Builder

	if c.lastRun != nil {
		r := c.lastRun
		b.WriteString(sectionStyle.Render("Last generation run") + "\n\n")
		fmt.Fprintf(&b, "%s  %s  %s  requested %d, written %d, dropped %d, duplicates %d\n",
			itemStyle.Render("•"), r.FinishedAt.Format(time.DateTime), r.DataModel,
			r.Requested, r.Report.Written, r.Report.Dropped, r.Report.Duplicates)
		if r.Error != "" {
			fmt.Fprintf(&b, "   error: %s\n", r.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Fine-tuning jobs: %d", len(c.jobs))) + "\n\n")
	for _, j := range c.jobs {
		status := string(j.Status)
		if style, ok := statusStyles[j.Status]; ok {
			status = style.Render(status)
		}
		fmt.Fprintf(&b, "%s  %s  %-24s  %-14s  %s\n",
			itemStyle.Render("•"), j.CreatedAt.Format(time.DateTime), j.JobID, status, j.FineTunedModel)
	}
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("S3 artifacts: %d", len(c.objects))) + "\n\n")
	for _, f := range c.objects {
		size := fmt.Sprintf("%.2f KB", float64(f.Size)/1024)
		fmt.Fprintf(&b, "%s  %-10s  %s  %s\n",
			itemStyle.Render("•"), size, f.LastModified.Format(time.DateTime), f.Key)
	}
	return b.String()
}

// --- Main ---

func main() {
	var (
		configPath = flag.String("config", "", "Path to config.yaml (default: ./config.yaml, binary dir, parents)")
		limit      = flag.Int("limit", 20, "Number of recent jobs to show")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file found, using process environment")
	}

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config Error: %v\n", err)
		os.Exit(1)
	}

	if err := utils.InitLogger(cfg.App.LogsDir, cfg.App.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	defer utils.Close()

	if !cfg.S3.Enabled && cfg.Ledger.Path == "" {
		fmt.Fprintln(os.Stderr, "Nothing to inspect: enable s3 or set ledger.path in config.yaml")
		os.Exit(1)
	}

	comps, err := app.Initialize(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Init Error: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	p := tea.NewProgram(
		initialModel(comps, *limit),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
