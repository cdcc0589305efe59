package ui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

// Стили UI
var (
	// Основные цвета
	primaryColor   = lipgloss.Color("#0077cc")
	secondaryColor = lipgloss.Color("#333333")
	errorColor     = lipgloss.Color("#cc3300")
	successColor   = lipgloss.Color("#33cc33")
	warningColor   = lipgloss.Color("#cccc00")
	// Главный контейнер
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor)
	// Заголовок
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(primaryColor).
			Padding(0, 1).
			Align(lipgloss.Center)
	sectionHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#ffffff")).
				Background(secondaryColor).
				Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(secondaryColor).
			Padding(0, 1)
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999")).
			Padding(0, 1)
)

// TermUI терминальный интерфейс: таблица таймфреймов, сводка портфеля и логи
type TermUI struct {
	config config.UIConfig

	resultsMutex sync.RWMutex
	results      []*models.TimeframeResult
	summary      models.PortfolioSummary

	logsMutex sync.RWMutex
	logs      []string
	logFile   string

	program       *tea.Program
	selectedIndex int
	width         int
	height        int
}

// Сообщения для обновления UI
type refreshMsg struct{}

// bubbleModel - модель для bubbletea
type bubbleModel struct {
	ui *TermUI
}

// NewTermUI создает новый терминальный интерфейс
func NewTermUI(cfg config.UIConfig) (*TermUI, error) {
	ui := &TermUI{
		config:  cfg,
		logs:    []string{"MTPA запущен. Ожидание данных..."},
		logFile: "mtpa.json.log",
		width:   120,
		height:  40,
	}

	if err := ui.loadLogsFromFile(); err != nil {
		ui.logs = append(ui.logs, fmt.Sprintf("Ошибка загрузки логов: %v", err))
	}

	// Периодическая подгрузка логов из файла
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if err := ui.loadLogsFromFile(); err != nil {
				logger.Warn("Ошибка загрузки логов", zap.Error(err))
			}
		}
	}()

	return ui, nil
}

// Start запускает интерфейс и блокируется до выхода
func (ui *TermUI) Start() {
	model := bubbleModel{ui: ui}
	ui.program = tea.NewProgram(model, tea.WithAltScreen())

	if _, err := ui.program.Run(); err != nil {
		fmt.Printf("Ошибка запуска UI: %v\n", err)
	}
}

// UpdateResults обновляет результаты оценки и сводку портфеля
func (ui *TermUI) UpdateResults(results []*models.TimeframeResult, summary models.PortfolioSummary) {
	ui.resultsMutex.Lock()
	ui.results = results
	ui.summary = summary
	ui.resultsMutex.Unlock()

	if ui.program != nil {
		ui.program.Send(refreshMsg{})
	}
}

// loadLogsFromFile подгружает хвост JSON-лога для секции логов
func (ui *TermUI) loadLogsFromFile() error {
	file, err := os.Open(ui.logFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var logs []string

	ansiRegex := regexp.MustCompile(`\x1b\[[0-9;]*m`)

	for scanner.Scan() {
		line := scanner.Text()

		var zapLog map[string]interface{}
		if err := json.Unmarshal([]byte(line), &zapLog); err == nil {
			level, _ := zapLog["level"].(string)
			ts, _ := zapLog["ts"].(string)
			msg, _ := zapLog["msg"].(string)

			level = ansiRegex.ReplaceAllString(level, "")

			timestamp := ""
			if t, err := time.Parse("02.01.2006 - 15:04:05.999999999Z07:00", ts); err == nil {
				timestamp = t.Format("15:04:05")
			}

			formattedMsg := fmt.Sprintf("[%s] [%s] %s", timestamp, level, msg)

			for k, v := range zapLog {
				if k != "level" && k != "ts" && k != "msg" && k != "caller" {
					formattedMsg += fmt.Sprintf(" (%s: %v)", k, v)
				}
			}

			logs = append(logs, formattedMsg)
		} else {
			logs = append(logs, line)
		}

		if len(logs) > 50 {
			logs = logs[1:]
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	ui.logsMutex.Lock()
	defer ui.logsMutex.Unlock()

	if len(logs) > 0 {
		ui.logs = logs
		if len(ui.logs) > 50 {
			ui.logs = ui.logs[len(ui.logs)-50:]
		}
	}

	return nil
}

// Методы для bubbletea
func (m bubbleModel) Init() tea.Cmd {
	return nil
}

func (m bubbleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up":
			if m.ui.selectedIndex > 0 {
				m.ui.selectedIndex--
			}
		case "down":
			m.ui.resultsMutex.RLock()
			last := len(m.ui.results) - 1
			m.ui.resultsMutex.RUnlock()
			if m.ui.selectedIndex < last {
				m.ui.selectedIndex++
			}
		}

	case tea.WindowSizeMsg:
		m.ui.width = msg.Width
		m.ui.height = msg.Height

	case refreshMsg:
		// Просто обновляем UI
	}

	return m, nil
}

func (m bubbleModel) View() string {
	m.ui.resultsMutex.RLock()
	m.ui.logsMutex.RLock()
	defer m.ui.resultsMutex.RUnlock()
	defer m.ui.logsMutex.RUnlock()

	title := titleStyle.Render("MTPA - Multi-Timeframe Position Analyzer")
	timeframes := renderTimeframesSection(m.ui.results, m.ui.selectedIndex)
	portfolio := renderPortfolioSection(m.ui.summary)
	logs := renderLogsSection(m.ui.logs)
	footer := footerStyle.Render("Клавиши: ↑/↓ - навигация, Q - выход")

	return appStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			timeframes,
			"\n",
			portfolio,
			"\n",
			logs,
			"\n",
			footer,
		),
	)
}

func renderTimeframesSection(results []*models.TimeframeResult, selectedIndex int) string {
	header := sectionHeaderStyle.Render("ТАЙМФРЕЙМЫ")
	content := strings.Builder{}

	if len(results) == 0 {
		content.WriteString("  Ожидание данных...\n")
	}

	for i, r := range results {
		var line string
		if r.Unavailable {
			line = fmt.Sprintf("  %-10s %s",
				r.TimeframeName,
				lipgloss.NewStyle().Foreground(warningColor).Render("недоступен: "+r.UnavailableReason))
		} else {
			line = fmt.Sprintf("  %-10s счет %+3d  %s  цена %.2f",
				r.TimeframeName, r.Score, formatRecommendation(r.Recommendation), r.CurrentPrice)
			if r.Setup.StopLoss != nil {
				line += fmt.Sprintf("  стоп %.2f", *r.Setup.StopLoss)
			}
			if r.Setup.RiskReward != nil {
				line += fmt.Sprintf("  R:R %.1f", *r.Setup.RiskReward)
			}
		}

		if i == selectedIndex {
			line = "> " + line[2:]
			line = lipgloss.NewStyle().Background(lipgloss.Color("#222222")).Render(line)
		}

		content.WriteString(line + "\n")
	}

	// Детализация вкладов выбранного таймфрейма
	if selectedIndex >= 0 && selectedIndex < len(results) && !results[selectedIndex].Unavailable {
		content.WriteString("\n")
		for _, c := range results[selectedIndex].Contributions {
			content.WriteString(fmt.Sprintf("    %+d  %s\n", c.Weight, c.Label))
		}
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

func renderPortfolioSection(s models.PortfolioSummary) string {
	header := sectionHeaderStyle.Render("ПОРТФЕЛЬ")
	content := strings.Builder{}

	returnStyle := lipgloss.NewStyle().Foreground(successColor)
	if s.TotalReturn < 0 {
		returnStyle = lipgloss.NewStyle().Foreground(errorColor)
	}

	content.WriteString(fmt.Sprintf("  Капитал: %.2f  Доходность: %s  Открыто: %d  Закрыто: %d\n",
		s.CurrentCapital,
		returnStyle.Render(fmt.Sprintf("%+.2f (%+.2f%%)", s.TotalReturn, s.TotalReturnPct)),
		s.OpenPositions, s.ClosedPositions))

	profitFactor := "-"
	if s.ProfitFactor != nil {
		profitFactor = fmt.Sprintf("%.2f", *s.ProfitFactor)
	}
	content.WriteString(fmt.Sprintf("  Винрейт: %.1f%%  Profit factor: %s  За день: %+.2f (%d сделок)\n",
		s.WinRate, profitFactor, s.DailyPnL, s.DailyTrades))

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

func renderLogsSection(logs []string) string {
	header := sectionHeaderStyle.Render("ЛОГИ")
	content := strings.Builder{}

	maxLogsToShow := 10
	start := 0
	if len(logs) > maxLogsToShow {
		start = len(logs) - maxLogsToShow
	}

	for i := start; i < len(logs); i++ {
		log := logs[i]

		// Выделение по уровню логирования
		if strings.Contains(log, "[ERROR]") {
			log = lipgloss.NewStyle().Foreground(errorColor).Render(log)
		} else if strings.Contains(log, "[INFO]") {
			log = lipgloss.NewStyle().Foreground(successColor).Render(log)
		} else if strings.Contains(log, "[WARN]") {
			log = lipgloss.NewStyle().Foreground(warningColor).Render(log)
		} else if strings.Contains(log, "[DEBUG]") {
			log = lipgloss.NewStyle().Foreground(lipgloss.Color("#9999ff")).Render(log)
		}

		content.WriteString("  " + log + "\n")
	}

	return sectionStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header,
			content.String(),
		),
	)
}

func formatRecommendation(recommendation string) string {
	var style lipgloss.Style

	switch recommendation {
	case models.RecommendationStrongBuy:
		style = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case models.RecommendationBuy, models.RecommendationWeakBuy:
		style = lipgloss.NewStyle().Foreground(successColor)
	case models.RecommendationStrongSell:
		style = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	case models.RecommendationSell, models.RecommendationWeakSell:
		style = lipgloss.NewStyle().Foreground(errorColor)
	default:
		style = lipgloss.NewStyle().Foreground(warningColor)
	}

	return style.Render(fmt.Sprintf("%-11s", recommendation))
}
