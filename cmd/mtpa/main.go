package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/analysis/orchestrator"
	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/internal/exchange"
	"github.com/skalibog/mtpa/internal/position"
	"github.com/skalibog/mtpa/internal/sentiment"
	"github.com/skalibog/mtpa/internal/storage"
	"github.com/skalibog/mtpa/internal/ui"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

func main() {
	// Обработка флагов командной строки
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	flag.Parse()

	// Загружаем конфигурацию; при отсутствии файла работаем на значениях
	// по умолчанию
	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ошибка загрузки конфигурации: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	logger.Init(cfg.LogLevel)
	defer logger.GetLogger().Sync()
	logger.Info("MTPA запускается",
		zap.String("symbol", cfg.Trading.Symbol),
		zap.Int("timeframes", len(cfg.Trading.Timeframes)))

	// Создаем контекст с возможностью отмены через горутину
	ctx, cancel := context.WithCancel(context.Background())

	// Настраиваем обработку сигналов завершения
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nЗавершение работы...")
		cancel()
		time.Sleep(3 * time.Second) // Даем горутинам время на завершение
		os.Exit(0)
	}()

	// Инициализируем хранилище
	store, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal("Ошибка инициализации хранилища", zap.Error(err))
	}
	defer store.Close()

	// Инициализируем клиент биржи
	client, err := exchange.NewBinanceClient(cfg.Binance)
	if err != nil {
		logger.Fatal("Ошибка инициализации клиента биржи", zap.Error(err))
	}

	// Источник сентимента и трекер позиций
	fetcher := sentiment.NewFetcher(cfg.Sentiment)
	tracker := position.NewTracker(cfg.Risk)

	// Оркестратор оценки таймфреймов
	analyzer := orchestrator.New(cfg, client, fetcher, store)

	// Сборщик свечей в отдельной горутине
	collector := exchange.NewCandleCollector(client, store, cfg.Trading)
	go collector.Run(ctx)

	// Инициализируем UI
	var userInterface *ui.TermUI
	if cfg.UI.Enabled {
		userInterface, err = ui.NewTermUI(cfg.UI)
		if err != nil {
			logger.Fatal("Ошибка инициализации пользовательского интерфейса", zap.Error(err))
		}
	}

	// Запускаем аналитический процесс в горутине
	go func() {
		// Отложенный старт для накопления данных
		time.Sleep(5 * time.Second)

		ticker := time.NewTicker(time.Duration(cfg.Analysis.IntervalSeconds) * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				results, err := analyzer.EvaluateAll(ctx)
				if err != nil {
					logger.Warn("Ошибка оценки таймфреймов", zap.Error(err))
					continue
				}
				if len(results) == 0 {
					continue
				}

				// Все результаты одного прохода видят одну цену
				currentPrice := results[0].CurrentPrice

				events := tracker.UpdateAll(currentPrice)
				persistClosed(ctx, store, tracker, events)

				if cfg.Trading.PaperTrading {
					maybeOpenPosition(cfg, tracker, results)
				}

				if userInterface != nil {
					userInterface.UpdateResults(results, tracker.Summary())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Запускаем UI в основном потоке (блокирующий вызов)
	if userInterface != nil {
		userInterface.Start()
		cancel()
		return
	}
	<-ctx.Done()
}

// persistClosed сохраняет позиции, закрытые на этом тике
func persistClosed(ctx context.Context, store storage.Storage, tracker *position.Tracker, events []models.PositionEvent) {
	closedIDs := make(map[string]bool)
	for _, e := range events {
		if e.Type == models.EventClosedStop || e.Type == models.EventClosedTarget {
			closedIDs[e.PositionID] = true
		}
	}
	if len(closedIDs) == 0 {
		return
	}

	for _, p := range tracker.ClosedPositions() {
		if !closedIDs[p.ID] {
			continue
		}
		if err := store.SaveClosedPosition(ctx, p); err != nil {
			logger.Error("Ошибка сохранения закрытой позиции",
				zap.String("id", p.ID),
				zap.Error(err))
		}
	}
}

// maybeOpenPosition открывает бумажную позицию по сильному сигналу
// первого таймфрейма. Размер выбирается так, чтобы дистанция до стопа
// стоила долю капитала из конфигурации риска
func maybeOpenPosition(cfg *config.Config, tracker *position.Tracker, results []*models.TimeframeResult) {
	primary := results[0]
	if primary.Unavailable || primary.Setup.StopLoss == nil {
		return
	}
	if len(tracker.OpenPositions()) > 0 {
		return
	}

	var side string
	switch primary.Recommendation {
	case models.RecommendationStrongBuy:
		side = models.SideLong
	case models.RecommendationStrongSell:
		side = models.SideShort
	default:
		return
	}

	entry := primary.Setup.Entry
	stop := *primary.Setup.StopLoss
	stopDistance := entry - stop
	if side == models.SideShort {
		stopDistance = stop - entry
	}
	if stopDistance <= 0 {
		return
	}

	capital := tracker.Summary().CurrentCapital
	riskAmount := capital * cfg.Risk.RiskPerTradePct / 100
	size := riskAmount / stopDistance
	if size <= 0 {
		return
	}

	takeProfit := 0.0
	if primary.Setup.TakeProfit2 != nil {
		takeProfit = *primary.Setup.TakeProfit2
	}

	_, err := tracker.Open(position.OpenRequest{
		Side:            side,
		EntryPrice:      entry,
		Size:            size,
		StopLoss:        stop,
		TakeProfit:      takeProfit,
		TrailingStopPct: cfg.Risk.TrailingStopPct,
		EntryReason:     primary.Recommendation,
		EntryConfidence: primary.Confidence,
		SentimentValue:  primary.SentimentValue,
	})
	if err != nil {
		logger.Warn("Бумажная позиция не открыта", zap.Error(err))
	}
}
