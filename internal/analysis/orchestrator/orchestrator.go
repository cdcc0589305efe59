package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/analysis/indicators"
	"github.com/skalibog/mtpa/internal/analysis/levels"
	"github.com/skalibog/mtpa/internal/analysis/scoring"
	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

// Окно для оценки направления движения цены при объемном правиле
const priceChangeLookback = 10

// CandleSource поставляет свечи и текущую цену
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SentimentSource поставляет индекс страха и жадности
type SentimentSource interface {
	Get(ctx context.Context) (*models.SentimentReading, error)
}

// SignalStore сохраняет результаты оценки
type SignalStore interface {
	SaveSignal(ctx context.Context, result *models.TimeframeResult) error
}

// Orchestrator запускает оценку всех таймфреймов параллельно.
// Все таймфреймы одного прохода видят одну и ту же текущую цену;
// сбой одного таймфрейма не останавливает остальные
type Orchestrator struct {
	config     *config.Config
	candles    CandleSource
	sentiment  SentimentSource
	storage    SignalStore
	indicators *indicators.Analyzer
	levels     *levels.Detector
	scoring    *scoring.Engine
}

// New создает новый оркестратор оценки
func New(cfg *config.Config, candles CandleSource, sentiment SentimentSource, storage SignalStore) *Orchestrator {
	return &Orchestrator{
		config:     cfg,
		candles:    candles,
		sentiment:  sentiment,
		storage:    storage,
		indicators: indicators.NewAnalyzer(cfg.Analysis.Indicators),
		levels:     levels.NewDetector(cfg.Analysis.Levels),
		scoring:    scoring.NewEngine(cfg.Analysis.Scoring, cfg.Analysis.Setup),
	}
}

// EvaluateAll оценивает все сконфигурированные таймфреймы.
// Возвращает результаты в порядке конфигурации: по одному на таймфрейм,
// недоступные таймфреймы помечены причиной вместо частичного счета
func (o *Orchestrator) EvaluateAll(ctx context.Context) ([]*models.TimeframeResult, error) {
	symbol := o.config.Trading.Symbol

	currentPrice, err := o.candles.GetCurrentPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения текущей цены %s: %w", symbol, err)
	}

	// Сентимент общий для всех таймфреймов; его отсутствие
	// не блокирует оценку, правило просто не срабатывает
	sentiment, err := o.sentiment.Get(ctx)
	if err != nil {
		logger.Warn("Сентимент недоступен, оценка продолжается без него",
			zap.Error(err))
		sentiment = nil
	}

	timeframes := o.config.Trading.Timeframes
	results := make([]*models.TimeframeResult, len(timeframes))

	var wg sync.WaitGroup
	for i, tf := range timeframes {
		wg.Add(1)
		go func(i int, tf config.TimeframeConfig) {
			defer wg.Done()

			tfCtx, cancel := context.WithTimeout(ctx,
				time.Duration(o.config.Analysis.TimeoutSeconds)*time.Second)
			defer cancel()

			result, err := o.EvaluateTimeframe(tfCtx, tf, currentPrice, sentiment)
			if err != nil {
				logger.Warn("Таймфрейм недоступен",
					zap.String("timeframe", tf.ID),
					zap.Error(err))
				result = unavailableResult(symbol, tf, currentPrice, err)
			}
			results[i] = result
		}(i, tf)
	}
	wg.Wait()

	if o.storage != nil {
		for _, result := range results {
			if err := o.storage.SaveSignal(ctx, result); err != nil {
				logger.Error("Ошибка сохранения сигнала",
					zap.String("timeframe", result.Timeframe),
					zap.Error(err))
			}
		}
	}

	return results, nil
}

// EvaluateTimeframe оценивает один таймфрейм по переданной текущей цене
func (o *Orchestrator) EvaluateTimeframe(ctx context.Context, tf config.TimeframeConfig, currentPrice float64, sentiment *models.SentimentReading) (*models.TimeframeResult, error) {
	symbol := o.config.Trading.Symbol

	candles, err := o.candles.GetCandles(ctx, symbol, tf.ID, tf.CandleLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения свечей %s %s: %w", symbol, tf.ID, err)
	}

	if err := models.ValidateCandles(candles); err != nil {
		return nil, fmt.Errorf("некорректная последовательность свечей %s: %w", tf.ID, err)
	}

	if len(candles) < o.config.Analysis.MinCandles {
		return nil, fmt.Errorf("%d свечей на %s при минимуме %d: %w",
			len(candles), tf.ID, o.config.Analysis.MinCandles, models.ErrInsufficientHistory)
	}

	snapshot, err := o.indicators.Snapshot(candles)
	if err != nil {
		return nil, fmt.Errorf("ошибка расчета индикаторов %s: %w", tf.ID, err)
	}

	levelSet := o.levels.Detect(candles, currentPrice)

	evaluation := o.scoring.Evaluate(scoring.Input{
		CurrentPrice:   currentPrice,
		PriceChangePct: indicators.PriceChangePct(candles, priceChangeLookback),
		Indicators:     snapshot,
		Levels:         levelSet,
		Sentiment:      sentiment,
	})

	result := &models.TimeframeResult{
		Symbol:         symbol,
		Timeframe:      tf.ID,
		TimeframeName:  tf.Name,
		Timestamp:      time.Now(),
		CurrentPrice:   currentPrice,
		RawScore:       evaluation.RawScore,
		Score:          evaluation.Score,
		Recommendation: evaluation.Recommendation,
		Action:         evaluation.Action,
		Confidence:     evaluation.Confidence,
		Setup:          evaluation.Setup,
		Contributions:  evaluation.Contributions,
		Indicators:     snapshot,
		Levels:         levelSet,
	}
	if sentiment != nil {
		value := sentiment.Value
		result.SentimentValue = &value
		result.SentimentClass = sentiment.Classification
	}

	logger.Debug("Таймфрейм оценен",
		zap.String("timeframe", tf.ID),
		zap.Int("score", result.Score),
		zap.String("recommendation", result.Recommendation))

	return result, nil
}

// unavailableResult строит результат-заглушку для отказавшего таймфрейма
func unavailableResult(symbol string, tf config.TimeframeConfig, currentPrice float64, err error) *models.TimeframeResult {
	return &models.TimeframeResult{
		Symbol:            symbol,
		Timeframe:         tf.ID,
		TimeframeName:     tf.Name,
		Timestamp:         time.Now(),
		CurrentPrice:      currentPrice,
		Recommendation:    models.RecommendationHold,
		Action:            models.ActionHold,
		Confidence:        "низкая",
		Setup:             models.TradeSetup{Entry: currentPrice},
		Unavailable:       true,
		UnavailableReason: err.Error(),
	}
}
