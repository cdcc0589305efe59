package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

type fakeCandles struct {
	price    float64
	priceErr error
	counts   map[string]int
}

func (f *fakeCandles) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	n := f.counts[interval]
	if n > limit {
		n = limit
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		close := 42000 + float64(i)*10
		candles[i] = models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      close - 5,
			High:      close + 20,
			Low:       close - 20,
			Close:     close,
			Volume:    500,
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return candles, nil
}

func (f *fakeCandles) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.price, nil
}

type fakeSentiment struct {
	reading *models.SentimentReading
	err     error
}

func (f *fakeSentiment) Get(ctx context.Context) (*models.SentimentReading, error) {
	return f.reading, f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Trading.Timeframes = []config.TimeframeConfig{
		{ID: "1h", Name: "1 час", CandleLimit: 250},
		{ID: "1d", Name: "1 день", CandleLimit: 90},
	}
	return cfg
}

func TestEvaluateAllShortHistoryDegrades(t *testing.T) {
	cfg := testConfig()
	source := &fakeCandles{
		price:  44000,
		counts: map[string]int{"1h": 250, "1d": 10},
	}
	sentiment := &fakeSentiment{reading: &models.SentimentReading{
		Value:          30,
		Classification: models.ClassifySentiment(30),
		Timestamp:      time.Now(),
	}}

	orch := New(cfg, source, sentiment, nil)

	results, err := orch.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("ошибка оценки: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("результатов %d, ожидалось 2", len(results))
	}

	// Порядок результатов повторяет порядок конфигурации
	if results[0].Timeframe != "1h" || results[1].Timeframe != "1d" {
		t.Fatalf("нарушен порядок результатов: %s, %s", results[0].Timeframe, results[1].Timeframe)
	}

	if results[0].Unavailable {
		t.Errorf("таймфрейм с достаточной историей недоступен: %s", results[0].UnavailableReason)
	}
	if !results[1].Unavailable {
		t.Error("таймфрейм с 10 свечами должен быть недоступен")
	}
	if !strings.Contains(results[1].UnavailableReason, models.ErrInsufficientHistory.Error()) {
		t.Errorf("причина %q не указывает на нехватку истории", results[1].UnavailableReason)
	}

	// Все результаты прохода видят одну и ту же цену
	for _, r := range results {
		if r.CurrentPrice != 44000 {
			t.Errorf("цена в результате %s = %.2f, ожидалось 44000", r.Timeframe, r.CurrentPrice)
		}
	}

	if results[0].SentimentValue == nil || *results[0].SentimentValue != 30 {
		t.Error("значение сентимента не попало в результат")
	}
}

func TestEvaluateAllWithoutSentiment(t *testing.T) {
	cfg := testConfig()
	source := &fakeCandles{
		price:  44000,
		counts: map[string]int{"1h": 250, "1d": 90},
	}
	sentiment := &fakeSentiment{err: errors.New("источник недоступен")}

	orch := New(cfg, source, sentiment, nil)

	results, err := orch.EvaluateAll(context.Background())
	if err != nil {
		t.Fatalf("недоступность сентимента не должна срывать оценку: %v", err)
	}

	for _, r := range results {
		if r.Unavailable {
			t.Errorf("таймфрейм %s недоступен без сентимента: %s", r.Timeframe, r.UnavailableReason)
		}
		if r.SentimentValue != nil {
			t.Errorf("таймфрейм %s содержит сентимент при отказавшем источнике", r.Timeframe)
		}
	}
}

func TestEvaluateAllPriceFailure(t *testing.T) {
	cfg := testConfig()
	source := &fakeCandles{priceErr: errors.New("биржа недоступна")}
	sentiment := &fakeSentiment{}

	orch := New(cfg, source, sentiment, nil)

	if _, err := orch.EvaluateAll(context.Background()); err == nil {
		t.Fatal("без текущей цены оценка должна завершаться ошибкой")
	}
}
