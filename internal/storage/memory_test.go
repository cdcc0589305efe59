package storage

import (
	"context"
	"testing"
	"time"

	"github.com/skalibog/mtpa/pkg/models"
)

func TestMemoryCandlesAscending(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Свечи сохраняются вперемешку
	var candles []models.Candle
	for _, i := range []int{3, 0, 4, 1, 2} {
		candles = append(candles, models.Candle{
			Symbol:   "BTCUSDT",
			Interval: "1h",
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Close:    100 + float64(i),
		})
	}
	if err := store.SaveCandles(ctx, candles); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	got, err := store.GetCandles(ctx, "BTCUSDT", "1h", 10)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("свечей %d, ожидалось 5", len(got))
	}
	if err := models.ValidateCandles(got); err != nil {
		t.Fatalf("хранилище вернуло неупорядоченные свечи: %v", err)
	}

	// Лимит отрезает старые свечи, оставляя последние
	got, err = store.GetCandles(ctx, "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if len(got) != 2 || got[0].Close != 103 || got[1].Close != 104 {
		t.Errorf("лимит вернул не последние свечи: %v", got)
	}
}

func TestMemoryCandleDeduplication(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()
	openTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := models.Candle{Symbol: "BTCUSDT", Interval: "1h", OpenTime: openTime, Close: 100}
	second := models.Candle{Symbol: "BTCUSDT", Interval: "1h", OpenTime: openTime, Close: 105}

	if err := store.SaveCandles(ctx, []models.Candle{first}); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	if err := store.SaveCandles(ctx, []models.Candle{second}); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	got, err := store.GetCandles(ctx, "BTCUSDT", "1h", 10)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("дубликат не заменен, свечей %d", len(got))
	}
	if got[0].Close != 105 {
		t.Errorf("сохранилась старая версия свечи: %.2f", got[0].Close)
	}
}

func TestMemorySignalHistory(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.SaveSignal(ctx, &models.TimeframeResult{
			Symbol: "BTCUSDT",
			Score:  i,
		})
		if err != nil {
			t.Fatalf("ошибка сохранения сигнала: %v", err)
		}
	}

	history, err := store.GetSignalHistory(ctx, "BTCUSDT", 3)
	if err != nil {
		t.Fatalf("ошибка чтения истории: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("сигналов %d, ожидалось 3", len(history))
	}
	// Новые сигналы первыми
	if history[0].Score != 4 || history[2].Score != 2 {
		t.Errorf("нарушен порядок истории: %d, %d", history[0].Score, history[2].Score)
	}
}

func TestMemoryClosedPositions(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.SaveClosedPosition(ctx, &models.Position{ID: id}); err != nil {
			t.Fatalf("ошибка сохранения позиции: %v", err)
		}
	}

	positions, err := store.GetClosedPositions(ctx, 2)
	if err != nil {
		t.Fatalf("ошибка чтения позиций: %v", err)
	}
	if len(positions) != 2 || positions[0].ID != "c" {
		t.Errorf("нарушен порядок закрытых позиций: %v", positions)
	}
}
