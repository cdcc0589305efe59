package levels

import (
	"math"
	"testing"
	"time"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// flatCandles строит n одинаковых свечей с базовыми low/high
func flatCandles(n int, low, high float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      (low + high) / 2,
			High:      high,
			Low:       low,
			Close:     (low + high) / 2,
			Volume:    1000,
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return candles
}

func approx(got, want, eps float64) bool {
	return math.Abs(got-want) <= eps
}

func TestDetectClustersSwings(t *testing.T) {
	detector := NewDetector(config.Default().Analysis.Levels)

	candles := flatCandles(60, 109, 111)
	// Два провала в пределах допуска кластеризации и два близких пика
	candles[10].Low = 100
	candles[30].Low = 100.3
	candles[20].High = 120
	candles[40].High = 119.8

	set := detector.Detect(candles, 110)

	if len(set.Support) != 1 {
		t.Fatalf("ожидался один кластер поддержки, получено %d: %v", len(set.Support), set.Support)
	}
	if !approx(set.Support[0], 100.15, 1e-9) {
		t.Errorf("представитель кластера поддержки %.4f, ожидалось 100.15", set.Support[0])
	}

	if len(set.Resistance) != 1 {
		t.Fatalf("ожидался один кластер сопротивления, получено %d: %v", len(set.Resistance), set.Resistance)
	}
	if !approx(set.Resistance[0], 119.9, 1e-9) {
		t.Errorf("представитель кластера сопротивления %.4f, ожидалось 119.9", set.Resistance[0])
	}
}

func TestDetectCapsByProximity(t *testing.T) {
	detector := NewDetector(config.Default().Analysis.Levels)

	candles := flatCandles(60, 109, 111)
	lows := []float64{100, 95, 90, 85, 80, 75, 70}
	for i, low := range lows {
		candles[6+i*7].Low = low
	}

	set := detector.Detect(candles, 110)

	if len(set.Support) != 3 {
		t.Fatalf("уровни должны быть ограничены тремя, получено %d", len(set.Support))
	}
	if set.Support[0] != 100 {
		t.Errorf("первым должен идти ближайший уровень 100, получено %.2f", set.Support[0])
	}
}

func TestFibonacciFromLookback(t *testing.T) {
	detector := NewDetector(config.Default().Analysis.Levels)

	candles := flatCandles(60, 109, 111)
	candles[10].Low = 100
	candles[20].High = 120

	set := detector.Detect(candles, 110)

	if set.Fibonacci == nil {
		t.Fatal("уровни Фибоначчи не построены")
	}
	if set.Fibonacci.Level0 != 120 || set.Fibonacci.Level100 != 100 {
		t.Errorf("границы свинга %.2f/%.2f, ожидалось 120/100",
			set.Fibonacci.Level0, set.Fibonacci.Level100)
	}
	if !approx(set.Fibonacci.Level618, 120-0.618*20, 1e-9) {
		t.Errorf("уровень 61.8%% = %.4f, ожидалось %.4f", set.Fibonacci.Level618, 120-0.618*20)
	}
}

func TestFibonacciOmitted(t *testing.T) {
	detector := NewDetector(config.Default().Analysis.Levels)

	// Короткая история
	if set := detector.Detect(flatCandles(30, 109, 111), 110); set.Fibonacci != nil {
		t.Error("уровни Фибоначчи построены на короткой истории")
	}

	// Плоский диапазон
	if set := detector.Detect(flatCandles(60, 100, 100), 100); set.Fibonacci != nil {
		t.Error("уровни Фибоначчи построены на плоском диапазоне")
	}
}
