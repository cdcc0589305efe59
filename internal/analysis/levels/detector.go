package levels

import (
	"math"
	"sort"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// Detector находит уровни поддержки/сопротивления и Фибоначчи
type Detector struct {
	config config.LevelsConfig
}

// NewDetector создает новый детектор уровней
func NewDetector(cfg config.LevelsConfig) *Detector {
	return &Detector{
		config: cfg,
	}
}

// Detect строит набор уровней по последовательности свечей.
// Уровни отсортированы по близости к текущей цене и ограничены MaxLevels.
// Фибоначчи опускается, если валидный свинг не найден
func (d *Detector) Detect(candles []models.Candle, currentPrice float64) *models.LevelSet {
	set := &models.LevelSet{}

	// Число соседей для сравнения экстремумов с каждой стороны
	order := d.config.Window / 4
	if order < 1 {
		order = 1
	}

	swingHighs, swingLows := findSwings(candles, order)

	resistance := d.clusterLevels(swingHighs)
	support := d.clusterLevels(swingLows)

	set.Resistance = nearestLevels(resistance, currentPrice, d.config.MaxLevels)
	set.Support = nearestLevels(support, currentPrice, d.config.MaxLevels)
	set.Fibonacci = d.fibonacci(candles)

	return set
}

// findSwings находит локальные экстремумы: свеча считается свингом,
// если ее high/low строго превышает соседей в пределах order с обеих сторон
func findSwings(candles []models.Candle, order int) (highs, lows []float64) {
	for i := order; i < len(candles)-order; i++ {
		isHigh := true
		isLow := true
		for j := 1; j <= order; j++ {
			if candles[i].High <= candles[i-j].High || candles[i].High <= candles[i+j].High {
				isHigh = false
			}
			if candles[i].Low >= candles[i-j].Low || candles[i].Low >= candles[i+j].Low {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		if isHigh {
			highs = append(highs, candles[i].High)
		}
		if isLow {
			lows = append(lows, candles[i].Low)
		}
	}
	return highs, lows
}

// clusterLevels сливает близкие экстремумы в кластеры: членами кластера
// становятся цены в пределах допуска (процент от цены), представитель —
// среднее кластера
func (d *Detector) clusterLevels(prices []float64) []float64 {
	if len(prices) == 0 {
		return nil
	}

	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	tolerance := d.config.ClusterTolerancePct / 100

	var clusters []float64
	current := []float64{sorted[0]}

	for _, price := range sorted[1:] {
		if price <= current[len(current)-1]*(1+tolerance) {
			current = append(current, price)
			continue
		}
		clusters = append(clusters, mean(current))
		current = []float64{price}
	}
	clusters = append(clusters, mean(current))

	return clusters
}

// nearestLevels сортирует уровни по удалению от текущей цены и обрезает до max
func nearestLevels(levels []float64, currentPrice float64, max int) []float64 {
	if len(levels) == 0 {
		return nil
	}
	sorted := make([]float64, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i]-currentPrice) < math.Abs(sorted[j]-currentPrice)
	})
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// fibonacci строит уровни коррекции от максимума и минимума последних
// FibLookback свечей. Плоский диапазон — нет уровней, а не нули
func (d *Detector) fibonacci(candles []models.Candle) *models.FibonacciLevels {
	if len(candles) < d.config.FibLookback {
		return nil
	}

	window := candles[len(candles)-d.config.FibLookback:]
	high := window[0].High
	low := window[0].Low
	for _, c := range window[1:] {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}

	diff := high - low
	if diff <= 0 {
		return nil
	}

	return &models.FibonacciLevels{
		Level0:   high,
		Level236: high - 0.236*diff,
		Level382: high - 0.382*diff,
		Level500: high - 0.500*diff,
		Level618: high - 0.618*diff,
		Level786: high - 0.786*diff,
		Level100: low,
	}
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
