package indicators

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"
	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// Analyzer вычисляет технические индикаторы по последовательности свечей.
// Чистая функция своего окна: никакого состояния и заглядывания вперед
type Analyzer struct {
	config config.IndicatorConfig
}

// NewAnalyzer создает новый вычислитель индикаторов
func NewAnalyzer(cfg config.IndicatorConfig) *Analyzer {
	return &Analyzer{
		config: cfg,
	}
}

// Snapshot вычисляет значения индикаторов для последней свечи.
// Индикатор, которому не хватает истории, остается nil — это не ошибка
func (a *Analyzer) Snapshot(candles []models.Candle) (*models.IndicatorSnapshot, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("пустая последовательность свечей: %w", models.ErrInsufficientHistory)
	}

	n := len(candles)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)

	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	snap := &models.IndicatorSnapshot{}

	// Скользящие средние. EMA в talib стартует от простого среднего
	// первых period значений, без искажения начального переходного участка
	if n >= a.config.EMAFast {
		snap.EMA12 = last(talib.Ema(closes, a.config.EMAFast))
	}
	if n >= a.config.EMASlow {
		snap.EMA26 = last(talib.Ema(closes, a.config.EMASlow))
	}
	if n >= a.config.SMATrend {
		snap.SMA20 = last(talib.Sma(closes, a.config.SMATrend))
	}
	if n >= a.config.SMAMid {
		snap.SMA50 = last(talib.Sma(closes, a.config.SMAMid))
	}
	if n >= a.config.SMALong {
		snap.SMA200 = last(talib.Sma(closes, a.config.SMALong))
	}

	// Осцилляторы
	if n > a.config.RSIPeriod {
		snap.RSI = last(talib.Rsi(closes, a.config.RSIPeriod))
	}
	if n >= a.config.MACDSlow+a.config.MACDSignal {
		macd, signal, hist := talib.Macd(closes, a.config.MACDFast, a.config.MACDSlow, a.config.MACDSignal)
		snap.MACD = last(macd)
		snap.MACDSignal = last(signal)
		snap.MACDHist = last(hist)
	}
	if n >= a.config.StochPeriod+a.config.StochSmoothK+a.config.StochSmoothD {
		k, d := talib.Stoch(highs, lows, closes,
			a.config.StochPeriod, a.config.StochSmoothK, talib.SMA, a.config.StochSmoothD, talib.SMA)
		snap.StochK = last(k)
		snap.StochD = last(d)
	}

	// Волатильность
	if n >= a.config.BBPeriod {
		upper, middle, lower := talib.BBands(closes, a.config.BBPeriod, a.config.BBStdDev, a.config.BBStdDev, 0)
		snap.BBUpper = last(upper)
		snap.BBMiddle = last(middle)
		snap.BBLower = last(lower)
	}
	if n > a.config.ATRPeriod {
		snap.ATR = last(talib.Atr(highs, lows, closes, a.config.ATRPeriod))
	}

	// Сила тренда
	if n >= 2*a.config.ADXPeriod {
		snap.ADX = last(talib.Adx(highs, lows, closes, a.config.ADXPeriod))
	}

	// Объемы
	if n >= 2 {
		snap.OBV = last(talib.Obv(closes, volumes))
	}
	if n >= a.config.VolumePeriod {
		volumeSMA := talib.Sma(volumes, a.config.VolumePeriod)
		if avg := volumeSMA[len(volumeSMA)-1]; avg > 0 {
			ratio := volumes[n-1] / avg
			snap.VolumeRatio = &ratio
		}
	}

	// Направление тренда: цена относительно трендовой SMA
	if snap.SMA20 != nil {
		lastClose := closes[n-1]
		switch {
		case lastClose > *snap.SMA20:
			snap.Trend = 1
		case lastClose < *snap.SMA20:
			snap.Trend = -1
		}
	}

	return snap, nil
}

// PriceChangePct процент изменения цены закрытия за lookback свечей
func PriceChangePct(candles []models.Candle, lookback int) float64 {
	n := len(candles)
	if n <= lookback {
		return 0
	}
	base := candles[n-1-lookback].Close
	if base == 0 {
		return 0
	}
	return (candles[n-1].Close - base) / base * 100
}

// last возвращает последнее значение серии либо nil для NaN/Inf
func last(series []float64) *float64 {
	if len(series) == 0 {
		return nil
	}
	v := series[len(series)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
