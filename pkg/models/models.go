package models

import (
	"fmt"
	"time"
)

// Candle представляет свечу
type Candle struct {
	Symbol    string
	Interval  string
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}

// ValidateCandles проверяет последовательность свечей на границе загрузки:
// время открытия должно строго возрастать, дубликаты недопустимы
func ValidateCandles(candles []Candle) error {
	for i := 1; i < len(candles); i++ {
		if !candles[i].OpenTime.After(candles[i-1].OpenTime) {
			return fmt.Errorf("нарушен порядок свечей на индексе %d: %s не позже %s",
				i, candles[i].OpenTime, candles[i-1].OpenTime)
		}
	}
	return nil
}

// Классификации индекса страха и жадности
const (
	SentimentExtremeFear  = "extreme_fear"
	SentimentFear         = "fear"
	SentimentNeutral      = "neutral"
	SentimentGreed        = "greed"
	SentimentExtremeGreed = "extreme_greed"
)

// SentimentReading представляет снимок индекса страха и жадности
type SentimentReading struct {
	Value          int
	Classification string
	Timestamp      time.Time
}

// ClassifySentiment возвращает классификацию для значения индекса 0-100
func ClassifySentiment(value int) string {
	switch {
	case value < 25:
		return SentimentExtremeFear
	case value < 45:
		return SentimentFear
	case value < 55:
		return SentimentNeutral
	case value <= 75:
		return SentimentGreed
	default:
		return SentimentExtremeGreed
	}
}

// IsExtremeFear сообщает, находится ли индекс в зоне экстремального страха
func (s *SentimentReading) IsExtremeFear() bool { return s.Classification == SentimentExtremeFear }

// IsFear сообщает, находится ли индекс в зоне страха
func (s *SentimentReading) IsFear() bool { return s.Classification == SentimentFear }

// IsGreed сообщает, находится ли индекс в зоне жадности
func (s *SentimentReading) IsGreed() bool { return s.Classification == SentimentGreed }

// IsExtremeGreed сообщает, находится ли индекс в зоне экстремальной жадности
func (s *SentimentReading) IsExtremeGreed() bool { return s.Classification == SentimentExtremeGreed }

// IndicatorSnapshot содержит значения индикаторов для последней свечи.
// Поля-указатели остаются nil, пока истории недостаточно для расчета:
// отсутствующее значение означает "индикатор неприменим", а не ноль
type IndicatorSnapshot struct {
	EMA12       *float64
	EMA26       *float64
	SMA20       *float64
	SMA50       *float64
	SMA200      *float64
	RSI         *float64
	MACD        *float64
	MACDSignal  *float64
	MACDHist    *float64
	StochK      *float64
	StochD      *float64
	BBUpper     *float64
	BBMiddle    *float64
	BBLower     *float64
	ATR         *float64
	ADX         *float64
	OBV         *float64
	VolumeRatio *float64
	// Trend: 1 — восходящий, -1 — нисходящий, 0 — боковик или нет данных
	Trend int
}

// FibonacciLevels уровни коррекции Фибоначчи от последнего значимого свинга
type FibonacciLevels struct {
	Level0   float64 // 0% (максимум свинга)
	Level236 float64
	Level382 float64
	Level500 float64
	Level618 float64
	Level786 float64
	Level100 float64 // 100% (минимум свинга)
}

// LevelSet набор уровней поддержки/сопротивления и Фибоначчи.
// Fibonacci равен nil, если валидный свинг не найден
type LevelSet struct {
	Support    []float64
	Resistance []float64
	Fibonacci  *FibonacciLevels
}

// Contribution одно именованное правило, повлиявшее на счет
type Contribution struct {
	Label  string
	Weight int
}

// Классы рекомендаций
const (
	RecommendationStrongBuy  = "strong_buy"
	RecommendationBuy        = "buy"
	RecommendationWeakBuy    = "weak_buy"
	RecommendationHold       = "hold"
	RecommendationWeakSell   = "weak_sell"
	RecommendationSell       = "sell"
	RecommendationStrongSell = "strong_sell"
)

// Направления сделки
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// TradeSetup параметры входа/выхода для рекомендации.
// Уровни равны nil для рекомендации HOLD; RiskReward равен nil,
// когда дистанция риска нулевая
type TradeSetup struct {
	Entry       float64
	StopLoss    *float64
	TakeProfit1 *float64
	TakeProfit2 *float64
	TakeProfit3 *float64
	RiskPct     float64
	RewardPct   float64
	RiskReward  *float64
}

// TimeframeResult результат оценки одного таймфрейма.
// Создается заново при каждой оценке и не мутируется
type TimeframeResult struct {
	Symbol        string
	Timeframe     string
	TimeframeName string
	Timestamp     time.Time
	CurrentPrice  float64

	// RawScore — сумма весов до ограничения, Score — после
	RawScore       int
	Score          int
	Recommendation string
	Action         string
	Confidence     string

	Setup         TradeSetup
	Contributions []Contribution
	Indicators    *IndicatorSnapshot
	Levels        *LevelSet

	SentimentValue *int
	SentimentClass string

	// Unavailable выставляется, когда данные таймфрейма недоступны;
	// остальные таймфреймы при этом продолжают работу
	Unavailable       bool
	UnavailableReason string
}

// Статусы позиции
const (
	PositionOpen   = "open"
	PositionClosed = "closed"
)

// Направления позиции
const (
	SideLong  = "long"
	SideShort = "short"
)

// Причины закрытия позиции
const (
	CloseReasonStop   = "stop"
	CloseReasonTarget = "target"
	CloseReasonManual = "manual"
)

// Position запись о позиции. Мутируется трекером на каждом тике цены,
// пока открыта; переход в closed происходит ровно один раз
type Position struct {
	ID    string
	Side  string
	Value float64

	EntryTime  time.Time
	EntryPrice float64
	Size       float64

	StopLoss        float64
	TakeProfit      float64
	TrailingStopPct float64
	// CurrentStop — действующий стоп с учетом трейлинга;
	// двигается только в защитную сторону
	CurrentStop float64

	HighestPrice float64
	LowestPrice  float64
	CurrentPrice float64

	UnrealizedPnL    float64
	UnrealizedPnLPct float64

	ExitTime       *time.Time
	ExitPrice      float64
	CloseReason    string
	RealizedPnL    float64
	RealizedPnLPct float64

	Status string

	EntryReason     string
	EntryConfidence string
	SentimentValue  *int
}

// Типы событий позиции
const (
	EventTrailingUpdated = "trailing_updated"
	EventClosedStop      = "closed_stop"
	EventClosedTarget    = "closed_target"
)

// PositionEvent событие изменения состояния позиции при обновлении цены
type PositionEvent struct {
	PositionID string
	Type       string
	Price      float64
	Stop       float64
	PnL        float64
}

// PortfolioSummary сводка портфеля, пересчитывается по требованию.
// ProfitFactor равен nil, когда убыточных сделок нет
type PortfolioSummary struct {
	InitialCapital  float64
	CurrentCapital  float64
	TotalReturn     float64
	TotalReturnPct  float64
	TotalTrades     int
	OpenPositions   int
	ClosedPositions int
	WinningTrades   int
	LosingTrades    int
	WinRate         float64
	ProfitFactor    *float64
	TotalPnL        float64
	DailyPnL        float64
	DailyTrades     int
	AvgWin          float64
	AvgLoss         float64
	OpenPnL         float64
}
