package scoring

import (
	"fmt"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// Engine превращает снимок индикаторов, уровни и сентимент в подписанный
// счет с полным списком вкладов. Правила применяются в фиксированном
// порядке, поэтому список вкладов воспроизводим
type Engine struct {
	config config.ScoringConfig
	setup  config.SetupConfig
}

// NewEngine создает новый скоринговый движок
func NewEngine(scoring config.ScoringConfig, setup config.SetupConfig) *Engine {
	return &Engine{
		config: scoring,
		setup:  setup,
	}
}

// Input входные данные одной оценки. Счет — чистая функция этих полей
type Input struct {
	CurrentPrice   float64
	PriceChangePct float64
	Indicators     *models.IndicatorSnapshot
	Levels         *models.LevelSet
	Sentiment      *models.SentimentReading
}

// Result результат скоринга
type Result struct {
	RawScore       int
	Score          int
	Recommendation string
	Action         string
	Confidence     string
	Contributions  []models.Contribution
	Setup          models.TradeSetup
}

// Evaluate вычисляет счет, рекомендацию и параметры сделки.
// Каждый добавленный или снятый балл привязан к именованному правилу
func (e *Engine) Evaluate(in Input) Result {
	w := e.config.Weights
	t := e.config.Thresholds
	ind := in.Indicators
	if ind == nil {
		// Отсутствующий снимок индикаторов не начисляет баллов:
		// оценка остается тотальной по любому входу
		ind = &models.IndicatorSnapshot{}
	}
	price := in.CurrentPrice

	score := 0
	var contributions []models.Contribution
	add := func(label string, weight int) {
		score += weight
		contributions = append(contributions, models.Contribution{Label: label, Weight: weight})
	}

	// 1. Направление тренда
	switch ind.Trend {
	case 1:
		add("Подтвержден восходящий тренд", w.Trend)
	case -1:
		add("Подтвержден нисходящий тренд", -w.Trend)
	}

	// 2. Золотой/мертвый крест
	if ind.SMA50 != nil && ind.SMA200 != nil {
		if price > *ind.SMA50 && *ind.SMA50 > *ind.SMA200 {
			add("Формация золотого креста", w.Cross)
		} else if price < *ind.SMA50 && *ind.SMA50 < *ind.SMA200 {
			add("Формация мертвого креста", -w.Cross)
		}
	}

	// 3. RSI по зонам
	if ind.RSI != nil {
		rsi := *ind.RSI
		switch {
		case rsi < t.RSIOversold:
			add(fmt.Sprintf("RSI %.1f в зоне перепроданности", rsi), w.RSIExtreme)
		case rsi < t.RSILow:
			add(fmt.Sprintf("RSI %.1f приближается к перепроданности", rsi), w.RSIApproach)
		case rsi <= t.RSIHigh:
			add(fmt.Sprintf("RSI %.1f в здоровой зоне", rsi), w.RSINeutral)
		case rsi <= t.RSIOverbought:
			add(fmt.Sprintf("RSI %.1f приближается к перекупленности", rsi), -w.RSICaution)
		default:
			add(fmt.Sprintf("RSI %.1f в зоне перекупленности", rsi), -w.RSIExtreme)
		}
	}

	// 4. MACD относительно сигнальной линии
	if ind.MACD != nil && ind.MACDSignal != nil {
		macd, signal := *ind.MACD, *ind.MACDSignal
		switch {
		case macd > signal && macd > 0:
			add("Бычье пересечение MACD", w.MACDStrong)
		case macd > signal:
			add("MACD разворачивается вверх", w.MACDWeak)
		case macd < signal && macd < 0:
			add("Медвежье пересечение MACD", -w.MACDStrong)
		}
	}

	// 5. Стохастик на экстремуме
	if ind.StochK != nil {
		switch {
		case *ind.StochK < t.StochOversold:
			add("Стохастик перепродан", w.Stochastic)
		case *ind.StochK > t.StochOverbought:
			add("Стохастик перекуплен", -w.Stochastic)
		}
	}

	// 6. Положение в полосах Боллинджера
	if ind.BBUpper != nil && ind.BBLower != nil && *ind.BBUpper > *ind.BBLower {
		position := (price - *ind.BBLower) / (*ind.BBUpper - *ind.BBLower)
		switch {
		case position < t.BBLowerZone:
			add("Цена у нижней полосы Боллинджера", w.Bollinger)
		case position > t.BBUpperZone:
			add("Цена у верхней полосы Боллинджера", -w.Bollinger)
		}
	}

	// 7. Подтверждение силы тренда по ADX
	if ind.ADX != nil && *ind.ADX > t.ADXStrong {
		switch ind.Trend {
		case 1:
			add(fmt.Sprintf("Сильный восходящий тренд (ADX %.1f)", *ind.ADX), w.ADX)
		case -1:
			add(fmt.Sprintf("Сильный нисходящий тренд (ADX %.1f)", *ind.ADX), -w.ADX)
		}
	}

	// 8. Близость к поддержке
	if in.Levels != nil && len(in.Levels.Support) > 0 && price > 0 {
		nearest := in.Levels.Support[0]
		distance := (price - nearest) / price * 100
		switch {
		case distance < t.LevelNearPct:
			add(fmt.Sprintf("Рядом сильная поддержка %.2f", nearest), w.SupportNear)
		case distance < t.LevelApproachPct:
			add(fmt.Sprintf("Приближение к поддержке %.2f", nearest), w.SupportApproach)
		}
	}

	// 9. Близость к сопротивлению
	if in.Levels != nil && len(in.Levels.Resistance) > 0 && price > 0 {
		nearest := in.Levels.Resistance[0]
		distance := (nearest - price) / price * 100
		if distance < t.LevelNearPct {
			add(fmt.Sprintf("Рядом сильное сопротивление %.2f", nearest), -w.ResistanceNear)
		}
	}

	// 10. Объемное подтверждение движения
	if ind.VolumeRatio != nil && *ind.VolumeRatio >= t.VolumeSurgeRatio {
		if in.PriceChangePct > 0 {
			add(fmt.Sprintf("Высокий объем на росте (%.1fx)", *ind.VolumeRatio), w.VolumeSurge)
		} else {
			add(fmt.Sprintf("Высокий объем на падении (%.1fx)", *ind.VolumeRatio), -w.VolumeSurge)
		}
	}

	// 11. Сентимент как контртрендовый сигнал
	if in.Sentiment != nil {
		s := in.Sentiment
		switch {
		case s.IsExtremeFear():
			add(fmt.Sprintf("Экстремальный страх (%d) — контртрендовая покупка", s.Value), w.SentimentExtreme)
		case s.IsFear():
			add(fmt.Sprintf("Страх (%d) — хорошая точка входа", s.Value), w.SentimentModerate)
		case s.IsExtremeGreed():
			add(fmt.Sprintf("Экстремальная жадность (%d) — фиксация прибыли", s.Value), -w.SentimentExtreme)
		case s.IsGreed():
			add(fmt.Sprintf("Жадность (%d) — осторожность с покупками", s.Value), -w.SentimentModerate)
		}
	}

	// 12. Близость к уровню Фибоначчи 61.8%
	if in.Levels != nil && in.Levels.Fibonacci != nil && price > 0 {
		fib := in.Levels.Fibonacci.Level618
		if abs(price-fib)/price*100 < t.FibProximityPct {
			add(fmt.Sprintf("Рядом уровень Фибоначчи 61.8%% (%.2f)", fib), w.Fibonacci)
		}
	}

	clamped := clamp(score, e.config.MaxScore)
	recommendation, action, confidence := e.classify(clamped)

	return Result{
		RawScore:       score,
		Score:          clamped,
		Recommendation: recommendation,
		Action:         action,
		Confidence:     confidence,
		Contributions:  contributions,
		Setup:          e.buildSetup(action, price, ind.ATR, in.Levels),
	}
}

// classify отображает счет в класс рекомендации.
// Пороги фиксированы конфигурацией, отображение монотонно по счету
func (e *Engine) classify(score int) (recommendation, action, confidence string) {
	c := e.config.Classes
	switch {
	case score >= c.StrongBuy:
		return models.RecommendationStrongBuy, models.ActionBuy, "очень высокая"
	case score >= c.Buy:
		return models.RecommendationBuy, models.ActionBuy, "высокая"
	case score >= c.WeakBuy:
		return models.RecommendationWeakBuy, models.ActionBuy, "средняя"
	case score <= c.StrongSell:
		return models.RecommendationStrongSell, models.ActionSell, "очень высокая"
	case score <= c.Sell:
		return models.RecommendationSell, models.ActionSell, "высокая"
	case score <= c.WeakSell:
		return models.RecommendationWeakSell, models.ActionSell, "средняя"
	default:
		return models.RecommendationHold, models.ActionHold, "низкая"
	}
}

// buildSetup рассчитывает вход, стоп и лестницу целей от дистанции стопа.
// Для HOLD и при отсутствии ATR уровни не задаются; при нулевой дистанции
// риска соотношение риск/прибыль помечается недоступным, а не бесконечным
func (e *Engine) buildSetup(action string, price float64, atr *float64, levelSet *models.LevelSet) models.TradeSetup {
	setup := models.TradeSetup{Entry: price}

	if action == models.ActionHold || atr == nil {
		return setup
	}

	ladder := e.setup.TakeProfitLadder
	if len(ladder) < 3 {
		ladder = []float64{1.0, 1.5, 2.5}
	}

	stopDistance := *atr * e.setup.ATRMultiplier

	var stop, tp1, tp2, tp3 float64
	if action == models.ActionBuy {
		stop = price - stopDistance
		tp1 = price + stopDistance*ladder[0]
		tp2 = price + stopDistance*ladder[1]
		tp3 = price + stopDistance*ladder[2]

		// Подтяжка к структурным уровням: стоп под ближайшую поддержку,
		// первая цель не дальше ближайшего сопротивления
		if e.setup.SnapToLevels && levelSet != nil {
			if len(levelSet.Support) > 0 {
				if snapped := levelSet.Support[0] * 0.99; snapped > stop {
					stop = snapped
				}
			}
			if len(levelSet.Resistance) > 0 && levelSet.Resistance[0] < tp1 && levelSet.Resistance[0] > price {
				tp1 = levelSet.Resistance[0]
			}
		}
	} else {
		stop = price + stopDistance
		tp1 = price - stopDistance*ladder[0]
		tp2 = price - stopDistance*ladder[1]
		tp3 = price - stopDistance*ladder[2]
	}

	setup.StopLoss = &stop
	setup.TakeProfit1 = &tp1
	setup.TakeProfit2 = &tp2
	setup.TakeProfit3 = &tp3

	riskDistance := abs(price - stop)
	rewardDistance := abs(tp2 - price)
	if price > 0 {
		setup.RiskPct = riskDistance / price * 100
		setup.RewardPct = rewardDistance / price * 100
	}
	if riskDistance > 0 {
		ratio := rewardDistance / riskDistance
		setup.RiskReward = &ratio
	}

	return setup
}

func clamp(score, max int) int {
	if score > max {
		return max
	}
	if score < -max {
		return -max
	}
	return score
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
