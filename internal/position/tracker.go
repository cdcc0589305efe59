package position

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

// OpenRequest параметры открытия позиции
type OpenRequest struct {
	Side            string
	EntryPrice      float64
	Size            float64
	StopLoss        float64
	TakeProfit      float64
	TrailingStopPct float64
	EntryReason     string
	EntryConfidence string
	SentimentValue  *int
}

// Tracker ведет жизненный цикл позиций: открытие с проверками,
// обновление на каждом тике цены, трейлинг-стоп и закрытие ровно один раз.
// Все операции сериализуются мьютексом
type Tracker struct {
	mu     sync.Mutex
	config config.RiskConfig

	open   map[string]*models.Position
	closed []*models.Position

	// Свободный капитал: уменьшается на стоимость позиции при открытии,
	// возвращается вместе с результатом при закрытии
	capital float64

	dailyDate   string
	dailyPnL    float64
	dailyTrades int

	now func() time.Time
}

// NewTracker создает новый трекер позиций
func NewTracker(cfg config.RiskConfig) *Tracker {
	return &Tracker{
		config:  cfg,
		open:    make(map[string]*models.Position),
		capital: cfg.InitialCapital,
		now:     time.Now,
	}
}

// Open открывает позицию после проверки запроса.
// Отклоненный запрос не меняет ни капитал, ни список позиций
func (t *Tracker) Open(req OpenRequest) (*models.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if req.Side != models.SideLong && req.Side != models.SideShort {
		return nil, fmt.Errorf("неизвестное направление %q: %w", req.Side, models.ErrInvalidPositionRequest)
	}
	if req.Size <= 0 || req.EntryPrice <= 0 {
		return nil, fmt.Errorf("неположительный размер или цена входа: %w", models.ErrInvalidPositionRequest)
	}

	// Стоп и цель должны лежать с правильной стороны от входа
	if req.Side == models.SideLong {
		if req.StopLoss > 0 && req.StopLoss >= req.EntryPrice {
			return nil, fmt.Errorf("стоп %.2f не ниже входа %.2f: %w",
				req.StopLoss, req.EntryPrice, models.ErrInvalidPositionRequest)
		}
		if req.TakeProfit > 0 && req.TakeProfit <= req.EntryPrice {
			return nil, fmt.Errorf("цель %.2f не выше входа %.2f: %w",
				req.TakeProfit, req.EntryPrice, models.ErrInvalidPositionRequest)
		}
	} else {
		if req.StopLoss > 0 && req.StopLoss <= req.EntryPrice {
			return nil, fmt.Errorf("стоп %.2f не выше входа %.2f: %w",
				req.StopLoss, req.EntryPrice, models.ErrInvalidPositionRequest)
		}
		if req.TakeProfit > 0 && req.TakeProfit >= req.EntryPrice {
			return nil, fmt.Errorf("цель %.2f не ниже входа %.2f: %w",
				req.TakeProfit, req.EntryPrice, models.ErrInvalidPositionRequest)
		}
	}

	value := req.EntryPrice * req.Size
	if t.config.EnforceCapital && value > t.capital {
		return nil, fmt.Errorf("стоимость %.2f превышает свободный капитал %.2f: %w",
			value, t.capital, models.ErrInvalidPositionRequest)
	}

	p := &models.Position{
		ID:              uuid.NewString(),
		Side:            req.Side,
		Value:           value,
		EntryTime:       t.now(),
		EntryPrice:      req.EntryPrice,
		Size:            req.Size,
		StopLoss:        req.StopLoss,
		TakeProfit:      req.TakeProfit,
		// Нулевой процент означает "без трейлинга": позиция живет
		// с тем стопом, который запросил вызывающий
		TrailingStopPct: req.TrailingStopPct,
		CurrentStop:     req.StopLoss,
		HighestPrice:    req.EntryPrice,
		LowestPrice:     req.EntryPrice,
		CurrentPrice:    req.EntryPrice,
		Status:          models.PositionOpen,
		EntryReason:     req.EntryReason,
		EntryConfidence: req.EntryConfidence,
		SentimentValue:  req.SentimentValue,
	}

	t.open[p.ID] = p
	t.capital -= value

	logger.Info("Позиция открыта",
		zap.String("id", p.ID),
		zap.String("side", p.Side),
		zap.Float64("entry", p.EntryPrice),
		zap.Float64("size", p.Size),
		zap.Float64("stop", p.StopLoss))

	return p, nil
}

// UpdateAll обновляет все открытые позиции новой ценой.
// Позиции обходятся в стабильном порядке, поэтому список событий
// воспроизводим для одинаковой последовательности цен
func (t *Tracker) UpdateAll(price float64) []models.PositionEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.open))
	for id := range t.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var events []models.PositionEvent
	for _, id := range ids {
		events = append(events, t.updateLocked(t.open[id], price)...)
	}
	return events
}

// Update обновляет одну позицию новой ценой
func (t *Tracker) Update(id string, price float64) ([]models.PositionEvent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.open[id]
	if !ok {
		return nil, fmt.Errorf("позиция %s: %w", id, models.ErrPositionNotFound)
	}
	return t.updateLocked(p, price), nil
}

func (t *Tracker) updateLocked(p *models.Position, price float64) []models.PositionEvent {
	p.CurrentPrice = price
	if price > p.HighestPrice {
		p.HighestPrice = price
	}
	if price < p.LowestPrice {
		p.LowestPrice = price
	}

	p.UnrealizedPnL = unrealized(p, price)
	if p.Value > 0 {
		p.UnrealizedPnLPct = p.UnrealizedPnL / p.Value * 100
	}

	var events []models.PositionEvent

	// Трейлинг: кандидат от экстремума, стоп двигается только
	// в защитную сторону и никогда не откатывается
	if p.TrailingStopPct > 0 {
		if p.Side == models.SideLong {
			candidate := p.HighestPrice * (1 - p.TrailingStopPct/100)
			if candidate > p.CurrentStop {
				p.CurrentStop = candidate
				events = append(events, models.PositionEvent{
					PositionID: p.ID,
					Type:       models.EventTrailingUpdated,
					Price:      price,
					Stop:       p.CurrentStop,
				})
			}
		} else {
			candidate := p.LowestPrice * (1 + p.TrailingStopPct/100)
			if p.CurrentStop == 0 || candidate < p.CurrentStop {
				p.CurrentStop = candidate
				events = append(events, models.PositionEvent{
					PositionID: p.ID,
					Type:       models.EventTrailingUpdated,
					Price:      price,
					Stop:       p.CurrentStop,
				})
			}
		}
	}

	// Закрытие по цене тика, а не по уровню стопа или цели
	stopHit := p.CurrentStop > 0 &&
		((p.Side == models.SideLong && price <= p.CurrentStop) ||
			(p.Side == models.SideShort && price >= p.CurrentStop))
	if stopHit {
		t.closeLocked(p, price, models.CloseReasonStop)
		events = append(events, models.PositionEvent{
			PositionID: p.ID,
			Type:       models.EventClosedStop,
			Price:      price,
			Stop:       p.CurrentStop,
			PnL:        p.RealizedPnL,
		})
		return events
	}

	targetHit := p.TakeProfit > 0 &&
		((p.Side == models.SideLong && price >= p.TakeProfit) ||
			(p.Side == models.SideShort && price <= p.TakeProfit))
	if targetHit {
		t.closeLocked(p, price, models.CloseReasonTarget)
		events = append(events, models.PositionEvent{
			PositionID: p.ID,
			Type:       models.EventClosedTarget,
			Price:      price,
			PnL:        p.RealizedPnL,
		})
	}

	return events
}

// Close закрывает позицию вручную по указанной цене
func (t *Tracker) Close(id string, price float64) (*models.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.open[id]
	if !ok {
		return nil, fmt.Errorf("позиция %s: %w", id, models.ErrPositionNotFound)
	}
	t.closeLocked(p, price, models.CloseReasonManual)
	return p, nil
}

// closeLocked завершает позицию ровно один раз: запись удаляется из
// открытых до выставления полей закрытия, повторное закрытие невозможно
func (t *Tracker) closeLocked(p *models.Position, price float64, reason string) {
	delete(t.open, p.ID)

	exitTime := t.now()
	p.ExitTime = &exitTime
	p.ExitPrice = price
	p.CloseReason = reason
	p.Status = models.PositionClosed
	p.RealizedPnL = unrealized(p, price)
	if p.Value > 0 {
		p.RealizedPnLPct = p.RealizedPnL / p.Value * 100
	}
	p.UnrealizedPnL = 0
	p.UnrealizedPnLPct = 0

	t.closed = append(t.closed, p)
	t.capital += p.Value + p.RealizedPnL

	t.rollDailyLocked()
	t.dailyPnL += p.RealizedPnL
	t.dailyTrades++

	logger.Info("Позиция закрыта",
		zap.String("id", p.ID),
		zap.String("reason", reason),
		zap.Float64("exit", price),
		zap.Float64("pnl", p.RealizedPnL))
}

// rollDailyLocked сбрасывает дневной аккумулятор при смене даты
func (t *Tracker) rollDailyLocked() {
	date := t.now().Format("2006-01-02")
	if date != t.dailyDate {
		t.dailyDate = date
		t.dailyPnL = 0
		t.dailyTrades = 0
	}
}

// OpenPositions возвращает снимок открытых позиций в стабильном порядке
func (t *Tracker) OpenPositions() []*models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	positions := make([]*models.Position, 0, len(t.open))
	for _, p := range t.open {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].EntryTime.Before(positions[j].EntryTime)
	})
	return positions
}

// ClosedPositions возвращает снимок закрытых позиций в порядке закрытия
func (t *Tracker) ClosedPositions() []*models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	positions := make([]*models.Position, len(t.closed))
	copy(positions, t.closed)
	return positions
}

// Summary пересчитывает сводку портфеля по текущему состоянию.
// Profit factor не считается при отсутствии убыточных сделок
func (t *Tracker) Summary() models.PortfolioSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollDailyLocked()

	s := models.PortfolioSummary{
		InitialCapital:  t.config.InitialCapital,
		OpenPositions:   len(t.open),
		ClosedPositions: len(t.closed),
		TotalTrades:     len(t.closed),
		DailyPnL:        t.dailyPnL,
		DailyTrades:     t.dailyTrades,
	}

	grossProfit := 0.0
	grossLoss := 0.0
	for _, p := range t.closed {
		s.TotalPnL += p.RealizedPnL
		if p.RealizedPnL > 0 {
			s.WinningTrades++
			grossProfit += p.RealizedPnL
		} else if p.RealizedPnL < 0 {
			s.LosingTrades++
			grossLoss += -p.RealizedPnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}
	if s.WinningTrades > 0 {
		s.AvgWin = grossProfit / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = grossLoss / float64(s.LosingTrades)
		factor := grossProfit / grossLoss
		s.ProfitFactor = &factor
	}

	openValue := 0.0
	for _, p := range t.open {
		s.OpenPnL += p.UnrealizedPnL
		openValue += p.Value
	}

	s.CurrentCapital = t.capital + openValue + s.OpenPnL
	s.TotalReturn = s.CurrentCapital - s.InitialCapital
	if s.InitialCapital > 0 {
		s.TotalReturnPct = s.TotalReturn / s.InitialCapital * 100
	}

	return s
}

// unrealized считает нереализованный результат позиции по цене
func unrealized(p *models.Position, price float64) float64 {
	if p.Side == models.SideShort {
		return (p.EntryPrice - price) * p.Size
	}
	return (price - p.EntryPrice) * p.Size
}
