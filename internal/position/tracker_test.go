package position

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

func testRisk() config.RiskConfig {
	return config.RiskConfig{
		InitialCapital:  100000,
		EnforceCapital:  true,
		TrailingStopPct: 2.0,
		RiskPerTradePct: 2.0,
	}
}

func mustOpen(t *testing.T, tracker *Tracker, req OpenRequest) *models.Position {
	t.Helper()
	p, err := tracker.Open(req)
	if err != nil {
		t.Fatalf("ошибка открытия позиции: %v", err)
	}
	return p
}

func TestTrailingRatchetAndStopClose(t *testing.T) {
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:            models.SideLong,
		EntryPrice:      100,
		Size:            1,
		StopLoss:        95,
		TrailingStopPct: 2,
	})

	// Рост до 110: трейлинг подтягивает стоп к 110 * 0.98
	events := tracker.UpdateAll(110)
	if len(events) != 1 || events[0].Type != models.EventTrailingUpdated {
		t.Fatalf("ожидалось одно событие трейлинга, получено %v", events)
	}
	if math.Abs(p.CurrentStop-107.8) > 1e-9 {
		t.Fatalf("стоп после трейлинга %.4f, ожидалось 107.8", p.CurrentStop)
	}

	// Откат до 108: выше стопа, стоп не откатывается
	events = tracker.UpdateAll(108)
	if len(events) != 0 {
		t.Fatalf("откат выше стопа не должен давать событий, получено %v", events)
	}
	if math.Abs(p.CurrentStop-107.8) > 1e-9 {
		t.Fatalf("стоп откатился до %.4f", p.CurrentStop)
	}

	// Падение до 96: закрытие по цене тика, не по уровню стопа
	events = tracker.UpdateAll(96)
	if len(events) != 1 || events[0].Type != models.EventClosedStop {
		t.Fatalf("ожидалось закрытие по стопу, получено %v", events)
	}
	if p.CloseReason != models.CloseReasonStop {
		t.Errorf("причина закрытия %s, ожидалось stop", p.CloseReason)
	}
	if p.ExitPrice != 96 {
		t.Errorf("цена выхода %.2f, ожидалось 96", p.ExitPrice)
	}
	if p.RealizedPnL != -4 {
		t.Errorf("результат %.2f, ожидалось -4", p.RealizedPnL)
	}

	summary := tracker.Summary()
	if math.Abs(summary.CurrentCapital-99996) > 1e-9 {
		t.Errorf("капитал после закрытия %.2f, ожидалось 99996", summary.CurrentCapital)
	}
}

func TestShortSideMirror(t *testing.T) {
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:            models.SideShort,
		EntryPrice:      100,
		Size:            1,
		StopLoss:        105,
		TakeProfit:      90,
		TrailingStopPct: 2,
	})

	// Падение до 95: трейлинг опускает стоп к 95 * 1.02
	events := tracker.UpdateAll(95)
	if len(events) != 1 || events[0].Type != models.EventTrailingUpdated {
		t.Fatalf("ожидалось событие трейлинга, получено %v", events)
	}
	if math.Abs(p.CurrentStop-96.9) > 1e-9 {
		t.Fatalf("стоп после трейлинга %.4f, ожидалось 96.9", p.CurrentStop)
	}

	// Отскок до 97: выше стопа шорта, закрытие с фиксацией прибыли
	events = tracker.UpdateAll(97)
	if len(events) != 1 || events[0].Type != models.EventClosedStop {
		t.Fatalf("ожидалось закрытие по стопу, получено %v", events)
	}
	if p.RealizedPnL != 3 {
		t.Errorf("результат шорта %.2f, ожидалось 3", p.RealizedPnL)
	}
}

func TestTargetClose(t *testing.T) {
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:       models.SideLong,
		EntryPrice: 100,
		Size:       2,
		StopLoss:   95,
		TakeProfit: 110,
	})

	events := tracker.UpdateAll(111)
	if len(events) != 1 || events[0].Type != models.EventClosedTarget {
		t.Fatalf("ожидалось закрытие по цели, получено %v", events)
	}
	if p.CloseReason != models.CloseReasonTarget {
		t.Errorf("причина закрытия %s, ожидалось target", p.CloseReason)
	}
	if p.RealizedPnL != 22 {
		t.Errorf("результат %.2f, ожидалось 22", p.RealizedPnL)
	}
}

func TestNoTrailingUnlessRequested(t *testing.T) {
	// Конфигурация несет ненулевой процент трейлинга, но позиция
	// его не запрашивала: действует только явный стоп
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:       models.SideLong,
		EntryPrice: 100,
		Size:       1,
		StopLoss:   90,
	})

	if p.TrailingStopPct != 0 {
		t.Fatalf("незапрошенный трейлинг %.2f%% навязан позиции", p.TrailingStopPct)
	}

	if events := tracker.UpdateAll(100); len(events) != 0 {
		t.Fatalf("неожиданные события без трейлинга: %v", events)
	}
	events := tracker.UpdateAll(97)
	if len(events) != 0 {
		t.Fatalf("просадка выше явного стопа дала события: %v", events)
	}

	if p.CurrentStop != 90 {
		t.Errorf("стоп сдвинут на %.2f, ожидалось 90", p.CurrentStop)
	}
	if p.Status != models.PositionOpen {
		t.Errorf("позиция закрыта при цене 97 со стопом 90, статус %s", p.Status)
	}
}

func TestUpdateIdempotentPerTick(t *testing.T) {
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:            models.SideLong,
		EntryPrice:      100,
		Size:            1,
		StopLoss:        95,
		TrailingStopPct: 2,
	})

	events := tracker.UpdateAll(110)
	if len(events) != 1 || events[0].Type != models.EventTrailingUpdated {
		t.Fatalf("ожидалось событие трейлинга, получено %v", events)
	}
	stop := p.CurrentStop
	pnl := p.UnrealizedPnL

	// Повторный тик той же ценой: состояние не меняется, событий нет
	events = tracker.UpdateAll(110)
	if len(events) != 0 {
		t.Fatalf("повторный тик дал события: %v", events)
	}
	if p.CurrentStop != stop {
		t.Errorf("стоп изменился с %.4f на %.4f на повторном тике", stop, p.CurrentStop)
	}
	if p.UnrealizedPnL != pnl {
		t.Errorf("нереализованный результат изменился с %.4f на %.4f", pnl, p.UnrealizedPnL)
	}
	if p.Status != models.PositionOpen {
		t.Errorf("статус изменился на повторном тике: %s", p.Status)
	}
}

func TestOpenValidation(t *testing.T) {
	tracker := NewTracker(testRisk())

	cases := []struct {
		name string
		req  OpenRequest
	}{
		{"неизвестная сторона", OpenRequest{Side: "sideways", EntryPrice: 100, Size: 1}},
		{"нулевой размер", OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 0}},
		{"стоп выше входа лонга", OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 1, StopLoss: 105}},
		{"цель ниже входа лонга", OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 1, TakeProfit: 95}},
		{"стоп ниже входа шорта", OpenRequest{Side: models.SideShort, EntryPrice: 100, Size: 1, StopLoss: 95}},
		{"превышение капитала", OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 2000}},
	}

	for _, c := range cases {
		if _, err := tracker.Open(c.req); !errors.Is(err, models.ErrInvalidPositionRequest) {
			t.Errorf("%s: ожидалась ErrInvalidPositionRequest, получено %v", c.name, err)
		}
	}

	// Отклоненные запросы не меняют состояние
	summary := tracker.Summary()
	if summary.OpenPositions != 0 {
		t.Errorf("открытых позиций %d после отклоненных запросов", summary.OpenPositions)
	}
	if summary.CurrentCapital != 100000 {
		t.Errorf("капитал %.2f изменился после отклоненных запросов", summary.CurrentCapital)
	}
}

func TestCloseExactlyOnce(t *testing.T) {
	tracker := NewTracker(testRisk())

	p := mustOpen(t, tracker, OpenRequest{
		Side:       models.SideLong,
		EntryPrice: 100,
		Size:       1,
		StopLoss:   95,
	})

	if _, err := tracker.Close(p.ID, 103); err != nil {
		t.Fatalf("ошибка ручного закрытия: %v", err)
	}
	if p.CloseReason != models.CloseReasonManual {
		t.Errorf("причина закрытия %s, ожидалось manual", p.CloseReason)
	}

	if _, err := tracker.Close(p.ID, 104); !errors.Is(err, models.ErrPositionNotFound) {
		t.Errorf("повторное закрытие: ожидалась ErrPositionNotFound, получено %v", err)
	}
	if _, err := tracker.Update(p.ID, 104); !errors.Is(err, models.ErrPositionNotFound) {
		t.Errorf("обновление закрытой позиции: ожидалась ErrPositionNotFound, получено %v", err)
	}

	if len(tracker.ClosedPositions()) != 1 {
		t.Errorf("закрытых позиций %d, ожидалась 1", len(tracker.ClosedPositions()))
	}
}

func TestProfitFactor(t *testing.T) {
	tracker := NewTracker(testRisk())

	// Только прибыльная сделка: profit factor не определен
	p := mustOpen(t, tracker, OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 1})
	if _, err := tracker.Close(p.ID, 110); err != nil {
		t.Fatalf("ошибка закрытия: %v", err)
	}

	summary := tracker.Summary()
	if summary.ProfitFactor != nil {
		t.Errorf("без убыточных сделок profit factor должен отсутствовать, получено %v", *summary.ProfitFactor)
	}
	if summary.WinRate != 100 {
		t.Errorf("винрейт %.1f, ожидалось 100", summary.WinRate)
	}

	// После убыточной сделки фактор определен
	p = mustOpen(t, tracker, OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 1})
	if _, err := tracker.Close(p.ID, 95); err != nil {
		t.Fatalf("ошибка закрытия: %v", err)
	}

	summary = tracker.Summary()
	if summary.ProfitFactor == nil {
		t.Fatal("profit factor не рассчитан при наличии убытка")
	}
	if math.Abs(*summary.ProfitFactor-2) > 1e-9 {
		t.Errorf("profit factor %.4f, ожидалось 2", *summary.ProfitFactor)
	}
}

func TestDailyAccumulatorRollover(t *testing.T) {
	tracker := NewTracker(testRisk())

	day1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return day1 }

	p := mustOpen(t, tracker, OpenRequest{Side: models.SideLong, EntryPrice: 100, Size: 1})
	if _, err := tracker.Close(p.ID, 107); err != nil {
		t.Fatalf("ошибка закрытия: %v", err)
	}

	summary := tracker.Summary()
	if summary.DailyPnL != 7 || summary.DailyTrades != 1 {
		t.Fatalf("дневной аккумулятор %.2f/%d, ожидалось 7/1", summary.DailyPnL, summary.DailyTrades)
	}

	// Следующий день: аккумулятор сброшен, общий результат сохранен
	tracker.now = func() time.Time { return day1.Add(24 * time.Hour) }

	summary = tracker.Summary()
	if summary.DailyPnL != 0 || summary.DailyTrades != 0 {
		t.Errorf("дневной аккумулятор после смены даты %.2f/%d, ожидалось 0/0",
			summary.DailyPnL, summary.DailyTrades)
	}
	if summary.TotalPnL != 7 {
		t.Errorf("общий результат %.2f, ожидалось 7", summary.TotalPnL)
	}
}
