package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

// CandleStore принимает собранные свечи на хранение
type CandleStore interface {
	SaveCandles(ctx context.Context, candles []models.Candle) error
}

// CandleCollector периодически забирает свечи всех таймфреймов
// и складывает их в хранилище. Сбой одного таймфрейма не прерывает
// обход остальных
type CandleCollector struct {
	client  *BinanceClient
	store   CandleStore
	trading config.TradingConfig
}

// NewCandleCollector создает новый сборщик свечей
func NewCandleCollector(client *BinanceClient, store CandleStore, trading config.TradingConfig) *CandleCollector {
	return &CandleCollector{
		client:  client,
		store:   store,
		trading: trading,
	}
}

// Run запускает цикл сбора до отмены контекста.
// Первый проход выполняется сразу, далее по тикеру
func (c *CandleCollector) Run(ctx context.Context) {
	interval := time.Duration(c.trading.PollSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	c.collect(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Сборщик свечей остановлен")
			return
		case <-ticker.C:
			c.collect(ctx)
		}
	}
}

func (c *CandleCollector) collect(ctx context.Context) {
	for _, tf := range c.trading.Timeframes {
		candles, err := c.client.GetCandles(ctx, c.trading.Symbol, tf.ID, tf.CandleLimit)
		if err != nil {
			logger.Warn("Ошибка сбора свечей",
				zap.String("timeframe", tf.ID),
				zap.Error(err))
			continue
		}

		if c.store == nil {
			continue
		}
		if err := c.store.SaveCandles(ctx, candles); err != nil {
			logger.Error("Ошибка сохранения свечей",
				zap.String("timeframe", tf.ID),
				zap.Error(err))
		}
	}
}
