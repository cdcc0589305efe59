package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/models"
)

// InfluxDBStorage реализует интерфейс Storage с использованием InfluxDB
type InfluxDBStorage struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	writeAPI api.WriteAPI
	org      string
	bucket   string
}

// NewInfluxDBStorage создает новое хранилище InfluxDB
func NewInfluxDBStorage(cfg config.StorageConfig) (*InfluxDBStorage, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	// Проверка соединения
	health, err := client.Health(context.Background())
	if err != nil {
		return nil, fmt.Errorf("ошибка соединения с InfluxDB: %w", err)
	}
	if health == nil || health.Status != "pass" {
		return nil, fmt.Errorf("InfluxDB не в состоянии 'pass': %+v", health)
	}

	return &InfluxDBStorage{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Organization),
		writeAPI: client.WriteAPI(cfg.Organization, cfg.Bucket),
		org:      cfg.Organization,
		bucket:   cfg.Bucket,
	}, nil
}

// Close закрывает соединение с базой данных
func (s *InfluxDBStorage) Close() {
	s.writeAPI.Flush()
	s.client.Close()
}

// SaveCandles сохраняет множество свечей
func (s *InfluxDBStorage) SaveCandles(ctx context.Context, candles []models.Candle) error {
	for _, candle := range candles {
		point := influxdb2.NewPoint(
			"candles",
			map[string]string{
				"symbol":   candle.Symbol,
				"interval": candle.Interval,
			},
			map[string]interface{}{
				"open":   candle.Open,
				"high":   candle.High,
				"low":    candle.Low,
				"close":  candle.Close,
				"volume": candle.Volume,
			},
			candle.OpenTime,
		)
		s.writeAPI.WritePoint(point)
	}

	s.writeAPI.Flush()
	return nil
}

// GetCandles получает исторические свечи.
// Запрос берет последние limit записей убыванием, результат разворачивается:
// потребители рассчитывают на возрастающий порядок времени открытия
func (s *InfluxDBStorage) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -90d)
			|> filter(fn: (r) => r._measurement == "candles")
			|> filter(fn: (r) => r.symbol == "%s")
			|> filter(fn: (r) => r.interval == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, interval, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса свечей: %w", err)
	}

	var candles []models.Candle
	for result.Next() {
		record := result.Record()

		timestamp := record.Time()
		open, _ := record.ValueByKey("open").(float64)
		high, _ := record.ValueByKey("high").(float64)
		low, _ := record.ValueByKey("low").(float64)
		close, _ := record.ValueByKey("close").(float64)
		volume, _ := record.ValueByKey("volume").(float64)

		candles = append(candles, models.Candle{
			Symbol:    symbol,
			Interval:  interval,
			OpenTime:  timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
			CloseTime: timestamp.Add(intervalDuration(interval)),
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	// Разворот из убывающего порядка запроса в возрастающий
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}

	return candles, nil
}

// SaveSignal сохраняет результат оценки таймфрейма
func (s *InfluxDBStorage) SaveSignal(ctx context.Context, result *models.TimeframeResult) error {
	point := influxdb2.NewPoint(
		"signals",
		map[string]string{
			"symbol":    result.Symbol,
			"timeframe": result.Timeframe,
		},
		map[string]interface{}{
			"raw_score":      result.RawScore,
			"score":          result.Score,
			"recommendation": result.Recommendation,
			"action":         result.Action,
			"confidence":     result.Confidence,
			"price":          result.CurrentPrice,
			"unavailable":    result.Unavailable,
		},
		result.Timestamp,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetSignalHistory получает историю сигналов по символу
func (s *InfluxDBStorage) GetSignalHistory(ctx context.Context, symbol string, limit int) ([]*models.TimeframeResult, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -30d)
			|> filter(fn: (r) => r._measurement == "signals")
			|> filter(fn: (r) => r.symbol == "%s")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, symbol, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса истории сигналов: %w", err)
	}

	var signals []*models.TimeframeResult
	for result.Next() {
		record := result.Record()

		timeframe, _ := record.ValueByKey("timeframe").(string)
		rawScore, _ := record.ValueByKey("raw_score").(int64)
		score, _ := record.ValueByKey("score").(int64)
		recommendation, _ := record.ValueByKey("recommendation").(string)
		action, _ := record.ValueByKey("action").(string)
		confidence, _ := record.ValueByKey("confidence").(string)
		price, _ := record.ValueByKey("price").(float64)
		unavailable, _ := record.ValueByKey("unavailable").(bool)

		signals = append(signals, &models.TimeframeResult{
			Symbol:         symbol,
			Timeframe:      timeframe,
			Timestamp:      record.Time(),
			CurrentPrice:   price,
			RawScore:       int(rawScore),
			Score:          int(score),
			Recommendation: recommendation,
			Action:         action,
			Confidence:     confidence,
			Unavailable:    unavailable,
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return signals, nil
}

// SaveClosedPosition сохраняет закрытую позицию
func (s *InfluxDBStorage) SaveClosedPosition(ctx context.Context, position *models.Position) error {
	if position.ExitTime == nil {
		return fmt.Errorf("позиция %s не закрыта", position.ID)
	}

	point := influxdb2.NewPoint(
		"positions",
		map[string]string{
			"side":   position.Side,
			"reason": position.CloseReason,
		},
		map[string]interface{}{
			"id":          position.ID,
			"entry_price": position.EntryPrice,
			"exit_price":  position.ExitPrice,
			"size":        position.Size,
			"value":       position.Value,
			"pnl":         position.RealizedPnL,
			"pnl_pct":     position.RealizedPnLPct,
		},
		*position.ExitTime,
	)

	s.writeAPI.WritePoint(point)
	s.writeAPI.Flush()

	return nil
}

// GetClosedPositions получает историю закрытых позиций
func (s *InfluxDBStorage) GetClosedPositions(ctx context.Context, limit int) ([]*models.Position, error) {
	query := fmt.Sprintf(`
		from(bucket: "%s")
			|> range(start: -90d)
			|> filter(fn: (r) => r._measurement == "positions")
			|> pivot(rowKey:["_time"], columnKey: ["_field"], valueColumn: "_value")
			|> sort(columns: ["_time"], desc: true)
			|> limit(n: %d)
	`, s.bucket, limit)

	result, err := s.queryAPI.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса закрытых позиций: %w", err)
	}

	var positions []*models.Position
	for result.Next() {
		record := result.Record()

		exitTime := record.Time()
		id, _ := record.ValueByKey("id").(string)
		side, _ := record.ValueByKey("side").(string)
		reason, _ := record.ValueByKey("reason").(string)
		entryPrice, _ := record.ValueByKey("entry_price").(float64)
		exitPrice, _ := record.ValueByKey("exit_price").(float64)
		size, _ := record.ValueByKey("size").(float64)
		value, _ := record.ValueByKey("value").(float64)
		pnl, _ := record.ValueByKey("pnl").(float64)
		pnlPct, _ := record.ValueByKey("pnl_pct").(float64)

		positions = append(positions, &models.Position{
			ID:             id,
			Side:           side,
			Value:          value,
			EntryPrice:     entryPrice,
			Size:           size,
			ExitTime:       &exitTime,
			ExitPrice:      exitPrice,
			CloseReason:    reason,
			RealizedPnL:    pnl,
			RealizedPnLPct: pnlPct,
			Status:         models.PositionClosed,
		})
	}

	if result.Err() != nil {
		return nil, fmt.Errorf("ошибка при обработке результатов: %w", result.Err())
	}

	return positions, nil
}

// intervalDuration конвертирует строковый интервал в duration
func intervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "6h":
		return 6 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "12h":
		return 12 * time.Hour
	case "1d":
		return 24 * time.Hour
	case "3d":
		return 72 * time.Hour
	case "1w":
		return 7 * 24 * time.Hour
	default:
		return time.Hour
	}
}
