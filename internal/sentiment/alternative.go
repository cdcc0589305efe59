package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"github.com/skalibog/mtpa/internal/config"
	"github.com/skalibog/mtpa/pkg/logger"
	"github.com/skalibog/mtpa/pkg/models"
)

const fetchAttempts = 3

// Fetcher получает индекс страха и жадности с alternative.me.
// Значение кэшируется; при недоступности источника допускается
// устаревший кэш в пределах окна давности
type Fetcher struct {
	config config.SentimentConfig
	client *http.Client

	mu        sync.Mutex
	cached    *models.SentimentReading
	fetchedAt time.Time
}

// NewFetcher создает новый источник сентимента
func NewFetcher(cfg config.SentimentConfig) *Fetcher {
	return &Fetcher{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Ответ API alternative.me: числовые поля приходят строками
type apiResponse struct {
	Data []struct {
		Value     string `json:"value"`
		Timestamp string `json:"timestamp"`
	} `json:"data"`
}

// Get возвращает текущее значение индекса.
// Свежий кэш отдается без запроса; при сбое источника возвращается
// устаревшее значение, если оно не старше окна давности.
// Мьютекс защищает только кэш: сетевой запрос выполняется без блокировки
func (f *Fetcher) Get(ctx context.Context) (*models.SentimentReading, error) {
	f.mu.Lock()
	cached, fetchedAt := f.cached, f.fetchedAt
	f.mu.Unlock()

	cacheWindow := time.Duration(f.config.CacheMinutes) * time.Minute
	if cached != nil && time.Since(fetchedAt) < cacheWindow {
		return cached, nil
	}

	reading, err := f.fetch(ctx)
	if err != nil {
		staleWindow := time.Duration(f.config.StalenessHours) * time.Hour
		if cached != nil && time.Since(fetchedAt) < staleWindow {
			logger.Warn("Источник сентимента недоступен, используется устаревший кэш",
				zap.Time("fetched_at", fetchedAt),
				zap.Error(err))
			return cached, nil
		}
		return nil, fmt.Errorf("индекс страха и жадности: %w: %v", models.ErrDataUnavailable, err)
	}

	f.mu.Lock()
	f.cached = reading
	f.fetchedAt = time.Now()
	f.mu.Unlock()

	return reading, nil
}

// fetch запрашивает индекс с повторами и экспоненциальной задержкой
func (f *Fetcher) fetch(ctx context.Context) (*models.SentimentReading, error) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.Duration()):
			}
		}

		reading, err := f.fetchOnce(ctx)
		if err == nil {
			return reading, nil
		}
		lastErr = err
		logger.Debug("Ошибка запроса сентимента",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context) (*models.SentimentReading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("неожиданный статус ответа: %s", resp.Status)
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("пустой ответ источника")
	}

	value, err := strconv.Atoi(payload.Data[0].Value)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора значения %q: %w", payload.Data[0].Value, err)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("значение индекса %d вне диапазона 0-100", value)
	}

	timestamp := time.Now()
	if unix, err := strconv.ParseInt(payload.Data[0].Timestamp, 10, 64); err == nil {
		timestamp = time.Unix(unix, 0)
	}

	// Классификация считается локально по значению, ярлык источника
	// не используется
	return &models.SentimentReading{
		Value:          value,
		Classification: models.ClassifySentiment(value),
		Timestamp:      timestamp,
	}, nil
}
