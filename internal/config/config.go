package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config представляет полную конфигурацию приложения.
// Все периоды индикаторов, веса правил и пороги живут здесь:
// одно и то же значение конфигурации воспроизводит одинаковую оценку
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Binance   BinanceConfig   `yaml:"binance"`
	Trading   TradingConfig   `yaml:"trading"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Risk      RiskConfig      `yaml:"risk"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Storage   StorageConfig   `yaml:"storage"`
	UI        UIConfig        `yaml:"ui"`
}

// BinanceConfig содержит настройки подключения к Binance
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Testnet   bool   `yaml:"testnet"`
}

// TimeframeConfig описывает один таймфрейм анализа
type TimeframeConfig struct {
	ID          string `yaml:"id"`           // интервал Binance: 15m, 1h, 4h, 1d, 1w
	Name        string `yaml:"name"`         // человекочитаемое имя
	CandleLimit int    `yaml:"candle_limit"` // глубина истории в свечах
}

// TradingConfig содержит настройки торговли
type TradingConfig struct {
	Symbol       string            `yaml:"symbol"`
	Timeframes   []TimeframeConfig `yaml:"timeframes"`
	PollSeconds  int               `yaml:"poll_seconds"`
	PaperTrading bool              `yaml:"paper_trading"`
}

// AnalysisConfig содержит настройки аналитического конвейера
type AnalysisConfig struct {
	IntervalSeconds int             `yaml:"interval_seconds"`
	TimeoutSeconds  int             `yaml:"timeout_seconds"`
	MinCandles      int             `yaml:"min_candles"`
	Indicators      IndicatorConfig `yaml:"indicators"`
	Levels          LevelsConfig    `yaml:"levels"`
	Scoring         ScoringConfig   `yaml:"scoring"`
	Setup           SetupConfig     `yaml:"setup"`
}

// IndicatorConfig периоды технических индикаторов
type IndicatorConfig struct {
	EMAFast      int     `yaml:"ema_fast"`
	EMASlow      int     `yaml:"ema_slow"`
	SMATrend     int     `yaml:"sma_trend"`
	SMAMid       int     `yaml:"sma_mid"`
	SMALong      int     `yaml:"sma_long"`
	RSIPeriod    int     `yaml:"rsi_period"`
	MACDFast     int     `yaml:"macd_fast"`
	MACDSlow     int     `yaml:"macd_slow"`
	MACDSignal   int     `yaml:"macd_signal"`
	StochPeriod  int     `yaml:"stoch_period"`
	StochSmoothK int     `yaml:"stoch_smooth_k"`
	StochSmoothD int     `yaml:"stoch_smooth_d"`
	BBPeriod     int     `yaml:"bb_period"`
	BBStdDev     float64 `yaml:"bb_std_dev"`
	ATRPeriod    int     `yaml:"atr_period"`
	ADXPeriod    int     `yaml:"adx_period"`
	VolumePeriod int     `yaml:"volume_period"`
}

// LevelsConfig настройки детектора уровней
type LevelsConfig struct {
	Window              int     `yaml:"window"`
	MaxLevels           int     `yaml:"max_levels"`
	ClusterTolerancePct float64 `yaml:"cluster_tolerance_pct"`
	FibLookback         int     `yaml:"fib_lookback"`
}

// ScoringConfig настройки скоринга
type ScoringConfig struct {
	MaxScore   int              `yaml:"max_score"`
	Weights    WeightsConfig    `yaml:"weights"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Classes    ClassConfig      `yaml:"classes"`
}

// WeightsConfig веса правил скоринга, симметричные для зеркальных условий
type WeightsConfig struct {
	Trend             int `yaml:"trend"`
	Cross             int `yaml:"cross"`
	RSIExtreme        int `yaml:"rsi_extreme"`
	RSIApproach       int `yaml:"rsi_approach"`
	RSINeutral        int `yaml:"rsi_neutral"`
	RSICaution        int `yaml:"rsi_caution"`
	MACDStrong        int `yaml:"macd_strong"`
	MACDWeak          int `yaml:"macd_weak"`
	Stochastic        int `yaml:"stochastic"`
	Bollinger         int `yaml:"bollinger"`
	ADX               int `yaml:"adx"`
	SupportNear       int `yaml:"support_near"`
	SupportApproach   int `yaml:"support_approach"`
	ResistanceNear    int `yaml:"resistance_near"`
	VolumeSurge       int `yaml:"volume_surge"`
	SentimentExtreme  int `yaml:"sentiment_extreme"`
	SentimentModerate int `yaml:"sentiment_moderate"`
	Fibonacci         int `yaml:"fibonacci"`
}

// ThresholdsConfig пороговые значения правил скоринга
type ThresholdsConfig struct {
	RSIOversold      float64 `yaml:"rsi_oversold"`
	RSILow           float64 `yaml:"rsi_low"`
	RSIHigh          float64 `yaml:"rsi_high"`
	RSIOverbought    float64 `yaml:"rsi_overbought"`
	StochOversold    float64 `yaml:"stoch_oversold"`
	StochOverbought  float64 `yaml:"stoch_overbought"`
	BBLowerZone      float64 `yaml:"bb_lower_zone"`
	BBUpperZone      float64 `yaml:"bb_upper_zone"`
	ADXStrong        float64 `yaml:"adx_strong"`
	LevelNearPct     float64 `yaml:"level_near_pct"`
	LevelApproachPct float64 `yaml:"level_approach_pct"`
	FibProximityPct  float64 `yaml:"fib_proximity_pct"`
	VolumeSurgeRatio float64 `yaml:"volume_surge_ratio"`
}

// ClassConfig пороги классов рекомендаций по счету
type ClassConfig struct {
	StrongBuy  int `yaml:"strong_buy"`
	Buy        int `yaml:"buy"`
	WeakBuy    int `yaml:"weak_buy"`
	WeakSell   int `yaml:"weak_sell"`
	Sell       int `yaml:"sell"`
	StrongSell int `yaml:"strong_sell"`
}

// SetupConfig параметры расчета входа/стопа/целей
type SetupConfig struct {
	ATRMultiplier    float64   `yaml:"atr_multiplier"`
	TakeProfitLadder []float64 `yaml:"take_profit_ladder"`
	SnapToLevels     bool      `yaml:"snap_to_levels"`
}

// RiskConfig настройки управления риском и капиталом
type RiskConfig struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	EnforceCapital  bool    `yaml:"enforce_capital"`
	TrailingStopPct float64 `yaml:"trailing_stop_pct"`
	RiskPerTradePct float64 `yaml:"risk_per_trade_pct"`
}

// SentimentConfig настройки источника индекса страха и жадности
type SentimentConfig struct {
	URL            string `yaml:"url"`
	CacheMinutes   int    `yaml:"cache_minutes"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	StalenessHours int    `yaml:"staleness_hours"`
}

// StorageConfig настройки хранения данных
type StorageConfig struct {
	Type         string `yaml:"type"` // influxdb или memory
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Organization string `yaml:"organization"`
	Bucket       string `yaml:"bucket"`
}

// UIConfig настройки пользовательского интерфейса
type UIConfig struct {
	Enabled     bool `yaml:"enabled"`
	RefreshRate int  `yaml:"refresh_rate_ms"`
}

// Default возвращает конфигурацию по умолчанию.
// Значения весов и порогов повторяют исходную модель скоринга
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Trading: TradingConfig{
			Symbol: "BTCUSDT",
			Timeframes: []TimeframeConfig{
				{ID: "15m", Name: "15 минут", CandleLimit: 672},
				{ID: "1h", Name: "1 час", CandleLimit: 336},
				{ID: "4h", Name: "4 часа", CandleLimit: 180},
				{ID: "1d", Name: "1 день", CandleLimit: 90},
				{ID: "1w", Name: "1 неделя", CandleLimit: 52},
			},
			PollSeconds: 60,
		},
		Analysis: AnalysisConfig{
			IntervalSeconds: 60,
			TimeoutSeconds:  10,
			MinCandles:      35,
			Indicators: IndicatorConfig{
				EMAFast:      12,
				EMASlow:      26,
				SMATrend:     20,
				SMAMid:       50,
				SMALong:      200,
				RSIPeriod:    14,
				MACDFast:     12,
				MACDSlow:     26,
				MACDSignal:   9,
				StochPeriod:  14,
				StochSmoothK: 3,
				StochSmoothD: 3,
				BBPeriod:     20,
				BBStdDev:     2.0,
				ATRPeriod:    14,
				ADXPeriod:    14,
				VolumePeriod: 20,
			},
			Levels: LevelsConfig{
				Window:              20,
				MaxLevels:           3,
				ClusterTolerancePct: 0.5,
				FibLookback:         50,
			},
			Scoring: ScoringConfig{
				MaxScore: 20,
				Weights: WeightsConfig{
					Trend:             2,
					Cross:             1,
					RSIExtreme:        3,
					RSIApproach:       2,
					RSINeutral:        1,
					RSICaution:        1,
					MACDStrong:        2,
					MACDWeak:          1,
					Stochastic:        1,
					Bollinger:         1,
					ADX:               1,
					SupportNear:       2,
					SupportApproach:   1,
					ResistanceNear:    2,
					VolumeSurge:       1,
					SentimentExtreme:  3,
					SentimentModerate: 2,
					Fibonacci:         1,
				},
				Thresholds: ThresholdsConfig{
					RSIOversold:      30,
					RSILow:           40,
					RSIHigh:          60,
					RSIOverbought:    70,
					StochOversold:    20,
					StochOverbought:  80,
					BBLowerZone:      0.2,
					BBUpperZone:      0.8,
					ADXStrong:        25,
					LevelNearPct:     2,
					LevelApproachPct: 5,
					FibProximityPct:  1,
					VolumeSurgeRatio: 1.5,
				},
				Classes: ClassConfig{
					StrongBuy:  8,
					Buy:        5,
					WeakBuy:    2,
					WeakSell:   -2,
					Sell:       -5,
					StrongSell: -8,
				},
			},
			Setup: SetupConfig{
				ATRMultiplier:    2.0,
				TakeProfitLadder: []float64{1.0, 1.5, 2.5},
				SnapToLevels:     true,
			},
		},
		Risk: RiskConfig{
			InitialCapital:  10000,
			EnforceCapital:  true,
			TrailingStopPct: 2.0,
			RiskPerTradePct: 2.0,
		},
		Sentiment: SentimentConfig{
			URL:            "https://api.alternative.me/fng/",
			CacheMinutes:   60,
			TimeoutSeconds: 10,
			StalenessHours: 24,
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		UI: UIConfig{
			Enabled:     true,
			RefreshRate: 1000,
		},
	}
}

// Load загружает конфигурацию из файла поверх значений по умолчанию
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("ошибка разбора файла конфигурации: %w", err)
	}

	return config, nil
}
