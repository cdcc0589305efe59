package models

import (
	"testing"
	"time"
)

func TestClassifySentiment(t *testing.T) {
	cases := []struct {
		value int
		want  string
	}{
		{0, SentimentExtremeFear},
		{24, SentimentExtremeFear},
		{25, SentimentFear},
		{44, SentimentFear},
		{45, SentimentNeutral},
		{54, SentimentNeutral},
		{55, SentimentGreed},
		{75, SentimentGreed},
		{76, SentimentExtremeGreed},
		{100, SentimentExtremeGreed},
	}

	for _, c := range cases {
		if got := ClassifySentiment(c.value); got != c.want {
			t.Errorf("ClassifySentiment(%d) = %q, ожидалось %q", c.value, got, c.want)
		}
	}
}

func TestValidateCandles(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ascending := []Candle{
		{OpenTime: start},
		{OpenTime: start.Add(time.Hour)},
		{OpenTime: start.Add(2 * time.Hour)},
	}
	if err := ValidateCandles(ascending); err != nil {
		t.Fatalf("возрастающая последовательность отклонена: %v", err)
	}

	duplicate := []Candle{
		{OpenTime: start},
		{OpenTime: start},
	}
	if err := ValidateCandles(duplicate); err == nil {
		t.Fatal("дубликат времени открытия принят")
	}

	outOfOrder := []Candle{
		{OpenTime: start.Add(time.Hour)},
		{OpenTime: start},
	}
	if err := ValidateCandles(outOfOrder); err == nil {
		t.Fatal("нарушенный порядок принят")
	}

	if err := ValidateCandles(nil); err != nil {
		t.Fatalf("пустая последовательность отклонена: %v", err)
	}
}
