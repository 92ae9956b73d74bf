// Package sentiment enriches items with lexicon-based polarity scores.
package sentiment

import (
	"fmt"
	"io"
	"time"

	"github.com/jonreiter/govader"
	"github.com/sirupsen/logrus"

	"github.com/x18815379395-wq/global-news-market-app/internal/news"
)

const labelBand = 0.05

// Scores is the polarity breakdown of one text.
type Scores struct {
	Negative float64
	Neutral  float64
	Positive float64
	Compound float64
}

// Lexicon scores free text.
type Lexicon interface {
	PolarityScores(text string) Scores
}

type vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader returns the VADER lexicon.
func NewVader() Lexicon {
	return &vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *vader) PolarityScores(text string) Scores {
	s := v.analyzer.PolarityScores(text)
	return Scores{
		Negative: s.Negative,
		Neutral:  s.Neutral,
		Positive: s.Positive,
		Compound: s.Compound,
	}
}

// Analyzer applies a Lexicon to items. With a nil Lexicon every call is a
// pass-through.
type Analyzer struct {
	lex Lexicon
	log logrus.FieldLogger
}

func NewAnalyzer(lex Lexicon, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	if lex == nil {
		log.Warn("sentiment lexicon unavailable, sentiment analysis disabled")
	}
	return &Analyzer{lex: lex, log: log}
}

// Enabled reports whether a lexicon is present.
func (a *Analyzer) Enabled() bool { return a != nil && a.lex != nil }

// Label buckets a compound score.
func Label(compound float64) news.SentimentLabel {
	switch {
	case compound > labelBand:
		return news.Positive
	case compound < -labelBand:
		return news.Negative
	default:
		return news.Neutral
	}
}

// Analyze returns it with sentiment fields set. A lexicon failure leaves the
// item unchanged.
func (a *Analyzer) Analyze(it news.Item) (out news.Item) {
	if !a.Enabled() {
		return it
	}
	defer func() {
		if r := recover(); r != nil {
			a.log.WithFields(logrus.Fields{"url": it.URL, "error": fmt.Sprint(r)}).Error("sentiment analysis failed")
			out = it
		}
	}()

	s := a.lex.PolarityScores(it.Title + " " + it.Description)
	it.SentimentScore = news.Float(s.Compound)
	it.SentimentLabel = Label(s.Compound)
	it.SentimentDimensions = map[string]float64{
		"negative": s.Negative,
		"neutral":  s.Neutral,
		"positive": s.Positive,
	}
	return it
}

// AnalyzeBatch returns a new slice of the same length and order.
func (a *Analyzer) AnalyzeBatch(items []news.Item) []news.Item {
	if !a.Enabled() {
		return items
	}
	out := make([]news.Item, len(items))
	for i, it := range items {
		out[i] = a.Analyze(it)
	}
	return out
}

// TrendSummary aggregates sentiment over a time window.
type TrendSummary struct {
	AverageSentiment float64 `json:"average_sentiment"`
	PositiveCount    int     `json:"positive_count"`
	NegativeCount    int     `json:"negative_count"`
	NeutralCount     int     `json:"neutral_count"`
	TotalCount       int     `json:"total_count"`
}

// Trend summarizes items published within window before now. Items without a
// timestamp are ignored; unlabeled items count as neutral.
func Trend(items []news.Item, window time.Duration, now time.Time) TrendSummary {
	var (
		sum float64
		ts  TrendSummary
	)
	start := now.Add(-window)
	for _, it := range items {
		if it.PublishedAt == nil || it.PublishedAt.Before(start) {
			continue
		}
		ts.TotalCount++
		if it.SentimentScore != nil {
			sum += *it.SentimentScore
		}
		switch it.SentimentLabel {
		case news.Positive:
			ts.PositiveCount++
		case news.Negative:
			ts.NegativeCount++
		default:
			ts.NeutralCount++
		}
	}
	if ts.TotalCount > 0 {
		ts.AverageSentiment = sum / float64(ts.TotalCount)
	}
	return ts
}
