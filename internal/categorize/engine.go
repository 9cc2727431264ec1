// Package categorize classifies development articles, extracts named entities
// and estimates their impact on nearby property values.
package categorize

import (
	"math"
	"regexp"
	"time"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

const (
	keywordWeight = 1.0
	patternWeight = 2.0
	contextWeight = 0.5

	maxClassificationKeywords = 10
	fallbackConfidence        = 0.1
)

type keywordMatcher struct {
	term    string
	pattern *regexp.Regexp
}

type categoryMatcher struct {
	category lexicon.Category
	keywords []keywordMatcher
}

var categoryMatchers = buildCategoryMatchers()

func buildCategoryMatchers() []categoryMatcher {
	out := make([]categoryMatcher, 0, len(lexicon.Categories))
	for _, c := range lexicon.Categories {
		cm := categoryMatcher{category: c}
		for _, kw := range c.Keywords {
			cm.keywords = append(cm.keywords, keywordMatcher{term: kw, pattern: lexicon.WordPattern(kw)})
		}
		out = append(out, cm)
	}
	return out
}

// Engine is a stateless, deterministic classifier. It is safe for concurrent use.
type Engine struct {
	now func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used for the near-future date windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New builds an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify assigns the article to the highest scoring category. Keyword hits
// weigh 1, structural patterns 2 and contextual hints 0.5. An article that
// matches nothing falls back to business with a token confidence.
func (e *Engine) Classify(article domain.RawArticle) domain.Classification {
	text := article.Text()

	var (
		best      domain.DevelopmentType
		bestScore float64
		bestKeys  []string
		total     float64
	)
	for _, cm := range categoryMatchers {
		var score float64
		var matched []string
		for _, kw := range cm.keywords {
			hits := len(kw.pattern.FindAllStringIndex(text, -1))
			if hits == 0 {
				continue
			}
			score += keywordWeight * float64(hits)
			matched = append(matched, kw.term)
		}
		for _, p := range cm.category.Patterns {
			score += patternWeight * float64(len(p.FindAllStringIndex(text, -1)))
		}
		for _, p := range cm.category.ContextPatterns {
			score += contextWeight * float64(len(p.FindAllStringIndex(text, -1)))
		}

		total += score
		if score > bestScore {
			best, bestScore, bestKeys = cm.category.Type, score, matched
		}
	}

	if total == 0 {
		return domain.Classification{Type: domain.TypeBusiness, Confidence: fallbackConfidence, Keywords: []string{}}
	}
	if len(bestKeys) > maxClassificationKeywords {
		bestKeys = bestKeys[:maxClassificationKeywords]
	}
	if bestKeys == nil {
		bestKeys = []string{}
	}
	return domain.Classification{
		Type:       best,
		Confidence: clamp(bestScore/total, 0, 1),
		Keywords:   bestKeys,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
