// Package filter narrows raw source articles down to relevant, unique, recent
// and cleaned articles annotated with keywords and a relevance score.
package filter

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cloudflare/ahocorasick"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

const (
	titleSimilarityThreshold = 0.8
	bodySimilarityThreshold  = 0.7
	bodyPrefixRunes          = 200

	genericTermPoints = 2
	locationPoints    = 3
	monetaryPoints    = 1
	yearPoints        = 1
	maxRelevance      = 10
	yearWindow        = 2
)

// EntityExtractor supplies entity annotations for cleaned articles.
type EntityExtractor interface {
	ExtractEntities(article domain.RawArticle) domain.EntityExtraction
}

type termKind struct {
	category domain.DevelopmentType
	generic  bool
}

// Filter runs the four filtering steps. It holds only immutable state and is
// safe for concurrent use.
type Filter struct {
	extractor EntityExtractor
	matcher   *ahocorasick.Matcher
	terms     []string
	kinds     []termKind
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises a Filter.
type Option func(*Filter)

// WithClock overrides the clock used for the year-token bonus.
func WithClock(now func() time.Time) Option {
	return func(f *Filter) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLogger attaches a logger for per-step counts.
func WithLogger(log *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = log
	}
}

// New builds a Filter over the category and generic term tables.
func New(extractor EntityExtractor, opts ...Option) *Filter {
	f := &Filter{extractor: extractor, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}

	seen := map[string]bool{}
	add := func(term string, kind termKind) {
		key := strings.ToLower(term)
		if seen[key] {
			return
		}
		seen[key] = true
		f.terms = append(f.terms, key)
		f.kinds = append(f.kinds, kind)
	}
	for _, c := range lexicon.Categories {
		for _, kw := range c.Keywords {
			add(kw, termKind{category: c.Type})
		}
	}
	for _, g := range lexicon.GenericTerms {
		add(g, termKind{generic: true})
	}

	// Terms are anchored to a word start by a leading space; the haystack is
	// padded the same way in matchTerms.
	dict := make([]string, len(f.terms))
	for i, t := range f.terms {
		dict[i] = " " + t
	}
	f.matcher = ahocorasick.NewStringMatcher(dict)
	return f
}

type candidate struct {
	raw     domain.RawArticle
	title   string
	content string
	hits    []int
}

// Process applies relevance filtering, deduplication, the cutoff date and
// cleaning, in that order. Running Process over its own output drops nothing.
func (f *Filter) Process(articles []domain.RawArticle, cutoff time.Time) []domain.ProcessedArticle {
	relevant := make([]candidate, 0, len(articles))
	for _, a := range articles {
		c := candidate{raw: a, title: CleanText(a.Title), content: CleanText(a.Content)}
		c.hits = f.matchTerms(c.title + " " + c.content)
		if len(c.hits) == 0 {
			continue
		}
		relevant = append(relevant, c)
	}

	unique := dedupe(relevant)

	recent := unique[:0:0]
	for _, c := range unique {
		if c.raw.PublishDate.Before(cutoff) {
			continue
		}
		recent = append(recent, c)
	}

	out := make([]domain.ProcessedArticle, 0, len(recent))
	for _, c := range recent {
		out = append(out, f.annotate(c))
	}

	f.debug("filter done",
		"input", len(articles),
		"relevant", len(relevant),
		"unique", len(unique),
		"recent", len(out))
	return out
}

// dedupe keeps the first of any URL match, near-identical title or
// near-identical body opening.
func dedupe(in []candidate) []candidate {
	seenURL := map[string]bool{}
	kept := make([]candidate, 0, len(in))
	for _, c := range in {
		url := strings.TrimSpace(c.raw.URL)
		if url != "" && seenURL[url] {
			continue
		}
		if isNearDuplicate(c, kept) {
			continue
		}
		if url != "" {
			seenURL[url] = true
		}
		kept = append(kept, c)
	}
	return kept
}

func isNearDuplicate(c candidate, kept []candidate) bool {
	body := prefix(c.content, bodyPrefixRunes)
	for _, k := range kept {
		if Jaccard(c.title, k.title) > titleSimilarityThreshold {
			return true
		}
		if Jaccard(body, prefix(k.content, bodyPrefixRunes)) > bodySimilarityThreshold {
			return true
		}
	}
	return false
}

func (f *Filter) annotate(c candidate) domain.ProcessedArticle {
	cleaned := c.raw
	cleaned.Title = c.title
	cleaned.Content = c.content

	counts := map[domain.DevelopmentType]int{}
	keywords := []string{}
	genericHits := 0
	for _, idx := range c.hits {
		kind := f.kinds[idx]
		if kind.generic {
			genericHits++
			continue
		}
		counts[kind.category]++
		keywords = append(keywords, f.terms[idx])
	}

	plain := c.raw
	plain.Title = PlainText(c.raw.Title)
	plain.Content = PlainText(c.raw.Content)

	var ents domain.EntityExtraction
	if f.extractor != nil {
		ents = f.extractor.ExtractEntities(plain)
	}

	return domain.ProcessedArticle{
		RawArticle:      cleaned,
		Keywords:        keywords,
		DevelopmentType: majorityType(counts),
		RelevanceScore:  f.relevanceScore(cleaned.Text(), genericHits, len(ents.Locations)),
		ExtractedEntities: domain.ArticleEntities{
			Locations:     nonNil(ents.Locations),
			Organizations: nonNil(ents.Organizations),
			Projects:      nonNil(ents.ProjectNames),
		},
		Plain: plain,
	}
}

func (f *Filter) relevanceScore(text string, genericHits, locations int) float64 {
	score := genericTermPoints*genericHits + locationPoints*locations

	lower := strings.ToLower(text)
	for _, w := range lexicon.MonetaryScaleWords {
		if strings.Contains(lower, w) {
			score += monetaryPoints
			break
		}
	}

	current := f.now().Year()
	for _, y := range lexicon.YearPattern.FindAllString(text, -1) {
		year, err := strconv.Atoi(y)
		if err == nil && year >= current-yearWindow && year <= current+yearWindow {
			score += yearPoints
			break
		}
	}
	return float64(min(score, maxRelevance))
}

// majorityType picks the category with the most distinct keyword hits; no
// hits is unknown and a shared maximum is mixed.
func majorityType(counts map[domain.DevelopmentType]int) domain.DevelopmentType {
	best, bestCount, tied := domain.TypeUnknown, 0, false
	for _, t := range domain.PersistableTypes {
		n := counts[t]
		switch {
		case n == 0:
		case n > bestCount:
			best, bestCount, tied = t, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied {
		return domain.TypeMixed
	}
	return best
}

// matchTerms returns the indexes of distinct dictionary terms present in text.
func (f *Filter) matchTerms(text string) []int {
	return f.matcher.MatchThreadSafe([]byte(haystack(text)))
}

func haystack(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (f *Filter) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
