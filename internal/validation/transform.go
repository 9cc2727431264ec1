package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

// MinClassificationConfidence is the lowest classifier confidence accepted
// for persistence.
const MinClassificationConfidence = 0.3

const (
	maxDevTitle          = 100
	maxDevDescription    = 500
	descriptionKeywords  = 5
	descriptionLocations = 3
)

var (
	titlePrefix = regexp.MustCompile(`(?i)^(?:new|breaking|update|exclusive)\s*:\s*`)
	titleSuffix = regexp.MustCompile(`\s+[-|]\s+[^-|]+$`)
	quarterWord = map[string]int{"first": 1, "second": 2, "third": 3, "fourth": 4}
	monthToken  = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\b`)
	quarterNum  = regexp.MustCompile(`(?i)\bQ([1-4])\b|\b([1-4])Q\b`)
	partOfYear  = regexp.MustCompile(`(?i)\b(early|mid|late|end)\b`)
)

// Transformer turns an accepted article into a Development record.
type Transformer struct {
	scorer ImpactScorer
}

// ImpactScorer computes the 0-10 impact score of a classified article.
type ImpactScorer interface {
	ImpactScore(article domain.RawArticle, c domain.Classification, ents domain.EntityExtraction) float64
}

// NewTransformer builds a Transformer around scorer.
func NewTransformer(scorer ImpactScorer) *Transformer {
	return &Transformer{scorer: scorer}
}

// Transform derives a Development from the article. It reports false when the
// classification is too uncertain or not a persistable category.
func (t *Transformer) Transform(a domain.ProcessedArticle, area domain.Area, c domain.Classification, ents domain.EntityExtraction) (domain.Development, bool) {
	if c.Confidence < MinClassificationConfidence || !c.Type.IsPersistable() {
		return domain.Development{}, false
	}

	src := a.PlainArticle()
	title := CleanTitle(a.Title)
	if len(ents.ProjectNames) > 0 {
		title = truncate(ents.ProjectNames[0], maxDevTitle)
	}

	dev := domain.Development{
		AreaID:            area.ID,
		Type:              c.Type,
		Title:             title,
		Description:       describe(area, c, ents),
		ImpactScore:       domain.ClampImpactScore(t.scorer.ImpactScore(src, c, ents)),
		DateAnnounced:     a.PublishDate,
		SourceURL:         a.URL,
		SourcePublisher:   a.Source,
		SourcePublishDate: a.PublishDate,
	}

	if m := lexicon.AnnouncedPattern.FindStringSubmatch(src.Content); m != nil {
		if announced, ok := parseCalendarDate(m[1]); ok {
			dev.DateAnnounced = announced
		}
	}

	if m := lexicon.CompletionPattern.FindStringSubmatch(src.Content); m != nil {
		if completion, ok := ParseDateToken(m[1]); ok {
			dev.ExpectedCompletion = &completion
		}
	}
	if dev.ExpectedCompletion == nil {
		for _, token := range ents.Dates {
			if completion, ok := ParseDateToken(token); ok {
				dev.ExpectedCompletion = &completion
				break
			}
		}
	}
	return dev, true
}

// CleanTitle removes "New:"-style prefixes and " - Publisher" suffixes and
// bounds the length.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = titlePrefix.ReplaceAllString(title, "")
	if stripped := titleSuffix.ReplaceAllString(title, ""); stripped != "" {
		title = stripped
	}
	return truncate(strings.TrimSpace(title), maxDevTitle)
}

func describe(area domain.Area, c domain.Classification, ents domain.EntityExtraction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s development in %s.", capitalize(string(c.Type)), area.Name)
	if len(ents.Organizations) > 0 {
		fmt.Fprintf(&b, " Involving %s.", strings.Join(ents.Organizations, ", "))
	}
	if len(ents.Locations) > 0 {
		fmt.Fprintf(&b, " Locations: %s.", strings.Join(head(ents.Locations, descriptionLocations), ", "))
	}
	if len(ents.Amounts) > 0 {
		fmt.Fprintf(&b, " Estimated value: %s.", ents.Amounts[0])
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, " Key aspects: %s.", strings.Join(head(c.Keywords, descriptionKeywords), ", "))
	}
	return truncate(b.String(), maxDevDescription)
}

// ParseDateToken resolves extracted date tokens to a calendar day: quarters
// map to their first month, "mid" to June, "late" to October, "early" to
// January, "end" and bare years to 31 December.
func ParseDateToken(token string) (time.Time, bool) {
	yearStr := lexicon.YearPattern.FindString(token)
	if yearStr == "" {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	date := func(m time.Month, d int) (time.Time, bool) {
		return time.Date(year, m, d, 0, 0, 0, 0, time.UTC), true
	}

	lower := strings.ToLower(token)
	if m := quarterNum.FindStringSubmatch(token); m != nil {
		q, _ := strconv.Atoi(m[1] + m[2])
		return date(time.Month((q-1)*3+1), 1)
	}
	for word, q := range quarterWord {
		if strings.Contains(lower, word+" quarter") {
			return date(time.Month((q-1)*3+1), 1)
		}
	}
	if m := monthToken.FindString(token); m != "" {
		if month, ok := parseMonth(m); ok {
			return date(month, 1)
		}
	}
	if m := partOfYear.FindString(lower); m != "" {
		switch m {
		case "early":
			return date(time.January, 1)
		case "mid":
			return date(time.June, 1)
		case "late":
			return date(time.October, 1)
		}
	}
	return date(time.December, 31)
}

var calendarLayouts = []string{
	"2 January 2006", "2 Jan 2006", "January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006",
}

func parseCalendarDate(s string) (time.Time, bool) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range calendarLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseMonth(s string) (time.Month, bool) {
	key := strings.ToLower(s)
	if len(key) > 3 {
		key = key[:3]
	}
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()[:3]) == key {
			return m, true
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
