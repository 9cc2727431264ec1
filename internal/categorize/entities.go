package categorize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

const maxDateHorizonYears = 6

var developerPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(lexicon.KnownDevelopers))
	for _, d := range lexicon.KnownDevelopers {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(d)+`\b`))
	}
	return out
}()

// ExtractEntities pulls locations, organisations, project names, date tokens
// and monetary amounts from the article. Every list is deduplicated and keeps
// first-seen order.
func (e *Engine) ExtractEntities(article domain.RawArticle) domain.EntityExtraction {
	text := article.Text()
	return domain.EntityExtraction{
		ProjectNames:  extractProjects(text),
		Locations:     extractLocations(text),
		Organizations: extractOrganizations(text),
		Dates:         e.extractDates(text),
		Amounts:       extractAmounts(text),
	}
}

type positioned struct {
	pos   int
	value string
}

func sortedValues(items []positioned) []string {
	sort.SliceStable(items, func(i, j int) bool { return items[i].pos < items[j].pos })
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = appendUnique(out, it.value)
	}
	return out
}

func extractLocations(text string) []string {
	var found []positioned
	for _, p := range lexicon.Gazetteer {
		if loc := p.Match(text); loc != nil {
			found = append(found, positioned{pos: loc[0], value: p.Name})
		}
	}
	return sortedValues(found)
}

func extractOrganizations(text string) []string {
	out := []string{}
	for _, m := range lexicon.AgencyPattern.FindAllString(text, -1) {
		out = appendUnique(out, m)
	}
	for _, m := range lexicon.CompanyPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimPrefix(strings.Join(strings.Fields(m[1]), " "), "The ")
		out = appendUnique(out, name)
	}
	for i, re := range developerPatterns {
		if re.MatchString(text) {
			out = appendUnique(out, lexicon.KnownDevelopers[i])
		}
	}
	return out
}

func extractProjects(text string) []string {
	out := []string{}
	for _, m := range lexicon.ProjectPattern.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, strings.Join(strings.Fields(m[1]), " "))
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range lexicon.QuotedPattern.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, strings.TrimSpace(m[1]))
	}
	if len(out) > 0 {
		return out
	}
	for _, m := range lexicon.TheNamePattern.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, strings.Join(strings.Fields(m[1]), " "))
	}
	return out
}

// extractDates keeps tokens whose year falls within the current year and the
// next six. Bare years are only reported when no richer token names them.
func (e *Engine) extractDates(text string) []string {
	current := e.now().Year()
	inWindow := func(year string) bool {
		y, err := strconv.Atoi(year)
		return err == nil && y >= current && y <= current+maxDateHorizonYears
	}

	var found []positioned
	covered := map[string]bool{}
	for _, re := range []*regexp.Regexp{lexicon.QuarterPattern, lexicon.MonthPattern, lexicon.PartOfYearPattern} {
		for _, idx := range re.FindAllStringSubmatchIndex(text, -1) {
			year := text[idx[2]:idx[3]]
			if !inWindow(year) {
				continue
			}
			covered[year] = true
			found = append(found, positioned{pos: idx[0], value: strings.Join(strings.Fields(text[idx[0]:idx[1]]), " ")})
		}
	}
	for _, idx := range lexicon.YearPattern.FindAllStringSubmatchIndex(text, -1) {
		year := text[idx[2]:idx[3]]
		if covered[year] || !inWindow(year) {
			continue
		}
		covered[year] = true
		found = append(found, positioned{pos: idx[0], value: year})
	}
	return sortedValues(found)
}

func extractAmounts(text string) []string {
	var found []positioned
	for _, re := range lexicon.AmountPatterns {
		for _, idx := range re.FindAllStringIndex(text, -1) {
			found = append(found, positioned{pos: idx[0], value: strings.TrimSpace(text[idx[0]:idx[1]])})
		}
	}
	return sortedValues(found)
}

var amountNumber = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// AmountValue converts an extracted amount token such as "S$1.2 billion" into
// a plain number. Unparseable tokens yield 0.
func AmountValue(token string) float64 {
	raw := amountNumber.FindString(token)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0
	}
	lower := strings.ToLower(token)
	switch {
	case strings.Contains(lower, "billion") || strings.Contains(lower, "bn"):
		return n * 1e9
	case strings.Contains(lower, "million"):
		return n * 1e6
	case strings.Contains(lower, "thousand"):
		return n * 1e3
	default:
		return n
	}
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
