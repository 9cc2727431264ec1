package validation

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

// MinLocationConfidence is the acceptance threshold for location relevance.
const MinLocationConfidence = 0.2

const (
	areaNameBonus       = 0.4
	districtNameBonus   = 0.3
	areaEntityBonus     = 0.2
	districtEntityBonus = 0.1
	proximityBonus      = 0.05
)

var proximityPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(lexicon.ProximityWords))
	for _, w := range lexicon.ProximityWords {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return out
}()

// RelevanceResult explains how strongly an article is tied to an area.
type RelevanceResult struct {
	Confidence float64
	Relevant   bool
	Reasons    []string
}

// CheckRelevance scores how confidently the article concerns area, using the
// article text and its extracted locations.
func CheckRelevance(a domain.ProcessedArticle, locations []string, area domain.Area) RelevanceResult {
	text := lexicon.Normalize(a.Text())
	name := lexicon.Normalize(area.Name)
	district := lexicon.Normalize(area.District)
	region := strings.TrimSuffix(district, " region")

	var r RelevanceResult
	if name != "" && containsWord(text, name) {
		r.Confidence += areaNameBonus
		r.Reasons = append(r.Reasons, "area name mentioned")
	}
	if district != "" && containsWord(text, district) {
		r.Confidence += districtNameBonus
		r.Reasons = append(r.Reasons, "district mentioned")
	}
	for _, loc := range locations {
		norm := lexicon.Normalize(loc)
		if norm == "" {
			continue
		}
		if name != "" && fuzzyContains(norm, name) {
			r.Confidence += areaEntityBonus
			r.Reasons = append(r.Reasons, "location "+loc+" matches area")
			continue
		}
		if district != "" && (fuzzyContains(norm, district) || lexicon.SameRegion(loc, region)) {
			r.Confidence += districtEntityBonus
			r.Reasons = append(r.Reasons, "location "+loc+" lies in district")
		}
	}
	for _, p := range proximityPatterns {
		if p.MatchString(text) {
			r.Confidence += proximityBonus
			r.Reasons = append(r.Reasons, "proximity wording")
			break
		}
	}

	r.Confidence = math.Round(math.Min(1, r.Confidence)*1000) / 1000
	r.Relevant = r.Confidence >= MinLocationConfidence
	return r
}

func fuzzyContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// wordPatterns caches whole-word matchers by phrase. Area and district
// names form a small, fixed set.
var wordPatterns sync.Map

func wordPattern(phrase string) *regexp.Regexp {
	if re, ok := wordPatterns.Load(phrase); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := wordPatterns.LoadOrStore(phrase, regexp.MustCompile(`\b`+regexp.QuoteMeta(phrase)+`\b`))
	return re.(*regexp.Regexp)
}

func containsWord(text, phrase string) bool {
	return wordPattern(phrase).MatchString(text)
}
