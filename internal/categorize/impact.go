package categorize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"DevelopmentScanner/internal/domain"
	"DevelopmentScanner/internal/lexicon"
)

// Factor weights; they sum to 1 so the weighted factor tops out at 3.
const (
	scaleWeight    = 0.25
	timelineWeight = 0.20
	economicWeight = 0.25
	benefitWeight  = 0.20
	locationWeight = 0.10

	factorScale        = 3.33
	minConfidenceScale = 0.5
	maxFactor          = 3
	largeAmount        = 100e6
	nearTermYears      = 2
)

type compiledTier struct {
	score    int
	patterns []*regexp.Regexp
}

var (
	scaleTiers       = compileTiers(lexicon.ScaleTiers)
	timelineTiers    = compileTiers(lexicon.TimelineTiers)
	economicPatterns = compileTerms(lexicon.EconomicKeywords)
	benefitPatterns  = compileTerms(lexicon.BenefitKeywords)
)

// ImpactBreakdown exposes every input of an impact score.
type ImpactBreakdown struct {
	Scale            int     `json:"scale"`
	Timeline         int     `json:"timeline"`
	Economic         int     `json:"economic"`
	Benefit          int     `json:"benefit"`
	Location         int     `json:"location"`
	Weighted         float64 `json:"weighted"`
	TypeMultiplier   float64 `json:"typeMultiplier"`
	ConfidenceFactor float64 `json:"confidenceFactor"`
	Score            float64 `json:"score"`
}

// ImpactScore estimates, on a 0-10 scale, how strongly the development is
// likely to move nearby property values.
func (e *Engine) ImpactScore(article domain.RawArticle, c domain.Classification, ents domain.EntityExtraction) float64 {
	return e.ExplainImpact(article, c, ents).Score
}

// ExplainImpact computes the impact score and returns the factor breakdown.
func (e *Engine) ExplainImpact(article domain.RawArticle, c domain.Classification, ents domain.EntityExtraction) ImpactBreakdown {
	text := article.Text()
	b := ImpactBreakdown{
		Scale:            scaleFactor(text, ents.Amounts),
		Timeline:         e.timelineFactor(text, ents.Dates),
		Economic:         economicFactor(text, ents.Amounts),
		Benefit:          benefitFactor(text, c.Type),
		Location:         locationFactor(ents.Locations),
		TypeMultiplier:   typeMultiplier(c, ents.ProjectNames),
		ConfidenceFactor: math.Max(minConfidenceScale, c.Confidence),
	}
	b.Weighted = scaleWeight*float64(b.Scale) +
		timelineWeight*float64(b.Timeline) +
		economicWeight*float64(b.Economic) +
		benefitWeight*float64(b.Benefit) +
		locationWeight*float64(b.Location)

	score := b.Weighted * factorScale * b.TypeMultiplier * b.ConfidenceFactor
	b.Score = math.Round(domain.ClampImpactScore(score)*100) / 100
	return b
}

func scaleFactor(text string, amounts []string) int {
	if score, ok := matchTier(scaleTiers, text); ok {
		return score
	}
	for _, a := range amounts {
		if AmountValue(a) >= largeAmount {
			return maxFactor
		}
	}
	return 1
}

func (e *Engine) timelineFactor(text string, dates []string) int {
	if score, ok := matchTier(timelineTiers, text); ok {
		return score
	}
	horizon := e.now().Year() + nearTermYears
	for _, d := range dates {
		if y, err := strconv.Atoi(lexicon.YearPattern.FindString(d)); err == nil && y <= horizon {
			return 2
		}
	}
	return 1
}

func economicFactor(text string, amounts []string) int {
	hits := countMatches(economicPatterns, text)
	var hasMillion bool
	for _, a := range amounts {
		lower := strings.ToLower(a)
		if strings.Contains(lower, "billion") || strings.Contains(lower, "bn") {
			return maxFactor
		}
		if strings.Contains(lower, "million") {
			hasMillion = true
		}
	}
	if hasMillion {
		return min(2, hits+1)
	}
	return min(maxFactor, hits)
}

func benefitFactor(text string, t domain.DevelopmentType) int {
	base := 0
	if c, ok := lexicon.CategoryFor(t); ok {
		base = c.BenefitBase
	}
	return min(maxFactor, base+countMatches(benefitPatterns, text))
}

func locationFactor(locations []string) int {
	if len(locations) == 0 {
		return 0
	}
	best := lexicon.TierDistrict
	for _, name := range locations {
		if p, ok := lexicon.LookupPlace(name); ok && p.Tier > best {
			best = p.Tier
		}
	}
	return best
}

// typeMultiplier picks the largest multiplier whose term appears in a project
// name or matched keyword of the winning category.
func typeMultiplier(c domain.Classification, projects []string) float64 {
	cat, ok := lexicon.CategoryFor(c.Type)
	if !ok {
		return 1.0
	}
	candidates := make([]string, 0, len(projects)+len(c.Keywords))
	for _, p := range projects {
		candidates = append(candidates, strings.ToLower(p))
	}
	for _, k := range c.Keywords {
		candidates = append(candidates, strings.ToLower(k))
	}

	best := 0.0
	for _, m := range cat.Multipliers {
		for _, cand := range candidates {
			if strings.Contains(cand, m.Term) && m.Value > best {
				best = m.Value
			}
		}
	}
	if best == 0 {
		return 1.0
	}
	return best
}

func matchTier(tiers []compiledTier, text string) (int, bool) {
	for _, t := range tiers {
		for _, p := range t.patterns {
			if p.MatchString(text) {
				return t.score, true
			}
		}
	}
	return 0, false
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

func compileTiers(tiers []lexicon.Tier) []compiledTier {
	out := make([]compiledTier, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, compiledTier{score: t.Score, patterns: compileTerms(t.Terms)})
	}
	return out
}

func compileTerms(terms []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		out = append(out, lexicon.WordPattern(term))
	}
	return out
}
