// Package lexicon holds the read-only keyword, pattern and multiplier tables
// behind the content filter and the categorization engine. Everything here is
// compiled once at package initialisation and never mutated afterwards.
package lexicon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"DevelopmentScanner/internal/domain"
)

// Multiplier maps a term to the impact multiplier it implies for its category.
type Multiplier struct {
	Term  string
	Value float64
}

// Category bundles the matching tables for one development type.
type Category struct {
	Type            domain.DevelopmentType
	Keywords        []string
	Patterns        []*regexp.Regexp
	ContextPatterns []*regexp.Regexp
	Multipliers     []Multiplier
	BenefitBase     int
}

// Categories is ordered school, infrastructure, shopping, business; ties in
// scoring resolve to the earlier entry.
var Categories = []Category{
	{
		Type: domain.TypeSchool,
		Keywords: []string{
			"school", "primary school", "secondary school", "international school",
			"junior college", "university", "polytechnic", "college", "campus",
			"kindergarten", "preschool", "education",
		},
		Patterns: compileAll(
			`(?i)\b(?:primary|secondary|international|junior|high|special)\s+schools?\b`,
			`(?i)\b(?:university|polytechnic|college)\s+campus\b`,
			`(?i)\bnew\s+(?:school|campus|university)\b`,
			`(?i)\b(?:enrolment|enrollment|student intake)\b`,
		),
		ContextPatterns: compileAll(
			`(?i)\b(?:students?|pupils?|teachers?|curriculum|classrooms?|parents)\b`,
		),
		Multipliers: []Multiplier{
			{"university", 3.0}, {"polytechnic", 2.5}, {"junior college", 2.5},
			{"international school", 2.2}, {"secondary school", 2.0}, {"primary school", 2.0},
			{"campus", 1.5}, {"kindergarten", 1.2}, {"preschool", 1.2}, {"school", 1.0},
		},
		BenefitBase: 2,
	},
	{
		Type: domain.TypeInfrastructure,
		Keywords: []string{
			"mrt", "lrt", "station", "railway", "transit", "expressway", "highway",
			"bus interchange", "interchange", "bridge", "tunnel", "viaduct",
			"infrastructure", "cycling path",
		},
		Patterns: compileAll(
			`(?i)\b(?:mrt|lrt)\s+(?:stations?|lines?)\b`,
			`(?i)\b(?:thomson-east coast|cross island|circle|downtown|jurong region|north-east|east-west|north-south)\s+line\b`,
			`(?i)\b(?:expressway|highway|road)\s+(?:extension|upgrade|widening)\b`,
			`(?i)\bbus\s+(?:interchange|terminal|depot)\b`,
		),
		ContextPatterns: compileAll(
			`(?i)\b(?:commuters?|connectivity|travel times?|ridership|transport|passengers?)\b`,
		),
		Multipliers: []Multiplier{
			{"mrt", 3.0}, {"expressway", 2.5}, {"lrt", 2.0}, {"interchange", 2.0},
			{"station", 2.0}, {"terminal", 1.8}, {"bridge", 1.5}, {"bus", 1.2}, {"road", 1.0},
		},
		BenefitBase: 3,
	},
	{
		Type: domain.TypeShopping,
		Keywords: []string{
			"mall", "shopping", "retail", "shopping centre", "shopping center",
			"hypermarket", "supermarket", "department store", "outlet",
			"food court", "hawker centre", "boutique",
		},
		Patterns: compileAll(
			`(?i)\bshopping\s+(?:malls?|centres?|centers?|complex)\b`,
			`(?i)\b(?:new|upcoming|integrated)\s+mall\b`,
			`(?i)\bretail\s+(?:space|outlets?|complex|podium)\b`,
			`(?i)\b\d+\s+(?:stores|shops|retail units|tenants)\b`,
		),
		ContextPatterns: compileAll(
			`(?i)\b(?:shoppers?|retailers?|tenants?|dining|brands?|anchor)\b`,
		),
		Multipliers: []Multiplier{
			{"integrated mall", 2.8}, {"mall", 2.5}, {"shopping centre", 2.5},
			{"shopping center", 2.5}, {"hypermarket", 1.8}, {"supermarket", 1.5},
			{"retail", 1.2}, {"shop", 1.0},
		},
		BenefitBase: 1,
	},
	{
		Type: domain.TypeBusiness,
		Keywords: []string{
			"office", "business park", "headquarters", "commercial", "corporate",
			"tech hub", "data centre", "data center", "coworking", "industrial",
			"enterprise", "innovation district", "office tower",
		},
		Patterns: compileAll(
			`(?i)\b(?:business|industrial|science|technology)\s+parks?\b`,
			`(?i)\boffice\s+(?:towers?|buildings?|space|complex)\b`,
			`(?i)\b(?:regional|global|asia[- ]pacific)\s+headquarters\b`,
			`(?i)\b(?:grade\s+a|commercial)\s+office\b`,
		),
		ContextPatterns: compileAll(
			`(?i)\b(?:jobs?|employees?|workforce|companies|investors?|firms?)\b`,
		),
		Multipliers: []Multiplier{
			{"headquarters", 3.0}, {"business park", 2.5}, {"office tower", 2.5},
			{"data centre", 2.0}, {"data center", 2.0}, {"innovation district", 2.0},
			{"office", 1.5}, {"commercial", 1.2}, {"industrial", 1.2},
		},
		BenefitBase: 1,
	},
}

// CategoryFor returns the table entry of t.
func CategoryFor(t domain.DevelopmentType) (Category, bool) {
	for _, c := range Categories {
		if c.Type == t {
			return c, true
		}
	}
	return Category{}, false
}

// GenericTerms signal development news regardless of category.
var GenericTerms = []string{
	"development", "project", "construction", "launch", "opening", "expansion",
	"redevelopment", "groundbreaking", "upgrade", "masterplan", "master plan",
	"tender", "unveil", "announce", "planned",
}

// MonetaryScaleWords feed the relevance score's monetary bonus.
var MonetaryScaleWords = []string{"million", "billion"}

// ProximityWords add a small location-relevance bonus.
var ProximityWords = []string{
	"nearby", "adjacent", "near", "vicinity", "neighbouring", "neighboring",
	"close to", "next to", "minutes from", "walking distance",
}

// Tier groups impact-factor keywords; earlier tiers win.
type Tier struct {
	Score int
	Terms []string
}

// ScaleTiers run from mega (3) down to small (0).
var ScaleTiers = []Tier{
	{3, []string{"mega", "largest", "flagship", "integrated development", "landmark", "iconic"}},
	{2, []string{"major", "large-scale", "significant", "massive", "extensive"}},
	{1, []string{"mid-sized", "medium-sized", "moderate", "expansion"}},
	{0, []string{"small", "minor", "modest", "boutique"}},
}

// TimelineTiers run from completed (3) down to distant (0).
var TimelineTiers = []Tier{
	{3, []string{"completed", "opened", "now open", "officially opened", "operational", "began operations", "opens"}},
	{2, []string{"under construction", "groundbreaking", "broke ground", "opening soon", "this year", "next year", "slated to open"}},
	{1, []string{"planned", "proposed", "expected to", "will be built", "plans to", "tender"}},
	{0, []string{"long-term", "long term", "feasibility study", "under study", "by 2040", "by 2050"}},
}

// EconomicKeywords feed the economic-value factor.
var EconomicKeywords = []string{
	"investment", "jobs", "economic", "revenue", "employment", "growth",
	"property values", "property prices", "rental", "demand", "gdp",
}

// BenefitKeywords feed the public-benefit factor.
var BenefitKeywords = []string{
	"community", "residents", "public", "accessibility", "convenience",
	"amenities", "families", "connectivity", "green", "healthcare", "commuters",
}

var (
	// AgencyPattern matches government agency acronyms.
	AgencyPattern = regexp.MustCompile(`\b(MOE|LTA|HDB|URA|JTC|NEA|NParks|SLA|EDB|MOH|BCA|PUB|MND|MOT|STB|SMRT|CAAS|MPA)\b`)
	// CompanyPattern matches "X Pte Ltd", "X Corp", "X Group" style names.
	CompanyPattern = regexp.MustCompile(`\b((?:[A-Z][A-Za-z&'-]*\s+){1,4}(?:Pte\.?\s+Ltd|Ltd|Limited|Corporation|Corp|Group|Holdings))\b`)

	// ProjectPattern requires 1-4 capitalised words and a structural noun.
	ProjectPattern = regexp.MustCompile(`\b((?:[A-Z][A-Za-z'-]*\s+){1,4}(?:Mall|Tower|Towers|Station|School|Centre|Center|Hub|Park|Plaza|Residences|Campus|Interchange|Line|Hospital|Square|Point|Building|Complex|Polytechnic|University|College|Terminal))\b`)
	// QuotedPattern is the first project-name fallback.
	QuotedPattern = regexp.MustCompile(`["“]([A-Z][^"”]{2,60})["”]`)
	// TheNamePattern is the second project-name fallback ("The Sail", "The Woodleigh Mall").
	TheNamePattern = regexp.MustCompile(`\b(The\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)

	// QuarterPattern matches "Q3 2027", "3Q 2027" and "third quarter of 2027".
	QuarterPattern = regexp.MustCompile(`(?i)\b(?:Q[1-4]|[1-4]Q|(?:first|second|third|fourth)\s+quarter\s+of)\s*(20\d{2})\b`)
	// MonthPattern matches "March 2028" or "Sept. 2027".
	MonthPattern = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(20\d{2})\b`)
	// PartOfYearPattern matches "mid-2027", "late 2026", "end of 2028".
	PartOfYearPattern = regexp.MustCompile(`(?i)\b(?:early|mid|late|end)[- ](?:of\s+)?(20\d{2})\b`)
	// YearPattern matches a bare four-digit year.
	YearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

	// AmountPatterns require a currency marker and a scale word.
	AmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:US\$|S\$|\$|\bSGD\s?|\bUSD\s?|\bUS|\bS)\d+(?:[.,]\d+)*\s*(?:million|billion|thousand|bn)\b`),
		regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)*\s*(?:million|billion|thousand)\s+(?:dollars|sgd|usd)\b`),
	}

	// AnnouncedPattern captures the announcement date stated in content.
	AnnouncedPattern = regexp.MustCompile(`(?i)\b(?:announced|unveiled|revealed)\s+(?:on\s+)?(\d{1,2}\s+[A-Za-z]+\s+20\d{2}|[A-Za-z]+\s+\d{1,2},?\s+20\d{2})`)
	// CompletionPattern captures the expected completion date stated in content.
	CompletionPattern = regexp.MustCompile(`(?i)\b(?:complet\w*|ready|open\w*|operational|finished|done)\s+(?:by|in)\s+((?:Q[1-4]\s+|(?:early|mid|late|end)[- ](?:of\s+)?)?(?:(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+)?20\d{2})`)
)

// KnownDevelopers is the literal developer list for organisation extraction.
var KnownDevelopers = []string{
	"CapitaLand", "City Developments", "Frasers Property", "UOL", "GuocoLand",
	"Far East Organization", "Keppel Land", "Mapletree", "Lendlease", "Wing Tai",
	"Hong Leong", "Perennial Holdings", "Allgreen", "SingHaiyi",
}

// WordPattern builds a case-insensitive whole-word matcher for term, accepting
// a plural suffix.
func WordPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `(?:s|es)?\b`)
}

// Normalize lowercases s, folds diacritics and collapses whitespace so names
// like "Tampinés  Central" compare equal to "tampines central".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
