package lexicon

import (
	"regexp"
	"strings"
)

// Significance tiers used by the location factor of the impact score.
const (
	TierDistrict = 1
	TierRegional = 2
	TierNational = 3
)

// Place is one gazetteer entry.
type Place struct {
	Name    string
	Region  string
	Tier    int
	pattern *regexp.Regexp
}

// Match reports whether text mentions the place as a whole word.
func (p Place) Match(text string) []int {
	return p.pattern.FindStringIndex(text)
}

func place(name, region string, tier int) Place {
	return Place{Name: name, Region: region, Tier: tier, pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)}
}

// Gazetteer lists recognised Singapore place names. The country name itself is
// deliberately absent: it carries no locality signal.
var Gazetteer = []Place{
	place("Marina Bay", "Central", TierNational),
	place("Orchard", "Central", TierNational),
	place("Raffles Place", "Central", TierNational),
	place("Tanjong Pagar", "Central", TierNational),
	place("Changi", "East", TierNational),
	place("Sentosa", "Central", TierNational),
	place("Jurong Lake District", "West", TierNational),

	place("Tampines", "East", TierRegional),
	place("Jurong East", "West", TierRegional),
	place("Woodlands", "North", TierRegional),
	place("Paya Lebar", "East", TierRegional),
	place("Punggol", "North-East", TierRegional),
	place("Seletar", "North-East", TierRegional),

	place("Pasir Ris", "East", TierDistrict),
	place("Bedok", "East", TierDistrict),
	place("Simei", "East", TierDistrict),
	place("Tanah Merah", "East", TierDistrict),
	place("Marine Parade", "East", TierDistrict),
	place("Katong", "East", TierDistrict),
	place("Sengkang", "North-East", TierDistrict),
	place("Hougang", "North-East", TierDistrict),
	place("Serangoon", "North-East", TierDistrict),
	place("Ang Mo Kio", "North-East", TierDistrict),
	place("Yishun", "North", TierDistrict),
	place("Sembawang", "North", TierDistrict),
	place("Admiralty", "North", TierDistrict),
	place("Jurong West", "West", TierDistrict),
	place("Bukit Batok", "West", TierDistrict),
	place("Bukit Panjang", "West", TierDistrict),
	place("Choa Chu Kang", "West", TierDistrict),
	place("Clementi", "West", TierDistrict),
	place("Tengah", "West", TierDistrict),
	place("Tuas", "West", TierDistrict),
	place("Bishan", "Central", TierDistrict),
	place("Toa Payoh", "Central", TierDistrict),
	place("Novena", "Central", TierDistrict),
	place("Queenstown", "Central", TierDistrict),
	place("Bukit Timah", "Central", TierDistrict),
	place("Kallang", "Central", TierDistrict),
	place("Geylang", "Central", TierDistrict),
	place("Bugis", "Central", TierDistrict),
	place("Outram", "Central", TierDistrict),
	place("Harbourfront", "Central", TierDistrict),
	place("Buona Vista", "Central", TierDistrict),
}

// LookupPlace finds a gazetteer entry by name, ignoring case and diacritics.
func LookupPlace(name string) (Place, bool) {
	key := Normalize(name)
	for _, p := range Gazetteer {
		if Normalize(p.Name) == key {
			return p, true
		}
	}
	return Place{}, false
}

// SameRegion reports whether the place named name lies in region.
func SameRegion(name, region string) bool {
	p, ok := LookupPlace(name)
	if !ok || region == "" {
		return false
	}
	return strings.EqualFold(p.Region, strings.TrimSpace(region))
}
