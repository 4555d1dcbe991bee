package geocode

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// regionToCountry maps lower-cased sub-national names and common aliases to
// the owning country. "georgia" resolves to the US state.
var regionToCountry = map[string]string{
	// US states
	"alaska":         "United States",
	"california":     "United States",
	"ca":             "United States",
	"texas":          "United States",
	"florida":        "United States",
	"hawaii":         "United States",
	"new york":       "United States",
	"washington":     "United States",
	"oregon":         "United States",
	"nevada":         "United States",
	"nv":             "United States",
	"arizona":        "United States",
	"colorado":       "United States",
	"montana":        "United States",
	"wyoming":        "United States",
	"idaho":          "United States",
	"utah":           "United States",
	"new mexico":     "United States",
	"north dakota":   "United States",
	"south dakota":   "United States",
	"nebraska":       "United States",
	"kansas":         "United States",
	"oklahoma":       "United States",
	"missouri":       "United States",
	"iowa":           "United States",
	"arkansas":       "United States",
	"louisiana":      "United States",
	"mississippi":    "United States",
	"alabama":        "United States",
	"tennessee":      "United States",
	"kentucky":       "United States",
	"indiana":        "United States",
	"illinois":       "United States",
	"wisconsin":      "United States",
	"michigan":       "United States",
	"minnesota":      "United States",
	"ohio":           "United States",
	"pennsylvania":   "United States",
	"west virginia":  "United States",
	"virginia":       "United States",
	"north carolina": "United States",
	"south carolina": "United States",
	"georgia":        "United States",
	"maine":          "United States",
	"vermont":        "United States",
	"new hampshire":  "United States",
	"massachusetts":  "United States",
	"rhode island":   "United States",
	"connecticut":    "United States",
	"new jersey":     "United States",
	"delaware":       "United States",
	"maryland":       "United States",

	// Canadian provinces and territories
	"british columbia":      "Canada",
	"alberta":               "Canada",
	"saskatchewan":          "Canada",
	"manitoba":              "Canada",
	"ontario":               "Canada",
	"quebec":                "Canada",
	"new brunswick":         "Canada",
	"nova scotia":           "Canada",
	"prince edward island":  "Canada",
	"newfoundland":          "Canada",
	"yukon":                 "Canada",
	"northwest territories": "Canada",
	"nunavut":               "Canada",

	// Australian states
	"new south wales":    "Australia",
	"queensland":         "Australia",
	"victoria":           "Australia",
	"tasmania":           "Australia",
	"south australia":    "Australia",
	"western australia":  "Australia",
	"northern territory": "Australia",

	// US territories
	"puerto rico":              "United States",
	"guam":                     "United States",
	"northern mariana islands": "United States",
	"us virgin islands":        "United States",

	// Aliases
	"usa":                      "United States",
	"us":                       "United States",
	"u.s.":                     "United States",
	"united states of america": "United States",
	"uk":                       "United Kingdom",
	"great britain":            "United Kingdom",
}

var knownCountries = []string{
	"Afghanistan", "Albania", "Algeria", "Argentina", "Australia", "Austria",
	"Bangladesh", "Belgium", "Bolivia", "Brazil", "Bulgaria",
	"Cambodia", "Canada", "Chile", "China", "Colombia", "Costa Rica", "Croatia",
	"Denmark", "Dominican Republic", "Ecuador", "Egypt", "El Salvador",
	"Finland", "France", "Germany", "Greece", "Guatemala",
	"Honduras", "Hungary", "Iceland", "India", "Indonesia", "Iran", "Iraq", "Ireland", "Israel", "Italy",
	"Japan", "Jordan", "Kazakhstan", "Kenya", "Kuwait",
	"Lebanon", "Libya", "Luxembourg", "Malaysia", "Mexico", "Morocco", "Myanmar",
	"Nepal", "Netherlands", "New Zealand", "Nicaragua", "Nigeria", "Norway",
	"Pakistan", "Panama", "Papua New Guinea", "Paraguay", "Peru", "Philippines", "Poland", "Portugal",
	"Romania", "Russia", "Saudi Arabia", "Serbia", "Singapore", "Slovakia", "Slovenia",
	"South Africa", "South Korea", "Spain", "Sri Lanka", "Sudan", "Sweden", "Switzerland", "Syria",
	"Taiwan", "Tanzania", "Thailand", "Turkey", "Uganda", "Ukraine", "United Arab Emirates",
	"United Kingdom", "United States", "Uruguay", "Uzbekistan", "Venezuela", "Vietnam", "Yemen",
}

// KnownCountries returns a copy of the country list used for token matching.
func KnownCountries() []string {
	out := make([]string, len(knownCountries))
	copy(out, knownCountries)
	return out
}

// CanonicalCountry returns the known spelling of name, matched without regard
// to case or surrounding space. Names outside the list come back trimmed.
func CanonicalCountry(name string) string {
	name = strings.TrimSpace(name)
	for _, c := range knownCountries {
		if strings.EqualFold(c, name) {
			return c
		}
	}
	if strings.EqualFold(name, Unknown) {
		return Unknown
	}
	return name
}

type regionFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadRegionAliases reads extra region -> country mappings from a YAML file
// of the form:
//
//	aliases:
//	  bavaria: Germany
//	  "b.c.": Canada
func LoadRegionAliases(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region aliases: %w", err)
	}

	var f regionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse region aliases %s: %w", path, err)
	}

	out := make(map[string]string, len(f.Aliases))
	for region, country := range f.Aliases {
		region = strings.ToLower(strings.TrimSpace(region))
		country = strings.TrimSpace(country)
		if region == "" || country == "" {
			return nil, fmt.Errorf("parse region aliases %s: empty entry %q -> %q", path, region, country)
		}
		out[region] = country
	}
	return out, nil
}
