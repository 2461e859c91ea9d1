// Package match scores how well a traveller fits a search.
package match

import (
	"strconv"
	"strings"

	"github.com/gosimple/unidecode"
)

const (
	BaseScore = 60
	MaxScore  = 100

	originBonus    = 15
	schoolBonus    = 20
	airlineBonus   = 10
	sameYearBonus  = 15
	closeDateBonus = 10
)

// Criteria is what the searching user asked for.
type Criteria struct {
	OriginCity         string `json:"origin_city"`
	DestinationCountry string `json:"destination_country"`
	DestinationCity    string `json:"destination_city"`
	School             string `json:"school,omitempty"`
	Airline            string `json:"airline,omitempty"`
	YearMonth          string `json:"year_month"`
}

// Candidate is the other traveller's side of the comparison.
type Candidate struct {
	OriginCity string
	School     string
	Airline    string
	YearMonth  string
	Verified   bool
}

// Rules selects how strict each comparison is.
type Rules struct {
	// OriginContains matches origin by substring instead of equality.
	OriginContains bool
	// AirlineContains matches airline by substring instead of equality.
	AirlineContains bool
	// MonthWindow is the largest month distance that earns the close date bonus.
	MonthWindow   int
	VerifiedBonus int
}

var (
	// Remote scores rows returned by the backend.
	Remote = Rules{MonthWindow: 1, VerifiedBonus: 5}
	// Demo scores generated fallback profiles.
	Demo = Rules{OriginContains: true, AirlineContains: true, MonthWindow: 2}
)

// Bonus returns the points candidate earns against c.
func Bonus(c Criteria, cand Candidate, r Rules) int {
	bonus := 0

	if c.OriginCity != "" {
		if r.OriginContains && Contains(cand.OriginCity, c.OriginCity) ||
			!r.OriginContains && Equal(cand.OriginCity, c.OriginCity) {
			bonus += originBonus
		}
	}
	if c.School != "" && Contains(cand.School, c.School) {
		bonus += schoolBonus
	}
	if c.Airline != "" && cand.Airline != "" {
		if r.AirlineContains && Contains(cand.Airline, c.Airline) ||
			!r.AirlineContains && Equal(cand.Airline, c.Airline) {
			bonus += airlineBonus
		}
	}

	wantYear, wantMonth, ok1 := SplitYearMonth(c.YearMonth)
	gotYear, gotMonth, ok2 := SplitYearMonth(cand.YearMonth)
	if ok1 && ok2 && wantYear == gotYear {
		bonus += sameYearBonus
		if abs(wantMonth-gotMonth) <= r.MonthWindow {
			bonus += closeDateBonus
		}
	}

	if cand.Verified {
		bonus += r.VerifiedBonus
	}
	return bonus
}

// Score adds the bonus to base and caps the result.
func Score(base int, c Criteria, cand Candidate, r Rules) int {
	return min(MaxScore, base+Bonus(c, cand, r))
}

// MatchesDestination reports whether a profile's destination fits c.
// Either the country or the city is enough.
func MatchesDestination(c Criteria, country, city string) bool {
	return Contains(country, c.DestinationCountry) || Contains(city, c.DestinationCity)
}

// Fold lowercases and strips accents so "São Paulo" equals "sao paulo".
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(s)))
}

// Contains is an accent and case insensitive substring test.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// Equal is an accent and case insensitive comparison.
func Equal(a, b string) bool {
	return Fold(a) == Fold(b)
}

// SplitYearMonth parses "YYYY-MM".
func SplitYearMonth(ym string) (year string, month int, ok bool) {
	y, m, found := strings.Cut(strings.TrimSpace(ym), "-")
	if !found || len(y) != 4 {
		return "", 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 1 || n > 12 {
		return "", 0, false
	}
	return y, n, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
