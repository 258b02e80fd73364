// Package locale validates COUNTRY[:SUBDIVISION] tokens against the ISO 3166 tables.
package locale

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pariz/gountries"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	apperrors "github.com/kurihiro0119/hitbatch/internal/errors"
)

var (
	queryOnce sync.Once
	query     *gountries.Query
)

// table loads the ISO data on first use; the embedded tables are large.
func table() *gountries.Query {
	queryOnce.Do(func() {
		query = gountries.New()
	})
	return query
}

// Resolve turns a token such as "USA:NY" or "MX" into a LocaleValue.
// The country may be given as an alpha-2 or alpha-3 code and is normalized to alpha-2.
func Resolve(token string) (domain.LocaleValue, error) {
	parts := strings.SplitN(token, ":", 2)
	countryCode := parts[0]

	country, ok := findCountry(countryCode)
	if !ok {
		return domain.LocaleValue{}, UnknownCountryError(countryCode)
	}

	value := domain.LocaleValue{Country: country.Alpha2}
	if len(parts) == 1 {
		return value, nil
	}

	subdivision := parts[1]
	if !hasSubdivision(country, subdivision) {
		return domain.LocaleValue{}, UnknownSubdivisionError(subdivision, countryCode)
	}
	value.Subdivision = subdivision
	return value, nil
}

// UnknownCountryError is returned for a country code missing from the reference table
func UnknownCountryError(country string) error {
	return apperrors.NewValidationError(fmt.Sprintf("unknown country %s", country))
}

// UnknownSubdivisionError is returned for a subdivision missing under a known country
func UnknownSubdivisionError(subdivision, country string) error {
	return apperrors.NewValidationError(fmt.Sprintf("unknown subdivision %s for country %s", subdivision, country))
}

func findCountry(code string) (gountries.Country, bool) {
	// only exact 2- or 3-letter codes; gountries would otherwise accept names
	if len(code) != 2 && len(code) != 3 {
		return gountries.Country{}, false
	}
	if code != strings.ToUpper(code) {
		return gountries.Country{}, false
	}
	country, err := table().FindCountryByAlpha(code)
	if err != nil {
		return gountries.Country{}, false
	}
	return country, true
}

func hasSubdivision(country gountries.Country, subdivision string) bool {
	if subdivision == "" {
		return false
	}
	key := country.Alpha2 + "-" + subdivision
	for _, sd := range country.SubDivisions() {
		if country.Alpha2+"-"+sd.Code == key || sd.Code == key {
			return true
		}
	}
	return false
}
