package competitors

import (
	"github.com/biter777/countries"
	"github.com/pilosa/trialkit"
	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v3"
)

// DefaultCountryLookup maps country names as ClinicalTrials.gov writes them
// ("United States", "Korea, Republic of") to ISO 3166-1 alpha-3 codes.
func DefaultCountryLookup(name string) (string, bool) {
	c := countries.ByName(name)
	if c == countries.Unknown {
		return "", false
	}
	return c.Alpha3(), true
}

// GeoRow is one row of the geographic dataset. CountryCode is null when the
// country name couldn't be mapped.
type GeoRow struct {
	NCTNumber   string      `json:"nctNumber"`
	Country     string      `json:"country"`
	Sponsor     string      `json:"sponsor"`
	CountryCode null.String `json:"countryCode"`
}

// GeoRows converts the geographic dataset to GeoRows.
func GeoRows(geo *trialkit.Dataset) ([]GeoRow, error) {
	idx, err := geo.Cols(ColNCT, ColCountry, ColSponsor, ColCountryCode)
	if err != nil {
		return nil, errors.Wrap(err, "reading geographic rows")
	}
	rows := make([]GeoRow, len(geo.Rows))
	for i, row := range geo.Rows {
		code := row[idx[3]]
		rows[i] = GeoRow{
			NCTNumber:   row[idx[0]],
			Country:     row[idx[1]],
			Sponsor:     row[idx[2]],
			CountryCode: null.NewString(code, code != ""),
		}
	}
	return rows, nil
}
