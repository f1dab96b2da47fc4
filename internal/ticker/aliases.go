package ticker

import (
	_ "embed"

	"github.com/gocarina/gocsv"
)

// aliases.csv holds known fund-name fragments that the listing source spells
// differently from FNet filings. Fragments are matched by containment
// against the normalized name.
//
//go:embed aliases.csv
var aliasesCSV []byte

type aliasRow struct {
	Fragment string `csv:"fragment"`
	Ticker   string `csv:"ticker"`
}

func staticAliases() map[string]string {
	var rows []aliasRow
	if err := gocsv.UnmarshalBytes(aliasesCSV, &rows); err != nil {
		// The table is embedded and validated by tests; an unmarshal
		// failure here means a broken build, not a runtime condition.
		return map[string]string{}
	}

	aliases := make(map[string]string, len(rows))
	for _, r := range rows {
		if r.Fragment != "" && r.Ticker != "" {
			aliases[NormalizeFundName(r.Fragment)] = r.Ticker
		}
	}
	return aliases
}
