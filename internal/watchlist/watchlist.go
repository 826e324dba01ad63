package watchlist

import (
	"fmt"
	"strings"
)

// Market is the listing venue of a security. It selects the upstream provider.
type Market string

const (
	// TSE is the Taiwan Stock Exchange (listed securities).
	TSE Market = "tse"
	// OTC is the Taipei Exchange (over-the-counter securities).
	OTC Market = "otc"
)

// ParseMarket accepts the config spelling of a venue, case-insensitive.
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToLower(strings.TrimSpace(s))) {
	case TSE:
		return TSE, nil
	case OTC:
		return OTC, nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

// Entry is one security on the watch-list.
type Entry struct {
	Code   string `yaml:"code" json:"code" validate:"required"`
	Name   string `yaml:"name" json:"name"`
	Market Market `yaml:"market" json:"market" validate:"required,oneof=tse otc"`
}

// Default is the list tracked when the config does not provide one.
func Default() []Entry {
	return []Entry{
		{Code: "00918", Name: "大華優利高填息30", Market: TSE},
		{Code: "00929", Name: "復華台灣科技優息", Market: TSE},
		{Code: "00922", Name: "國泰台灣領袖50", Market: TSE},
		{Code: "1229", Name: "聯華", Market: TSE},
		{Code: "2324", Name: "仁寶", Market: TSE},
		{Code: "5880", Name: "合庫金", Market: TSE},
		{Code: "5410", Name: "國眾", Market: OTC},
		{Code: "6186", Name: "新潤", Market: OTC},
	}
}
