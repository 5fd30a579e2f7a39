package risk

import "strings"

// Correlator decides whether two assets move together closely enough that
// holding both counts as concentrated risk.
type Correlator interface {
	IsCorrelated(a, b string) bool
}

// AlwaysCorrelated treats every pair as correlated. Most conservative option.
type AlwaysCorrelated struct{}

func (AlwaysCorrelated) IsCorrelated(string, string) bool { return true }

var majors = map[string]bool{"BTC": true, "ETH": true}

// IsMajor reports whether the asset gets the BTC/ETH leverage tier.
func IsMajor(asset string) bool {
	return majors[strings.ToUpper(asset)]
}

// GroupCorrelator groups assets into sectors. Two assets are correlated when
// they are the same asset, share a sector, or one of them is a major, since
// alts still follow BTC and ETH.
type GroupCorrelator struct {
	groups map[string]string
}

func DefaultSectors() map[string][]string {
	return map[string][]string{
		"majors": {"BTC", "ETH"},
		"l1":     {"SOL", "AVAX", "SUI", "APT", "SEI", "NEAR", "TON", "ADA", "DOT", "ATOM"},
		"l2":     {"ARB", "OP", "MATIC", "POL", "STRK", "MNT"},
		"meme":   {"DOGE", "PEPE", "WIF", "BONK", "SHIB", "FLOKI", "POPCAT"},
		"defi":   {"UNI", "AAVE", "LINK", "MKR", "CRV", "LDO", "PENDLE", "HYPE"},
		"ai":     {"FET", "RENDER", "TAO", "WLD"},
	}
}

func NewGroupCorrelator(sectors map[string][]string) *GroupCorrelator {
	g := &GroupCorrelator{groups: map[string]string{}}
	for sector, assets := range sectors {
		for _, a := range assets {
			g.groups[strings.ToUpper(a)] = sector
		}
	}
	return g
}

func (g *GroupCorrelator) IsCorrelated(a, b string) bool {
	a, b = strings.ToUpper(a), strings.ToUpper(b)
	if a == b || majors[a] || majors[b] {
		return true
	}
	ga, okA := g.groups[a]
	gb, okB := g.groups[b]
	if !okA || !okB {
		// unknown assets are grouped together
		return !okA && !okB
	}
	return ga == gb
}
