package places

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OmniKeyword expands into the omni-search category list.
const OmniKeyword = "business"

// DefaultOmniCategories is the built-in omni-search list.
var DefaultOmniCategories = []string{
	"plumber",
	"electrician",
	"hvac",
	"dentist",
	"roofer",
	"landscaper",
	"lawyer",
	"accountant",
	"pest control",
	"locksmith",
	"painter",
	"general contractor",
	"cleaning service",
	"auto repair",
	"veterinarian",
	"chiropractor",
	"physical therapy",
	"tree service",
	"fencing",
	"pool service",
	"handyman",
	"carpet cleaning",
	"moving company",
	"restoration service",
	"window cleaning",
	"solar installation",
}

// ChainBlocklist holds lowercase name fragments of national chains.
var ChainBlocklist = []string{
	"walmart", "target", "mcdonald", "starbucks", "cvs", "walgreens", "subway",
	"dunkin", "domino", "pizza hut", "burger king", "wendy", "taco bell", "kfc",
	"lowe", "home depot", "best buy", "costco", "kroger", "whole foods", "safeway",
	"7-eleven", "shell", "bp", "exxon", "sheetz", "wawa", "fedex", "ups", "usps",
	"bank of america", "wells fargo", "papa john", "little caesar", "checkers",
	"sonic", "arby", "chipotle", "panda express", "jersey mike", "jimmy john",
	"five guys", "panera", "buffalo wild wings", "dairy queen", "popeye",
	"bruster", "firehouse", "ihop", "applebee", "denny", "outback", "red lobster",
	"olive garden",
}

// TypeBlocklist holds provider type tags that are never leads.
var TypeBlocklist = []string{"supermarket", "department_store", "shopping_mall", "gas_station", "atm"}

// ParseCategories splits a comma-separated override, trimming entries and
// dropping empties.
func ParseCategories(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Categories resolves the ordered category set for a keyword.
func (c *Client) Categories(keyword string) []string {
	if !strings.EqualFold(keyword, OmniKeyword) {
		return []string{keyword}
	}
	if len(c.cfg.OmniCategories) > 0 {
		return append([]string(nil), c.cfg.OmniCategories...)
	}
	return append([]string(nil), DefaultOmniCategories...)
}

// blocked reports whether a row must be dropped by the chain or type filters.
func blocked(name string, types []string) bool {
	lower := strings.ToLower(name)
	for _, chain := range ChainBlocklist {
		if strings.Contains(lower, chain) {
			return true
		}
	}
	for _, t := range types {
		for _, b := range TypeBlocklist {
			if t == b {
				return true
			}
		}
	}
	return false
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
