package cache

import (
	"strings"

	"github.com/ttacon/libphonenumber"
	"golang.org/x/text/cases"
)

// foldText trims and case-folds s for caseless comparison. A Caser keeps
// state, so one is built per call.
func foldText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return cases.Fold().String(s)
}

// normalizePhone formats raw as E.164, or returns "" when it is not a number
// for region.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := libphonenumber.Parse(raw, region)
	if err != nil {
		return ""
	}
	return libphonenumber.Format(number, libphonenumber.E164)
}
