package cricket

import (
	"fmt"
	"sort"
	"strings"
)

// Family groups the match-type codes that share scoring rules and feature layout
type Family string

const (
	FamilyT20  Family = "T20"
	FamilyODI  Family = "ODI"
	FamilyTest Family = "Test"
)

// AllFamilies in the order tables are produced
var AllFamilies = []Family{FamilyT20, FamilyODI, FamilyTest}

// Suffix is the lower-case tag used in column and file names
func (f Family) Suffix() string {
	return strings.ToLower(string(f))
}

// LimitedOvers reports whether strike-rate, economy and duck rules apply
func (f Family) LimitedOvers() bool {
	return f == FamilyT20 || f == FamilyODI
}

// CountsThirties reports whether the 30-49 milestone band exists for the family
func (f Family) CountsThirties() bool {
	return f == FamilyT20
}

// ParseFamily accepts a family name in any case
func ParseFamily(s string) (Family, error) {
	for _, f := range AllFamilies {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format family: %q", s)
}

// FormatSet maps match-type codes onto families. Codes compare case-insensitively.
type FormatSet struct {
	codes map[string]Family
}

// DefaultCodes are the codes each family recognises out of the box
func DefaultCodes() map[Family][]string {
	return map[Family][]string{
		FamilyT20:  {"T20", "IT20"},
		FamilyODI:  {"ODI", "ODM"},
		FamilyTest: {"Test", "MDM"},
	}
}

// NewFormatSet builds a lookup from family to codes. A code claimed by two
// families is rejected.
func NewFormatSet(codes map[Family][]string) (*FormatSet, error) {
	fs := &FormatSet{codes: make(map[string]Family)}
	for family, list := range codes {
		for _, code := range list {
			key := strings.ToLower(strings.TrimSpace(code))
			if key == "" {
				continue
			}
			if prev, ok := fs.codes[key]; ok && prev != family {
				return nil, fmt.Errorf("match type %q assigned to both %s and %s", code, prev, family)
			}
			fs.codes[key] = family
		}
	}
	return fs, nil
}

// Resolve returns the family a match-type code belongs to
func (fs *FormatSet) Resolve(matchType string) (Family, bool) {
	f, ok := fs.codes[strings.ToLower(strings.TrimSpace(matchType))]
	return f, ok
}

// Codes lists the codes of a family, sorted
func (fs *FormatSet) Codes(family Family) []string {
	var out []string
	for code, f := range fs.codes {
		if f == family {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out
}

// Milestone is the mutually exclusive batting band of one innings
type Milestone int

const (
	MilestoneNone Milestone = iota
	MilestoneThirty
	MilestoneFifty
	MilestoneHundred
)

// MilestoneFor classifies runs highest band first. Thirties only exist for
// families that count them.
func MilestoneFor(runs int, family Family) Milestone {
	switch {
	case runs >= 100:
		return MilestoneHundred
	case runs >= 50:
		return MilestoneFifty
	case runs >= 30 && family.CountsThirties():
		return MilestoneThirty
	default:
		return MilestoneNone
	}
}
