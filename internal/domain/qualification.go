package domain

import "github.com/shopspring/decimal"

// Comparator is the marketplace comparator for a qualification requirement
type Comparator string

const (
	ComparatorEqualTo              Comparator = "EqualTo"
	ComparatorNotEqualTo           Comparator = "NotEqualTo"
	ComparatorLessThan             Comparator = "LessThan"
	ComparatorLessThanOrEqualTo    Comparator = "LessThanOrEqualTo"
	ComparatorGreaterThan          Comparator = "GreaterThan"
	ComparatorGreaterThanOrEqualTo Comparator = "GreaterThanOrEqualTo"
	ComparatorExists               Comparator = "Exists"
	ComparatorDoesNotExist         Comparator = "DoesNotExist"
	ComparatorIn                   Comparator = "In"
	ComparatorNotIn                Comparator = "NotIn"
)

// TakesValues reports whether the comparator is applied to a value list
func (c Comparator) TakesValues() bool {
	return c != ComparatorExists && c != ComparatorDoesNotExist
}

// Qualification names defined by the platform itself
const (
	QualMasters                    = "Masters"
	QualNumberHITsApproved         = "Worker_NumberHITsApproved"
	QualLocale                     = "Worker_Locale"
	QualAdult                      = "Worker_Adult"
	QualPercentAssignmentsApproved = "Worker_PercentAssignmentsApproved"
)

// SystemQualificationNames lists the platform-defined qualification names
var SystemQualificationNames = []string{
	QualMasters,
	QualNumberHITsApproved,
	QualLocale,
	QualAdult,
	QualPercentAssignmentsApproved,
}

// LocaleValue is an ISO-3166 country with an optional ISO-3166-2 subdivision
type LocaleValue struct {
	Country     string `json:"Country" yaml:"country"`
	Subdivision string `json:"Subdivision,omitempty" yaml:"subdivision,omitempty"`
}

func (l LocaleValue) String() string {
	if l.Subdivision == "" {
		return l.Country
	}
	return l.Country + ":" + l.Subdivision
}

// QualificationRequirement is a compiled eligibility rule, still addressed by name
type QualificationRequirement struct {
	Name          string        `json:"Name"`
	Comparator    Comparator    `json:"Comparator"`
	IntegerValues []int32       `json:"IntegerValues,omitempty"`
	LocaleValues  []LocaleValue `json:"LocaleValues,omitempty"`
}

// QualificationTier records how a requirement name was resolved
type QualificationTier int

const (
	TierSystem QualificationTier = iota
	TierPremium
	TierCustom
)

func (t QualificationTier) String() string {
	switch t {
	case TierSystem:
		return "system"
	case TierPremium:
		return "premium"
	case TierCustom:
		return "custom"
	}
	return "unknown"
}

// ResolvedRequirement is a requirement addressed by platform type ID
type ResolvedRequirement struct {
	QualificationRequirement
	TypeID string
	Tier   QualificationTier
	// Fee is the flat premium charge in dollars; zero outside the premium tier.
	Fee decimal.Decimal
}
