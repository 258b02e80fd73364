// Package qual compiles operator-typed qualification formulae and resolves
// their names to marketplace qualification type IDs.
package qual

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/kurihiro0119/hitbatch/internal/domain"
	apperrors "github.com/kurihiro0119/hitbatch/internal/errors"
	"github.com/kurihiro0119/hitbatch/internal/locale"
)

// suggestionDistance is the edit distance below which an unknown name is
// treated as a typo of a system name.
const suggestionDistance = 3

// Comparators lists the accepted comparator spellings in help order
var Comparators = []string{"=", "!=", "<", ">", "<=", ">=", "exists", "doesntexist", "in", "notin"}

var comparatorNames = map[string]domain.Comparator{
	"=":           domain.ComparatorEqualTo,
	"!=":          domain.ComparatorNotEqualTo,
	"<":           domain.ComparatorLessThan,
	"<=":          domain.ComparatorLessThanOrEqualTo,
	">":           domain.ComparatorGreaterThan,
	">=":          domain.ComparatorGreaterThanOrEqualTo,
	"exists":      domain.ComparatorExists,
	"doesntexist": domain.ComparatorDoesNotExist,
	"in":          domain.ComparatorIn,
	"notin":       domain.ComparatorNotIn,
}

const adultUsage = "For Worker_Adult qualification, specify either:\n" +
	"Worker_Adult = 1 (for adults)\n" +
	"Worker_Adult = 0 (for children)"

// Compiler turns formula lines into qualification requirements
type Compiler struct {
	known  map[string]struct{}
	logger *zap.Logger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithLogger sets the logger that receives non-fatal warnings
func WithLogger(logger *zap.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithKnownNames adds names that are accepted without typo checks
func WithKnownNames(names ...string) Option {
	return func(c *Compiler) {
		for _, n := range names {
			c.known[n] = struct{}{}
		}
	}
}

// NewCompiler creates a compiler that knows the system qualification names
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		known:  make(map[string]struct{}),
		logger: zap.NewNop(),
	}
	for _, n := range domain.SystemQualificationNames {
		c.known[n] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Learn records a custom name so later lines using it skip the typo check
func (c *Compiler) Learn(name string) {
	c.known[name] = struct{}{}
}

// Knows reports whether name is already known to the compiler
func (c *Compiler) Knows(name string) bool {
	_, ok := c.known[name]
	return ok
}

// Compile parses one formula line of the form NAME COMPARATOR [VALUE[, VALUE...]].
// No partial requirement is ever returned: the first failure aborts the line.
func (c *Compiler) Compile(line string) (*domain.QualificationRequirement, error) {
	fields := splitFormula(strings.TrimSpace(line))
	if len(fields) == 0 {
		return nil, apperrors.NewParseError("invalid formula")
	}

	name := fields[0]
	if !c.Knows(name) {
		if suggestion, ok := Suggest(name); ok {
			return nil, apperrors.NewValidationError(
				fmt.Sprintf("invalid qualification %s. Did you mean %s?", name, suggestion))
		}
	}

	if len(fields) < 2 {
		return nil, apperrors.NewParseError("invalid formula")
	}

	rawComparator := fields[1]
	comparator, ok := comparatorNames[strings.ToLower(rawComparator)]
	if !ok {
		return nil, apperrors.NewValidationError("unknown comparator " + rawComparator)
	}

	var rawValue string
	var values []string
	if len(fields) == 3 {
		rawValue = fields[2]
		values = splitValues(rawValue)
	}

	if name == domain.QualAdult && (comparator != domain.ComparatorEqualTo || (rawValue != "0" && rawValue != "1")) {
		return nil, apperrors.NewValidationError(adultUsage)
	}

	if !comparator.TakesValues() {
		if values != nil {
			c.logger.Warn("comparator ignores supplied value",
				zap.String("name", name),
				zap.String("comparator", string(comparator)),
				zap.String("value", rawValue))
		}
		return &domain.QualificationRequirement{Name: name, Comparator: comparator}, nil
	}

	if values == nil {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("comparator %s requires a value", rawComparator))
	}

	req := &domain.QualificationRequirement{Name: name, Comparator: comparator}
	if name == domain.QualLocale {
		locales := make([]domain.LocaleValue, 0, len(values))
		for _, v := range values {
			lv, err := locale.Resolve(v)
			if err != nil {
				return nil, err
			}
			locales = append(locales, lv)
		}
		req.LocaleValues = locales
		return req, nil
	}

	ints := make([]int32, 0, len(values))
	for _, v := range values {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return nil, apperrors.NewParseError(fmt.Sprintf("invalid integer value %q", v))
		}
		ints = append(ints, int32(n))
	}
	req.IntegerValues = ints
	return req, nil
}

// splitValues splits a value list on commas, tolerating spaces around them
func splitValues(raw string) []string {
	parts := strings.Split(raw, ",")
	values := make([]string, len(parts))
	for i, p := range parts {
		values[i] = strings.TrimSpace(p)
	}
	return values
}

// Suggest returns the first system name within edit distance 2 of name
func Suggest(name string) (string, bool) {
	for _, sn := range domain.SystemQualificationNames {
		if levenshtein.ComputeDistance(sn, name) < suggestionDistance {
			return sn, true
		}
	}
	return "", false
}
