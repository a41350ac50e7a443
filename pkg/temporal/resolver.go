// Package temporal guesses date/time layouts from sample literals and
// normalises parsed instants to time point strings, including seasonal
// (year-agnostic) time points.
package temporal

import (
	"strconv"
	"strings"
	"time"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultSeasonalKey is the sentinel year marking an annually recurring time point
	DefaultSeasonalKey = "9999"
	// DefaultPlaceholder is the year token written in seasonal literals
	DefaultPlaceholder = "XXXX"

	// TimePointLayout is the layout of normalised time points
	TimePointLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// FormatPattern is a resolved layout for one literal.
type FormatPattern struct {
	// Layout is the Go time layout that parsed the literal
	Layout string
	// Seasonal marks a year-agnostic pattern
	Seasonal bool
	// Placeholder is true when the literal spelled its year with the
	// placeholder token, which is substituted before parsing
	Placeholder bool
}

// Resolver resolves literals to layouts. Results, including misses, are
// memoised by exact literal text for the lifetime of the resolver, which is
// one import or export run.
type Resolver struct {
	logger       *zap.Logger
	seasonalKey  string
	seasonalYear int
	placeholder  string
	layouts      []string
	cache        map[string]*FormatPattern
}

// NewResolver creates a resolver. seasonalKey must be a four digit year.
func NewResolver(seasonalKey, placeholder string, logger *zap.Logger) (*Resolver, error) {
	if seasonalKey == "" {
		seasonalKey = DefaultSeasonalKey
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	year, err := strconv.Atoi(seasonalKey)
	if err != nil || len(seasonalKey) != 4 {
		return nil, cerrors.New(cerrors.ErrorTypeConfig, "seasonal key must be a four digit year").
			WithDetail("seasonal_key", seasonalKey)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:       logger,
		seasonalKey:  seasonalKey,
		seasonalYear: year,
		placeholder:  placeholder,
		layouts:      candidateLayouts(),
		cache:        make(map[string]*FormatPattern),
	}, nil
}

// Resolve returns the pattern for literal, or nil when no candidate layout
// matches. Identical literals are answered from the cache; different
// literals are always resolved afresh.
func (r *Resolver) Resolve(literal string) *FormatPattern {
	if p, ok := r.cache[literal]; ok {
		return p
	}
	p := r.guess(literal)
	r.cache[literal] = p
	if p == nil {
		r.logger.Debug("no time format matches literal", zap.String("literal", literal))
	} else {
		r.logger.Debug("resolved time format",
			zap.String("literal", literal),
			zap.String("layout", p.Layout),
			zap.Bool("seasonal", p.Seasonal))
	}
	return p
}

// CacheSize returns the number of memoised literals.
func (r *Resolver) CacheSize() int {
	return len(r.cache)
}

// Reset discards all memoised patterns.
func (r *Resolver) Reset() {
	r.cache = make(map[string]*FormatPattern)
}

// IsTemporal reports whether literal resolves to a pattern.
func (r *Resolver) IsTemporal(literal string) bool {
	return r.Resolve(literal) != nil
}

// Parse resolves literal and parses it in loc. A literal with no matching
// pattern is a format resolution error. A naive wall clock time that does
// not exist in loc, because it falls in a daylight saving gap, is moved
// forward by the gap as time.Date does, and a warning is logged.
func (r *Resolver) Parse(literal string, loc *time.Location) (time.Time, *FormatPattern, error) {
	p := r.Resolve(literal)
	if p == nil {
		return time.Time{}, nil, cerrors.New(cerrors.ErrorTypeFormatResolution, "unable to resolve a time format").
			WithDetail("value", literal)
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(p.Layout, r.substitute(literal), loc)
	if err != nil {
		return time.Time{}, nil, cerrors.Wrap(err, cerrors.ErrorTypeFormatResolution, "unable to parse time").
			WithDetail("value", literal).
			WithDetail("layout", p.Layout)
	}
	if loc != time.UTC {
		r.checkWallClock(literal, p.Layout, t)
	}
	return t, p, nil
}

func (r *Resolver) checkWallClock(literal, layout string, t time.Time) {
	naive, err := time.Parse(layout, r.substitute(literal))
	if err != nil {
		return
	}
	if naive.Hour() != t.Hour() || naive.Minute() != t.Minute() || naive.Day() != t.Day() {
		r.logger.Warn("time falls in a daylight saving gap, shifted forward",
			zap.String("value", literal),
			zap.String("location", t.Location().String()),
			zap.String("time", t.Format(time.RFC3339)))
	}
}

// Normalize renders t as a time point. Seasonal time points have their year
// replaced by the seasonal key.
func (r *Resolver) Normalize(t time.Time, seasonal bool) string {
	if seasonal && t.Year() != r.seasonalYear {
		t = time.Date(r.seasonalYear, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	return t.Format(TimePointLayout)
}

// TimePoint parses literal in loc and normalises it in one step.
func (r *Resolver) TimePoint(literal string, loc *time.Location) (string, error) {
	t, p, err := r.Parse(literal, loc)
	if err != nil {
		return "", err
	}
	return r.Normalize(t, p.Seasonal), nil
}

func (r *Resolver) substitute(literal string) string {
	return strings.Replace(strings.TrimSpace(literal), r.placeholder, r.seasonalKey, 1)
}

func (r *Resolver) guess(literal string) *FormatPattern {
	trimmed := strings.TrimSpace(literal)
	if trimmed == "" {
		return nil
	}
	// Bare numbers are values, not dates.
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return nil
	}
	hasPlaceholder := strings.Contains(trimmed, r.placeholder)
	candidate := r.substitute(trimmed)

	for _, layout := range r.layouts {
		t, err := time.Parse(layout, candidate)
		if err != nil {
			continue
		}
		return &FormatPattern{
			Layout:      layout,
			Seasonal:    hasPlaceholder || t.Year() == r.seasonalYear,
			Placeholder: hasPlaceholder,
		}
	}
	return nil
}

// candidateLayouts lists layouts from strictest to loosest: day-month-year
// orders crossed with delimiters, each alone or with a time of day, then
// named-month forms.
func candidateLayouts() []string {
	dateOrders := [][3]string{
		{"2006", "1", "2"},
		{"2", "1", "2006"},
		{"2", "Jan", "2006"},
		{"2", "January", "2006"},
	}
	delimiters := []string{"-", "/", ".", " "}
	times := []string{
		"15:04:05Z07:00",
		"15:04:05",
		"15:04Z07:00",
		"15:04",
	}

	var layouts []string
	for _, order := range dateOrders {
		for _, d := range delimiters {
			date := order[0] + d + order[1] + d + order[2]
			for _, tod := range times {
				layouts = append(layouts, date+"T"+tod, date+" "+tod)
			}
			layouts = append(layouts, date)
		}
	}
	layouts = append(layouts,
		"Jan 2 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006 15:04:05",
		time.RFC1123Z,
		time.RFC1123,
	)
	return layouts
}
