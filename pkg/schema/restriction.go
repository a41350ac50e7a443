package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/frame"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/shape"
)

// Restrictions maps a rule name to its argument, e.g.
//
//	{"VALUERANGE": [0, 100], "ENUM": ["a", "b"], "VALUEPATTERN": "^[a-z]+$"}
//
// Rule names are case-insensitive.
type Restrictions map[string]interface{}

// ParseRestrictions decodes a JSON restriction mapping. Empty text yields no
// restrictions.
func ParseRestrictions(text string) (Restrictions, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var r Restrictions
	if err := jsonpool.Unmarshal([]byte(text), &r); err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeValidation, "invalid restriction mapping").
			WithDetail("value", text)
	}
	return r, nil
}

// ruleFunc checks the leaf values of one dataset against a rule argument.
type ruleFunc func(arg interface{}, leaves []interface{}) error

var rules = map[string]ruleFunc{
	"ENUM":          checkEnum,
	"VALUERANGE":    checkRange,
	"GREATERTHAN":   compareRule(func(v, a float64) bool { return v > a }, ">"),
	"GREATERTHANEQ": compareRule(func(v, a float64) bool { return v >= a }, ">="),
	"LESSTHAN":      compareRule(func(v, a float64) bool { return v < a }, "<"),
	"LESSTHANEQ":    compareRule(func(v, a float64) bool { return v <= a }, "<="),
	"EQUALTO":       checkEqual(true),
	"NOTEQUALTO":    checkEqual(false),
	"NOTNULL":       checkNotNull,
	"MAXLEN":        checkMaxLen,
	"VALUEPATTERN":  checkPattern,
	"INCREASING":    monotonicRule(func(prev, next float64) bool { return next > prev }, "increasing"),
	"DECREASING":    monotonicRule(func(prev, next float64) bool { return next < prev }, "decreasing"),
	"NUMPLACES":     checkNumPlaces,
}

// Validate checks value, encoded as for a dataset of kind, against every
// rule. Arrays are checked element by element, dataframes and timeseries
// column by column. Unknown values are not checked.
func (r Restrictions) Validate(kind models.Kind, value string) error {
	if len(r) == 0 {
		return nil
	}

	var groups [][]interface{}
	switch kind {
	case models.KindScalar:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return cerrors.Wrap(err, cerrors.ErrorTypeValidation, "scalar is not numeric").
				WithDetail("value", value)
		}
		groups = [][]interface{}{{f}}
	case models.KindDescriptor:
		groups = [][]interface{}{{value}}
	case models.KindArray:
		var nested interface{}
		if err := jsonpool.DecodeString(value, &nested); err != nil {
			return cerrors.Wrap(err, cerrors.ErrorTypeValidation, "array is not valid JSON").
				WithDetail("value", truncate(value))
		}
		flat, _, err := shape.Flatten(nested)
		if err != nil {
			return err
		}
		groups = [][]interface{}{parseLeaves(flat)}
	case models.KindDataFrame, models.KindTimeSeries:
		table, err := frame.ParseTable(value)
		if err != nil {
			return err
		}
		for _, c := range table.Columns() {
			var column []interface{}
			for _, idx := range table.Index() {
				if v, ok := table.Get(c, idx); ok {
					flat, _, err := shape.Flatten([]interface{}{v})
					if err != nil {
						return err
					}
					column = append(column, parseLeaves(flat)...)
				}
			}
			groups = append(groups, column)
		}
	case models.KindUnknown:
		return nil
	}

	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule, ok := rules[strings.ToUpper(name)]
		if !ok {
			return cerrors.New(cerrors.ErrorTypeValidation, "unknown restriction").
				WithDetail("restriction", name)
		}
		for _, leaves := range groups {
			if err := rule(r[name], leaves); err != nil {
				return cerrors.Wrap(err, cerrors.ErrorTypeValidation, "value violates restriction").
					WithDetail("restriction", strings.ToUpper(name)).
					WithDetail("value", truncate(value))
			}
		}
	}
	return nil
}

func parseLeaves(flat []string) []interface{} {
	out := make([]interface{}, len(flat))
	for i, s := range flat {
		out[i] = shape.ParseValue(s)
	}
	return out
}

func checkEnum(arg interface{}, leaves []interface{}) error {
	allowed, ok := arg.([]interface{})
	if !ok {
		allowed = []interface{}{arg}
	}
	for _, v := range leaves {
		found := false
		for _, a := range allowed {
			if same(v, a) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s is not one of %v", shape.FormatValue(v), allowed)
		}
	}
	return nil
}

func checkRange(arg interface{}, leaves []interface{}) error {
	bounds, ok := arg.([]interface{})
	if !ok || len(bounds) != 2 {
		return fmt.Errorf("VALUERANGE needs [min, max], got %v", arg)
	}
	lo, lok := toFloat(bounds[0])
	hi, hok := toFloat(bounds[1])
	if !lok || !hok {
		return fmt.Errorf("VALUERANGE bounds must be numeric, got %v", arg)
	}
	for _, v := range leaves {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("%s is not numeric", shape.FormatValue(v))
		}
		if f < lo || f > hi {
			return fmt.Errorf("%s is outside [%s, %s]", shape.FormatValue(v), shape.FormatValue(lo), shape.FormatValue(hi))
		}
	}
	return nil
}

func compareRule(ok func(v, a float64) bool, op string) ruleFunc {
	return func(arg interface{}, leaves []interface{}) error {
		a, isNum := toFloat(arg)
		if !isNum {
			return fmt.Errorf("restriction argument %v is not numeric", arg)
		}
		for _, v := range leaves {
			f, isNum := toFloat(v)
			if !isNum {
				return fmt.Errorf("%s is not numeric", shape.FormatValue(v))
			}
			if !ok(f, a) {
				return fmt.Errorf("%s is not %s %s", shape.FormatValue(v), op, shape.FormatValue(a))
			}
		}
		return nil
	}
}

func checkEqual(want bool) ruleFunc {
	return func(arg interface{}, leaves []interface{}) error {
		for _, v := range leaves {
			if same(v, arg) != want {
				if want {
					return fmt.Errorf("%s is not equal to %v", shape.FormatValue(v), arg)
				}
				return fmt.Errorf("%s must not equal %v", shape.FormatValue(v), arg)
			}
		}
		return nil
	}
}

func checkNotNull(arg interface{}, leaves []interface{}) error {
	if b, ok := arg.(bool); ok && !b {
		return nil
	}
	if len(leaves) == 0 {
		return fmt.Errorf("value is empty")
	}
	for _, v := range leaves {
		if v == nil || shape.FormatValue(v) == "" {
			return fmt.Errorf("value is null")
		}
	}
	return nil
}

// checkMaxLen bounds the text length of a single value, or the element count
// of an array.
func checkMaxLen(arg interface{}, leaves []interface{}) error {
	n, ok := toFloat(arg)
	if !ok {
		return fmt.Errorf("MAXLEN needs a number, got %v", arg)
	}
	length := len(leaves)
	if len(leaves) == 1 {
		if s, isText := leaves[0].(string); isText {
			length = len(s)
		}
	}
	if float64(length) > n {
		return fmt.Errorf("length %d exceeds %s", length, shape.FormatValue(n))
	}
	return nil
}

func checkPattern(arg interface{}, leaves []interface{}) error {
	text, ok := arg.(string)
	if !ok {
		return fmt.Errorf("VALUEPATTERN needs a string, got %v", arg)
	}
	re, err := regexp.Compile(text)
	if err != nil {
		return err
	}
	for _, v := range leaves {
		if !re.MatchString(shape.FormatValue(v)) {
			return fmt.Errorf("%s does not match %s", shape.FormatValue(v), text)
		}
	}
	return nil
}

func monotonicRule(ok func(prev, next float64) bool, name string) ruleFunc {
	return func(arg interface{}, leaves []interface{}) error {
		if b, isBool := arg.(bool); isBool && !b {
			return nil
		}
		for i := 1; i < len(leaves); i++ {
			prev, pok := toFloat(leaves[i-1])
			next, nok := toFloat(leaves[i])
			if !pok || !nok {
				return fmt.Errorf("values must be numeric to be %s", name)
			}
			if !ok(prev, next) {
				return fmt.Errorf("values are not %s at position %d", name, i)
			}
		}
		return nil
	}
}

func checkNumPlaces(arg interface{}, leaves []interface{}) error {
	n, ok := toFloat(arg)
	if !ok {
		return fmt.Errorf("NUMPLACES needs a number, got %v", arg)
	}
	for _, v := range leaves {
		text := shape.FormatValue(v)
		if _, isNum := toFloat(v); !isNum {
			return fmt.Errorf("%s is not numeric", text)
		}
		places := 0
		if i := strings.IndexByte(text, '.'); i >= 0 && !strings.ContainsAny(text, "eE") {
			places = len(text) - i - 1
		}
		if float64(places) > n {
			return fmt.Errorf("%s has more than %s decimal places", text, shape.FormatValue(n))
		}
	}
	return nil
}

// same compares numerically when both sides are numbers, else as text.
func same(v, arg interface{}) bool {
	a, aok := toFloat(v)
	b, bok := toFloat(arg)
	if aok && bok {
		return a == b || (math.IsNaN(a) && math.IsNaN(b))
	}
	return shape.FormatValue(v) == shape.FormatValue(arg)
}

func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case jsonpool.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func truncate(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
