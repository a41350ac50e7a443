// Package shape flattens n-dimensional arrays into a single row plus a shape
// descriptor, and restores them from that pair.
//
// A shape descriptor is a space-separated list of positive dimension sizes,
// outermost first ("2 3" is two rows of three). One-dimensional arrays carry
// an empty descriptor.
package shape

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
)

// Shape holds dimension sizes, outermost first. A nil or single-entry Shape
// describes a one-dimensional array.
type Shape []int

// ParseShape parses a shape descriptor. Sizes written as floats ("2.0") are
// accepted when they are whole numbers.
func ParseShape(descriptor string) (Shape, error) {
	fields := strings.Fields(descriptor)
	if len(fields) == 0 {
		return nil, nil
	}
	dims := make(Shape, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			fl, ferr := strconv.ParseFloat(f, 64)
			if ferr != nil || fl != float64(int(fl)) {
				return nil, cerrors.New(cerrors.ErrorTypeShape, "invalid shape descriptor").
					WithDetail("dimension", descriptor)
			}
			n = int(fl)
		}
		if n < 0 {
			return nil, cerrors.New(cerrors.ErrorTypeShape, "negative dimension in shape descriptor").
				WithDetail("dimension", descriptor)
		}
		dims = append(dims, n)
	}
	return dims, nil
}

// String renders the descriptor. One-dimensional shapes render empty.
func (s Shape) String() string {
	if len(s) <= 1 {
		return ""
	}
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, " ")
}

// Product returns the number of elements the shape holds.
func (s Shape) Product() int {
	p := 1
	for _, d := range s {
		p *= d
	}
	return p
}

// Flatten walks a nested array once, outermost to innermost, and returns its
// values in row-major order with the shape. Sibling sub-arrays of unequal
// length, or mixing arrays with scalars at one depth, is a shape error.
func Flatten(nested interface{}) ([]string, Shape, error) {
	root := reflect.ValueOf(nested)
	if !isList(root) {
		return nil, nil, cerrors.New(cerrors.ErrorTypeShape, "value is not an array").
			WithDetail("value", truncate(fmt.Sprint(nested)))
	}

	var dims Shape
	level := []reflect.Value{root}
	for {
		listCount := 0
		for _, v := range level {
			if isList(v) {
				listCount++
			}
		}
		if listCount == 0 {
			break
		}
		if listCount != len(level) {
			return nil, nil, jagged(nested, len(dims))
		}

		size := elem(level[0]).Len()
		next := make([]reflect.Value, 0, size*len(level))
		for _, v := range level {
			v = elem(v)
			if v.Len() != size {
				return nil, nil, jagged(nested, len(dims))
			}
			for i := 0; i < v.Len(); i++ {
				next = append(next, v.Index(i))
			}
		}
		dims = append(dims, size)
		level = next
		if size == 0 {
			break
		}
	}

	flat := make([]string, len(level))
	for i, v := range level {
		flat[i] = FormatElement(v.Interface())
	}
	return flat, dims, nil
}

// Reshape parses the descriptor and every flat value, then restores the
// nested array. An empty descriptor yields a one-dimensional array.
func Reshape(flat []string, descriptor string) (interface{}, error) {
	dims, err := ParseShape(descriptor)
	if err != nil {
		return nil, err
	}
	values := make([]interface{}, len(flat))
	for i, s := range flat {
		values[i] = ParseValue(s)
	}
	return ReshapeValues(values, dims)
}

// ReshapeValues arranges values row-major into dims. The product of dims
// must equal len(values).
func ReshapeValues(values []interface{}, dims Shape) (interface{}, error) {
	if len(dims) == 0 {
		dims = Shape{len(values)}
	}
	if dims.Product() != len(values) {
		return nil, cerrors.New(cerrors.ErrorTypeShape, "array size does not match dimension").
			WithDetail("array", truncate(fmt.Sprint(values))).
			WithDetail("dimension", dimsText(dims)).
			WithDetail("length", len(values))
	}
	out, _ := build(values, dims)
	return out, nil
}

func build(values []interface{}, dims Shape) (interface{}, []interface{}) {
	if len(dims) == 1 {
		row := make([]interface{}, dims[0])
		copy(row, values[:dims[0]])
		return row, values[dims[0]:]
	}
	out := make([]interface{}, dims[0])
	for i := range out {
		out[i], values = build(values, dims[1:])
	}
	return out, values
}

// FormatElement renders one array element as a CSV cell that ParseValue
// reads back unchanged. Strings that would parse as another literal, such
// as "1", "True" or "[2]", are written double-quoted.
func FormatElement(v interface{}) string {
	x, ok := v.(string)
	if !ok {
		return FormatValue(v)
	}
	if parsed, err := ParseLiteral(x); err != nil || parsed == x {
		return x
	}
	return quoteString(x)
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

// FormatValue renders one value as plain text.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func isList(v reflect.Value) bool {
	v = elem(v)
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return v.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

func elem(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func jagged(nested interface{}, depth int) error {
	return cerrors.New(cerrors.ErrorTypeShape, "irregular array: sub-arrays differ in length").
		WithDetail("array", truncate(fmt.Sprint(nested))).
		WithDetail("depth", depth)
}

func dimsText(dims Shape) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, " ")
}

func truncate(s string) string {
	const max = 100
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
