package envelope

import (
	"fmt"
	"math"

	"github.com/adamwoolhether/httpkit/errs"
)

// Deserialize failure messages.
const (
	MsgEmptyData      = "data is empty"
	MsgNotConvertible = "cannot convert data to requested type"
	MsgNotModel       = "data cannot be decoded as a model"
	MsgNotModelList   = "data cannot be decoded as a model list"
)

// Strategy selects how payload data becomes a T. Use [Model], [List]
// or [Scalar].
type Strategy[T any] interface {
	decode(data any) (T, error)
}

// Deserialize converts p.Data with s. Absent or null data fails with
// [MsgEmptyData]; every failure is a [*errs.DecodeError].
func Deserialize[T any](p Payload, s Strategy[T]) (T, error) {
	if p.Data == nil {
		var zero T
		return zero, errs.NewDecodeError(MsgEmptyData, nil)
	}

	return s.decode(p.Data)
}

// =============================================================================

type modelStrategy[M any] struct {
	schema Schema[M]
}

// Model decodes data holding a JSON object into an M.
func Model[M any](s Schema[M]) Strategy[M] {
	return modelStrategy[M]{schema: s}
}

func (ms modelStrategy[M]) decode(data any) (M, error) {
	obj, ok := data.(map[string]any)
	if !ok {
		var zero M
		return zero, errs.NewDecodeError(MsgNotModel, fmt.Errorf("expected object, got %s", kind(data)))
	}

	m, err := ms.schema.decode(obj)
	if err != nil {
		return m, errs.NewDecodeError(MsgNotModel, err)
	}

	return m, nil
}

type listStrategy[M any] struct {
	schema Schema[M]
}

// List decodes data holding a JSON array of objects into a []M, keeping
// order. A single failing element fails the whole list.
func List[M any](s Schema[M]) Strategy[[]M] {
	return listStrategy[M]{schema: s}
}

func (ls listStrategy[M]) decode(data any) ([]M, error) {
	arr, ok := data.([]any)
	if !ok {
		return nil, errs.NewDecodeError(MsgNotModelList, fmt.Errorf("expected array, got %s", kind(data)))
	}

	out, err := ls.schema.decodeAll(arr)
	if err != nil {
		return nil, errs.NewDecodeError(MsgNotModelList, err)
	}

	return out, nil
}

// ScalarType lists the shapes [Scalar] can produce.
type ScalarType interface {
	bool | int | int64 | float64 | string | []any | map[string]any
}

type scalarStrategy[T ScalarType] struct{}

// Scalar passes data through when it already has type T. Integers
// widen to float64 and narrow to int when they fit.
func Scalar[T ScalarType]() Strategy[T] {
	return scalarStrategy[T]{}
}

func (scalarStrategy[T]) decode(data any) (T, error) {
	if v, ok := data.(T); ok {
		return v, nil
	}

	var out T
	switch p := any(&out).(type) {
	case *float64:
		if i, ok := data.(int64); ok {
			*p = float64(i)
			return out, nil
		}
	case *int:
		if i, ok := data.(int64); ok && i >= math.MinInt && i <= math.MaxInt {
			*p = int(i)
			return out, nil
		}
	}

	return out, errs.NewDecodeError(MsgNotConvertible, fmt.Errorf("%s is not %T", kind(data), out))
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
