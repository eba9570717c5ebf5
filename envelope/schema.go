package envelope

import (
	"fmt"
	"math"
)

// Schema maps the keys of a JSON object onto an M. Fields are optional
// unless marked [Field.Required]; a null value counts as absent.
//
//	var userSchema = envelope.NewSchema(
//		envelope.Int("id", func(u *User, v int) { u.ID = v }).Required(),
//		envelope.String("name", func(u *User, v string) { u.Name = v }),
//	)
type Schema[M any] struct {
	fields []Field[M]
}

// NewSchema builds a Schema from its field bindings.
func NewSchema[M any](fields ...Field[M]) Schema[M] {
	return Schema[M]{fields: fields}
}

// Field binds one key of an object to an M.
type Field[M any] struct {
	key      string
	required bool
	set      func(m *M, v any) error
}

// Required makes a missing or null key fail decoding.
func (f Field[M]) Required() Field[M] {
	f.required = true
	return f
}

// Key returns the JSON key of the field.
func (f Field[M]) Key() string { return f.key }

func (s Schema[M]) decode(obj map[string]any) (M, error) {
	var m M
	for _, f := range s.fields {
		v, ok := obj[f.key]
		if !ok || v == nil {
			if f.required {
				return m, fmt.Errorf("missing required field %q", f.key)
			}
			continue
		}

		if err := f.set(&m, v); err != nil {
			return m, fmt.Errorf("field %q: %w", f.key, err)
		}
	}

	return m, nil
}

func (s Schema[M]) decodeAll(arr []any) ([]M, error) {
	out := make([]M, 0, len(arr))
	for i, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d: expected object, got %s", i, kind(e))
		}

		m, err := s.decode(obj)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, m)
	}

	return out, nil
}

// =============================================================================

// Int binds an integral number.
func Int[M any](key string, set func(*M, int)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		i, ok := integer(v)
		if !ok {
			return mismatch("integer", v)
		}
		set(m, i)
		return nil
	}}
}

// Int64 binds an integral number.
func Int64[M any](key string, set func(*M, int64)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		switch n := v.(type) {
		case int64:
			set(m, n)
			return nil
		case float64:
			if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
				set(m, int64(n))
				return nil
			}
		}
		return mismatch("integer", v)
	}}
}

// Float binds any number.
func Float[M any](key string, set func(*M, float64)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		switch n := v.(type) {
		case float64:
			set(m, n)
			return nil
		case int64:
			set(m, float64(n))
			return nil
		}
		return mismatch("number", v)
	}}
}

// String binds a string.
func String[M any](key string, set func(*M, string)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		s, ok := v.(string)
		if !ok {
			return mismatch("string", v)
		}
		set(m, s)
		return nil
	}}
}

// Bool binds a boolean.
func Bool[M any](key string, set func(*M, bool)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		b, ok := v.(bool)
		if !ok {
			return mismatch("boolean", v)
		}
		set(m, b)
		return nil
	}}
}

// Raw binds the normalized JSON value as is.
func Raw[M any](key string, set func(*M, any)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		set(m, v)
		return nil
	}}
}

// Object binds a nested object decoded with s.
func Object[M, N any](key string, s Schema[N], set func(*M, N)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch("object", v)
		}
		n, err := s.decode(obj)
		if err != nil {
			return err
		}
		set(m, n)
		return nil
	}}
}

// Objects binds an array of objects decoded with s.
func Objects[M, N any](key string, s Schema[N], set func(*M, []N)) Field[M] {
	return Field[M]{key: key, set: func(m *M, v any) error {
		arr, ok := v.([]any)
		if !ok {
			return mismatch("array", v)
		}
		ns, err := s.decodeAll(arr)
		if err != nil {
			return err
		}
		set(m, ns)
		return nil
	}}
}

func mismatch(want string, got any) error {
	return fmt.Errorf("expected %s, got %s", want, kind(got))
}
