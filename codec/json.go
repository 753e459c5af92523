package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ruteri/envelope-registry/interfaces"
)

// u64 is a 64-bit integer encoded as a decimal string. Bare numbers are accepted on decode.
type u64 uint64

func (v u64) MarshalJSON() ([]byte, error) {
	return []byte(`"` + strconv.FormatUint(uint64(v), 10) + `"`), nil
}

func (v *u64) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid uint64 %s", ErrMalformed, b)
	}
	*v = u64(n)
	return nil
}

// u32 is encoded as a JSON number; quoted numbers are accepted on decode.
type u32 uint32

func (v *u32) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(b, `"`))
	if s == "" || s == "null" {
		*v = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid uint32 %s", ErrMalformed, b)
	}
	*v = u32(n)
	return nil
}

// modeJSON encodes a RecipientMode as its enum name; numbers are accepted on decode.
type modeJSON interfaces.RecipientMode

func (m modeJSON) MarshalJSON() ([]byte, error) {
	return json.Marshal(interfaces.RecipientMode(m).String())
}

func (m *modeJSON) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		mode, err := interfaces.ParseRecipientMode(s)
		if err != nil {
			return err
		}
		*m = modeJSON(mode)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 32)
	if err != nil {
		return fmt.Errorf("%w: invalid recipient mode %s", ErrMalformed, b)
	}
	*m = modeJSON(n)
	return nil
}

// freeFormFields hold user-defined maps whose keys are never rewritten.
var freeFormFields = map[string]bool{"metadata": true}

// snakeToCamel converts snake_case to lowerCamelCase. Names without an
// underscore are returned unchanged.
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var sb strings.Builder
	upper := false
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			sb.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// normalizeKeys rewrites every object key to lowerCamelCase so that both
// spellings decode. Supplying the same field under both spellings is an error.
func normalizeKeys(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			camel := snakeToCamel(k)
			if _, dup := out[camel]; dup {
				return nil, fmt.Errorf("%w: duplicate field %q", ErrMalformed, camel)
			}
			if freeFormFields[camel] {
				out[camel] = val
				continue
			}
			norm, err := normalizeKeys(val)
			if err != nil {
				return nil, err
			}
			out[camel] = norm
		}
		return out, nil
	case []any:
		for i := range t {
			norm, err := normalizeKeys(t[i])
			if err != nil {
				return nil, err
			}
			t[i] = norm
		}
		return t, nil
	default:
		return v, nil
	}
}

func normalizeJSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	norm, err := normalizeKeys(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(norm)
}

// MarshalJSON returns the JSON encoding of msg, which must be a pointer to a supported type.
func MarshalJSON(msg any) ([]byte, error) {
	v, err := toJSON(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes JSON into msg. Field names may be snake_case or lowerCamelCase.
func UnmarshalJSON(data []byte, msg any) error {
	norm, err := normalizeJSON(data)
	if err != nil {
		return err
	}
	return fromJSON(norm, msg)
}
