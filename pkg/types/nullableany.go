package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
)

// NullableAny holds an arbitrary JSON value together with a presence flag.
// It is the element currency for JSON-carried payloads: a decoded collection
// position that was never populated stays absent, which is distinct from a
// position explicitly set to null.
type NullableAny struct {
	value json.RawMessage
	valid bool // valid is true if a value is present
}

func (ns NullableAny) IsNil() bool {
	return !ns.valid
}

func (ns *NullableAny) Set(value any) error {
	var jsonValue json.RawMessage

	switch v := value.(type) {
	case json.RawMessage:
		// If already a json.RawMessage, validate it
		if !json.Valid(v) {
			ns.value = nil
			ns.valid = false
			return errors.New("value is not valid JSON")
		}
		jsonValue = v
	case []byte:
		// Check if []byte contains valid JSON
		if !json.Valid(v) {
			// If not valid JSON, try marshaling it
			marshaledValue, err := json.Marshal(value)
			if err != nil {
				ns.value = nil
				ns.valid = false
				return err
			}
			jsonValue = marshaledValue
		} else {
			jsonValue = v
		}
	default:
		// Marshal any other type
		marshaledValue, err := json.Marshal(value)
		if err != nil {
			ns.value = nil
			ns.valid = false
			return err
		}
		jsonValue = marshaledValue
	}

	// Assign validated/marshaled value
	ns.value = jsonValue
	ns.valid = true
	return nil
}

func (ns NullableAny) Get() any {
	if ns.valid {
		var v any
		err := json.Unmarshal(ns.value, &v)
		if err != nil {
			return nil
		}
		return v
	}
	return nil
}

func (ns NullableAny) Equals(value NullableAny) bool {
	if ns.valid && value.valid {
		return bytes.Equal(ns.value, value.value)
	}
	return ns.valid == value.valid
}

func (ns NullableAny) GetAs(v any) error {
	if ns.valid {
		return json.Unmarshal(ns.value, v)
	}
	return errors.New("value is not set")
}

// Kind is a coarse classification of the JSON value held by a NullableAny.
type Kind int

const (
	KindAbsent Kind = iota // no value present
	KindNull               // explicit JSON null
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "absent"
	}
}

// Kind classifies the held value without fully decoding it.
func (ns NullableAny) Kind() Kind {
	if !ns.valid {
		return KindAbsent
	}
	raw := bytes.TrimLeft(ns.value, " \t\r\n")
	if len(raw) == 0 {
		return KindAbsent
	}
	switch raw[0] {
	case '{':
		return KindObject
	case '[':
		return KindArray
	case '"':
		return KindString
	case 't', 'f':
		return KindBool
	case 'n':
		return KindNull
	default:
		return KindNumber
	}
}

// AsInt64 returns the held value as an int64 if it is a JSON number without a
// fractional part and within int64 range. The second return is false otherwise.
func (ns NullableAny) AsInt64() (int64, bool) {
	if ns.Kind() != KindNumber {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(ns.value, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	const maxExact = float64(1 << 63)
	if f >= maxExact || f < -maxExact {
		return 0, false
	}
	return int64(f), true
}

// implement json.Marshaler interface
func (ns NullableAny) MarshalJSON() ([]byte, error) {
	if ns.valid {
		return ns.value, nil
	}
	return json.Marshal(nil)
}

func (ns *NullableAny) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ns.value = nil
		ns.valid = false
		return nil
	}
	if !json.Valid(data) {
		ns.value = nil
		ns.valid = false
		return errors.New("invalid JSON")
	}
	ns.value = data
	ns.valid = true
	return nil
}

func NullableAnyFrom(value any) (NullableAny, error) {
	var na NullableAny
	err := na.Set(value)
	if err != nil {
		return NullableAny{}, err
	}
	return na, nil
}

func NullableAnySetRaw(value json.RawMessage) NullableAny {
	return NullableAny{
		value: value,
		valid: true,
	}
}

func NilAny() NullableAny {
	// Return a NullableAny that is nil
	return NullableAny{
		value: nil,
		valid: false,
	}
}

var _ json.Marshaler = &NullableAny{}
var _ json.Unmarshaler = &NullableAny{}
var _ Nullable = &NullableAny{}
var _ json.Marshaler = NullableAny{}
