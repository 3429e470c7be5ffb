package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IDField is the record field holding the identifier.
const IDField = "id"

// ID is a record identifier: either a string or an integer.
//
// ID is comparable and usable as a map key. The zero ID is the integer 0,
// which is a valid identifier; use Object.ID to learn whether a record
// has one at all.
type ID struct {
	str   string
	num   int64
	isStr bool
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{str: s, isStr: true}
}

// IntID returns an integer identifier.
func IntID(n int64) ID {
	return ID{num: n}
}

// IsString reports whether the identifier is a string.
func (id ID) IsString() bool {
	return id.isStr
}

// String returns the identifier's textual form. "7" for IntID(7), "a" for StringID("a").
func (id ID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// Value returns the identifier as a record field value.
func (id ID) Value() Value {
	if id.isStr {
		return String(id.str)
	}
	return Int(id.num)
}

// IDFromValue extracts an identifier from a field value.
// Strings and integers qualify; integral floats are treated as integers.
func IDFromValue(v Value) (ID, bool) {
	switch val := v.(type) {
	case String:
		return StringID(string(val)), true
	case Int:
		return IntID(int64(val)), true
	case Float:
		if n, ok := floatAsInt(float64(val)); ok {
			return IntID(n), true
		}
	}
	return ID{}, false
}

// ParseID interprets command-line text as an identifier. Text that parses
// as a base-10 integer becomes an integer id; a leading "s:" forces a string.
func ParseID(s string) ID {
	if rest, ok := strings.CutPrefix(s, "s:"); ok {
		return StringID(rest)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntID(n)
	}
	return StringID(s)
}

// CompareIDs orders identifiers: integers before strings, integers
// numerically, strings by byte order. Change logs iterate in this order.
func CompareIDs(a, b ID) int {
	switch {
	case !a.isStr && b.isStr:
		return -1
	case a.isStr && !b.isStr:
		return 1
	case a.isStr:
		return strings.Compare(a.str, b.str)
	case a.num < b.num:
		return -1
	case a.num > b.num:
		return 1
	default:
		return 0
	}
}

// MarshalJSON encodes the identifier as a JSON string or number.
func (id ID) MarshalJSON() ([]byte, error) {
	return MarshalCanonical(id.Value())
}

// UnmarshalJSON accepts a JSON string or integer.
func (id *ID) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	parsed, ok := IDFromValue(v)
	if !ok {
		return fmt.Errorf("invalid identifier %s", data)
	}
	*id = parsed
	return nil
}

var _ json.Marshaler = ID{}

// ID returns the record's identifier, if it has a usable one.
func (obj Object) ID() (ID, bool) {
	v, ok := obj[IDField]
	if !ok {
		return ID{}, false
	}
	return IDFromValue(v)
}

// WithID returns a copy of the record with its identifier replaced.
func (obj Object) WithID(id ID) Object {
	out := obj.Clone()
	if out == nil {
		out = Object{}
	}
	out[IDField] = id.Value()
	return out
}
