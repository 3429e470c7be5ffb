package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same strings", String("a"), String("a"), true},
		{"different strings", String("a"), String("b"), false},
		{"string vs int", String("1"), Int(1), false},
		{"int vs integral float", Int(3), Float(3.0), true},
		{"float vs int", Float(3.0), Int(3), true},
		{"int vs fractional float", Int(3), Float(3.5), false},
		{"floats", Float(0.5), Float(0.5), true},
		{"null vs nil", Null{}, nil, true},
		{"null vs false", Null{}, Bool(false), false},
		{"bools", Bool(true), Bool(true), true},
		{"arrays", Array{Int(1), String("x")}, Array{Float(1), String("x")}, true},
		{"array order matters", Array{Int(1), Int(2)}, Array{Int(2), Int(1)}, false},
		{"array length", Array{Int(1)}, Array{Int(1), Int(1)}, false},
		{"objects ignore key order", Object{"a": Int(1), "b": Int(2)}, Object{"b": Int(2), "a": Int(1)}, true},
		{"object missing key", Object{"a": Int(1)}, Object{"a": Int(1), "b": Null{}}, false},
		{"object different key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"nested", Object{"o": Object{"x": Array{Float(2)}}}, Object{"o": Object{"x": Array{Int(2)}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a), "Equal must be symmetric")
		})
	}
}

func TestMergePatchWins(t *testing.T) {
	base := Object{"id": Int(1), "x": String("old"), "keep": Bool(true)}
	patch := Object{"id": Int(1), "x": String("new"), "added": Int(5)}

	merged := Merge(base, patch)

	assert.Equal(t, Object{
		"id":    Int(1),
		"x":     String("new"),
		"keep":  Bool(true),
		"added": Int(5),
	}, merged)
	// Inputs untouched.
	assert.Equal(t, String("old"), base["x"])
	assert.NotContains(t, base, "added")
}

func TestMergeIsShallow(t *testing.T) {
	base := Object{"nested": Object{"a": Int(1), "b": Int(2)}}
	patch := Object{"nested": Object{"a": Int(9)}}

	// Nested objects are replaced whole, not merged.
	assert.Equal(t, Object{"nested": Object{"a": Int(9)}}, Merge(base, patch))
}

func TestMergeNilInputs(t *testing.T) {
	assert.Equal(t, Object{}, Merge(nil, nil))
	assert.Equal(t, Object{"a": Int(1)}, Merge(nil, Object{"a": Int(1)}))
}
