package vecturakit

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple", "Hello World", []string{"hello", "world"}},
		{"punctuation", "quick, brown-fox!", []string{"quick", "brown", "fox"}},
		{"diacritics", "café naïve", []string{"cafe", "naive"}},
		{"empty", "", nil},
		{"only punctuation", "!!!   ---", nil},
		{"mixed digits", "go1.24 release", []string{"go1", "24", "release"}},
		{"repeated whitespace", "a    b\tc\nd", []string{"a", "b", "c", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	text := "The Quick Brown Fox Jumps Over"
	a := tokenize(text)
	b := tokenize(text)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("tokenize is not deterministic: %v != %v", a, b)
	}
}
