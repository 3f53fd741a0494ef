package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSpecialization(t *testing.T) {
	cases := map[string]string{
		"blouse-tailoring":           "blouse-tailoring",
		"Blouse Tailoring":           "blouse-tailoring",
		"  KURTI tailoring ":         "kurti-tailoring",
		"Fall / Pico Work":           "fall-pico-work",
		"Top/Western Wear Tailoring": "top-western-wear-tailoring",
		"saree-stitching":            "saree-stitching",
	}
	for input, want := range cases {
		got, ok := ResolveSpecialization(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	for _, input := range []string{"", "   ", "suit tailoring"} {
		_, ok := ResolveSpecialization(input)
		assert.False(t, ok, input)
	}
}
