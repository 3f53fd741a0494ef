package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

type Specialization struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Specializations is the canonical catalog shared by customers and tailors.
// Labels are user-facing, slugs are stable for the API.
var Specializations = []Specialization{
	{Name: "Blouse Tailoring", Slug: "blouse-tailoring"},
	{Name: "Lehenga Tailoring", Slug: "lehenga-tailoring"},
	{Name: "Kurti Tailoring", Slug: "kurti-tailoring"},
	{Name: "Dress Tailoring", Slug: "dress-tailoring"},
	{Name: "Skirt Tailoring", Slug: "skirt-tailoring"},
	{Name: "Saree Stitching (ready-to-wear, pre-stitched)", Slug: "saree-stitching"},
	{Name: "Fall / Pico Work", Slug: "fall-pico-work"},
	{Name: "Top/Western Wear Tailoring", Slug: "top-western-wear-tailoring"},
}

func SpecializationLabel(slug string) string {
	for _, s := range Specializations {
		if strings.EqualFold(s.Slug, slug) {
			return s.Name
		}
	}
	return slug
}

func KnownSpecialization(slug string) bool {
	for _, s := range Specializations {
		if strings.EqualFold(s.Slug, slug) {
			return true
		}
	}
	return false
}

// ResolveSpecialization maps a slug or a typed label such as "Blouse Tailoring"
// to its catalog slug.
func ResolveSpecialization(input string) (string, bool) {
	want := slug.Make(input)
	if want == "" {
		return "", false
	}
	for _, s := range Specializations {
		if s.Slug == want || slug.Make(s.Name) == want {
			return s.Slug, true
		}
	}
	return "", false
}
