package domain

import "strings"

// RawVariantRow is one extracted input row keyed by lower-cased field name.
type RawVariantRow map[string]string

// Get returns the trimmed value of the first alias present with a non-empty value.
func (r RawVariantRow) Get(aliases ...string) string {
	for _, alias := range aliases {
		if v, ok := r[alias]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// VariantForm discriminates the two normalized variant shapes
type VariantForm string

const (
	FormRSID VariantForm = "rsid"
	FormStar VariantForm = "star"
)

// NormalizedVariant is either an rsID+genotype or a gene+star diplotype.
// Only the fields of its Form are populated.
type NormalizedVariant struct {
	Form     VariantForm `json:"form"`
	RSID     string      `json:"rsid,omitempty"`
	Genotype string      `json:"genotype,omitempty"`
	Gene     string      `json:"gene,omitempty"`
	Star     string      `json:"star,omitempty"`
}

// NewRSIDVariant builds an rsID-form variant from already normalized parts
func NewRSIDVariant(rsid, genotype string) NormalizedVariant {
	return NormalizedVariant{Form: FormRSID, RSID: rsid, Genotype: genotype}
}

// NewStarVariant builds a star-form variant from already normalized parts
func NewStarVariant(gene, star string) NormalizedVariant {
	return NormalizedVariant{Form: FormStar, Gene: gene, Star: star}
}

// Key is the knowledge base lookup key: "rs3892097:AA" or "CYP2D6*1/*4".
func (v NormalizedVariant) Key() string {
	switch v.Form {
	case FormRSID:
		return v.RSID + ":" + v.Genotype
	case FormStar:
		return v.Gene + v.Star
	default:
		return ""
	}
}

// NormalizationStats counts what the normalizer did with its input
type NormalizationStats struct {
	Received int `json:"rows_received"`
	Skipped  int `json:"rows_skipped"`
}
