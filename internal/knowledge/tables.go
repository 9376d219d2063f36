// Package knowledge holds the curated pharmacogenomic reference tables:
// variant and star-allele proxies, drug pathways, scoring weights and
// alternative medications. Tables are immutable once loaded.
package knowledge

import (
	"sort"
	"strings"

	"github.com/epi-risk-server/internal/domain"
)

// DefaultMaterialityThreshold applies when the guidelines table omits one.
const DefaultMaterialityThreshold = 0.15

const drugCodePrefix = "rxnorm:"

// Weight is a curated score contribution and the evidence behind it
type Weight struct {
	Value    float64
	Evidence []string
}

// PairKey identifies an unordered pair of tags. A is always <= B.
type PairKey struct {
	A, B domain.FunctionalTag
}

// NewPairKey orders x and y so that {x,y} and {y,x} share a key
func NewPairKey(x, y domain.FunctionalTag) PairKey {
	if y < x {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// String renders the key the way the guidelines file writes it
func (k PairKey) String() string {
	return string(k.A) + "+" + string(k.B)
}

// PairWeight is an epistasis weight with an optional drug restriction
type PairWeight struct {
	Weight
	drugs map[string]struct{}
}

// AppliesTo reports whether the pair is curated for drug. An empty
// restriction applies to every drug.
func (p PairWeight) AppliesTo(drug *domain.DrugPathway) bool {
	if len(p.drugs) == 0 {
		return true
	}
	for _, id := range []string{drug.Key, drug.Name, drug.Code} {
		if id == "" {
			continue
		}
		if _, ok := p.drugs[strings.ToLower(id)]; ok {
			return true
		}
	}
	return false
}

// Tables is one complete, validated snapshot of the knowledge base
type Tables struct {
	version      string
	rsid         map[string]domain.FunctionalTag
	star         map[string]domain.FunctionalTag
	drugs        map[string]*domain.DrugPathway
	drugsByName  map[string]*domain.DrugPathway
	drugsByCode  map[string]*domain.DrugPathway
	alternatives map[string][]domain.AlternativeMedication
	singles      map[domain.FunctionalTag]Weight
	pairs        map[PairKey]PairWeight
	burden       Weight
	materiality  float64
}

// Version identifies the knowledge snapshot in responses
func (t *Tables) Version() string { return t.version }

// LookupRSID resolves a normalized "rsid:genotype" key
func (t *Tables) LookupRSID(key string) (domain.FunctionalTag, bool) {
	tag, ok := t.rsid[key]
	return tag, ok
}

// LookupStar resolves a normalized "GENE*a/*b" key
func (t *Tables) LookupStar(key string) (domain.FunctionalTag, bool) {
	tag, ok := t.star[key]
	return tag, ok
}

// ResolveMedication finds the drug pathway for a name and/or drug code.
// The code wins when both are given; mismatch reports that the name
// resolves to a different drug (or to none).
func (t *Tables) ResolveMedication(name, code string) (drug *domain.DrugPathway, mismatch bool, err error) {
	name = strings.TrimSpace(name)
	code = strings.TrimSpace(code)
	if name == "" && code == "" {
		return nil, false, domain.ErrMissingMedication
	}

	if code != "" {
		found, ok := t.drugsByCode[normalizeCode(code)]
		if !ok {
			return nil, false, &domain.UnknownMedicationError{Name: name, Code: code}
		}
		if name != "" {
			byName, ok := t.drugsByName[strings.ToLower(name)]
			mismatch = !ok || byName.Key != found.Key
		}
		return copyDrug(found), mismatch, nil
	}

	found, ok := t.drugsByName[strings.ToLower(name)]
	if !ok {
		return nil, false, &domain.UnknownMedicationError{Name: name}
	}
	return copyDrug(found), false, nil
}

// Alternatives returns the curated substitutes for drug, never nil
func (t *Tables) Alternatives(drug *domain.DrugPathway) []domain.AlternativeMedication {
	alts := t.alternatives[strings.ToLower(drug.Name)]
	out := make([]domain.AlternativeMedication, len(alts))
	copy(out, alts)
	return out
}

// SingleTag returns the main-effect weight of a tag
func (t *Tables) SingleTag(tag domain.FunctionalTag) (Weight, bool) {
	w, ok := t.singles[tag]
	return w, ok
}

// Pair returns the epistasis weight of an unordered tag pair
func (t *Tables) Pair(x, y domain.FunctionalTag) (PairWeight, bool) {
	w, ok := t.pairs[NewPairKey(x, y)]
	return w, ok
}

// PathwayBurden returns the multi-gene burden weight
func (t *Tables) PathwayBurden() Weight { return t.burden }

// MaterialityThreshold is the minimum single-tag weight that earns a rationale
func (t *Tables) MaterialityThreshold() float64 { return t.materiality }

// Medications lists every curated drug ordered by name
func (t *Tables) Medications() []domain.DrugPathway {
	out := make([]domain.DrugPathway, 0, len(t.drugs))
	for _, d := range t.drugs {
		out = append(out, *copyDrug(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// KnownTags lists every tag carrying a single-tag weight, sorted
func (t *Tables) KnownTags() []domain.FunctionalTag {
	out := make([]domain.FunctionalTag, 0, len(t.singles))
	for tag := range t.singles {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stats summarizes table sizes
type Stats struct {
	Version      string `json:"version" yaml:"version"`
	RSIDProxies  int    `json:"rsid_proxies" yaml:"rsid_proxies"`
	StarProxies  int    `json:"star_proxies" yaml:"star_proxies"`
	Drugs        int    `json:"drugs" yaml:"drugs"`
	Alternatives int    `json:"alternatives" yaml:"alternatives"`
	SingleTags   int    `json:"single_tags" yaml:"single_tags"`
	Pairs        int    `json:"epistasis_pairs" yaml:"epistasis_pairs"`
}

// Stats reports the size of each table
func (t *Tables) Stats() Stats {
	return Stats{
		Version:      t.version,
		RSIDProxies:  len(t.rsid),
		StarProxies:  len(t.star),
		Drugs:        len(t.drugs),
		Alternatives: len(t.alternatives),
		SingleTags:   len(t.singles),
		Pairs:        len(t.pairs),
	}
}

func normalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	return strings.TrimPrefix(code, drugCodePrefix)
}

func copyDrug(d *domain.DrugPathway) *domain.DrugPathway {
	c := *d
	c.Genes = append([]string(nil), d.Genes...)
	return &c
}
