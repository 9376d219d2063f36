package domain

import (
	"sort"
	"strings"
)

// FunctionalTag names the functional consequence of a variant, e.g. CYP2D6_loss.
type FunctionalTag string

// Gene returns the gene symbol prefix before the first underscore.
func (t FunctionalTag) Gene() string {
	s := string(t)
	if i := strings.IndexByte(s, '_'); i >= 0 {
		return s[:i]
	}
	return s
}

// TagSet is an unordered set of functional tags
type TagSet map[FunctionalTag]struct{}

// NewTagSet creates a set holding the given tags
func NewTagSet(tags ...FunctionalTag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add inserts a tag
func (s TagSet) Add(t FunctionalTag) {
	s[t] = struct{}{}
}

// Has reports membership
func (s TagSet) Has(t FunctionalTag) bool {
	_, ok := s[t]
	return ok
}

// Sorted returns the members in lexical order
func (s TagSet) Sorted() []FunctionalTag {
	out := make([]FunctionalTag, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted members as plain strings
func (s TagSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, t := range sorted {
		out[i] = string(t)
	}
	return out
}

// GeneTagIndex maps a gene symbol to the tags attributed to it
type GeneTagIndex map[string]TagSet

// Add records tag under gene
func (g GeneTagIndex) Add(gene string, t FunctionalTag) {
	set, ok := g[gene]
	if !ok {
		set = NewTagSet()
		g[gene] = set
	}
	set.Add(t)
}

// Genes returns the indexed genes in lexical order
func (g GeneTagIndex) Genes() []string {
	out := make([]string, 0, len(g))
	for gene := range g {
		out = append(out, gene)
	}
	sort.Strings(out)
	return out
}

// DrugPathway is a medication and the genes relevant to its metabolism,
// transport or target.
type DrugPathway struct {
	Key   string   `json:"drug_key"`
	Name  string   `json:"canonical_name"`
	Code  string   `json:"rxnorm,omitempty"`
	Genes []string `json:"genes"`
}

// HasGene reports whether gene belongs to the pathway
func (d *DrugPathway) HasGene(gene string) bool {
	for _, g := range d.Genes {
		if g == gene {
			return true
		}
	}
	return false
}
