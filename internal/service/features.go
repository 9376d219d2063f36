package service

import (
	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
	"gonum.org/v1/gonum/mat"
)

// FeatureSpace is the one-hot layout shared by training and inference:
// every weighted tag, every unordered pair of those tags, then every drug.
type FeatureSpace struct {
	names []string
	index map[string]int
	tags  []domain.FunctionalTag
	drugs []string
}

// NewFeatureSpace derives the layout from a knowledge snapshot
func NewFeatureSpace(kb *knowledge.Tables) *FeatureSpace {
	f := &FeatureSpace{tags: kb.KnownTags(), index: map[string]int{}}

	for _, tag := range f.tags {
		f.add("tag_" + string(tag))
	}
	for i := 0; i < len(f.tags); i++ {
		for j := i + 1; j < len(f.tags); j++ {
			f.add(pairFeature(f.tags[i], f.tags[j]))
		}
	}
	for _, d := range kb.Medications() {
		f.drugs = append(f.drugs, d.Name)
		f.add("drug_" + d.Name)
	}
	return f
}

func pairFeature(a, b domain.FunctionalTag) string {
	return "pair_" + string(a) + "_" + string(b)
}

func (f *FeatureSpace) add(name string) {
	f.index[name] = len(f.names)
	f.names = append(f.names, name)
}

// Len is the vector length
func (f *FeatureSpace) Len() int { return len(f.names) }

// Names returns feature names in vector order
func (f *FeatureSpace) Names() []string {
	return append([]string(nil), f.names...)
}

// Index returns the position of a named feature
func (f *FeatureSpace) Index(name string) (int, bool) {
	i, ok := f.index[name]
	return i, ok
}

// Vector one-hot encodes a scoring input
func (f *FeatureSpace) Vector(in ScoringInput) *mat.VecDense {
	x := mat.NewVecDense(f.Len(), nil)
	f.fill(in, func(i int) { x.SetVec(i, 1) })
	return x
}

func (f *FeatureSpace) fill(in ScoringInput, set func(i int)) {
	for _, tag := range f.tags {
		if in.Tags.Has(tag) {
			set(f.index["tag_"+string(tag)])
		}
	}
	for i := 0; i < len(f.tags); i++ {
		if !in.Tags.Has(f.tags[i]) {
			continue
		}
		for j := i + 1; j < len(f.tags); j++ {
			if in.Tags.Has(f.tags[j]) {
				set(f.index[pairFeature(f.tags[i], f.tags[j])])
			}
		}
	}
	if in.Drug != nil {
		if i, ok := f.index["drug_"+in.Drug.Name]; ok {
			set(i)
		}
	}
}
