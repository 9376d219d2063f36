package service

import (
	"fmt"
	"sort"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
)

// ResolvePathway finds the drug pathway for a medication selector. An
// unrecognized selector fails with an error matching domain.ErrMedicationNotFound.
func ResolvePathway(kb *knowledge.Tables, name, code string) (*domain.DrugPathway, bool, error) {
	drug, mismatch, err := kb.ResolveMedication(name, code)
	if err != nil {
		return nil, false, fmt.Errorf("resolving medication: %w", err)
	}
	return drug, mismatch, nil
}

// FilterByPathway keeps the tags whose gene belongs to drug and returns the
// sorted pathway genes that kept at least one tag.
func FilterByPathway(tags domain.TagSet, index domain.GeneTagIndex, drug *domain.DrugPathway) (domain.TagSet, []string) {
	filtered := domain.NewTagSet()
	affected := make([]string, 0, len(drug.Genes))

	for _, gene := range drug.Genes {
		kept := false
		for tag := range index[gene] {
			if tags.Has(tag) {
				filtered.Add(tag)
				kept = true
			}
		}
		if kept {
			affected = append(affected, gene)
		}
	}
	sort.Strings(affected)
	return filtered, affected
}
