package service

import (
	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/internal/knowledge"
)

// MapToTags looks every variant up in the table matching its form. Misses
// contribute nothing. The same tag reached through several variants is
// kept once; distinct tags for one gene are all kept.
func MapToTags(kb *knowledge.Tables, variants []domain.NormalizedVariant) (domain.TagSet, domain.GeneTagIndex) {
	tags := domain.NewTagSet()
	index := domain.GeneTagIndex{}

	for _, v := range variants {
		var (
			tag domain.FunctionalTag
			ok  bool
		)
		switch v.Form {
		case domain.FormRSID:
			tag, ok = kb.LookupRSID(v.Key())
		case domain.FormStar:
			tag, ok = kb.LookupStar(v.Key())
		}
		if !ok {
			continue
		}
		tags.Add(tag)
		index.Add(tag.Gene(), tag)
	}
	return tags, index
}
