package service

import (
	"strings"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/pkg/notation"
	"github.com/sirupsen/logrus"
)

// Field aliases in precedence order; the first alias with a value wins.
var (
	rsidFields     = []string{"rsid", "snp", "rs_id", "variant_id"}
	genotypeFields = []string{"genotype", "call", "gt", "alleles", "result"}
	geneFields     = []string{"gene", "gene_symbol", "gene_name"}
	starFields     = []string{"star", "star_allele", "diplotype", "haplotype"}
	allele1Fields  = []string{"allele1", "allele_1", "a1"}
	allele2Fields  = []string{"allele2", "allele_2", "a2"}
	zygosityFields = []string{"zygosity", "zyg", "het_hom"}
)

// Normalizer turns free-form extracted rows into rsID-form or star-form
// variants. Rows it cannot interpret are skipped and counted.
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer creates a normalizer
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts rows in order. It never fails; an empty input yields
// an empty, non-nil result.
func (n *Normalizer) Normalize(rows []domain.RawVariantRow) ([]domain.NormalizedVariant, domain.NormalizationStats) {
	stats := domain.NormalizationStats{Received: len(rows)}
	out := make([]domain.NormalizedVariant, 0, len(rows))

	for i, raw := range rows {
		v, reason := normalizeRow(cleanRow(raw))
		if reason != "" {
			stats.Skipped++
			n.logger.WithFields(logrus.Fields{
				"row":    i,
				"reason": reason,
			}).Debug("Skipping variant row")
			continue
		}
		out = append(out, v)
	}
	return out, stats
}

// NormalizeFieldName lower-cases and trims a header, and joins inner
// whitespace with underscores ("Star Allele" -> "star_allele").
func NormalizeFieldName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// cleanRow normalizes field names and drops placeholder cells
func cleanRow(raw domain.RawVariantRow) domain.RawVariantRow {
	row := make(domain.RawVariantRow, len(raw))
	for k, v := range raw {
		if notation.IsPlaceholder(v) {
			continue
		}
		key := NormalizeFieldName(k)
		if _, exists := row[key]; exists {
			continue
		}
		row[key] = strings.TrimSpace(v)
	}
	return row
}

func normalizeRow(row domain.RawVariantRow) (domain.NormalizedVariant, string) {
	gene := row.Get(geneFields...)
	star := row.Get(starFields...)

	if star != "" {
		if embeddedGene, diplotype, ok := notation.SplitEmbeddedDiplotype(star); ok {
			if gene == "" || notation.NormalizeGene(gene) == embeddedGene {
				return domain.NewStarVariant(embeddedGene, diplotype), ""
			}
			return domain.NormalizedVariant{}, "gene column disagrees with star allele"
		}
		if gene != "" {
			diplotype, err := notation.NormalizeDiplotype(star)
			if err != nil {
				return domain.NormalizedVariant{}, "malformed star allele"
			}
			return domain.NewStarVariant(notation.NormalizeGene(gene), diplotype), ""
		}
	}

	rsidCell := row.Get(rsidFields...)
	genotypeCell := row.Get(genotypeFields...)

	if rsidCell != "" {
		rsid, err := notation.NormalizeRSID(rsidCell)
		if err != nil {
			return domain.NormalizedVariant{}, "malformed rsID"
		}
		if genotypeCell != "" {
			gt, err := notation.NormalizeGenotype(genotypeCell)
			if err != nil {
				return domain.NormalizedVariant{}, "unparseable genotype"
			}
			return domain.NewRSIDVariant(rsid, gt), ""
		}
		a1, a2 := row.Get(allele1Fields...), row.Get(allele2Fields...)
		if a1 != "" && a2 != "" {
			gt, err := notation.CombineAlleles(a1, a2, row.Get(zygosityFields...))
			if err != nil {
				return domain.NormalizedVariant{}, "unparseable alleles"
			}
			return domain.NewRSIDVariant(rsid, gt), ""
		}
		return domain.NormalizedVariant{}, "rsID without genotype"
	}

	if genotypeCell != "" {
		if rsid, gt, ok := notation.SplitRSIDGenotype(genotypeCell); ok {
			return domain.NewRSIDVariant(rsid, gt), ""
		}
	}
	return domain.NormalizedVariant{}, "no star allele or rsID genotype"
}
