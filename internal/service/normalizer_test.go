package service

import (
	"testing"

	"github.com/epi-risk-server/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Normalize(t *testing.T) {
	tests := []struct {
		name     string
		row      domain.RawVariantRow
		expected *domain.NormalizedVariant
	}{
		{
			name:     "rsID and genotype",
			row:      domain.RawVariantRow{"rsid": "rs3892097", "genotype": "A/A"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs3892097", Genotype: "AA"},
		},
		{
			name:     "snp alias with call",
			row:      domain.RawVariantRow{"SNP": "RS4244285", "Call": "g|a"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs4244285", Genotype: "AG"},
		},
		{
			name:     "Separate alleles",
			row:      domain.RawVariantRow{"rsid": "rs1799853", "allele1": "T", "allele2": "C"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs1799853", Genotype: "CT"},
		},
		{
			name:     "Homozygous hint collapses alleles",
			row:      domain.RawVariantRow{"rsid": "rs1799853", "a1": "T", "a2": "C", "zygosity": "hom"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs1799853", Genotype: "TT"},
		},
		{
			name:     "Gene and star",
			row:      domain.RawVariantRow{"gene": "cyp2d6", "star": "*4/*1"},
			expected: &domain.NormalizedVariant{Form: domain.FormStar, Gene: "CYP2D6", Star: "*1/*4"},
		},
		{
			name:     "Star column with embedded gene",
			row:      domain.RawVariantRow{"diplotype": "CYP2C19*17/*2"},
			expected: &domain.NormalizedVariant{Form: domain.FormStar, Gene: "CYP2C19", Star: "*2/*17"},
		},
		{
			name:     "Header with spaces",
			row:      domain.RawVariantRow{" Gene Symbol ": "TPMT", "Star Allele": "*3A/*1"},
			expected: &domain.NormalizedVariant{Form: domain.FormStar, Gene: "TPMT", Star: "*1/*3A"},
		},
		{
			name:     "Star wins over rsID",
			row:      domain.RawVariantRow{"gene": "CYP2D6", "star": "*4/*4", "rsid": "rs3892097", "genotype": "AG"},
			expected: &domain.NormalizedVariant{Form: domain.FormStar, Gene: "CYP2D6", Star: "*4/*4"},
		},
		{
			name:     "Star without gene falls back to rsID",
			row:      domain.RawVariantRow{"star": "*4/*4", "rsid": "rs3892097", "genotype": "AA"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs3892097", Genotype: "AA"},
		},
		{
			name:     "rsID embedded in genotype cell",
			row:      domain.RawVariantRow{"result": "rs776746 T/T"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs776746", Genotype: "TT"},
		},
		{
			name:     "Placeholder genotype is ignored",
			row:      domain.RawVariantRow{"rsid": "rs776746", "genotype": "NaN", "gt": "TT"},
			expected: &domain.NormalizedVariant{Form: domain.FormRSID, RSID: "rs776746", Genotype: "TT"},
		},
		{name: "Malformed star drops row", row: domain.RawVariantRow{"gene": "CYP2D6", "star": "4/4"}},
		{name: "Gene disagrees with embedded gene", row: domain.RawVariantRow{"gene": "CYP2C9", "star": "CYP2D6*4/*4"}},
		{name: "Three-letter genotype", row: domain.RawVariantRow{"rsid": "rs1", "genotype": "AAG"}},
		{name: "Indel genotype", row: domain.RawVariantRow{"rsid": "rs1", "genotype": "-/A"}},
		{name: "rsID without genotype", row: domain.RawVariantRow{"rsid": "rs1"}},
		{name: "Malformed rsID", row: domain.RawVariantRow{"rsid": "chr1:123", "genotype": "AA"}},
		{name: "Only one allele", row: domain.RawVariantRow{"rsid": "rs1", "allele1": "A"}},
		{name: "Unrelated fields", row: domain.RawVariantRow{"patient": "p1", "notes": "n/a"}},
		{name: "Empty row", row: domain.RawVariantRow{}},
	}

	n := NewNormalizer(testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variants, stats := n.Normalize([]domain.RawVariantRow{tt.row})
			assert.Equal(t, 1, stats.Received)
			if tt.expected == nil {
				assert.Empty(t, variants)
				assert.Equal(t, 1, stats.Skipped)
				return
			}
			assert.Equal(t, 0, stats.Skipped)
			if diff := cmp.Diff([]domain.NormalizedVariant{*tt.expected}, variants); diff != "" {
				t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizer_BadRowsDoNotAbortBatch(t *testing.T) {
	n := NewNormalizer(testLogger())
	rows := []domain.RawVariantRow{
		{"rsid": "rs3892097", "genotype": "AA"},
		{"rsid": "garbage", "genotype": "??"},
		{"gene": "CYP2D6", "star": "*4/*4"},
		{"gene": "CYP2D6", "star": "oops"},
	}

	variants, stats := n.Normalize(rows)
	assert.Len(t, variants, 2)
	assert.Equal(t, domain.NormalizationStats{Received: 4, Skipped: 2}, stats)
	assert.Equal(t, "rs3892097:AA", variants[0].Key())
	assert.Equal(t, "CYP2D6*4/*4", variants[1].Key())
}

func TestNormalizer_EmptyInput(t *testing.T) {
	n := NewNormalizer(testLogger())
	variants, stats := n.Normalize(nil)
	assert.NotNil(t, variants)
	assert.Empty(t, variants)
	assert.Equal(t, domain.NormalizationStats{}, stats)
}

func TestNormalizer_OrderInvariance(t *testing.T) {
	n := NewNormalizer(testLogger())

	gt, _ := n.Normalize([]domain.RawVariantRow{
		{"rsid": "rs3892097", "genotype": "G/A"},
		{"rsid": "rs3892097", "genotype": "A,G"},
		{"rsid": "rs3892097", "genotype": "AG"},
	})
	assert.Len(t, gt, 3)
	assert.Equal(t, gt[0], gt[1])
	assert.Equal(t, gt[0], gt[2])

	star, _ := n.Normalize([]domain.RawVariantRow{
		{"gene": "CYP2D6", "star": "*1/*4"},
		{"gene": "CYP2D6", "star": "*4/*1"},
	})
	assert.Len(t, star, 2)
	assert.Equal(t, star[0], star[1])
}

func TestNormalizeFieldName(t *testing.T) {
	assert.Equal(t, "star_allele", NormalizeFieldName("  Star   Allele "))
	assert.Equal(t, "rsid", NormalizeFieldName("RSID"))
}
