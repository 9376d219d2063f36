package notation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	starAllelePattern = regexp.MustCompile(`^\*(\d+)([A-Z]*)$`)

	// GENE*N/*M, used when the gene is written inside the star cell
	embeddedDiplotypePattern = regexp.MustCompile(`^([A-Z][A-Z0-9-]*)(\*.+)$`)
)

// StarAllele is a single haplotype designation such as *4 or *3A.
type StarAllele struct {
	Number int
	Suffix string
}

// String renders the allele in star notation.
func (a StarAllele) String() string {
	return "*" + strconv.Itoa(a.Number) + a.Suffix
}

// Less orders alleles numerically first, so *9 sorts before *10, then by suffix.
func (a StarAllele) Less(b StarAllele) bool {
	if a.Number != b.Number {
		return a.Number < b.Number
	}
	return a.Suffix < b.Suffix
}

// ParseStarAllele parses one side of a diplotype.
func ParseStarAllele(raw string) (StarAllele, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	m := starAllelePattern.FindStringSubmatch(s)
	if m == nil {
		return StarAllele{}, fmt.Errorf("invalid star allele %q", raw)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return StarAllele{}, fmt.Errorf("invalid star allele number %q: %w", raw, err)
	}
	return StarAllele{Number: n, Suffix: m[2]}, nil
}

// NormalizeDiplotype turns "*4/*1" into "*1/*4". Both sides must be valid
// star alleles; whitespace around either side is ignored.
func NormalizeDiplotype(raw string) (string, error) {
	parts := strings.Split(strings.TrimSpace(raw), "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("diplotype %q must have exactly two alleles", raw)
	}
	alleles := make([]StarAllele, 0, 2)
	for _, p := range parts {
		a, err := ParseStarAllele(p)
		if err != nil {
			return "", fmt.Errorf("parsing diplotype %q: %w", raw, err)
		}
		alleles = append(alleles, a)
	}
	sort.Slice(alleles, func(i, j int) bool { return alleles[i].Less(alleles[j]) })
	return alleles[0].String() + "/" + alleles[1].String(), nil
}

// SplitEmbeddedDiplotype separates "CYP2D6*4/*1" into ("CYP2D6", "*1/*4").
func SplitEmbeddedDiplotype(cell string) (gene, diplotype string, ok bool) {
	s := strings.ToUpper(strings.Join(strings.Fields(cell), ""))
	m := embeddedDiplotypePattern.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	d, err := NormalizeDiplotype(m[2])
	if err != nil {
		return "", "", false
	}
	return m[1], d, true
}

// NormalizeGene uppercases and trims a gene symbol.
func NormalizeGene(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
