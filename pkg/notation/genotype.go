// Package notation parses the genotype and star-allele notations found in
// pharmacogenomic reports into canonical, order-independent forms.
package notation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	rsidPattern = regexp.MustCompile(`^rs\d+$`)

	genotypeSeparators = strings.NewReplacer("/", "", "|", "", ",", "", " ", "", "\t", "")

	// Cells that spreadsheets and report exporters emit for missing values
	placeholderValues = map[string]struct{}{
		"":     {},
		"nan":  {},
		"none": {},
		"null": {},
		"n/a":  {},
		"-":    {},
		"--":   {},
	}
)

// IsPlaceholder reports whether a cell carries no real value.
func IsPlaceholder(value string) bool {
	_, ok := placeholderValues[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// NormalizeRSID lower-cases and validates an rsID ("RS3892097" -> "rs3892097").
func NormalizeRSID(raw string) (string, error) {
	rsid := strings.ToLower(strings.TrimSpace(raw))
	if !rsidPattern.MatchString(rsid) {
		return "", fmt.Errorf("invalid rsID %q", raw)
	}
	return rsid, nil
}

// NormalizeGenotype strips separators and whitespace, uppercases the result
// and sorts the two alleles so that "G/A", "a,g" and "AG" all yield "AG".
// Anything other than exactly two single-letter alleles is rejected.
func NormalizeGenotype(raw string) (string, error) {
	clean := strings.ToUpper(genotypeSeparators.Replace(strings.TrimSpace(raw)))
	clean = strings.Join(strings.Fields(clean), "")
	if len(clean) != 2 || !isLetter(clean[0]) || !isLetter(clean[1]) {
		return "", fmt.Errorf("genotype %q is not two single-letter alleles", raw)
	}
	alleles := []byte(clean)
	sort.Slice(alleles, func(i, j int) bool { return alleles[i] < alleles[j] })
	return string(alleles), nil
}

// CombineAlleles builds a genotype from separate allele cells. A zygosity
// hint containing "hom" collapses differing alleles onto the first one.
func CombineAlleles(allele1, allele2, zygosity string) (string, error) {
	a1 := strings.ToUpper(strings.TrimSpace(allele1))
	a2 := strings.ToUpper(strings.TrimSpace(allele2))
	if a1 == "" || a2 == "" {
		return "", fmt.Errorf("both alleles are required")
	}
	if strings.Contains(strings.ToLower(zygosity), "hom") && a1 != a2 {
		a2 = a1
	}
	return NormalizeGenotype(a1 + a2)
}

// SplitRSIDGenotype extracts an rsID embedded in a genotype cell,
// e.g. "rs3892097 A/A" -> ("rs3892097", "AA").
func SplitRSIDGenotype(cell string) (rsid, genotype string, ok bool) {
	fields := strings.Fields(cell)
	rest := make([]string, 0, len(fields))
	for _, field := range fields {
		if rsid == "" {
			if id, err := NormalizeRSID(field); err == nil {
				rsid = id
				continue
			}
		}
		rest = append(rest, field)
	}
	if rsid == "" {
		return "", "", false
	}
	gt, err := NormalizeGenotype(strings.Join(rest, ""))
	if err != nil {
		return "", "", false
	}
	return rsid, gt, true
}

func isLetter(b byte) bool {
	return b >= 'A' && b <= 'Z'
}
