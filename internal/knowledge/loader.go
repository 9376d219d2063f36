package knowledge

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/epi-risk-server/internal/domain"
	"github.com/epi-risk-server/pkg/notation"
	"gopkg.in/yaml.v3"
)

// Table names, also the base names of the files in a knowledge directory.
const (
	TableAlleleProxies = "allele_proxies"
	TableStarProxies   = "star_allele_proxies"
	TableDrugGeneMap   = "drug_gene_map"
	TableAlternatives  = "alternatives"
	TableGuidelines    = "guidelines"
)

const unversioned = "unversioned"

var tableExtensions = []string{".json", ".yaml", ".yml"}

//go:embed data/*.json
var embedded embed.FS

type drugEntry struct {
	Name  string   `json:"name" yaml:"name"`
	Genes []string `json:"genes" yaml:"genes"`
}

type alternativeEntry struct {
	RxNorm string `json:"rxnorm" yaml:"rxnorm"`
	Name   string `json:"name" yaml:"name"`
	Note   string `json:"note" yaml:"note"`
}

type weightEntry struct {
	Weight   float64  `json:"weight" yaml:"weight"`
	Evidence []string `json:"evidence" yaml:"evidence"`
}

type pairEntry struct {
	Weight   float64  `json:"weight" yaml:"weight"`
	Evidence []string `json:"evidence" yaml:"evidence"`
	Drugs    []string `json:"drugs" yaml:"drugs"`
}

type guidelinesFile struct {
	Version              string                 `json:"version" yaml:"version"`
	MaterialityThreshold *float64               `json:"materiality_threshold" yaml:"materiality_threshold"`
	SingleTags           map[string]weightEntry `json:"single_tags" yaml:"single_tags"`
	EpistasisPairs       map[string]pairEntry   `json:"epistasis_pairs" yaml:"epistasis_pairs"`
	PathwayBurden        *weightEntry           `json:"pathway_burden" yaml:"pathway_burden"`
}

// LoadEmbedded loads the curated knowledge base compiled into the binary.
func LoadEmbedded() (*Tables, error) {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, fmt.Errorf("opening embedded knowledge base: %w", err)
	}
	return Load(sub)
}

// LoadDir loads a knowledge base directory from disk.
func LoadDir(dir string) (*Tables, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &domain.KnowledgeBaseError{Table: "*", File: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &domain.KnowledgeBaseError{Table: "*", File: dir, Err: errors.New("not a directory")}
	}
	return Load(os.DirFS(dir))
}

// Load reads and validates all five tables from fsys. Any missing,
// undecodable or inconsistent table fails the whole load with a
// KnowledgeBaseError naming it.
func Load(fsys fs.FS) (*Tables, error) {
	t := &Tables{
		rsid:         map[string]domain.FunctionalTag{},
		star:         map[string]domain.FunctionalTag{},
		drugs:        map[string]*domain.DrugPathway{},
		drugsByName:  map[string]*domain.DrugPathway{},
		drugsByCode:  map[string]*domain.DrugPathway{},
		alternatives: map[string][]domain.AlternativeMedication{},
		singles:      map[domain.FunctionalTag]Weight{},
		pairs:        map[PairKey]PairWeight{},
	}

	var alleles map[string]string
	if err := decodeTable(fsys, TableAlleleProxies, &alleles); err != nil {
		return nil, err
	}
	var stars map[string]string
	if err := decodeTable(fsys, TableStarProxies, &stars); err != nil {
		return nil, err
	}
	var drugs map[string]drugEntry
	if err := decodeTable(fsys, TableDrugGeneMap, &drugs); err != nil {
		return nil, err
	}
	var alternatives map[string][]alternativeEntry
	if err := decodeTable(fsys, TableAlternatives, &alternatives); err != nil {
		return nil, err
	}
	var guidelines guidelinesFile
	if err := decodeTable(fsys, TableGuidelines, &guidelines); err != nil {
		return nil, err
	}

	steps := []struct {
		table string
		build func() error
	}{
		{TableAlleleProxies, func() error { return t.buildAlleleProxies(alleles) }},
		{TableStarProxies, func() error { return t.buildStarProxies(stars) }},
		{TableDrugGeneMap, func() error { return t.buildDrugs(drugs) }},
		{TableAlternatives, func() error { return t.buildAlternatives(alternatives) }},
		{TableGuidelines, func() error { return t.buildGuidelines(&guidelines) }},
	}
	for _, step := range steps {
		if err := step.build(); err != nil {
			return nil, &domain.KnowledgeBaseError{Table: step.table, Err: err}
		}
	}
	return t, nil
}

// decodeTable finds <table>.json, <table>.yaml or <table>.yml (in that
// order) and decodes it into dst.
func decodeTable(fsys fs.FS, table string, dst interface{}) error {
	for _, ext := range tableExtensions {
		name := table + ext
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return &domain.KnowledgeBaseError{Table: table, File: name, Err: err}
		}
		if ext == ".json" {
			err = json.Unmarshal(data, dst)
		} else {
			err = yaml.Unmarshal(data, dst)
		}
		if err != nil {
			return &domain.KnowledgeBaseError{Table: table, File: name, Err: fmt.Errorf("decoding: %w", err)}
		}
		return nil
	}
	return &domain.KnowledgeBaseError{Table: table, Err: fmt.Errorf("no %s{%s} file found", table, strings.Join(tableExtensions, ","))}
}

func (t *Tables) buildAlleleProxies(raw map[string]string) error {
	if len(raw) == 0 {
		return errors.New("table is empty")
	}
	for key, tag := range raw {
		rsidPart, gtPart, ok := strings.Cut(key, ":")
		if !ok {
			return fmt.Errorf("key %q is not rsid:genotype", key)
		}
		rsid, err := notation.NormalizeRSID(rsidPart)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		gt, err := notation.NormalizeGenotype(gtPart)
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		if err := putTag(t.rsid, rsid+":"+gt, tag); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

func (t *Tables) buildStarProxies(raw map[string]string) error {
	if len(raw) == 0 {
		return errors.New("table is empty")
	}
	for key, tag := range raw {
		gene, diplotype, ok := notation.SplitEmbeddedDiplotype(key)
		if !ok {
			return fmt.Errorf("key %q is not GENE*a/*b", key)
		}
		if err := putTag(t.star, gene+diplotype, tag); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	return nil
}

func putTag(dst map[string]domain.FunctionalTag, key, raw string) error {
	tag, err := parseTag(raw)
	if err != nil {
		return err
	}
	if existing, ok := dst[key]; ok && existing != tag {
		return fmt.Errorf("normalizes to %s which already maps to %s", key, existing)
	}
	dst[key] = tag
	return nil
}

func parseTag(raw string) (domain.FunctionalTag, error) {
	s := strings.TrimSpace(raw)
	gene, rest, ok := strings.Cut(s, "_")
	if !ok || gene == "" || rest == "" {
		return "", fmt.Errorf("tag %q must be GENE_consequence", raw)
	}
	return domain.FunctionalTag(s), nil
}

func (t *Tables) buildDrugs(raw map[string]drugEntry) error {
	if len(raw) == 0 {
		return errors.New("table is empty")
	}
	for key, entry := range raw {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("drug %q has no name", key)
		}
		if len(entry.Genes) == 0 {
			return fmt.Errorf("drug %q has no pathway genes", key)
		}
		lower := strings.ToLower(name)
		if other, dup := t.drugsByName[lower]; dup {
			return fmt.Errorf("drug name %q used by both %s and %s", name, other.Key, key)
		}

		genes := make([]string, 0, len(entry.Genes))
		seen := map[string]struct{}{}
		for _, g := range entry.Genes {
			g = notation.NormalizeGene(g)
			if g == "" {
				return fmt.Errorf("drug %q lists an empty gene", key)
			}
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			genes = append(genes, g)
		}
		sort.Strings(genes)

		drug := &domain.DrugPathway{Key: key, Name: lower, Genes: genes}
		if strings.HasPrefix(strings.ToLower(key), drugCodePrefix) {
			drug.Code = normalizeCode(key)
			t.drugsByCode[drug.Code] = drug
		}
		t.drugs[key] = drug
		t.drugsByName[lower] = drug
	}
	return nil
}

func (t *Tables) buildAlternatives(raw map[string][]alternativeEntry) error {
	for drug, entries := range raw {
		lower := strings.ToLower(strings.TrimSpace(drug))
		if _, ok := t.drugsByName[lower]; !ok {
			return fmt.Errorf("alternatives listed for unknown drug %q", drug)
		}
		alts := make([]domain.AlternativeMedication, 0, len(entries))
		for _, e := range entries {
			if strings.TrimSpace(e.Name) == "" {
				return fmt.Errorf("alternative for %q has no name", drug)
			}
			alts = append(alts, domain.AlternativeMedication{
				Code: strings.TrimSpace(e.RxNorm),
				Name: strings.TrimSpace(e.Name),
				Note: strings.TrimSpace(e.Note),
			})
		}
		t.alternatives[lower] = alts
	}
	return nil
}

func (t *Tables) buildGuidelines(g *guidelinesFile) error {
	t.version = strings.TrimSpace(g.Version)
	if t.version == "" {
		t.version = unversioned
	}

	t.materiality = DefaultMaterialityThreshold
	if g.MaterialityThreshold != nil {
		if err := checkWeight("materiality_threshold", *g.MaterialityThreshold); err != nil {
			return err
		}
		t.materiality = *g.MaterialityThreshold
	}

	for raw, entry := range g.SingleTags {
		tag, err := parseTag(raw)
		if err != nil {
			return fmt.Errorf("single_tags: %w", err)
		}
		if err := checkWeight("single_tags."+raw, entry.Weight); err != nil {
			return err
		}
		t.singles[tag] = Weight{Value: entry.Weight, Evidence: evidence(entry.Evidence)}
	}

	for raw, entry := range g.EpistasisPairs {
		parts := strings.Split(raw, "+")
		if len(parts) != 2 {
			return fmt.Errorf("epistasis pair %q must name exactly two tags", raw)
		}
		a, err := parseTag(parts[0])
		if err != nil {
			return fmt.Errorf("epistasis pair %q: %w", raw, err)
		}
		b, err := parseTag(parts[1])
		if err != nil {
			return fmt.Errorf("epistasis pair %q: %w", raw, err)
		}
		if a == b {
			return fmt.Errorf("epistasis pair %q pairs a tag with itself", raw)
		}
		if err := checkWeight("epistasis_pairs."+raw, entry.Weight); err != nil {
			return err
		}
		key := NewPairKey(a, b)
		if _, dup := t.pairs[key]; dup {
			return fmt.Errorf("epistasis pair %q duplicates %s", raw, key)
		}
		pw := PairWeight{Weight: Weight{Value: entry.Weight, Evidence: evidence(entry.Evidence)}}
		if len(entry.Drugs) > 0 {
			pw.drugs = make(map[string]struct{}, len(entry.Drugs))
			for _, d := range entry.Drugs {
				pw.drugs[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
			}
		}
		t.pairs[key] = pw
	}

	if g.PathwayBurden == nil {
		return errors.New("pathway_burden is required")
	}
	if err := checkWeight("pathway_burden", g.PathwayBurden.Weight); err != nil {
		return err
	}
	t.burden = Weight{Value: g.PathwayBurden.Weight, Evidence: evidence(g.PathwayBurden.Evidence)}
	return nil
}

func checkWeight(field string, w float64) error {
	if w < 0 || w > 1 {
		return fmt.Errorf("%s weight %v outside [0,1]", field, w)
	}
	return nil
}

func evidence(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
