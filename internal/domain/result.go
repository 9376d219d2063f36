package domain

// RiskLabel is the discrete risk category
type RiskLabel string

const (
	RiskLow      RiskLabel = "low"
	RiskModerate RiskLabel = "moderate"
	RiskHigh     RiskLabel = "high"
)

// BaseScore is the background risk every assessment starts from.
const BaseScore = 0.05

// Label thresholds, shared by every scorer.
const (
	ModerateThreshold = 0.33
	HighThreshold     = 0.66
)

// LabelForScore maps a clamped score to its label. Both boundaries belong to moderate.
func LabelForScore(score float64) RiskLabel {
	switch {
	case score < ModerateThreshold:
		return RiskLow
	case score <= HighThreshold:
		return RiskModerate
	default:
		return RiskHigh
	}
}

// ClampScore saturates a score into [0, 1].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// RationaleType identifies which scoring rule produced a rationale
type RationaleType string

const (
	RationalePair   RationaleType = "epistasis_pair"
	RationaleSingle RationaleType = "single_tag"
	RationaleBurden RationaleType = "pathway_burden"
)

// Rationale explains one contribution to a score
type Rationale struct {
	Type     RationaleType   `json:"type"`
	Tag      FunctionalTag   `json:"tag,omitempty"`
	Pair     []FunctionalTag `json:"pair,omitempty"`
	Pathway  string          `json:"pathway,omitempty"`
	Genes    []string        `json:"genes,omitempty"`
	Weight   float64         `json:"weight"`
	Evidence []string        `json:"evidence"`
}

// AlternativeMedication is a curated substitute suggestion
type AlternativeMedication struct {
	Code string `json:"rxnorm"`
	Name string `json:"name"`
	Note string `json:"note"`
}

// ScoreResult is what every scorer produces
type ScoreResult struct {
	Score        float64                 `json:"risk_score"`
	Label        RiskLabel               `json:"risk_label"`
	Rationales   []Rationale             `json:"rationales"`
	Alternatives []AlternativeMedication `json:"suggested_alternatives"`
}

// Clone returns a deep copy
func (r *ScoreResult) Clone() *ScoreResult {
	if r == nil {
		return nil
	}
	out := &ScoreResult{
		Score:        r.Score,
		Label:        r.Label,
		Rationales:   make([]Rationale, len(r.Rationales)),
		Alternatives: append([]AlternativeMedication(nil), r.Alternatives...),
	}
	if out.Alternatives == nil {
		out.Alternatives = []AlternativeMedication{}
	}
	for i, rat := range r.Rationales {
		rat.Pair = append([]FunctionalTag(nil), rat.Pair...)
		rat.Genes = append([]string(nil), rat.Genes...)
		rat.Evidence = append([]string(nil), rat.Evidence...)
		if rat.Evidence == nil {
			rat.Evidence = []string{}
		}
		out.Rationales[i] = rat
	}
	return out
}

// ScorerKind selects a scoring backend
type ScorerKind string

const (
	ScorerRules ScorerKind = "rules"
	ScorerML    ScorerKind = "ml"
)

// Valid reports whether the kind names a known backend
func (k ScorerKind) Valid() bool {
	return k == ScorerRules || k == ScorerML
}

// PipelineDiagnostics reports how many records survived each stage
type PipelineDiagnostics struct {
	RowsReceived  int      `json:"rows_received"`
	RowsSkipped   int      `json:"rows_skipped"`
	Variants      int      `json:"variants"`
	TagsMapped    []string `json:"tags_mapped"`
	TagsInPathway []string `json:"tags_in_pathway"`
	AffectedGenes []string `json:"affected_genes"`
}

// RiskAssessment is the full response for one scoring request
type RiskAssessment struct {
	TraceID    string      `json:"trace_id"`
	Medication DrugPathway `json:"medication"`
	ScoreResult
	Diagnostics      PipelineDiagnostics `json:"diagnostics"`
	ScorerUsed       ScorerKind          `json:"scorer"`
	ModelVersion     string              `json:"model_version"`
	KnowledgeVersion string              `json:"knowledge_version"`
}
