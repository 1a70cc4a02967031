package domain

// Modality identifies one retrieval channel contributing candidates to fusion.
type Modality string

const (
	ModalityVector  Modality = "vector"
	ModalityGraph   Modality = "graph"
	ModalityKeyword Modality = "keyword"
)

// Modalities lists channels in their fixed invocation order.
var Modalities = []Modality{ModalityVector, ModalityGraph, ModalityKeyword}

// TextHit is a single ranked row returned by the full-text store.
type TextHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Neighbor is a first-hop node adjacent to a graph node in either direction.
type Neighbor struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	RelationshipType string `json:"relationship_type"`
	Distance         int    `json:"distance"`
}

type CandidateMetadata struct {
	PrefLabel     string   `json:"pref_label,omitempty"`
	SectionLabel  string   `json:"section_label,omitempty"`
	ChunkID       string   `json:"chunk_id,omitempty"`
	GraphKeywords []string `json:"graph_keywords,omitempty"`
}

type EdgeInfo struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
}

// Candidate is a retrieved regulation chunk tagged with the modality that found it.
type Candidate struct {
	ID            string            `json:"id"`
	Content       string            `json:"content"`
	SourceLabel   string            `json:"source_label"`
	Modality      Modality          `json:"modality"`
	RawScore      float64           `json:"raw_score"`
	WeightedScore float64           `json:"score"`
	NodeID        string            `json:"node_id,omitempty"`
	EdgeInfo      *EdgeInfo         `json:"edge_info,omitempty"`
	Metadata      CandidateMetadata `json:"metadata"`
}

type ExpandedQuery struct {
	OriginalText   string     `json:"original_query"`
	ExpandedText   string     `json:"expanded_query"`
	ExtractedNodes []string   `json:"extracted_nodes"`
	RelatedNodes   []Neighbor `json:"related_nodes"`
	Keywords       []string   `json:"keywords"`
	ExecTimeMS     float64    `json:"execution_time_ms"`
	Success        bool       `json:"success"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// FusionRequest carries per-request knobs. Weights are independent multipliers
// and are not required to sum to one.
type FusionRequest struct {
	Query                string  `json:"query"`
	MaxChunks            int     `json:"max_chunks"`
	VectorWeight         float64 `json:"vector_weight"`
	GraphWeight          float64 `json:"graph_weight"`
	KeywordWeight        float64 `json:"keyword_weight"`
	EnableQueryExpansion bool    `json:"enable_query_expansion"`
	MaxRelatedNodes      int     `json:"max_related_nodes"`
}

// Weight returns the multiplier configured for modality m.
func (r FusionRequest) Weight(m Modality) float64 {
	switch m {
	case ModalityVector:
		return r.VectorWeight
	case ModalityGraph:
		return r.GraphWeight
	case ModalityKeyword:
		return r.KeywordWeight
	default:
		return 1
	}
}

type ModalityStats struct {
	Count      int     `json:"count"`
	ExecTimeMS float64 `json:"execution_time_ms"`
	Error      string  `json:"error,omitempty"`
}

type FusionResult struct {
	SearchID         string                     `json:"search_id,omitempty"`
	Query            string                     `json:"query"`
	ExpandedQuery    *ExpandedQuery             `json:"expanded_query,omitempty"`
	FinalCandidates  []Candidate                `json:"final_chunks"`
	PerModalityStats map[Modality]ModalityStats `json:"search_results"`
	TotalExecTimeMS  float64                    `json:"total_execution_time_ms"`
	Success          bool                       `json:"success"`
	Degraded         bool                       `json:"degraded,omitempty"`
	Fallback         bool                       `json:"fallback,omitempty"`
	ErrorMessage     string                     `json:"error_message,omitempty"`
}

// SearchEvent is the analytics record emitted after each hybrid search.
type SearchEvent struct {
	SearchID        string           `json:"search_id"`
	Query           string           `json:"query"`
	Success         bool             `json:"success"`
	Degraded        bool             `json:"degraded"`
	Fallback        bool             `json:"fallback"`
	FinalCount      int              `json:"final_count"`
	ModalityCounts  map[Modality]int `json:"modality_counts"`
	TotalExecTimeMS float64          `json:"total_execution_time_ms"`
}

type HealthStatus struct {
	Initialized       bool   `json:"initialized"`
	FullTextAvailable bool   `json:"full_text_available"`
	GraphAvailable    bool   `json:"graph_available"`
	CacheAvailable    bool   `json:"cache_available"`
	VectorBackend     string `json:"vector_backend"`
	Error             string `json:"error,omitempty"`
}

// RegulationChunk is a unit of regulatory text indexed for retrieval.
type RegulationChunk struct {
	ID        string    `json:"id" yaml:"id"`
	Text      string    `json:"text" yaml:"text"`
	PrefLabel string    `json:"pref_label" yaml:"pref_label"`
	Embedding []float32 `json:"-" yaml:"-"`
}

// Relation is a directed, labelled edge between two graph nodes.
type Relation struct {
	SourceID    string `yaml:"source"`
	SourceLabel string `yaml:"source_label"`
	TargetID    string `yaml:"target"`
	TargetLabel string `yaml:"target_label"`
	Type        string `yaml:"type"`
}
