package types

// RouteDecision is the binary choice of whether to perform retrieval for
// the current turn.
type RouteDecision string

const (
	// RouteHistoryOnly answers from conversation history alone.
	RouteHistoryOnly RouteDecision = "history_only"
	// RouteRetrieval consults the document corpus before answering.
	RouteRetrieval RouteDecision = "retrieval"
)

// RouteResult is the outcome of the routing stage. Transient: produced and
// consumed within one turn.
type RouteResult struct {
	Explanation string        `json:"explanation" jsonschema:"description=Reasoning behind the route"`
	Decision    RouteDecision `json:"decision" jsonschema:"required,enum=history_only,retrieval"`
}

// NeedsRetrieval reports whether the turn should consult the corpus.
func (r RouteResult) NeedsRetrieval() bool { return r.Decision == RouteRetrieval }

// Classification is the binary logical-quality verdict on a statement.
type Classification string

const (
	ClassConsistent   Classification = "consistent"
	ClassInconsistent Classification = "inconsistent"
)

// InconsistencyType narrows an inconsistent classification. It is only
// meaningful when Classification is ClassInconsistent.
type InconsistencyType string

const (
	InconsistencyFallacy               InconsistencyType = "fallacy"
	InconsistencySourceContradiction   InconsistencyType = "external_contradiction_with_sources"
	InconsistencyHistoryContradiction  InconsistencyType = "external_contradiction_with_history"
	InconsistencyInternalContradiction InconsistencyType = "internal_contradiction"
	InconsistencyUnsupportedClaim      InconsistencyType = "unsupported_claim"
)

// QualityResult is the structured verdict of the quality-assessment stage.
// Transient: produced and consumed within one turn.
type QualityResult struct {
	Classification Classification    `json:"classification" jsonschema:"required,enum=consistent,inconsistent"`
	Type           InconsistencyType `json:"type,omitempty" jsonschema:"description=Type of inconsistency when the statement is inconsistent,enum=fallacy,external_contradiction_with_sources,external_contradiction_with_history,internal_contradiction,unsupported_claim"`
	Explanation    string            `json:"explanation" jsonschema:"description=Explanation for the classification"`
}

// IsConsistent reports whether the statement passed the assessment.
// Stages must branch on this enum field, never on substrings of any
// formatted prose rendering of the result.
func (q QualityResult) IsConsistent() bool {
	return q.Classification != ClassInconsistent
}

// Reading is one suggested article found via web search.
type Reading struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// WrapUpBundle holds the end-of-session artifacts. Computed at most once
// per session, when the turn limit is reached.
type WrapUpBundle struct {
	Summary          []string  `json:"summary"`
	ImprovementAreas []string  `json:"improvement_areas"`
	Readings         []Reading `json:"readings"`
}
