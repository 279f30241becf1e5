package scoring

// Mode selects how keyword boosts accumulate into the signal strength.
type Mode string

const (
	// ModePresence adds a keyword's boost once when it occurs anywhere in the document.
	ModePresence Mode = "presence"
	// ModeFrequency multiplies a keyword's boost by its number of occurrences.
	ModeFrequency Mode = "frequency"
)

// Criterion is a single weighted axis the engine scores against.
type Criterion struct {
	Name   string
	Weight float64
}

// CriterionScore is the engine's verdict for one criterion.
type CriterionScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// Result is the complete scoring outcome for one document.
type Result struct {
	CriteriaScores   []CriterionScore `json:"criteriaScores"`
	OverallScore     int              `json:"overallScore"`
	Strengths        []string         `json:"strengths"`
	Improvements     []string         `json:"improvements"`
	DetailedFeedback string           `json:"detailedFeedback"`
	SignalStrength   int              `json:"signalStrength"`
	Mode             Mode             `json:"mode"`
}

// Scorer turns document text and rubric criteria into a Result.
// Implementations must be deterministic and free of I/O.
type Scorer interface {
	Score(text string, criteria []Criterion) Result
}

// ParseMode normalises a configured mode string, falling back to ModePresence.
func ParseMode(value string) Mode {
	switch Mode(value) {
	case ModeFrequency:
		return ModeFrequency
	default:
		return ModePresence
	}
}
