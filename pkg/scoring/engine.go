package scoring

import (
	"fmt"
	"math"
	"strings"
)

const (
	// NormalizationConstant is the signal strength at which a criterion reaches its full weight.
	NormalizationConstant = 40.0
	// DefaultFeedbackThreshold is the share of a criterion's weight counted as a strength.
	DefaultFeedbackThreshold = 0.8
	// MaxHighlights caps the strengths and improvements lists.
	MaxHighlights = 5

	defaultDetailedFeedback = "This heuristic evaluation provides rough guidance only. Refine your submission focusing on clarity, structure, and completeness of logical steps."
)

// Keyword is a domain term and the boost it contributes to the signal strength.
type Keyword struct {
	Term  string
	Boost int
}

// DefaultKeywords is the calibrated keyword table.
var DefaultKeywords = []Keyword{
	{Term: "if", Boost: 4},
	{Term: "loop", Boost: 5},
	{Term: "for", Boost: 5},
	{Term: "while", Boost: 5},
	{Term: "function", Boost: 6},
	{Term: "start", Boost: 3},
	{Term: "end", Boost: 3},
	{Term: "return", Boost: 4},
	{Term: "process", Boost: 2},
}

// Options tunes the keyword heuristic.
type Options struct {
	Mode              Mode
	Keywords          []Keyword
	FeedbackThreshold float64
}

// Engine is the keyword-signal Scorer.
type Engine struct {
	mode      Mode
	keywords  []Keyword
	threshold float64
}

// NewEngine builds an engine, filling unset options with the calibrated defaults.
func NewEngine(opts Options) *Engine {
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	threshold := opts.FeedbackThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFeedbackThreshold
	}

	mode := opts.Mode
	if mode != ModeFrequency {
		mode = ModePresence
	}

	copied := make([]Keyword, len(keywords))
	copy(copied, keywords)

	return &Engine{mode: mode, keywords: copied, threshold: threshold}
}

// Mode reports the accumulation variant this engine applies.
func (e *Engine) Mode() Mode {
	return e.mode
}

// Score computes per-criterion scores, highlights and the weighted overall score.
func (e *Engine) Score(text string, criteria []Criterion) Result {
	signal := e.SignalStrength(text)

	result := Result{
		CriteriaScores: make([]CriterionScore, 0, len(criteria)),
		Strengths:      make([]string, 0, MaxHighlights),
		Improvements:   make([]string, 0, MaxHighlights),
		SignalStrength: signal,
		Mode:           e.mode,
	}

	var total, weights float64
	for _, criterion := range criteria {
		weight := criterion.Weight
		score := criterionScore(signal, weight)

		strong := weight > 0 && score >= e.threshold*weight
		label := strings.ToLower(strings.TrimSpace(criterion.Name))

		feedback := fmt.Sprintf("Consider improving %s", label)
		if strong {
			feedback = fmt.Sprintf("Good %s", label)
			if len(result.Strengths) < MaxHighlights {
				result.Strengths = append(result.Strengths, fmt.Sprintf("%s: solid presence", criterion.Name))
			}
		} else if len(result.Improvements) < MaxHighlights {
			result.Improvements = append(result.Improvements, fmt.Sprintf("%s: could be expanded with clearer structure or detail", criterion.Name))
		}

		result.CriteriaScores = append(result.CriteriaScores, CriterionScore{
			Name:     criterion.Name,
			Score:    score,
			Feedback: feedback,
		})

		total += score
		if weight > 0 {
			weights += weight
		}
	}

	result.OverallScore = overallScore(total, weights)
	result.DetailedFeedback = fmt.Sprintf("Your submission scored %d%%. %s", result.OverallScore, defaultDetailedFeedback)

	return result
}

// SignalStrength sums keyword boosts found in the lower-cased text.
func (e *Engine) SignalStrength(text string) int {
	lower := strings.ToLower(text)

	signal := 0
	for _, keyword := range e.keywords {
		if keyword.Term == "" {
			continue
		}
		switch e.mode {
		case ModeFrequency:
			signal += keyword.Boost * strings.Count(lower, keyword.Term)
		default:
			if strings.Contains(lower, keyword.Term) {
				signal += keyword.Boost
			}
		}
	}

	return signal
}

// criterionScore is min(weight, round(signal/40*weight)); never negative, never above weight.
func criterionScore(signal int, weight float64) float64 {
	if weight <= 0 || signal <= 0 {
		return 0
	}

	raw := math.Round(float64(signal) / NormalizationConstant * weight)
	return math.Min(weight, raw)
}

func overallScore(total, weights float64) int {
	if weights <= 0 {
		return 0
	}

	score := int(math.Round(100 * total / weights))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
