package domain

// ResponseClass is the validator's verdict on whether an utterance needs grounding.
type ResponseClass string

// Response classes.
const (
	ResponseSimple      ResponseClass = "simple"
	ResponseSubstantive ResponseClass = "substantive"
)

// ValidationOutcome is the per-utterance verdict. It is never persisted.
type ValidationOutcome struct {
	IsValid bool
	Class   ResponseClass

	// RetryGuidance is empty when the utterance is valid.
	RetryGuidance string

	// Claims holds the claim-queries extracted from an invalid utterance.
	Claims []string
}

// ValidatorStats counts validator activity.
type ValidatorStats struct {
	Validations      int
	ForcedRetrievals int
}

// ForcedRetrievalRate is the share of validations that forced a retrieval.
func (s ValidatorStats) ForcedRetrievalRate() float64 {
	if s.Validations == 0 {
		return 0
	}
	return float64(s.ForcedRetrievals) / float64(s.Validations)
}
