package processor

import (
	"fmt"

	"forestclient/internal/submission/models"
)

// Outcome is the routing decision for a submission.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeReview  Outcome = "review"
	OutcomeReject  Outcome = "reject"
)

// Status is the submission status recorded for the outcome. Reviews stay in
// progress until staff act on them.
func (o Outcome) Status() models.Status {
	switch o {
	case OutcomeApprove:
		return models.StatusApproved
	case OutcomeReject:
		return models.StatusRejected
	default:
		return models.StatusInProgress
	}
}

// Decision is an outcome with the reasons that produced it.
type Decision struct {
	Outcome Outcome
	Reasons []string
}

// Decide applies the routing rules in order; the first rule that fires wins.
// It is pure: the same inputs always produce the same decision.
func Decide(info models.SubmissionInformation, agg Aggregate) Decision {
	registered := info.BusinessType == models.BusinessRegistered && info.IncorporationNumber != ""

	if registered && info.RegistryStatus == models.RegistryNotFound {
		return Decision{
			Outcome: OutcomeReject,
			Reasons: []string{fmt.Sprintf("incorporation number %s not found in the registry", info.IncorporationNumber)},
		}
	}

	var reasons []string
	if agg.TimedOut {
		reasons = append(reasons, fmt.Sprintf("aggregation timed out with %d of %d results", agg.Received, agg.Context.Total))
	}
	if len(agg.Problems) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d validation problem(s)", len(agg.Problems)))
	}
	if registered && !info.GoodStanding {
		reasons = append(reasons, "business is not in good standing")
	}
	for _, m := range agg.Matches {
		if m.Unchecked {
			reasons = append(reasons, fmt.Sprintf("%s could not be checked", m.Field))
		}
	}
	if len(reasons) > 0 {
		return Decision{Outcome: OutcomeReview, Reasons: reasons}
	}

	for _, m := range agg.Matches {
		if m.HasMatch() {
			reasons = append(reasons, fmt.Sprintf("%s matches existing client(s) %v", m.Field, m.Values))
		}
	}
	if len(reasons) > 0 {
		return Decision{Outcome: OutcomeReview, Reasons: reasons}
	}

	return Decision{Outcome: OutcomeApprove}
}
