package processor

import (
	"time"

	"github.com/google/uuid"

	"forestclient/internal/submission/models"
)

// EnvelopeContext is the routing metadata carried alongside every payload.
// It is a value: each hand-off copies it.
type EnvelopeContext struct {
	SubmissionID  models.SubmissionID
	CorrelationID uuid.UUID
	// Total is the number of sibling branches in a fan-out group, 0 outside one.
	Total      int
	Index      int
	ReceivedAt time.Time
}

// Envelope pairs a typed payload with its context.
type Envelope[T any] struct {
	Payload T
	Context EnvelopeContext
}

// NewEnvelope starts a new correlation for a submission.
func NewEnvelope(id models.SubmissionID, now time.Time) Envelope[models.SubmissionID] {
	return Envelope[models.SubmissionID]{
		Payload: id,
		Context: EnvelopeContext{
			SubmissionID:  id,
			CorrelationID: uuid.New(),
			ReceivedAt:    now,
		},
	}
}

// Forward carries env's context onto a new payload.
func Forward[T, U any](env Envelope[T], payload U) Envelope[U] {
	return Envelope[U]{Payload: payload, Context: env.Context}
}

// Branch returns a copy of the context tagged as branch index of total.
func (c EnvelopeContext) Branch(index, total int) EnvelopeContext {
	c.Index = index
	c.Total = total
	return c
}

// BranchKind identifies what a fan-out branch computed.
type BranchKind string

const (
	BranchMatch      BranchKind = "match"
	BranchValidation BranchKind = "validation"
)

// BranchResult is the output of one fan-out branch.
type BranchResult struct {
	Kind     BranchKind
	Match    MatcherResult
	Problems []models.ValidationError
}
