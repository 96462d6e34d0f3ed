package processor

import (
	legacymodels "forestclient/internal/legacy/models"
	"forestclient/internal/submission/models"
)

// Pipeline stage names, used for logs, metrics and spans.
const (
	stageReceived   = "received"
	stageEnriching  = "enriching"
	stageMatching   = "matching"
	stageDeciding   = "deciding"
	stagePersisting = "persisting"
	stageNotifying  = "notifying"
)

// Work is the per-submission state handed from stage to stage. Exactly one
// stage owns a Work at a time.
type Work struct {
	Submission   *models.Submission
	Info         models.SubmissionInformation
	Decision     Decision
	ClientNumber legacymodels.ClientNumber
}

// Channels are the typed queues between pipeline stages.
type Channels struct {
	Received   chan Envelope[models.SubmissionID]
	Enriching  chan Envelope[Work]
	Matching   chan Envelope[Work]
	Branches   chan Envelope[BranchResult]
	Deciding   chan Envelope[Aggregate]
	Persisting chan Envelope[Work]
	Notifying  chan Envelope[Work]
}

// NewChannels allocates every stage queue with the given buffer.
func NewChannels(buffer int) Channels {
	if buffer < 0 {
		buffer = 0
	}
	return Channels{
		Received:   make(chan Envelope[models.SubmissionID], buffer),
		Enriching:  make(chan Envelope[Work], buffer),
		Matching:   make(chan Envelope[Work], buffer),
		Branches:   make(chan Envelope[BranchResult], buffer),
		Deciding:   make(chan Envelope[Aggregate], buffer),
		Persisting: make(chan Envelope[Work], buffer),
		Notifying:  make(chan Envelope[Work], buffer),
	}
}
