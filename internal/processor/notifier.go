package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	legacymodels "forestclient/internal/legacy/models"
	"forestclient/internal/mail"
	procmetrics "forestclient/internal/processor/metrics"
	"forestclient/internal/submission/models"
	"forestclient/pkg/platform/circuit"
	"forestclient/pkg/platform/ringbuffer"
)

// ErrMailUnavailable is returned when the mail breaker is open and the
// message was queued without an attempt.
var ErrMailUnavailable = errors.New("mail service unavailable")

type queuedEmail struct {
	request      mail.EmailRequest
	submissionID models.SubmissionID
}

// Notifier sends outcome and reminder emails. Failed sends are queued for
// ResendQueued and never fail the pipeline.
type Notifier struct {
	mailer  Mailer
	breaker *circuit.Breaker
	queue   *ringbuffer.RingBuffer[queuedEmail]
	logger  *slog.Logger
	metrics *procmetrics.Metrics
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

func WithBreaker(breaker *circuit.Breaker) NotifierOption {
	return func(n *Notifier) {
		n.breaker = breaker
	}
}

// WithResendBacklog bounds the resend queue; the oldest entries are dropped.
func WithResendBacklog(size int) NotifierOption {
	return func(n *Notifier) {
		n.queue = ringbuffer.New[queuedEmail](size)
	}
}

func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithNotifierMetrics(metrics *procmetrics.Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = metrics
	}
}

func NewNotifier(mailer Mailer, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		mailer:  mailer,
		breaker: circuit.New("ches"),
		queue:   ringbuffer.New[queuedEmail](1000),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify sends the outcome email for sub. A returned error means the message
// was queued for resend.
func (n *Notifier) Notify(ctx context.Context, outcome Outcome, sub *models.Submission, clientNumber legacymodels.ClientNumber, correlationID string) (string, error) {
	req := OutcomeEmail(outcome, sub, clientNumber)
	if correlationID != "" {
		req.CorrelationID = &correlationID
	}
	return n.send(ctx, req, sub.ID)
}

// Remind tells a district that a submission is still waiting for review.
func (n *Notifier) Remind(ctx context.Context, pending models.DistrictSummary, interval time.Duration) (string, error) {
	req := mail.EmailRequest{
		Template:   mail.TemplatePending,
		Recipients: []string{pending.District.Email},
		Subject:    fmt.Sprintf("Client number application %d is waiting for review", pending.SubmissionID),
		Variables: map[string]any{
			"district":      pending.District.Code,
			"districtName":  pending.District.Name,
			"submissionId":  pending.SubmissionID,
			"applicantName": pending.BusinessName,
			"clientNumber":  "",
			"interval":      interval.String(),
		},
	}
	return n.send(ctx, req, pending.SubmissionID)
}

// ResendQueued retries up to max queued messages and returns how many were sent.
// Messages that fail again go back on the queue.
func (n *Notifier) ResendQueued(ctx context.Context, max int) int {
	sent := 0
	for _, q := range n.queue.DequeueBatch(max) {
		if ctx.Err() != nil {
			n.queue.Enqueue(q)
			continue
		}
		if _, err := n.send(ctx, q.request, q.submissionID); err == nil {
			sent++
		}
	}
	return sent
}

// Queued returns the number of messages waiting for resend.
func (n *Notifier) Queued() int {
	return n.queue.Len()
}

func (n *Notifier) send(ctx context.Context, req mail.EmailRequest, id models.SubmissionID) (string, error) {
	if !n.breaker.Allow() {
		n.enqueue(ctx, req, id, ErrMailUnavailable)
		return "", ErrMailUnavailable
	}

	txID, err := n.mailer.SendEmail(ctx, req)
	if err != nil {
		if _, change := n.breaker.RecordFailure(); change.Opened {
			n.logger.WarnContext(ctx, "mail circuit opened", "breaker", n.breaker.Name())
		}
		n.enqueue(ctx, req, id, err)
		return "", err
	}
	if _, change := n.breaker.RecordSuccess(); change.Closed {
		n.logger.InfoContext(ctx, "mail circuit closed", "breaker", n.breaker.Name())
	}
	n.logger.InfoContext(ctx, "notification sent",
		"submission_id", id,
		"template", req.Template,
		"transaction_id", txID,
	)
	return txID, nil
}

func (n *Notifier) enqueue(ctx context.Context, req mail.EmailRequest, id models.SubmissionID, cause error) {
	n.metrics.IncNotificationFailed(string(req.Template))
	if dropped := n.queue.Enqueue(queuedEmail{request: req, submissionID: id}); dropped {
		n.logger.WarnContext(ctx, "resend queue full, dropped oldest notification")
	}
	n.logger.ErrorContext(ctx, "notification failed, queued for resend",
		"submission_id", id,
		"template", req.Template,
		"error", cause,
	)
}

// OutcomeEmail builds the email for a decided submission. Reviews also go
// to the district mailbox.
func OutcomeEmail(outcome Outcome, sub *models.Submission, clientNumber legacymodels.ClientNumber) mail.EmailRequest {
	var recipients []string
	if c, ok := sub.PrimaryContact(); ok {
		recipients = append(recipients, c.Email)
	}

	req := mail.EmailRequest{
		Variables: map[string]any{
			"district":      sub.District.Code,
			"districtName":  sub.District.Name,
			"submissionId":  sub.ID,
			"applicantName": sub.ApplicantName(),
			"clientNumber":  string(clientNumber),
			"interval":      "",
		},
	}
	switch outcome {
	case OutcomeApprove:
		req.Template = mail.TemplateApproval
		req.Subject = fmt.Sprintf("%s has been approved for a client number", sub.Business.LegalName)
	case OutcomeReject:
		req.Template = mail.TemplateRejection
		req.Subject = fmt.Sprintf("%s could not be approved for a client number", sub.Business.LegalName)
	default:
		req.Template = mail.TemplateMatched
		req.Subject = fmt.Sprintf("%s application requires staff review", sub.Business.LegalName)
		recipients = append(recipients, sub.District.Email)
	}
	req.Recipients = recipients
	return req
}
