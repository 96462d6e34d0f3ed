package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"forestclient/internal/platform/config"
	dErrors "forestclient/pkg/domain-errors"
	"forestclient/pkg/email"
	"forestclient/pkg/platform/sentinel"
)

// CHESClient posts rendered messages to CHES.
type CHESClient struct {
	baseURL    string
	token      string
	from       string
	httpClient *http.Client
}

func NewCHESClient(cfg config.Mail) *CHESClient {
	return &CHESClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		from:       cfg.From,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type chesMessage struct {
	BodyType string   `json:"bodyType"`
	Body     string   `json:"body"`
	From     string   `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Priority string   `json:"priority"`
	Tag      string   `json:"tag,omitempty"`
}

type chesResponse struct {
	TxID string `json:"txId"`
}

// SendEmail renders and sends req, returning the CHES transaction id.
func (c *CHESClient) SendEmail(ctx context.Context, req EmailRequest) (string, error) {
	to := email.Recipients(req.Recipients...)
	if len(to) == 0 {
		return "", dErrors.New(dErrors.CodeBadRequest, "no valid recipients")
	}
	body, err := Render(req.Template, req.Variables)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "render email")
	}

	msg := chesMessage{
		BodyType: "html",
		Body:     body,
		From:     c.from,
		To:       to,
		Subject:  req.Subject,
		Priority: "normal",
	}
	if req.CorrelationID != nil {
		msg.Tag = *req.CorrelationID
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode email: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build email request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send email: %w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("send email: ches returned %d: %w", resp.StatusCode, sentinel.ErrUnavailable)
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("ches returned %d: %s", resp.StatusCode, detail))
	}

	var out chesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ches response: %w", err)
	}
	return out.TxID, nil
}
