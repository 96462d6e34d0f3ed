// Package registry talks to the BC Registry business search API. Documents are
// produced asynchronously: a request returns a document key which is then
// fetched until the registry has finished assembling it.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"forestclient/internal/platform/config"
)

const summaryDocument = "BUSINESS_SUMMARY_FILING_HISTORY"

// Client is the two-step document API of the corporate registry.
type Client interface {
	RequestDocuments(ctx context.Context, businessID string) (string, error)
	FetchDocument(ctx context.Context, businessID, requestID string) (*Document, error)
}

// HTTPClient implements Client over the BC Registry REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	accountID  string
	httpClient *http.Client
}

// NewHTTPClient builds a registry client from configuration.
func NewHTTPClient(cfg config.Registry) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		accountID:  cfg.AccountID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type documentRequest struct {
	DocumentsRequired []string `json:"documentsRequired"`
}

type documentRequestResponse struct {
	BusinessIdentifier string `json:"businessIdentifier"`
	Documents          []struct {
		DocumentKey  string `json:"documentKey"`
		DocumentType string `json:"documentType"`
	} `json:"documents"`
}

// RequestDocuments asks the registry to assemble a business summary and
// returns the key used to fetch it.
func (c *HTTPClient) RequestDocuments(ctx context.Context, businessID string) (string, error) {
	path := fmt.Sprintf("/registry-search/api/v1/businesses/%s/documents/requests", url.PathEscape(businessID))
	var resp documentRequestResponse
	status, err := c.do(ctx, http.MethodPost, path, documentRequest{DocumentsRequired: []string{summaryDocument}}, &resp)
	if err != nil {
		return "", err
	}
	if status == http.StatusAccepted && len(resp.Documents) == 0 {
		return "", ErrDocumentNotReady
	}
	for _, d := range resp.Documents {
		if d.DocumentType == summaryDocument && d.DocumentKey != "" {
			return d.DocumentKey, nil
		}
	}
	return "", newError(ErrorBadData, "document request returned no summary key", nil)
}

// FetchDocument retrieves an assembled document. It returns ErrDocumentNotReady
// while the registry is still working on it.
func (c *HTTPClient) FetchDocument(ctx context.Context, businessID, requestID string) (*Document, error) {
	path := fmt.Sprintf("/registry-search/api/v1/businesses/%s/documents/%s",
		url.PathEscape(businessID), url.PathEscape(requestID))
	var doc Document
	status, err := c.do(ctx, http.MethodGet, path, nil, &doc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusAccepted {
		return nil, ErrDocumentNotReady
	}
	return &doc, nil
}

// do sends a JSON request and decodes a 200 body into result. A 202 is
// returned to the caller without decoding.
func (c *HTTPClient) do(ctx context.Context, method, path string, payload, result any) (int, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, newError(ErrorInternal, "encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, newError(ErrorInternal, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-apikey", c.apiKey)
	if c.accountID != "" {
		req.Header.Set("Account-Id", c.accountID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, newError(ErrorTimeout, "request timed out", err)
		}
		return 0, newError(ErrorOutage, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, newError(ErrorNotFound, "business not found", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return resp.StatusCode, newError(ErrorAuthentication, fmt.Sprintf("registry returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return resp.StatusCode, newError(ErrorRateLimited, "registry rate limited", nil)
	case resp.StatusCode >= 500:
		return resp.StatusCode, newError(ErrorOutage, fmt.Sprintf("registry returned %d", resp.StatusCode), nil)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, newError(ErrorBadData, fmt.Sprintf("registry returned %d: %s", resp.StatusCode, msg), nil)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, newError(ErrorBadData, "decode response", err)
		}
	}
	return resp.StatusCode, nil
}
