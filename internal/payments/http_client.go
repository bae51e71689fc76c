package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type chargeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *HTTPClient) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "encode charge")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "build charge request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Idempotency-Key", req.PurchaseID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return ChargeResult{}, errors.Wrap(err, "charge request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return ChargeResult{}, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	var decoded chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ChargeResult{}, errors.Wrap(err, "decode charge response")
	}
	status := Status(decoded.Status)
	switch status {
	case StatusApproved, StatusDeclined, StatusPending:
	default:
		return ChargeResult{}, fmt.Errorf("payment provider returned unknown status %q", decoded.Status)
	}
	return ChargeResult{Reference: decoded.ID, Status: status}, nil
}
