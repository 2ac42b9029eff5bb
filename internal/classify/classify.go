// Package classify sends captured frames to the downstream prediction service.
package classify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAnalysis is returned when the service could not produce a prediction.
var ErrAnalysis = errors.New("analysis failed")

// Condition is the reference information returned for a predicted condition.
type Condition struct {
	Name           string   `json:"name"`
	Overview       string   `json:"overview"`
	Causes         []string `json:"causes"`
	Symptoms       []string `json:"symptoms"`
	Precautions    []string `json:"precautions"`
	DoctorAdvice   string   `json:"doctor_advice"`
	Recommendation string   `json:"recommendation"`
}

// Result is the prediction for one captured image.
type Result struct {
	Disease    string    `json:"disease"`
	Confidence float64   `json:"confidence"`
	Status     string    `json:"status"`
	Data       Condition `json:"data"`
}

// Healthy reports whether the service found nothing wrong.
func (r Result) Healthy() bool {
	return r.Disease == "Normal"
}

type request struct {
	Image string `json:"image"`
}

// Client posts JPEG captures as data URLs to a prediction endpoint such as /api/predict.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Predict submits one JPEG image.
func (c *Client) Predict(ctx context.Context, jpeg []byte) (Result, error) {
	body, err := json.Marshal(request{Image: DataURL(jpeg)})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("%w: %s: %s", ErrAnalysis, resp.Status, bytes.TrimSpace(msg))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %w", ErrAnalysis, err)
	}
	return result, nil
}

// DataURL encodes a JPEG the way a browser canvas screenshot would.
func DataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
