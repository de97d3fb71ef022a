package narrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Pathwise-Labs/Elicit/internal/vignette"
)

// Narration is the presentation layer for one vignette: conversational text
// produced outside this service from the structured trade-off.
type Narration struct {
	VignetteID   string            `json:"vignette_id"`
	ScenarioText string            `json:"scenario_text"`
	OptionTexts  map[string]string `json:"option_texts"`
}

type Client interface {
	Personalize(ctx context.Context, v *vignette.Vignette, user vignette.UserContext) (*Narration, error)
}

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type narrationRequest struct {
	VignetteID   string            `json:"vignette_id"`
	ScenarioText string            `json:"scenario_text,omitempty"`
	Options      []narrationOption `json:"options"`
	User         narrationUser     `json:"user"`
}

type narrationOption struct {
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

type narrationUser struct {
	Occupation string `json:"occupation,omitempty"`
	Region     string `json:"region,omitempty"`
	Language   string `json:"language,omitempty"`
}

func (c *HTTPClient) Personalize(ctx context.Context, v *vignette.Vignette, user vignette.UserContext) (*Narration, error) {
	reqBody := narrationRequest{
		VignetteID:   v.ID,
		ScenarioText: v.ScenarioText,
		User: narrationUser{
			Occupation: user.Occupation,
			Region:     user.Region,
			Language:   user.Language,
		},
	}
	for _, opt := range v.Options {
		reqBody.Options = append(reqBody.Options, narrationOption{
			ID:         opt.ID,
			Attributes: opt.Attributes,
		})
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/narrations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("narrator: %d %s", resp.StatusCode, string(body))
	}

	var n Narration
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
