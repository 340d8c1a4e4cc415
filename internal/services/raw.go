package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/studio/internal/shared"
)

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to the specified path and returns the raw response, whatever its status.
func (s *StudioService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := s.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return s.send(req)
}

// Post performs a POST request with the given JSON document and returns the raw response, whatever its status.
func (s *StudioService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	var payload any
	if len(data) > 0 {
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: body is not valid JSON", shared.ErrInvalidInput)
		}
		payload = json.RawMessage(data)
	}

	req, err := s.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	return s.send(req)
}

func (s *StudioService) send(req *http.Request) (*APIResponse, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
