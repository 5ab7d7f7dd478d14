// Package client talks to the TrainSmart server on behalf of a client
// application: it implements the session provider and the profile record
// store over the HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/apperr"
)

type API struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (a *API) BaseURL() string {
	return a.baseURL
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// do sends body as JSON and decodes a 2xx response into out. Failures are
// mapped onto the apperr taxonomy by status code; anything that never got a
// response is a transport error.
func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %w", apperr.ErrTimeout, method, path, err)
		}
		return apperr.Transport(fmt.Errorf("%s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Transport(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var parsed errorBody
	_ = json.Unmarshal(raw, &parsed)
	message := parsed.Error
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	return statusError(resp.StatusCode, fmt.Sprintf("%s %s: status %d: %s", method, path, resp.StatusCode, message))
}

func statusError(status int, message string) error {
	switch {
	case status == http.StatusBadRequest:
		return apperr.Wrap(apperr.ErrInvalidInput, message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.Wrap(apperr.ErrUnauthorized, message)
	case status == http.StatusNotFound:
		return apperr.Wrap(apperr.ErrNotFound, message)
	case status == http.StatusConflict:
		return apperr.Wrap(apperr.ErrConflict, message)
	case status == http.StatusGatewayTimeout:
		return apperr.Wrap(apperr.ErrTimeout, message)
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return apperr.Transport(errors.New(message))
	default:
		return errors.New(message)
	}
}
