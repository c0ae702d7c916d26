// Package api is the HTTP client for the OCR service and the output
// helpers for CLI commands.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/avast/retry-go/v4"
)

// retryAttempts bounds transient-failure retries on upload and
// metadata calls. The event stream itself is never retried.
const retryAttempts = 3

// Client is an HTTP client for the OCR service API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client. The timeout covers upload and
// metadata calls; the event stream uses a separate untimed client so a
// long job is not cut off mid-stream.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UploadResponse is the server's response to a successful upload. The
// server may assign a different filename than the one sent (duplicate
// names get a suffix); all subsequent calls must use the returned name.
type UploadResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
}

// Upload sends the PDF at path to the service. Transient failures are
// retried a bounded number of times; HTTP 4xx responses fail fast.
func (c *Client) Upload(ctx context.Context, path string) (*UploadResponse, error) {
	var result UploadResponse
	err := retry.Do(
		func() error {
			return c.upload(ctx, path, &result)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(1*time.Second),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) upload(ctx context.Context, path string, result *UploadResponse) error {
	f, err := os.Open(path)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("failed to open %s: %w", path, err))
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp, result)
}

// PdfInfoResponse is the page metadata for an uploaded PDF.
type PdfInfoResponse struct {
	Filename   string `json:"filename"`
	TotalPages int    `json:"total_pages"`
}

// PdfInfo fetches page metadata for a previously uploaded file.
func (c *Client) PdfInfo(ctx context.Context, filename string) (*PdfInfoResponse, error) {
	var result PdfInfoResponse
	err := retry.Do(
		func() error {
			return c.get(ctx, "/api/pdfinfo?filename="+url.QueryEscape(filename), &result)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(1*time.Second),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return handleResponse(resp, result)
}

// StartOCRStream kicks off OCR for an uploaded file and returns the raw
// event stream. The caller owns the returned body and must close it.
// There is no timeout on the stream: a stalled job keeps the connection
// open until the transport errors or completes.
func (c *Client) StartOCRStream(ctx context.Context, filename string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]string{"filename": filename})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ocr", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open for the life of the job.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, serverError(resp.StatusCode, body)
	}

	return resp.Body, nil
}

func handleResponse(resp *http.Response, result any) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		err := serverError(resp.StatusCode, body)
		if resp.StatusCode < 500 {
			return retry.Unrecoverable(err)
		}
		return err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// ErrorResponse matches the server's error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func serverError(status int, body []byte) error {
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if errResp.Details != "" {
			return fmt.Errorf("server error (%d): %s: %s", status, errResp.Error, errResp.Details)
		}
		return fmt.Errorf("server error (%d): %s", status, errResp.Error)
	}
	return fmt.Errorf("server error (%d): %s", status, string(body))
}

// isRetryable treats everything except explicitly unrecoverable errors
// (4xx responses, local file problems) as transient.
func isRetryable(err error) bool {
	return retry.IsRecoverable(err)
}
