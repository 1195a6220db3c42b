package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Endpoint paths on the extraction service.
const (
	PathUpload           = "/upload"
	PathGenericTerms     = "/generic-terms"
	PathSupportedFormats = "/supported-formats"
)

// ErrUnsupportedFormat is returned by CheckFormat for documents whose
// extension the service does not accept.
var ErrUnsupportedFormat = errors.New("unsupported file type")

// DefaultSupportedFormats is used when the service cannot be asked.
var DefaultSupportedFormats = []string{"pdf", "docx", "txt"}

// Client talks to the extraction service over HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// NewClient returns a client with a timeout and an optional request rate
// limit in requests per second (0 disables limiting).
func NewClient(baseURL string, timeout time.Duration, requestsPerSecond float64, logger *zap.Logger) *Client {
	c := &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Logger:     logger,
	}
	if requestsPerSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

// GenericTermsResponse is the reply of the generic-terms endpoint.
type GenericTermsResponse struct {
	GenericTerms map[string]string `json:"generic_terms"`
	Count        int               `json:"count"`
}

// SupportedFormatsResponse is the reply of the supported-formats endpoint.
type SupportedFormatsResponse struct {
	SupportedFormats []string `json:"supported_formats"`
	APIKeyConfigured bool     `json:"api_key_configured"`
	Message          string   `json:"message,omitempty"`
}

// Upload sends a document together with the registry and returns the
// validated response. A response with status error is returned alongside an
// error wrapping ErrExtractionFailed.
func (c *Client) Upload(ctx context.Context, docPath string, inputs map[string]string, outputs []string) (*Response, error) {
	body, contentType, err := buildUpload(docPath, inputs, outputs)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+PathUpload, body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	res, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resp, err := DecodeResponse(res.Body)
	if err != nil {
		if res.StatusCode >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrExtractionFailed, res.StatusCode)
		}
		return nil, err
	}
	c.logger().Info("extraction finished",
		zap.String("document", filepath.Base(docPath)),
		zap.Int("http_status", res.StatusCode),
		zap.String("status", resp.Status),
		zap.Int("formulas", len(resp.Formulas)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if err := resp.Err(); err != nil {
		return resp, err
	}
	if res.StatusCode >= 400 {
		return resp, fmt.Errorf("%w: HTTP %d: %s", ErrExtractionFailed, res.StatusCode, resp.Message)
	}
	return resp, nil
}

// GenericTerms fetches the service's suggested variable names.
func (c *Client) GenericTerms(ctx context.Context) (map[string]string, error) {
	var out GenericTermsResponse
	if err := c.getJSON(ctx, PathGenericTerms, &out); err != nil {
		return nil, err
	}
	if out.GenericTerms == nil {
		out.GenericTerms = map[string]string{}
	}
	return out.GenericTerms, nil
}

// SupportedFormats lists the document extensions the service accepts.
func (c *Client) SupportedFormats(ctx context.Context) (*SupportedFormatsResponse, error) {
	var out SupportedFormatsResponse
	if err := c.getJSON(ctx, PathSupportedFormats, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckFormat rejects a document whose extension is not in the service's
// supported formats. If the service cannot be reached the defaults apply.
func (c *Client) CheckFormat(ctx context.Context, docPath string) error {
	formats := DefaultSupportedFormats
	res, err := c.SupportedFormats(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		c.logger().Warn("supported formats unavailable, using defaults", zap.Error(err))
	case len(res.SupportedFormats) > 0:
		formats = res.SupportedFormats
	}

	ext := strings.TrimPrefix(filepath.Ext(docPath), ".")
	if ext != "" {
		for _, f := range formats {
			if strings.EqualFold(strings.TrimPrefix(f, "."), ext) {
				return nil
			}
		}
	}
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = strings.ToUpper(strings.TrimPrefix(f, "."))
	}
	return fmt.Errorf("%w. Supported formats: %s", ErrUnsupportedFormat, strings.Join(names, ", "))
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("GET %s: HTTP %d: %s", path, res.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limit: %w", err)
		}
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c.logger().Debug("extraction request", zap.String("method", req.Method), zap.String("url", req.URL.String()))
	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return res, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func buildUpload(docPath string, inputs map[string]string, outputs []string) (io.Reader, string, error) {
	f, err := os.Open(docPath)
	if err != nil {
		return nil, "", fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	if inputs == nil {
		inputs = map[string]string{}
	}
	if outputs == nil {
		outputs = []string{}
	}
	inputsJSON, err := json.Marshal(inputs)
	if err != nil {
		return nil, "", fmt.Errorf("encode input variables: %w", err)
	}
	outputsJSON, err := json.Marshal(outputs)
	if err != nil {
		return nil, "", fmt.Errorf("encode output variables: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(docPath))
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy document: %w", err)
	}
	if err := mw.WriteField("input_variables", string(inputsJSON)); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("output_variables", string(outputsJSON)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("finish upload body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
