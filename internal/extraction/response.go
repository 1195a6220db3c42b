// Package extraction is the boundary to the external document-extraction
// service. It decodes and validates its responses and turns them into
// formula records.
package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"

	"formulary/internal/formulastore"
)

var (
	ErrExtractionFailed = errors.New("extraction failed")
	ErrInvalidResponse  = errors.New("invalid extraction response")
)

// Response statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

// Response is the service's reply to an upload.
type Response struct {
	Message          string                 `json:"message"`
	Formulas         []formulastore.Formula `json:"formulas"`
	Status           string                 `json:"status"`
	FileType         string                 `json:"file_type,omitempty"`
	ExtractionMethod string                 `json:"extraction_method,omitempty"`
	TotalFormulas    *int                   `json:"total_formulas,omitempty"`
	VariantsDetected []string               `json:"variants_detected,omitempty"`
	InputVariables   map[string]string      `json:"input_variables,omitempty"`
	OutputVariables  []string               `json:"output_variables,omitempty"`
	APIKeyConfigured *bool                  `json:"api_key_configured,omitempty"`
	RawOutput        string                 `json:"raw_output,omitempty"`
}

var knownFields = map[string]bool{
	"message":            true,
	"formulas":           true,
	"status":             true,
	"file_type":          true,
	"extraction_method":  true,
	"total_formulas":     true,
	"variants_detected":  true,
	"input_variables":    true,
	"output_variables":   true,
	"api_key_configured": true,
	"raw_output":         true,
}

// ResponseError describes why a response was rejected.
type ResponseError struct {
	Problems []string
}

func (e *ResponseError) Error() string {
	return ErrInvalidResponse.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ResponseError) Unwrap() error { return ErrInvalidResponse }

// DecodeResponse reads and validates a response body. Unknown top-level
// fields, a missing or unknown status, and invalid records are rejected.
func DecodeResponse(r io.Reader) (*Response, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read extraction response: %w", err)
	}
	return ParseResponse(data)
}

// ParseResponse validates an in-memory response body.
func ParseResponse(data []byte) (*Response, error) {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return nil, &ResponseError{Problems: []string{"parse: " + err.Error()}}
	}

	var problems []string
	var extra []string
	for field := range rawMap {
		if !knownFields[field] {
			extra = append(extra, field)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		problems = append(problems, fmt.Sprintf("unknown fields: %s", strings.Join(extra, ", ")))
	}
	_, hasStatus := rawMap["status"]
	if !hasStatus {
		problems = append(problems, "missing required field: status")
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &ResponseError{Problems: append(problems, "decode: "+err.Error())}
	}

	switch resp.Status {
	case StatusSuccess, StatusWarning, StatusError:
	default:
		if !hasStatus {
			break
		}
		problems = append(problems, fmt.Sprintf("status must be success, warning or error, got %q", resp.Status))
	}
	for i := range resp.Formulas {
		if strings.TrimSpace(resp.Formulas[i].ID) == "" {
			resp.Formulas[i].ID = NewID()
		}
	}
	if resp.Status != StatusError {
		if err := formulastore.ValidateAll(resp.Formulas); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if resp.TotalFormulas != nil && *resp.TotalFormulas < 0 {
		problems = append(problems, "total_formulas must be >= 0")
	}

	if len(problems) > 0 {
		return nil, &ResponseError{Problems: problems}
	}
	if resp.Formulas == nil {
		resp.Formulas = []formulastore.Formula{}
	}
	return &resp, nil
}

// Err returns ErrExtractionFailed carrying the service message when the
// status is error, and nil otherwise.
func (r *Response) Err() error {
	if r.Status != StatusError {
		return nil
	}
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return ErrExtractionFailed
	}
	return fmt.Errorf("%w: %s", ErrExtractionFailed, msg)
}

// NewID returns an id for a record that arrived without one.
func NewID() string {
	return "extracted-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
