package fetcher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AcquisitionError is returned when the source answers a page request with a
// non-success status. Rows gathered before the failure are discarded.
type AcquisitionError struct {
	Status  int
	Offset  int
	Message string
}

func (e *AcquisitionError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("rate source error (%d) at offset %d: %s", e.Status, e.Offset, e.Message)
	}
	return fmt.Sprintf("rate source error (%d) at offset %d", e.Status, e.Offset)
}

// DataShapeError reports a record with a missing or malformed field.
type DataShapeError struct {
	Index int
	Field string
	Value string
	Err   error
}

func (e *DataShapeError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("record %d: field %q: %v", e.Index, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: field %q value %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *DataShapeError) Unwrap() error {
	return e.Err
}

const maxErrorBody = 256

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

func parseHTTPError(status, offset int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return &AcquisitionError{Status: status, Offset: offset, Message: apiErr.Message}
		}
		if apiErr.Code != "" {
			return &AcquisitionError{Status: status, Offset: offset, Message: apiErr.Code}
		}
	}
	msg := strings.TrimSpace(string(payload))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody] + "..."
	}
	return &AcquisitionError{Status: status, Offset: offset, Message: msg}
}
