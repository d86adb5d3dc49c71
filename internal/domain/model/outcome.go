package model

import "time"

// Usage reports the unit counts consumed by one completed request.
type Usage struct {
	InputUnits  int `json:"input_units"`
	OutputUnits int `json:"output_units"`
	TotalUnits  int `json:"total_units"`
}

// ChoiceMessage is the generated message inside a response choice.
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice is one completion alternative in a response body.
type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ResponseBody is the full response payload recorded for a successful item.
type ResponseBody struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Created int64    `json:"created"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Text returns the content of the first choice, or "" when absent.
func (r *ResponseBody) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// ErrorDetail is the structured error descriptor recorded for a failed item.
type ErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
}

// OutcomeRecord is one line of the outcome log: the durable record of a single
// work item's processing attempt. Exactly one of Response and Error is set.
// The log is append-only, so multiple records for the same key may exist
// across reruns; any success record for a key is terminal completion.
type OutcomeRecord struct {
	ID       *string       `json:"id"`
	Key      string        `json:"key"`
	Response *ResponseBody `json:"response"`
	Error    *ErrorDetail  `json:"error"`
}

// Succeeded reports whether the record is a success outcome.
func (r *OutcomeRecord) Succeeded() bool {
	return r.Key != "" && r.Error == nil && r.Response != nil
}

// ItemResult is one per-item result handed back by the external service when
// an ended batch is retrieved. Exactly one of Response and Error is set.
type ItemResult struct {
	Key      string
	Response *ResponseBody
	Error    *ErrorDetail
}

// Succeeded reports whether the item processed successfully.
func (r *ItemResult) Succeeded() bool {
	return r.Error == nil && r.Response != nil
}

// OutputHeader is the first line of a newly created outcome log.
type OutputHeader struct {
	Header     string    `json:"header"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	TotalItems int       `json:"total_items"`
	RunID      string    `json:"run_id,omitempty"`
}
