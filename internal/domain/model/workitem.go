// Package model defines the core data types shared across the batchrelay pipeline.
package model

import (
	"errors"
	"strings"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role/content pair inside a request payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestPayload is the opaque request body carried by a work item: the model
// to invoke, the ordered message list, and optional sampling parameters.
type RequestPayload struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    *float64  `json:"temperature,omitempty"`
	MaxOutputItems *int      `json:"max_output_items,omitempty"`
}

// Defaults applied when a payload omits sampling parameters.
const (
	DefaultTemperature    = 1.0
	DefaultMaxOutputItems = 4096
)

// EffectiveTemperature returns the payload temperature or the default.
func (p *RequestPayload) EffectiveTemperature() float64 {
	if p.Temperature != nil {
		return *p.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxOutputItems returns the payload output cap or the default.
func (p *RequestPayload) EffectiveMaxOutputItems() int {
	if p.MaxOutputItems != nil && *p.MaxOutputItems > 0 {
		return *p.MaxOutputItems
	}
	return DefaultMaxOutputItems
}

// FlattenSystem folds any system messages into a single prompt prefixed onto
// the first non-system message. The batch API takes only user/assistant turns,
// so system content rides along at the head of the conversation. The receiver
// is not modified.
func (p *RequestPayload) FlattenSystem() []Message {
	var systemParts []string
	rest := make([]Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		if m.Role == RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	if len(systemParts) == 0 {
		return rest
	}
	system := strings.Join(systemParts, " ")
	if len(rest) == 0 {
		return []Message{{Role: RoleUser, Content: system}}
	}
	out := make([]Message, len(rest))
	copy(out, rest)
	out[0].Content = system + "\n\n" + out[0].Content
	return out
}

// WorkItem is one unit of input work: a unique key plus its request payload.
// Keys are unique within a work queue and item order is significant.
type WorkItem struct {
	Key     string         `json:"key"`
	Payload RequestPayload `json:"payload"`
}

// Validate checks that a decoded work item carries everything needed to build
// a batch request.
func (w *WorkItem) Validate() error {
	if w.Key == "" {
		return errors.New("key is required")
	}
	if w.Payload.Model == "" {
		return errors.New("payload model is required")
	}
	if len(w.Payload.Messages) == 0 {
		return errors.New("payload messages are required")
	}
	for _, m := range w.Payload.Messages {
		if m.Role == "" {
			return errors.New("message role is required")
		}
	}
	return nil
}
