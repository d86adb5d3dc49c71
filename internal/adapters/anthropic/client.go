// Package anthropic implements the external batch service against the
// Anthropic message batches API.
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/promptops/batchrelay/config"
	"github.com/promptops/batchrelay/internal/domain/model"
	apperrors "github.com/promptops/batchrelay/internal/errors"
)

// resultMaxLineBytes bounds a single line of the results stream. Responses
// carry full model output, so the cap is generous.
const resultMaxLineBytes = 32 * 1024 * 1024

type batchRequest struct {
	CustomID string        `json:"custom_id"`
	Params   messageParams `json:"params"`
}

type messageParams struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Messages    []model.Message `json:"messages"`
}

type createBatchBody struct {
	Requests []batchRequest `json:"requests"`
}

type batchEnvelope struct {
	ID               string `json:"id"`
	ProcessingStatus string `json:"processing_status"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiMessage struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      apiUsage       `json:"usage"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type resultBody struct {
	Type    string      `json:"type"`
	Message *apiMessage `json:"message"`
	Error   *apiError   `json:"error"`
}

type resultLine struct {
	CustomID string     `json:"custom_id"`
	Result   resultBody `json:"result"`
}

// Client talks to the message batches endpoints. It implements
// core.BatchService.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Client from API configuration. Panics on a nil logger.
func New(cfg config.APIConfig, logger *slog.Logger) *Client {
	if logger == nil {
		panic("anthropic: nil logger")
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", cfg.Version)

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60, 1)
	}
	return &Client{http: httpClient, limiter: limiter, logger: logger, now: time.Now}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// Submit creates one message batch from the given items and returns the
// service-assigned handle.
func (c *Client) Submit(ctx context.Context, items []model.WorkItem) (string, model.BatchStatus, error) {
	if err := c.wait(ctx); err != nil {
		return "", model.StatusNotSubmitted, apperrors.Submission("rate limiter interrupted", err)
	}

	body := createBatchBody{Requests: make([]batchRequest, 0, len(items))}
	for _, item := range items {
		body.Requests = append(body.Requests, batchRequest{
			CustomID: item.Key,
			Params: messageParams{
				Model:       item.Payload.Model,
				MaxTokens:   item.Payload.EffectiveMaxOutputItems(),
				Temperature: item.Payload.EffectiveTemperature(),
				Messages:    item.Payload.FlattenSystem(),
			},
		})
	}

	var envelope batchEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&envelope).
		Post("/v1/messages/batches")
	if err != nil {
		return "", model.StatusNotSubmitted, apperrors.Submission("batch create request failed", err)
	}
	if resp.IsError() {
		return "", model.StatusNotSubmitted, apperrors.Submission(
			fmt.Sprintf("batch create returned %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	if envelope.ID == "" {
		return "", model.StatusNotSubmitted, apperrors.Submission("batch create response has no id", nil)
	}

	c.logger.DebugContext(ctx, "batch created",
		"handle", envelope.ID, "requests", len(body.Requests), "processing_status", envelope.ProcessingStatus)
	return envelope.ID, statusFrom(envelope.ProcessingStatus, model.StatusSubmitted), nil
}

// Poll fetches the batch's current processing status.
func (c *Client) Poll(ctx context.Context, handle string) (model.BatchStatus, error) {
	if err := c.wait(ctx); err != nil {
		return model.StatusNotSubmitted, apperrors.Service("rate limiter interrupted", err)
	}

	var envelope batchEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&envelope).
		SetPathParam("handle", handle).
		Get("/v1/messages/batches/{handle}")
	if err != nil {
		return model.StatusNotSubmitted, apperrors.Service("batch status request failed", err)
	}
	if resp.IsError() {
		return model.StatusNotSubmitted, apperrors.Service(
			fmt.Sprintf("batch status returned %d: %s", resp.StatusCode(), resp.String()), nil)
	}
	return statusFrom(envelope.ProcessingStatus, model.StatusProcessing), nil
}

// Retrieve streams the per-item results of an ended batch.
func (c *Client) Retrieve(ctx context.Context, handle string) ([]model.ItemResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, apperrors.Service("rate limiter interrupted", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetPathParam("handle", handle).
		Get("/v1/messages/batches/{handle}/results")
	if err != nil {
		return nil, apperrors.Service("batch results request failed", err)
	}
	raw := resp.RawBody()
	defer raw.Close()
	if resp.IsError() {
		return nil, apperrors.Service(
			fmt.Sprintf("batch results returned %d", resp.StatusCode()), nil)
	}

	var results []model.ItemResult
	scanner := bufio.NewScanner(raw)
	scanner.Buffer(make([]byte, 64*1024), resultMaxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry resultLine
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, apperrors.Service("malformed result line", err)
		}
		results = append(results, c.mapResult(entry))
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.Service("reading batch results", err)
	}
	return results, nil
}

func (c *Client) mapResult(entry resultLine) model.ItemResult {
	if entry.Result.Type == "succeeded" && entry.Result.Message != nil {
		msg := entry.Result.Message
		return model.ItemResult{
			Key: entry.CustomID,
			Response: &model.ResponseBody{
				ID:      msg.ID,
				Model:   msg.Model,
				Created: c.now().Unix(),
				Choices: []model.Choice{{
					Index: 0,
					Message: model.ChoiceMessage{
						Role:    msg.Role,
						Content: joinText(msg.Content),
					},
					FinishReason: msg.StopReason,
				}},
				Usage: model.Usage{
					InputUnits:  msg.Usage.InputTokens,
					OutputUnits: msg.Usage.OutputTokens,
					TotalUnits:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
				},
			},
		}
	}

	detail := &model.ErrorDetail{
		StatusCode: http.StatusInternalServerError,
		Type:       entry.Result.Type,
		Timestamp:  c.now().UTC().Format(time.RFC3339),
	}
	if entry.Result.Error != nil {
		detail.Message = entry.Result.Error.Message
		if entry.Result.Error.Type != "" {
			detail.Type = entry.Result.Error.Type
		}
	}
	return model.ItemResult{Key: entry.CustomID, Error: detail}
}

func joinText(blocks []contentBlock) string {
	out := ""
	for _, b := range blocks {
		if b.Type != "" && b.Type != "text" {
			continue
		}
		out += b.Text
	}
	return out
}

func statusFrom(processing string, fallback model.BatchStatus) model.BatchStatus {
	if processing == "ended" {
		return model.StatusEnded
	}
	return fallback
}
