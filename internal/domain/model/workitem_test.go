package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkItem_Validate(t *testing.T) {
	valid := WorkItem{
		Key: "item-1",
		Payload: RequestPayload{
			Model:    "claude-3-5-sonnet",
			Messages: []Message{{Role: RoleUser, Content: "hello"}},
		},
	}

	tests := []struct {
		name    string
		mutate  func(*WorkItem)
		wantErr string
	}{
		{name: "valid", mutate: func(*WorkItem) {}},
		{
			name:    "missing key",
			mutate:  func(w *WorkItem) { w.Key = "" },
			wantErr: "key is required",
		},
		{
			name:    "missing model",
			mutate:  func(w *WorkItem) { w.Payload.Model = "" },
			wantErr: "payload model is required",
		},
		{
			name:    "no messages",
			mutate:  func(w *WorkItem) { w.Payload.Messages = nil },
			wantErr: "payload messages are required",
		},
		{
			name:    "message without role",
			mutate:  func(w *WorkItem) { w.Payload.Messages = []Message{{Content: "x"}} },
			wantErr: "message role is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := valid
			w.Payload.Messages = append([]Message(nil), valid.Payload.Messages...)
			tt.mutate(&w)
			err := w.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestRequestPayload_Defaults(t *testing.T) {
	p := RequestPayload{}
	assert.InDelta(t, DefaultTemperature, p.EffectiveTemperature(), 1e-9)
	assert.Equal(t, DefaultMaxOutputItems, p.EffectiveMaxOutputItems())

	temp := 0.2
	capOut := 128
	p = RequestPayload{Temperature: &temp, MaxOutputItems: &capOut}
	assert.InDelta(t, 0.2, p.EffectiveTemperature(), 1e-9)
	assert.Equal(t, 128, p.EffectiveMaxOutputItems())
}

func TestRequestPayload_FlattenSystem(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     []Message
	}{
		{
			name: "no system messages pass through",
			messages: []Message{
				{Role: RoleUser, Content: "question"},
				{Role: RoleAssistant, Content: "answer"},
			},
			want: []Message{
				{Role: RoleUser, Content: "question"},
				{Role: RoleAssistant, Content: "answer"},
			},
		},
		{
			name: "system prefixed onto first user message",
			messages: []Message{
				{Role: RoleSystem, Content: "be terse"},
				{Role: RoleUser, Content: "question"},
			},
			want: []Message{
				{Role: RoleUser, Content: "be terse\n\nquestion"},
			},
		},
		{
			name: "multiple system messages joined",
			messages: []Message{
				{Role: RoleSystem, Content: "rule one"},
				{Role: RoleSystem, Content: "rule two"},
				{Role: RoleUser, Content: "go"},
			},
			want: []Message{
				{Role: RoleUser, Content: "rule one rule two\n\ngo"},
			},
		},
		{
			name: "system only becomes a user message",
			messages: []Message{
				{Role: RoleSystem, Content: "just instructions"},
			},
			want: []Message{
				{Role: RoleUser, Content: "just instructions"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := RequestPayload{Model: "m", Messages: tt.messages}
			got := p.FlattenSystem()
			assert.Equal(t, tt.want, got)
			// Original payload must stay untouched.
			assert.Equal(t, tt.messages, p.Messages)
		})
	}
}

func TestWorkItem_DecodeWireFormat(t *testing.T) {
	line := `{"key":"q-1","payload":{"model":"claude-3-5-haiku","messages":[{"role":"user","content":"Rate this."}],"temperature":0.7,"max_output_items":512}}`
	var w WorkItem
	require.NoError(t, json.Unmarshal([]byte(line), &w))
	assert.Equal(t, "q-1", w.Key)
	assert.Equal(t, "claude-3-5-haiku", w.Payload.Model)
	require.NotNil(t, w.Payload.Temperature)
	assert.InDelta(t, 0.7, *w.Payload.Temperature, 1e-9)
	require.NotNil(t, w.Payload.MaxOutputItems)
	assert.Equal(t, 512, *w.Payload.MaxOutputItems)
}
