package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessage(t *testing.T) {
	msg := &Message{
		ID:             "m1",
		ConversationID: "conv-1",
		Role:           MessageRoleUser,
		Content:        "hello",
	}

	assert.NoError(t, ValidateMessage(msg))
}

func TestValidateMessage_Invalid(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"nil message", nil},
		{"missing conversation", &Message{Role: MessageRoleUser, Content: "hi"}},
		{"missing content", &Message{ConversationID: "c1", Role: MessageRoleUser}},
		{"bad role", &Message{ConversationID: "c1", Role: "system", Content: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateMessage(tt.msg))
		})
	}
}

func TestMessageMetadata_OmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(MessageMetadata{SenderID: "visitor-1"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"sender_id":"visitor-1"}`, string(data))
}

func TestMessageMetadata_DegradedReply(t *testing.T) {
	data, err := json.Marshal(MessageMetadata{Model: "error", Error: "upstream timeout"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"model":"error","error":"upstream timeout"}`, string(data))
}

func TestValidateAgent(t *testing.T) {
	agent := NewAgent("a1", "org-1", "Supportly", "", "en", time.Now().UTC())

	assert.NoError(t, ValidateAgent(agent))
	assert.Error(t, ValidateAgent(nil))
	assert.Error(t, ValidateAgent(&Agent{OrgID: "org-1", Name: "x"}))
	assert.Error(t, ValidateAgent(&Agent{ID: "a1", Name: "x"}))
	assert.Error(t, ValidateAgent(&Agent{ID: "a1", OrgID: "org-1"}))
}

func TestUsage_Exhausted(t *testing.T) {
	assert.False(t, (&Usage{Used: 5, Limit: 10}).Exhausted())
	assert.True(t, (&Usage{Used: 10, Limit: 10}).Exhausted())
	assert.True(t, (&Usage{Used: 11, Limit: 10}).Exhausted())
	// Limit 0 means no cap.
	assert.False(t, (&Usage{Used: 1000, Limit: 0}).Exhausted())
}

func TestQuotaExceededError_Message(t *testing.T) {
	err := &QuotaExceededError{Used: 100, Limit: 100}

	assert.Contains(t, err.Error(), "AI credit limit reached: 100/100 credits used")
	assert.Contains(t, err.Error(), ErrCodeQuotaExceeded)
}
