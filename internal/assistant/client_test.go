package assistant_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocknotes/internal/assistant"
	"blocknotes/internal/domain"
)

func TestClient_ProposeParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"stop_reason": "tool_use",
			"content": [
				{"type": "text", "text": "Sure."},
				{"type": "tool_use", "id": "t1", "name": "insert_blocks",
				 "input": {"blocks": [{"type": "paragraph", "content": {"text": "hello"}}]}},
				{"type": "tool_use", "id": "t2", "name": "delete_block", "input": {"blockId": "b-1"}}
			]
		}`))
	}))
	defer srv.Close()

	c := assistant.NewClient(assistant.Config{Endpoint: srv.URL, APIKey: "secret", Model: "test-model"})
	actions, err := c.Propose(context.Background(), assistant.Request{PageID: "p", Instruction: "add hello"})
	require.NoError(t, err)
	require.Len(t, actions, 2)

	assert.Equal(t, assistant.ActionInsertBlocks, actions[0].Type)
	require.Len(t, actions[0].Blocks, 1)
	assert.Equal(t, domain.BlockTypeParagraph, actions[0].Blocks[0].Type)
	assert.JSONEq(t, `{"text": "hello"}`, string(actions[0].Blocks[0].Content))

	assert.Equal(t, assistant.ActionDeleteBlock, actions[1].Type)
	assert.Equal(t, "b-1", actions[1].BlockID)
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := assistant.NewClient(assistant.Config{Endpoint: srv.URL})
	_, err := c.Propose(context.Background(), assistant.Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
