package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docroute/docroute/internal/classify"
	"github.com/docroute/docroute/internal/document"
	"github.com/docroute/docroute/internal/pipeline"
	"github.com/docroute/docroute/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *fakeDispatcher, *memThreads) {
	t.Helper()
	d := &fakeDispatcher{out: invoiceOutcome()}
	threads := newMemThreads()
	return MCPDeps{Dispatcher: d, Threads: threads, Version: "test"}, d, threads
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "no content in result")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_ProcessDocument(t *testing.T) {
	deps, d, _ := newTestMCPDeps(t)
	handler := mcpProcessDocument(deps)

	result, err := handler(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"content":   `{"invoice_number":"INV-1"}`,
		"thread_id": "t7",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, toolText(t, result))

	assert.Equal(t, "t7", d.threadID)
	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &report))
	assert.Equal(t, "t7", report.ThreadID)
	assert.Equal(t, document.IntentInvoice, report.Classification.Intent)
	assert.Len(t, result.Content, 1)
}

func TestMCPTool_ProcessDocument_GeneratesThreadID(t *testing.T) {
	deps, d, _ := newTestMCPDeps(t)

	result, err := mcpProcessDocument(deps)(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"content": "hello",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Empty(t, d.threadID, "thread id generation is left to the dispatcher")
	assert.Contains(t, toolText(t, result), `"thread_id":"t-generated"`)
}

func TestMCPTool_ProcessDocument_LowConfidence(t *testing.T) {
	deps, d, _ := newTestMCPDeps(t)
	d.out.LowConfidence = true

	result, err := mcpProcessDocument(deps)(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"content": "???",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 2)
	note, ok := result.Content[1].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, note.Text, "manual review")
}

func TestMCPTool_ProcessDocument_Errors(t *testing.T) {
	deps, d, _ := newTestMCPDeps(t)
	handler := mcpProcessDocument(deps)

	result, err := handler(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "content is required", toolText(t, result))

	d.err = errors.Mark(errors.New("model down"), classify.ErrClassificationFailed)
	result, err = handler(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
		"content": "x",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "model down")
}

func TestMCPTool_GetThread(t *testing.T) {
	deps, _, threads := newTestMCPDeps(t)
	threads.fields["t1"] = map[string]any{"intent": "rfq"}
	handler := mcpGetThread(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_thread", map[string]interface{}{"thread_id": "t1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.JSONEq(t, `{"intent":"rfq"}`, toolText(t, result))

	result, err = handler(context.Background(), makeCallToolRequest("get_thread", map[string]interface{}{"thread_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "not found")

	result, err = handler(context.Background(), makeCallToolRequest("get_thread", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPTool_GetThreadLogs(t *testing.T) {
	deps, _, threads := newTestMCPDeps(t)
	threads.logs["t1"] = []storage.LogEntry{
		{EventType: "classified", Timestamp: "2025-05-30T09:00:00Z", Metadata: map[string]any{}},
		{EventType: "persisted", Timestamp: "2025-05-30T09:00:01Z", Metadata: map[string]any{}},
	}

	result, err := mcpGetThreadLogs(deps)(context.Background(), makeCallToolRequest("get_thread_logs", map[string]interface{}{"thread_id": "t1"}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var logs []storage.LogEntry
	require.NoError(t, json.Unmarshal([]byte(toolText(t, result)), &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, "classified", logs[0].EventType)
	assert.Equal(t, "persisted", logs[1].EventType)

	result, err = mcpGetThreadLogs(deps)(context.Background(), makeCallToolRequest("get_thread_logs", map[string]interface{}{"thread_id": "empty"}))
	require.NoError(t, err)
	assert.Equal(t, "[]", toolText(t, result))
}

func TestMCPTool_ClearThread(t *testing.T) {
	deps, _, threads := newTestMCPDeps(t)
	threads.fields["t1"] = map[string]any{"intent": "rfq"}

	result, err := mcpClearThread(deps)(context.Background(), makeCallToolRequest("clear_thread", map[string]interface{}{"thread_id": "t1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Cleared thread t1", toolText(t, result))
	assert.Empty(t, threads.GetAll(context.Background(), "t1"))
}

func TestMCPResource_Routing(t *testing.T) {
	contents, err := mcpResourceRouting()(context.Background(), makeReadResourceRequest("docroute://routing"))
	require.NoError(t, err)
	require.Len(t, contents, 1)

	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "application/json", tc.MIMEType)
	assert.JSONEq(t, `{
		"formats": ["pdf","json","email"],
		"intents": ["invoice","rfq","complaint","regulation","other"],
		"confidence_threshold": 0.7
	}`, tc.Text)
}

func TestMCPResource_Thread(t *testing.T) {
	deps, _, threads := newTestMCPDeps(t)
	threads.fields["abc"] = map[string]any{"urgency": "high"}
	handler := mcpResourceThread(deps)

	contents, err := handler(context.Background(), makeReadResourceRequest("thread://abc"))
	require.NoError(t, err)
	require.Len(t, contents, 1)
	tc, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, "thread://abc", tc.URI)
	assert.JSONEq(t, `{"urgency":"high"}`, tc.Text)

	_, err = handler(context.Background(), makeReadResourceRequest("other://abc"))
	assert.Error(t, err)
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, _, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps)
	require.NotNil(t, s)
	handler := mcpProcessDocument(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("process_document", map[string]interface{}{
				"content":   fmt.Sprintf("doc %d", i),
				"thread_id": fmt.Sprintf("t%d", i),
			}))
			if err != nil {
				errs <- err
				return
			}
			if result.IsError {
				errs <- fmt.Errorf("call %d: tool error", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
