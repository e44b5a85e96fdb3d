package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/support-agent/pkg/tools"
)

// fakeModel replays scripted responses and records the prompts it saw.
type fakeModel struct {
	responses []*llms.ContentResponse
	calls     int
	prompts   []string
	toolsSeen []int
}

func (m *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	m.toolsSeen = append(m.toolsSeen, len(opts.Tools))

	var b strings.Builder
	for _, msg := range msgs {
		for _, p := range msg.Parts {
			switch part := p.(type) {
			case llms.TextContent:
				b.WriteString(part.Text)
				b.WriteString("\n")
			case llms.ToolCallResponse:
				b.WriteString(part.Content)
				b.WriteString("\n")
			}
		}
	}
	m.prompts = append(m.prompts, b.String())

	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := m.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}
}

func toolResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:   id,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		}},
	}}}
}

// fakeSearchTool stands in for web search and returns a fixed payload.
type fakeSearchTool struct {
	payload interface{}
	invoked int
}

func (t *fakeSearchTool) Name() string { return tools.WebSearchToolName }

func (t *fakeSearchTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        tools.WebSearchToolName,
			Description: "search",
			Parameters:  map[string]any{"type": "object"},
		},
	}
}

func (t *fakeSearchTool) Invoke(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	t.invoked++
	return t.payload, nil
}

// failingTool always errors on invocation.
type failingTool struct {
	name string
	err  error
}

func (t *failingTool) Name() string { return t.name }

func (t *failingTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.name,
			Description: "always fails",
			Parameters:  map[string]any{"type": "object"},
		},
	}
}

func (t *failingTool) Invoke(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return nil, t.err
}

func newTestLoop(model llms.Model, reg *tools.Registry) *Loop {
	if reg == nil {
		reg = tools.NewRegistry()
	}
	return NewLoop(model, reg, 8, 0.70, 5, nil)
}

func TestGenerateTerminatesWithoutToolCalls(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("Use the chat completions endpoint.")}}
	loop := newTestLoop(model, nil)

	res, err := loop.Generate(context.Background(), Request{Query: "How do I call the API?"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Content != "Use the chat completions endpoint." {
		t.Errorf("unexpected content: %q", res.Content)
	}
	if res.ToolCallsMade {
		t.Error("ToolCallsMade should be false when the model never requested a tool")
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("ToolsUsed should be empty, got %v", res.ToolsUsed)
	}
	if model.calls != 1 {
		t.Errorf("expected exactly one model invocation, got %d", model.calls)
	}
}

func TestGenerateRejectsEmptyQuery(t *testing.T) {
	loop := newTestLoop(&fakeModel{responses: []*llms.ContentResponse{textResponse("x")}}, nil)
	if _, err := loop.Generate(context.Background(), Request{Query: "   "}); err == nil {
		t.Fatal("expected error for blank query")
	}
}

func TestGenerateToleratesUnknownTool(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", "delete_production_db", "{}"),
		textResponse("I cannot do that, but here is what I found."),
	}}
	loop := newTestLoop(model, nil)

	res, err := loop.Generate(context.Background(), Request{Query: "help"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !res.ToolCallsMade {
		t.Error("ToolCallsMade should be true after a dispatched (failed) call")
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("unknown tool must not be recorded in ToolsUsed, got %v", res.ToolsUsed)
	}
	if res.Content == "" {
		t.Error("loop should still produce a final answer")
	}
	// The second prompt must carry the tool-result turn telling the model
	// the tool does not exist.
	if len(model.prompts) < 2 {
		t.Fatalf("expected two model invocations, got %d", model.calls)
	}
}

func TestGenerateTurnsValidationFailureIntoCorrectiveTurn(t *testing.T) {
	tool := &failingTool{
		name: "create_ticket",
		err:  &tools.ArgumentError{Tool: "create_ticket", Reason: "missing required fields: name, description"},
	}
	reg := tools.NewRegistry(tool)

	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", "create_ticket", `{"priority":"High"}`),
		textResponse("What should the ticket be called, and what happened?"),
	}}
	loop := newTestLoop(model, reg)

	res, err := loop.Generate(context.Background(), Request{Query: "open a ticket"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Content == "" {
		t.Error("loop must continue to a final answer after a validation failure")
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("failed invocation must not be recorded in ToolsUsed, got %v", res.ToolsUsed)
	}
	if !res.ToolCallsMade {
		t.Error("ToolCallsMade should be true after a dispatched (failed) call")
	}
	if len(model.prompts) < 2 {
		t.Fatalf("expected two model invocations, got %d", model.calls)
	}
	turn := model.prompts[1]
	if !strings.Contains(turn, "missing required fields: name, description") {
		t.Errorf("corrective turn missing the validation detail:\n%s", turn)
	}
	if !strings.Contains(turn, "Ask the user for the missing information") || !strings.Contains(turn, "call the tool again") {
		t.Errorf("corrective turn must tell the model to ask the user and retry:\n%s", turn)
	}
}

type upstreamError struct{ msg string }

func (e *upstreamError) Error() string { return e.msg }

func TestGenerateAbsorbsToolErrors(t *testing.T) {
	tool := &failingTool{
		name: tools.WebSearchToolName,
		err:  &upstreamError{msg: "search backend offline"},
	}
	reg := tools.NewRegistry(tool)

	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", tools.WebSearchToolName, `{"query":"pricing"}`),
		textResponse("I could not search the web, but here is what the docs say."),
	}}
	loop := newTestLoop(model, reg)

	res, err := loop.Generate(context.Background(), Request{Query: "pricing?"})
	if err != nil {
		t.Fatalf("tool failure must never fail the run: %v", err)
	}
	if res.Content == "" {
		t.Error("loop must still produce a final answer")
	}
	if len(res.ToolsUsed) != 0 {
		t.Errorf("failed invocation must not be recorded in ToolsUsed, got %v", res.ToolsUsed)
	}
	if res.SearchResultsCount != 0 || len(res.WebSources) != 0 {
		t.Errorf("failed search must not aggregate results: count=%d sources=%v", res.SearchResultsCount, res.WebSources)
	}
	turn := model.prompts[1]
	if !strings.Contains(turn, "upstreamError: search backend offline") {
		t.Errorf("tool-result turn must carry the error type and message:\n%s", turn)
	}
}

func TestGenerateAggregatesWebSources(t *testing.T) {
	search := &fakeSearchTool{payload: []map[string]interface{}{
		{"title": "Docs", "url": "https://docs.studio.nebius.com/a", "text": "alpha"},
		{"title": "Blog", "url": "https://studio.nebius.com/b", "text": "beta"},
		{"title": "no url here", "text": "gamma"},
	}}
	reg := tools.NewRegistry()
	reg.Register(search)

	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_1", tools.WebSearchToolName, `{"query":"pricing","num_results":3}`),
		textResponse("Here is the pricing page."),
	}}
	loop := newTestLoop(model, reg)

	res, err := loop.Generate(context.Background(), Request{Query: "pricing?"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if search.invoked != 1 {
		t.Fatalf("search tool invoked %d times, want 1", search.invoked)
	}
	if res.SearchResultsCount != 3 {
		t.Errorf("SearchResultsCount = %d, want 3", res.SearchResultsCount)
	}
	if len(res.WebSources) != 2 {
		t.Fatalf("WebSources = %v, want 2 entries with URLs", res.WebSources)
	}
	if res.WebSources[0].URL != "https://docs.studio.nebius.com/a" {
		t.Errorf("unexpected first source: %+v", res.WebSources[0])
	}
	if got := res.ToolsUsed; len(got) != 1 || got[0] != tools.WebSearchToolName {
		t.Errorf("ToolsUsed = %v", got)
	}
}

func TestGenerateStopsAtRoundLimit(t *testing.T) {
	search := &fakeSearchTool{payload: []map[string]interface{}{}}
	reg := tools.NewRegistry()
	reg.Register(search)

	// fakeModel keeps replaying the last scripted response, so the model
	// requests a tool call on every round it is allowed to.
	model := &fakeModel{responses: []*llms.ContentResponse{
		toolResponse("call_x", tools.WebSearchToolName, `{"query":"q"}`),
	}}
	loop := NewLoop(model, reg, 3, 0.70, 5, nil)

	res, err := loop.Generate(context.Background(), Request{Query: "loop forever"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Rounds 0..2 offer tools, round 3 must not.
	if model.calls != 4 {
		t.Errorf("model invoked %d times, want 4", model.calls)
	}
	last := model.toolsSeen[len(model.toolsSeen)-1]
	if last != 0 {
		t.Errorf("final round offered %d tool schemas, want 0", last)
	}
	if res.Content == "" {
		t.Error("final answer must be non-empty even when the model never produced text")
	}
}

func TestDirectiveReflectsRelevanceGate(t *testing.T) {
	cases := []struct {
		name string
		avg  float64
		want string
	}{
		{"sufficient", 0.9, "0.900 >= 0.700"},
		{"weak", 0.3, "0.300 < 0.700"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := &fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}}
			loop := newTestLoop(model, nil)
			_, err := loop.Generate(context.Background(), Request{Query: "q", AvgVectorRelevance: tc.avg})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if !strings.Contains(model.prompts[0], tc.want) {
				t.Errorf("prompt missing %q:\n%s", tc.want, model.prompts[0])
			}
		})
	}
}

func TestDirectiveUsesRequestThreshold(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("ok")}}
	loop := newTestLoop(model, nil)
	threshold := 0.25
	_, err := loop.Generate(context.Background(), Request{
		Query:              "q",
		AvgVectorRelevance: 0.3,
		MinVectorRelevance: &threshold,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(model.prompts[0], "0.300 >= 0.250") {
		t.Errorf("per-request threshold not applied:\n%s", model.prompts[0])
	}
}

func TestSessionHistoryThreadsIntoPrompt(t *testing.T) {
	store := NewSessionStore()
	session := store.Get("thread-1")
	if session.ID() != "thread-1" {
		t.Fatalf("session ID = %q, want thread-1", session.ID())
	}
	if store.Get("thread-1") != session {
		t.Fatal("store must return the same session for the same id")
	}

	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("first answer")}}
	loop := newTestLoop(model, nil)
	if _, err := loop.Generate(context.Background(), Request{Query: "first question", Session: session}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if session.Len() != 2 {
		t.Fatalf("session should hold one exchange (2 turns), has %d", session.Len())
	}

	model2 := &fakeModel{responses: []*llms.ContentResponse{textResponse("second answer")}}
	loop2 := newTestLoop(model2, nil)
	if _, err := loop2.Generate(context.Background(), Request{Query: "followup", Session: session}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(model2.prompts[0], "first question") || !strings.Contains(model2.prompts[0], "first answer") {
		t.Errorf("prior exchange missing from prompt:\n%s", model2.prompts[0])
	}

	store.Clear("thread-1")
	if session.Len() != 0 {
		t.Error("Clear should empty the session")
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := preview(long)
	if len(got) != contextPreviewSize+3 {
		t.Errorf("preview length = %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("preview should end with ellipsis: %q", got)
	}
	if preview("short") != "short" {
		t.Error("short strings must pass through unchanged")
	}
}

func TestPreviewKeepsRunesIntact(t *testing.T) {
	long := strings.Repeat("é", 300)
	got := preview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview produced invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("preview should end with ellipsis: %q", got)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(got, "...")); n != contextPreviewSize {
		t.Errorf("preview kept %d runes, want %d", n, contextPreviewSize)
	}
}
