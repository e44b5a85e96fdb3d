package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/support-agent/pkg/tools"
	"github.com/mikeboe/support-agent/pkg/vectorstore"
)

const systemPrompt = `You are a technical support assistant for Nebius AI Studio.

Answer the user's question using the provided context (retrieved documentation and search results). Be accurate, concise, and helpful. If the context does not cover the question, say so instead of guessing.

Tool policy:
- Only answer questions about Nebius AI Studio. For unrelated requests, decline politely and never invoke any tool.
- Call web_search only when the retrieved context is insufficient for the question. When you call it, pass num_results equal to the web_search_limit from the telemetry line.
- Call create_ticket when the user reports a bug, asks for a feature, or explicitly asks to open a ticket. Collect a name and description first; ask the user for anything that is missing.
- Call create_booking_link only when the user asks to schedule a call with the support team.
- If the user remains unsatisfied after you asked for more detail, offer to create a ticket, and a booking link after that.

Never invent URLs, model names, or pricing. Prefer documentation sources over general web results.`

const fallbackAnswer = "I wasn't able to complete a response for this request. Please try rephrasing, or ask me to create a support ticket."

const (
	contextTopN        = 3
	contextPreviewSize = 200
)

// Request carries one question plus the retrieval context gathered for it.
type Request struct {
	Query              string
	Context            []tools.SearchResult
	RetrievedDocs      []vectorstore.RetrievalHit
	AvgVectorRelevance float64
	MinVectorRelevance *float64
	WebSearchLimit     int
	UserEmail          string
	Session            *Session
}

// Result is the outcome of one loop run.
type Result struct {
	Content            string
	ToolsUsed          []string
	ToolCallsMade      bool
	SearchResultsCount int
	WebSources         []tools.WebSource
	GenerationTime     float64
}

// Loop drives the tool-calling conversation with the model. Each run is a
// bounded sequence of model invocations; tool calls requested in one turn are
// dispatched concurrently and their results fed back before the next turn.
type Loop struct {
	model           llms.Model
	registry        *tools.Registry
	maxRounds       int
	defaultMinScore float64
	defaultWebLimit int
	logger          *slog.Logger
}

func NewLoop(model llms.Model, registry *tools.Registry, maxRounds int, defaultMinScore float64, defaultWebLimit int, logger *slog.Logger) *Loop {
	if maxRounds <= 0 {
		maxRounds = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		model:           model,
		registry:        registry,
		maxRounds:       maxRounds,
		defaultMinScore: defaultMinScore,
		defaultWebLimit: defaultWebLimit,
		logger:          logger,
	}
}

// Generate runs the loop to completion and returns the final textual answer.
func (l *Loop) Generate(ctx context.Context, req Request) (*Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}

	threshold := l.defaultMinScore
	if req.MinVectorRelevance != nil {
		threshold = *req.MinVectorRelevance
	}
	webLimit := req.WebSearchLimit
	if webLimit <= 0 {
		webLimit = l.defaultWebLimit
	}

	msgs := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt)}
	if req.Session != nil {
		msgs = append(msgs, req.Session.History()...)
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, l.userPrompt(req, threshold, webLimit)))

	start := time.Now()
	res := &Result{}

	for round := 0; ; round++ {
		var opts []llms.CallOption
		if round < l.maxRounds {
			opts = append(opts, llms.WithTools(l.registry.Definitions()))
		} else {
			l.logger.Warn("Tool round limit reached, forcing final answer", "rounds", round)
		}

		resp, err := l.model.GenerateContent(ctx, msgs, opts...)
		if err != nil {
			return nil, fmt.Errorf("llm generation failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("llm returned no choices")
		}
		choice := resp.Choices[0]

		if len(choice.ToolCalls) == 0 || round >= l.maxRounds {
			content := choice.Content
			if strings.TrimSpace(content) == "" {
				content = fallbackAnswer
			}
			res.Content = content
			res.GenerationTime = time.Since(start).Seconds()
			if req.Session != nil {
				req.Session.Append(req.Query, content)
			}
			return res, nil
		}

		msgs = append(msgs, assistantTurn(choice))
		msgs = append(msgs, l.dispatch(ctx, choice.ToolCalls, res)...)
	}
}

func (l *Loop) userPrompt(req Request, threshold float64, webLimit int) string {
	var directive string
	if req.AvgVectorRelevance >= threshold {
		directive = fmt.Sprintf("The retrieved context is sufficient (%.3f >= %.3f); do NOT call web_search.", req.AvgVectorRelevance, threshold)
	} else {
		directive = fmt.Sprintf("The retrieved context is weak (%.3f < %.3f); you may call web_search with num_results=%d if the context does not answer the question.", req.AvgVectorRelevance, threshold, webLimit)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", req.Query)
	b.WriteString("Context:\n")
	b.WriteString(l.renderContext(req))
	fmt.Fprintf(&b, "\nTelemetry: avg_vector_relevance=%.3f, min_vector_relevance_threshold=%.3f, web_search_limit=%d\n", req.AvgVectorRelevance, threshold, webLimit)
	if req.UserEmail != "" {
		fmt.Fprintf(&b, "User email: %s\n", req.UserEmail)
	}
	b.WriteString("\n")
	b.WriteString(directive)
	return b.String()
}

func (l *Loop) renderContext(req Request) string {
	var b strings.Builder
	for i, r := range req.Context {
		if i >= contextTopN {
			break
		}
		fmt.Fprintf(&b, "[search] %s (%s): %s\n", r.Title, r.URL, preview(r.Content))
	}
	for i, d := range req.RetrievedDocs {
		if i >= contextTopN {
			break
		}
		fmt.Fprintf(&b, "[doc] %s: %s\n", d.Source, preview(d.Content))
	}
	if b.Len() == 0 {
		return "(no context available)\n"
	}
	return b.String()
}

func preview(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) > contextPreviewSize {
		return string([]rune(s)[:contextPreviewSize]) + "..."
	}
	return s
}

func assistantTurn(choice *llms.ContentChoice) llms.MessageContent {
	var parts []llms.ContentPart
	if choice.Content != "" {
		parts = append(parts, llms.TextContent{Text: choice.Content})
	}
	for _, tc := range choice.ToolCalls {
		parts = append(parts, tc)
	}
	return llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts}
}

type dispatchOutcome struct {
	turn     llms.MessageContent
	toolName string
	isSearch bool
	results  []tools.SearchResult
}

// dispatch runs every tool call of one assistant turn concurrently and
// returns the tool-result turns in call order.
func (l *Loop) dispatch(ctx context.Context, calls []llms.ToolCall, res *Result) []llms.MessageContent {
	res.ToolCallsMade = true

	outcomes := make([]dispatchOutcome, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llms.ToolCall) {
			defer wg.Done()
			outcomes[i] = l.dispatchOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	turns := make([]llms.MessageContent, 0, len(outcomes))
	for _, o := range outcomes {
		turns = append(turns, o.turn)
		if o.toolName != "" {
			res.ToolsUsed = append(res.ToolsUsed, o.toolName)
		}
		if o.isSearch {
			res.SearchResultsCount += len(o.results)
			res.WebSources = append(res.WebSources, tools.Sources(o.results)...)
		}
	}
	return turns
}

func (l *Loop) dispatchOne(ctx context.Context, call llms.ToolCall) dispatchOutcome {
	name := ""
	args := ""
	if call.FunctionCall != nil {
		name = call.FunctionCall.Name
		args = call.FunctionCall.Arguments
	}

	turn := func(content string) llms.MessageContent {
		return llms.MessageContent{
			Role: llms.ChatMessageTypeTool,
			Parts: []llms.ContentPart{llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       name,
				Content:    content,
			}},
		}
	}

	tool, ok := l.registry.Lookup(name)
	if !ok {
		l.logger.Warn("Unknown tool requested", "tool", name)
		return dispatchOutcome{turn: turn(fmt.Sprintf("Tool '%s' not available.", name))}
	}

	parsed := map[string]interface{}{}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &parsed); err != nil {
			l.logger.Warn("Malformed tool arguments", "tool", name, "error", err)
			return dispatchOutcome{turn: turn(fmt.Sprintf("Tool call failed: arguments were not valid JSON (%v). Ask the user for the needed details and call the tool again with corrected arguments.", err))}
		}
	}

	result, err := tool.Invoke(ctx, parsed)
	if err != nil {
		var argErr *tools.ArgumentError
		if errors.As(err, &argErr) {
			return dispatchOutcome{turn: turn(fmt.Sprintf("Tool call failed due to missing or invalid arguments: %v. Ask the user for the missing information, then call the tool again.", argErr))}
		}
		l.logger.Error("Tool invocation failed", "tool", name, "error", err)
		return dispatchOutcome{turn: turn(fmt.Sprintf("%T: %v", err, err))}
	}

	out := dispatchOutcome{toolName: name}
	if name == tools.WebSearchToolName {
		out.isSearch = true
		out.results = tools.NormalizeSearchPayload(result)
	}

	encoded, merr := json.Marshal(result)
	if merr != nil {
		out.turn = turn(fmt.Sprintf("%v", result))
		return out
	}
	out.turn = turn(string(encoded))
	return out
}
