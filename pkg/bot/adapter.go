package bot

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mikeboe/support-agent/pkg/tools"
)

// Slack message-size and rendering constraints.
const (
	maxResponseLength = 3500
	maxSources        = 5
	maxMessageBudget  = 3800
)

var (
	headerPattern = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	boldPattern   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern = regexp.MustCompile(`(^|[^*\w])\*([^*\n]+)\*`)
	fencePattern  = regexp.MustCompile("```[a-zA-Z0-9_-]*\n")
)

// backendErrorPhrases are provider error fragments that must never reach an
// end user verbatim.
var backendErrorPhrases = []string{
	"Response generation failed",
	"Error code",
	"does not exist",
}

const unavailableMessage = "The support assistant is temporarily unavailable. Please try again in a few minutes."

// FormatResponse converts model markdown into Slack-friendly text and
// truncates it to the platform message limit.
func FormatResponse(text string) string {
	out := headerPattern.ReplaceAllString(text, "")
	// Italics first: once bold collapses to single asterisks the italic
	// pattern would match them too.
	out = italicPattern.ReplaceAllString(out, "$1_$2_")
	out = boldPattern.ReplaceAllString(out, "*$1*")
	out = fencePattern.ReplaceAllString(out, "```\n")
	out = strings.TrimSpace(out)
	if utf8.RuneCountInString(out) > maxResponseLength {
		out = string([]rune(out)[:maxResponseLength]) + "... (truncated)"
	}
	return out
}

// Sanitize replaces responses that leak backend error text with a generic
// unavailable message.
func Sanitize(text string) string {
	for _, phrase := range backendErrorPhrases {
		if strings.Contains(text, phrase) {
			return unavailableMessage
		}
	}
	return text
}

// SourcesBlock renders up to maxSources web sources as a Slack link list.
// Returns "" when the block would push the message past the size budget.
func SourcesBlock(response string, sources []tools.WebSource) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n*Sources:*\n")
	for i, s := range sources {
		if i >= maxSources {
			break
		}
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = "Source"
		}
		fmt.Fprintf(&b, "• <%s|%s>\n", s.URL, title)
	}

	if len(response)+b.Len() > maxMessageBudget {
		return ""
	}
	return b.String()
}

// ThreadQuery prefixes a followup question with the thread's prior context
// so the workflow sees the whole exchange.
func ThreadQuery(threadContext, text string) string {
	threadContext = strings.TrimSpace(threadContext)
	text = strings.TrimSpace(text)
	if threadContext == "" {
		return text
	}
	return fmt.Sprintf("Previous conversation in this thread:\n%s\n\nNew question: %s", threadContext, text)
}
