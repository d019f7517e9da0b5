package conversation

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"evalboard/internal/logging"
)

// Turn is a single exchange in a conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Known role tokens. Parsing does not enforce these; they exist for callers
// that want to flag unexpected roles.
var knownRoles = map[string]struct{}{
	"user":      {},
	"assistant": {},
	"system":    {},
}

// KnownRole reports whether role is one of the expected transcript roles.
func KnownRole(role string) bool {
	_, ok := knownRoles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// A strategy attempts to recover structured turns from a raw transcript
// string. Strategies are independent: each receives the original input, not
// the output of a previous attempt.
type strategy func(string) ([]Turn, bool)

var strategies = []strategy{
	parsePythonRepr,
	parseJSON,
	parseQuoteRepaired,
}

// Parse attempts to recover an ordered turn list from a loosely formatted
// transcript string. The second return value is false when no strategy
// succeeded.
func Parse(raw string) ([]Turn, bool) {
	trimmed := strings.TrimSpace(raw)
	if !looksBracketed(trimmed) {
		return nil, false
	}
	for _, attempt := range strategies {
		if turns, ok := attempt(trimmed); ok {
			return turns, true
		}
	}
	return nil, false
}

// Render produces a best-effort human-readable rendering of a transcript.
// Structured input becomes one "**role**: content" paragraph per turn;
// anything unparseable is returned unchanged. Render never fails.
func Render(logger *slog.Logger, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !looksBracketed(trimmed) {
		return raw
	}
	turns, ok := Parse(raw)
	if !ok {
		if logger == nil {
			logger = logging.NewNop()
		}
		logger.Debug("transcript not parseable, returning verbatim",
			logging.Int("length", len(raw)))
		return raw
	}
	return RenderTurns(turns)
}

// RenderTurns formats structured turns for display.
func RenderTurns(turns []Turn) string {
	parts := make([]string, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, "**"+turn.Role+"**: "+turn.Content)
	}
	return strings.Join(parts, "\n\n")
}

func looksBracketed(trimmed string) bool {
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")
}

// Matches Python-repr style dict entries: {'role': 'user', 'content': '...'}.
// Values may contain backslash-escaped single quotes.
var pythonTurnPattern = regexp.MustCompile(
	`'role'\s*:\s*'((?:[^'\\]|\\.)*)'\s*,\s*'content'\s*:\s*'((?:[^'\\]|\\.)*)'`,
)

func parsePythonRepr(raw string) ([]Turn, bool) {
	matches := pythonTurnPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil, false
	}
	turns := make([]Turn, 0, len(matches))
	for _, match := range matches {
		turns = append(turns, Turn{
			Role:    unescapePython(match[1]),
			Content: unescapePython(match[2]),
		})
	}
	return turns, true
}

func unescapePython(value string) string {
	replacer := strings.NewReplacer(`\'`, "'", `\"`, `"`, `\n`, "\n", `\t`, "\t", `\\`, `\`)
	return replacer.Replace(value)
}

func parseJSON(raw string) ([]Turn, bool) {
	// A backslash-quote escape is never valid JSON; transcripts produced by
	// Python string formatting carry them, so normalize before decoding.
	normalized := strings.ReplaceAll(raw, `\'`, "'")
	var turns []Turn
	if err := json.Unmarshal([]byte(normalized), &turns); err != nil {
		return nil, false
	}
	if len(turns) == 0 {
		return nil, false
	}
	return turns, true
}

func parseQuoteRepaired(raw string) ([]Turn, bool) {
	repaired := repairQuotes(raw)
	var turns []Turn
	if err := json.Unmarshal([]byte(repaired), &turns); err != nil {
		return nil, false
	}
	if len(turns) == 0 {
		return nil, false
	}
	return turns, true
}

// repairQuotes converts single-quoted pseudo-JSON to double-quoted JSON:
// embedded double quotes are escaped, escaped single quotes are unescaped,
// and remaining single quotes become string delimiters.
func repairQuotes(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		switch ch {
		case '\\':
			if i+1 < len(raw) && raw[i+1] == '\'' {
				b.WriteByte('\'')
				i++
				continue
			}
			b.WriteByte(ch)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteByte('"')
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
