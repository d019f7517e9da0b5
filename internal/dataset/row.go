package dataset

import "strings"

// Row is one conversation record read from a spreadsheet, keyed by the
// normalized column names the evaluation service expects.
type Row struct {
	ConversationID string
	Conversation   string
	Agent          string
	Timestamp      string
	SourceIntent   string
}

// Record is the wire envelope for one JSONL line. Field names are fixed by
// the external evaluation service's ingestion contract.
type Record struct {
	Item Item `json:"item"`
}

// Item carries the per-conversation payload inside a Record.
type Item struct {
	ConversationID string `json:"conversationId"`
	Conversation   string `json:"conversation"`
	Agent          string `json:"Agent"`
	Timestamp      string `json:"timestamp"`
	SourceIntent   string `json:"source_intent"`
}

// Column aliases tolerated in uploaded spreadsheets. Uploaders disagree on
// camelCase vs snake_case, so both spellings resolve to the same field.
var (
	idColumns           = []string{"conversationId", "conversation_id"}
	agentColumns        = []string{"Agent", "agent"}
	sourceIntentColumns = []string{"source_intent", "sourceIntent"}
)

// rowFromFields maps raw header-keyed cells to a Row. The boolean is false
// when the row has no conversation id under either spelling.
func rowFromFields(fields map[string]string) (Row, bool) {
	id := firstField(fields, idColumns)
	if id == "" {
		return Row{}, false
	}
	return Row{
		ConversationID: id,
		Conversation:   strings.TrimSpace(fields["conversation"]),
		Agent:          firstField(fields, agentColumns),
		Timestamp:      strings.TrimSpace(fields["timestamp"]),
		SourceIntent:   firstField(fields, sourceIntentColumns),
	}, true
}

func firstField(fields map[string]string, names []string) string {
	for _, name := range names {
		if value := strings.TrimSpace(fields[name]); value != "" {
			return value
		}
	}
	return ""
}
