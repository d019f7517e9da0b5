package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"evalboard/internal/logging"
	"evalboard/internal/services/translate"
)

// Converter turns spreadsheet rows into the line-delimited JSON the external
// evaluation service ingests.
type Converter struct {
	translator translate.Translator
	logger     *slog.Logger
	now        func() time.Time
}

// ConverterOption customizes a Converter.
type ConverterOption func(*Converter)

// WithClock overrides the timestamp source (useful for tests).
func WithClock(now func() time.Time) ConverterOption {
	return func(c *Converter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewConverter builds a converter. A nil translator disables translation and
// a nil logger discards diagnostics.
func NewConverter(translator translate.Translator, logger *slog.Logger, opts ...ConverterOption) *Converter {
	if translator == nil {
		translator = translate.Passthrough{}
	}
	c := &Converter{
		translator: translator,
		logger:     logging.WithComponent(logger, "converter"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result summarizes one conversion pass.
type Result struct {
	RowsRead            int `json:"rows_read"`
	RowsEmitted         int `json:"rows_emitted"`
	RowsSkipped         int `json:"rows_skipped"`
	TranslationFallback int `json:"translation_fallback"`
}

// ConvertFile reads the spreadsheet at inputPath and streams JSONL to w.
// Format errors surface as ErrUnsupportedFormat; translation failures never
// abort the pass.
func (c *Converter) ConvertFile(ctx context.Context, inputPath string, w io.Writer) (Result, error) {
	rows, err := ReadRows(inputPath)
	if err != nil {
		return Result{}, err
	}
	return c.Convert(ctx, rows, w)
}

// Convert processes rows in order, writing one JSON line per row that carries
// a conversation id. Rows are translated sequentially; a failed translation
// keeps the original text.
func (c *Converter) Convert(ctx context.Context, rows []map[string]string, w io.Writer) (Result, error) {
	result := Result{RowsRead: len(rows)}
	buffered := bufio.NewWriter(w)
	encoder := json.NewEncoder(buffered)
	encoder.SetEscapeHTML(false)

	for i, fields := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		row, ok := rowFromFields(fields)
		if !ok {
			result.RowsSkipped++
			c.logger.Warn("skipping row without conversation id", logging.Int("row", i+1))
			continue
		}
		if row.Timestamp == "" {
			row.Timestamp = c.now().UTC().Format(time.RFC3339)
		}

		conversation := row.Conversation
		translated, err := c.translator.Translate(ctx, conversation)
		if err != nil {
			result.TranslationFallback++
			c.logger.Warn("translation failed, keeping original text",
				logging.String("conversation_id", row.ConversationID),
				logging.Error(err))
		} else {
			conversation = translated
		}

		record := Record{Item: Item{
			ConversationID: row.ConversationID,
			Conversation:   conversation,
			Agent:          row.Agent,
			Timestamp:      row.Timestamp,
			SourceIntent:   row.SourceIntent,
		}}
		if err := encoder.Encode(record); err != nil {
			return result, fmt.Errorf("encode row %d: %w", i+1, err)
		}
		result.RowsEmitted++
	}

	if err := buffered.Flush(); err != nil {
		return result, fmt.Errorf("flush output: %w", err)
	}
	c.logger.Info("conversion finished",
		logging.Int("rows_read", result.RowsRead),
		logging.Int("rows_emitted", result.RowsEmitted),
		logging.Int("rows_skipped", result.RowsSkipped),
		logging.Int("translation_fallback", result.TranslationFallback))
	return result, nil
}
