package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/logger"
	"github.com/zhaobenny/claudelytics/internal/model"
)

const maxLineSize = 16 * 1024 * 1024

// rawRecord represents the raw JSON structure from Claude Code JSONL files.
// Pointers distinguish absent fields from zero values.
type rawRecord struct {
	Timestamp *string  `json:"timestamp"`
	CostUSD   *float64 `json:"costUSD"`
	Message   *struct {
		Model string    `json:"model"`
		Usage *rawUsage `json:"usage"`
	} `json:"message"`
}

type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// Reasons a decoded record does not count as an event
var (
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrBadTimestamp     = errors.New("unparseable timestamp")
	ErrMissingUsage     = errors.New("missing usage block")
	ErrNegativeTokens   = errors.New("negative token count")
	ErrNoTokens         = errors.New("all token counts are zero")
)

// Diagnostic describes a line that could not be used
type Diagnostic struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Line == 0 {
		return fmt.Sprintf("%s: %s", d.File, d.Message)
	}
	return fmt.Sprintf("%s:%d: %s", d.File, d.Line, d.Message)
}

// FileStats summarizes one parsed file
type FileStats struct {
	Lines       int
	Events      int
	Invalid     int // Decoded records that failed validation
	Diagnostics []Diagnostic
}

// toEvent validates a record and converts it to a UsageEvent
func (r rawRecord) toEvent(sessionID string) (model.UsageEvent, error) {
	if r.Timestamp == nil || *r.Timestamp == "" {
		return model.UsageEvent{}, ErrMissingTimestamp
	}
	// RFC 3339 requires a zone; zone-less times are rejected, not guessed
	ts, err := time.Parse(time.RFC3339Nano, *r.Timestamp)
	if err != nil {
		return model.UsageEvent{}, ErrBadTimestamp
	}
	if r.Message == nil || r.Message.Usage == nil {
		return model.UsageEvent{}, ErrMissingUsage
	}

	u := r.Message.Usage
	if u.InputTokens < 0 || u.OutputTokens < 0 || u.CacheCreationInputTokens < 0 || u.CacheReadInputTokens < 0 {
		return model.UsageEvent{}, ErrNegativeTokens
	}
	usage := model.TokenUsage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationInputTokens,
		CacheReadTokens:     u.CacheReadInputTokens,
	}
	if usage.IsZero() {
		return model.UsageEvent{}, ErrNoTokens
	}

	e := model.UsageEvent{
		Timestamp: ts.UTC(),
		SessionID: sessionID,
		Model:     r.Message.Model,
		Usage:     usage,
	}
	if r.CostUSD != nil && *r.CostUSD >= 0 {
		cost := *r.CostUSD
		e.Cost = &cost
	}
	return e, nil
}

// ParseLine decodes and validates a single JSONL line
func ParseLine(line []byte, sessionID string) (model.UsageEvent, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.UsageEvent{}, apperr.New(apperr.KindJSONParse, "decode line", err)
	}
	e, err := raw.toEvent(sessionID)
	if err != nil {
		return model.UsageEvent{}, apperr.New(apperr.KindValidation, "validate record", err)
	}
	return e, nil
}

// ParseFile streams a JSONL file, calling visit for every valid event.
// Malformed lines become diagnostics; the returned error is set only when the
// file itself could not be read, in which case the caller should discard
// whatever visit received.
func ParseFile(path, sessionID string, visit func(model.UsageEvent)) (FileStats, error) {
	var stats FileStats

	file, err := os.Open(path)
	if err != nil {
		return stats, apperr.WithPath(apperr.KindIO, "open", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	// Increase buffer size for large lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		stats.Lines++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		e, err := ParseLine(line, sessionID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindJSONParse {
				stats.Diagnostics = append(stats.Diagnostics, Diagnostic{
					File:    path,
					Line:    stats.Lines,
					Message: "invalid JSON: " + errors.Unwrap(err).Error(),
				})
			} else {
				stats.Invalid++
				logger.Debug("skipping record", "file", path, "line", stats.Lines, "reason", err)
			}
			continue
		}

		stats.Events++
		visit(e)
	}

	if err := scanner.Err(); err != nil {
		return stats, apperr.WithPath(apperr.KindIO, "read", path, err)
	}
	return stats, nil
}
