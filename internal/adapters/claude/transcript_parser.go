package claude

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
)

const (
	// previewLength is the maximum length of the first message preview, in runes
	previewLength = 100
	// maxLineSize bounds a single transcript line; longer lines are skipped
	maxLineSize = 10 * 1024 * 1024
)

// Parser reads Claude session JSONL files into transcript summaries
type Parser struct {
	maxLineSize int
}

// NewParser creates a new Parser
func NewParser() *Parser {
	return &Parser{maxLineSize: maxLineSize}
}

// jsonlEntry represents a single entry in the JSONL file
type jsonlEntry struct {
	CWD       string        `json:"cwd"`
	Message   *jsonlMessage `json:"message"`
	Timestamp string        `json:"timestamp"`
	Type      string        `json:"type"`
	Usage     *jsonlUsage   `json:"usage"`
}

type jsonlMessage struct {
	Content json.RawMessage `json:"content"`
	Usage   *jsonlUsage     `json:"usage"`
}

type jsonlUsage struct {
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

func (u *jsonlUsage) total() int {
	if u == nil {
		return 0
	}
	return u.InputTokens + u.OutputTokens + u.CacheCreationInputTokens + u.CacheReadInputTokens
}

// ParseFile parses one transcript and validates that it is a real conversation.
// Malformed lines are skipped. Errors wrap domain.ErrTranscriptUnreadable for
// I/O failures and domain.ErrInvalidTranscript for validation failures.
func (p *Parser) ParseFile(path string) (domain.TranscriptSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.TranscriptSummary{}, fmt.Errorf("failed to open %s: %w: %w", path, domain.ErrTranscriptUnreadable, err)
	}
	defer file.Close()

	summary, err := p.parse(file)
	if err != nil {
		return domain.TranscriptSummary{}, fmt.Errorf("failed to read %s: %w: %w", path, domain.ErrTranscriptUnreadable, err)
	}
	if info, err := file.Stat(); err == nil {
		summary.ModTime = info.ModTime()
	}

	sessionID := SessionIDFromPath(path)
	if summary.MessageCount == 0 {
		return summary, fmt.Errorf("session %s has no messages (only system messages): %w", sessionID, domain.ErrInvalidTranscript)
	}
	if summary.UserMessageCount == 0 {
		return summary, fmt.Errorf("session %s has %d messages but no user message: %w", sessionID, summary.MessageCount, domain.ErrInvalidTranscript)
	}

	return summary, nil
}

// parse accumulates the summary from r without validating it
func (p *Parser) parse(r io.Reader) (domain.TranscriptSummary, error) {
	var summary domain.TranscriptSummary
	var firstMessageAt *time.Time
	seenEntry := false
	seenMessage := false

	err := readLines(bufio.NewReaderSize(r, 1024*1024), p.maxLineSize, func(line []byte) {
		var entry jsonlEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return
		}
		summary.LineCount++

		ts := parseTimestamp(entry.Timestamp)
		if !seenEntry {
			seenEntry = true
			summary.CreatedAt = ts
		}
		if summary.CWD == "" && entry.CWD != "" {
			summary.CWD = entry.CWD
		}

		if entry.Type != domain.RoleUser && entry.Type != domain.RoleAssistant {
			return
		}

		summary.MessageCount++
		if entry.Type == domain.RoleUser {
			summary.UserMessageCount++
		}
		if ts != nil {
			summary.LastMessageAt = ts
			if firstMessageAt == nil {
				firstMessageAt = ts
			}
		}
		if !seenMessage {
			seenMessage = true
			if entry.Message != nil {
				summary.FirstMessagePreview = truncateRunes(contentText(entry.Message.Content), previewLength)
			}
		}
		if entry.Type == domain.RoleAssistant {
			summary.TotalTokens += entryUsage(entry).total()
		}
	})

	// The first entry carried no timestamp (typically a summary line)
	if summary.CreatedAt == nil {
		summary.CreatedAt = firstMessageAt
	}

	return summary, err
}

// entryUsage prefers message.usage (Claude's layout) over a top-level usage field
func entryUsage(entry jsonlEntry) *jsonlUsage {
	if entry.Message != nil && entry.Message.Usage != nil {
		return entry.Message.Usage
	}
	return entry.Usage
}

// readLines calls fn for every non-empty line. Lines longer than maxLen are
// dropped without aborting the read.
func readLines(r *bufio.Reader, maxLen int, fn func(line []byte)) error {
	var buf []byte
	overflow := false

	for {
		chunk, err := r.ReadSlice('\n')
		if len(chunk) > 0 && !overflow {
			if len(buf)+len(chunk) > maxLen+1 {
				overflow = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == nil, errors.Is(err, io.EOF):
			if !overflow {
				if line := bytes.TrimSpace(buf); len(line) > 0 {
					fn(line)
				}
			}
			buf = buf[:0]
			overflow = false
			if err != nil {
				return nil
			}
		case errors.Is(err, bufio.ErrBufferFull):
			// Line continues in the next chunk
		default:
			return err
		}
	}
}

// contentText extracts displayable text from a string or a list of blocks
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}

	var blocks []domain.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Type == domain.BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, " ")
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		logging.Logger.Debug("Skipping unparseable timestamp", "value", value)
		return nil
	}
	return &ts
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// SessionIDFromPath derives the session id from a transcript file name
func SessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".jsonl")
}
