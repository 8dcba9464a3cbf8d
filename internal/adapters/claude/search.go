package claude

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/renato0307/sessiond/internal/domain"
)

// Block scores. Tool names are the strongest signal, tool output the weakest.
const (
	scoreText       = 1.0
	scoreToolInput  = 1.0
	scoreToolName   = 2.0
	scoreToolResult = 0.5

	maxSearchFiles   = 5
	maxSearchMatches = 3
	snippetLength    = 200
)

// SearchFile scores the message content of one transcript against terms.
// Only message.content is searched, never entry metadata. It returns nil
// when nothing matched.
func (p *Parser) SearchFile(path string, terms []string) (*domain.SearchHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w: %w", path, domain.ErrTranscriptUnreadable, err)
	}
	defer file.Close()

	acc := newSearchAccumulator(terms)
	err = readLines(bufio.NewReaderSize(file, 1024*1024), p.maxLineSize, func(line []byte) {
		var entry jsonlEntry
		if err := json.Unmarshal(line, &entry); err != nil || entry.Message == nil {
			return
		}
		acc.content(entry.Message.Content)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w: %w", path, domain.ErrTranscriptUnreadable, err)
	}
	if acc.score == 0 {
		return nil, nil
	}

	hit := acc.hit()
	hit.Path = path
	hit.SessionID = SessionIDFromPath(path)
	if info, err := file.Stat(); err == nil {
		hit.ModTime = info.ModTime()
	}
	return &hit, nil
}

type searchAccumulator struct {
	files   map[string]bool
	matches []string
	score   float64
	terms   []string
	tools   map[string]bool
}

func newSearchAccumulator(terms []string) *searchAccumulator {
	return &searchAccumulator{
		files: make(map[string]bool),
		terms: terms,
		tools: make(map[string]bool),
	}
}

// content scores string content once per matching term and block content per block
func (a *searchAccumulator) content(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		lower := strings.ToLower(str)
		matched := 0
		for _, term := range a.terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		if matched > 0 {
			a.score += float64(matched)
			a.match(str)
		}
		return
	}

	var blocks []domain.ContentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return
	}
	for _, block := range blocks {
		a.block(block)
	}
}

func (a *searchAccumulator) block(block domain.ContentBlock) {
	switch block.Type {
	case domain.BlockText:
		if a.contains(block.Text) {
			a.score += scoreText
			a.match(block.Text)
		}
	case domain.BlockToolUse:
		a.tools[block.Name] = true
		if path := toolFilePath(block.Input); path != "" {
			a.files[path] = true
		}

		label := "Tool: " + block.Name
		if a.contains(block.Name) {
			a.score += scoreToolName
			a.match(label)
		}
		if a.contains(string(block.Input)) {
			a.score += scoreToolInput
			a.match(label)
		}
	case domain.BlockToolResult:
		if a.contains(toolResultText(block.Content)) {
			a.score += scoreToolResult
			a.match("Tool result matched")
		}
	}
}

func (a *searchAccumulator) contains(s string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, term := range a.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// match records a snippet; a tool label is recorded once
func (a *searchAccumulator) match(s string) {
	snippet := truncateRunes(s, snippetLength)
	if strings.HasPrefix(snippet, "Tool: ") {
		for _, m := range a.matches {
			if m == snippet {
				return
			}
		}
	}
	a.matches = append(a.matches, snippet)
}

func (a *searchAccumulator) hit() domain.SearchHit {
	matches := a.matches
	if len(matches) > maxSearchMatches {
		matches = matches[:maxSearchMatches]
	}
	files := sortedKeys(a.files)
	if len(files) > maxSearchFiles {
		files = files[:maxSearchFiles]
	}
	return domain.SearchHit{
		Files:   files,
		Matches: matches,
		Score:   a.score,
		Tools:   sortedKeys(a.tools),
	}
}

// toolFilePath returns input.file_path of a tool invocation, if any
func toolFilePath(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var fields struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(input, &fields); err != nil {
		return ""
	}
	return fields.FilePath
}

// toolResultText flattens tool_result content, which is a string or a list of blocks
func toolResultText(raw json.RawMessage) string {
	if text := contentText(raw); text != "" {
		return text
	}
	return string(raw)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
