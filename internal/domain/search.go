package domain

import (
	"strings"
	"time"
)

// Relevance buckets a search score
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceLow    Relevance = "low"
	RelevanceMedium Relevance = "medium"
)

// SearchHit is one transcript that matched a content search
type SearchHit struct {
	Files     []string  `json:"files,omitempty"`
	Matches   []string  `json:"matches,omitempty"`
	ModTime   time.Time `json:"mod_time"`
	Path      string    `json:"path"`
	ProjectID string    `json:"project_id,omitempty"`
	Score     float64   `json:"score"`
	SessionID string    `json:"session_id"`
	Tools     []string  `json:"tools,omitempty"`
}

// Relevance reports how strongly the hit matched
func (h SearchHit) Relevance() Relevance {
	switch {
	case h.Score >= 3:
		return RelevanceHigh
	case h.Score >= 1:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}

// SearchTerms splits a query into lower-case terms; each term matches as a substring
func SearchTerms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}
