// Package retrieve ranks project-file snippets against a query to feed the
// fill tier of a conversation context.
package retrieve

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Snippet is one ranked retrieval hit.
type Snippet struct {
	Path    string
	Score   float64
	Content string
}

// Engine performs keyword-overlap relevance search across project files.
// It is a deliberately cheap stand-in for an embedding retriever behind the
// same contract: Retrieve(query, k) returning ranked snippets.
type Engine struct {
	root         string
	maxFiles     int
	maxFileBytes int
	logger       *zap.Logger
}

// NewEngine constructs an engine rooted at root.
func NewEngine(root string, maxFiles, maxFileBytes int, logger *zap.Logger) *Engine {
	if root == "" {
		root = "."
	}
	if maxFiles <= 0 {
		maxFiles = 200
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 64 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{root: root, maxFiles: maxFiles, maxFileBytes: maxFileBytes, logger: logger}
}

// Retrieve returns up to k snippets ranked by token overlap with the query.
// Retrieval failures degrade to an empty result: context enrichment is never
// worth failing the request over.
func (e *Engine) Retrieve(query string, k int) []Snippet {
	if e == nil || strings.TrimSpace(query) == "" || k <= 0 {
		return nil
	}

	qTokens := tokenize(query)
	if len(qTokens) == 0 {
		return nil
	}

	results := make([]Snippet, 0, k*2)
	count := 0
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if count >= e.maxFiles {
			return filepath.SkipAll
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		count++

		content, err := readBounded(path, e.maxFileBytes)
		if err != nil {
			return nil
		}
		score := overlapScore(qTokens, tokenize(content))
		if score <= 0 {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			rel = path
		}
		results = append(results, Snippet{Path: rel, Score: score, Content: excerpt(content)})
		return nil
	})
	if err != nil && !errors.Is(err, filepath.SkipAll) {
		e.logger.Warn("retrieval walk failed, degrading to empty context", zap.Error(err))
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].Path < results[j].Path
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func readBounded(path string, maxBytes int) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxBytes {
		data = data[:maxBytes]
	}
	return string(data), nil
}

func overlapScore(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	seen := make(map[string]struct{}, len(doc))
	for _, t := range doc {
		seen[t] = struct{}{}
	}
	var overlap int
	for _, q := range query {
		if _, ok := seen[q]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(query))
}

var tokenRe = regexp.MustCompile(`[A-Za-z0-9_]+`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

// excerpt keeps a snippet small enough to sit in the fill tier without
// dominating the token budget.
func excerpt(content string) string {
	const limit = 1200
	if len(content) > limit {
		return content[:limit] + "\n..."
	}
	return content
}

func skipDir(name string) bool {
	switch strings.ToLower(name) {
	case ".git", "node_modules", ".idea", ".vscode", "vendor", ".cache", ".github", "__pycache__":
		return true
	default:
		return false
	}
}
