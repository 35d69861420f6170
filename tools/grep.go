// Content search tool.
//
// Walks the tree and matches file contents against a regular
// expression. Implemented in-process rather than shelling out to an
// external searcher so every candidate file passes through the same
// access checks as the rest of the tool set.

package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultSearchMaxResults is the default maximum matching lines per query.
const DefaultSearchMaxResults = 200

// maxSearchFileSize caps how large a file may be before the search skips it.
const maxSearchFileSize = 4 * 1024 * 1024

// maxSearchLineLen truncates very long matching lines in the output.
const maxSearchLineLen = 500

// SearchFileContentTool searches file contents with a regular expression.
type SearchFileContentTool struct {
	BaseTool
	guard      *Guard
	maxResults int
}

// NewSearchFileContentTool creates a new content search tool.
// If maxResults <= 0, DefaultSearchMaxResults is used.
func NewSearchFileContentTool(guard *Guard, maxResults int) *SearchFileContentTool {
	if maxResults <= 0 {
		maxResults = DefaultSearchMaxResults
	}
	return &SearchFileContentTool{guard: guard, maxResults: maxResults}
}

// Metadata returns tool metadata.
func (t *SearchFileContentTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_file_content",
		Description: "Search file contents for a regular expression. Returns matching lines as path:line:text. Hidden directories are skipped. Use include to restrict by filename glob (e.g., '*.go').",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Regular expression to search for (Go/RE2 syntax)", Required: true},
			{Name: "path", ParamType: "string", Description: "Base directory to search from (default: current directory)", Required: false},
			{Name: "include", ParamType: "string", Description: "Filename glob to restrict the search (e.g., '*.rs', '*.go')", Required: false},
			{Name: "max_results", ParamType: "integer", Description: fmt.Sprintf("Maximum matching lines to return (default: %d)", DefaultSearchMaxResults), Required: false},
		},
	}
}

// SearchArgs are the arguments for the content search tool.
type SearchArgs struct {
	Pattern    string `json:"pattern"`
	Path       string `json:"path"`
	Include    string `json:"include"`
	MaxResults *int   `json:"max_results"`
}

// Validate validates the arguments.
func (t *SearchFileContentTool) Validate(args json.RawMessage) error {
	var searchArgs SearchArgs
	if err := json.Unmarshal(args, &searchArgs); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(searchArgs.Pattern) == "" {
		return fmt.Errorf("pattern is required")
	}
	if _, err := regexp.Compile(searchArgs.Pattern); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}

// Execute runs the content search.
func (t *SearchFileContentTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var searchArgs SearchArgs
	if err := json.Unmarshal(args, &searchArgs); err != nil {
		return FailureResultf("invalid arguments: %v", err), nil
	}

	re, err := regexp.Compile(searchArgs.Pattern)
	if err != nil {
		return FailureResultf("invalid pattern: %v", err), nil
	}

	basePath := searchArgs.Path
	if basePath == "" {
		basePath = "."
	}

	base, err := t.guard.Authorize(ctx, "search_file_content", basePath)
	if err != nil {
		return FailureResult(err), nil
	}

	maxResults := t.maxResults
	if searchArgs.MaxResults != nil && *searchArgs.MaxResults > 0 && *searchArgs.MaxResults < maxResults {
		maxResults = *searchArgs.MaxResults
	}

	matches, truncated, err := t.search(ctx, base, re, searchArgs.Include, maxResults)
	if err != nil {
		return FailureResultf("%v", err), nil
	}

	if len(matches) == 0 {
		return SuccessResult(fmt.Sprintf("No matches found for pattern '%s' in %s", searchArgs.Pattern, basePath)), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Found %d matching lines for '%s':\n", len(matches), searchArgs.Pattern)
	for _, m := range matches {
		fmt.Fprintln(&out, m)
	}
	if truncated {
		fmt.Fprintf(&out, "\n(limited to %d results)", maxResults)
	}
	return SuccessResult(out.String()), nil
}

// search walks absBase collecting matching lines up to maxResults.
func (t *SearchFileContentTool) search(ctx context.Context, absBase string, re *regexp.Regexp, include string, maxResults int) ([]string, bool, error) {
	dirInfo, err := os.Stat(absBase)
	if err != nil {
		return nil, false, fmt.Errorf("path not found: %s", absBase)
	}

	var matches []string
	truncated := false

	scanOne := func(path, relPath string) error {
		fileMatches, err := t.searchFile(path, relPath, re, maxResults-len(matches))
		if err != nil {
			// Unreadable or binary files are skipped, not fatal.
			return nil
		}
		matches = append(matches, fileMatches...)
		if len(matches) >= maxResults {
			truncated = true
			return filepath.SkipAll
		}
		return nil
	}

	if !dirInfo.IsDir() {
		err := scanOne(absBase, filepath.Base(absBase))
		if err == filepath.SkipAll {
			err = nil
		}
		return matches, truncated, err
	}

	err = filepath.WalkDir(absBase, func(path string, entry os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && entry.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}

		if include != "" {
			if ok, err := filepath.Match(include, entry.Name()); err != nil || !ok {
				return nil
			}
		}

		if info, err := entry.Info(); err != nil || info.Size() > maxSearchFileSize {
			return nil
		}

		// Excluded and untrusted files never appear in results.
		if !t.guard.Validator().Validate(path).Allowed() {
			return nil
		}

		relPath, err := filepath.Rel(absBase, path)
		if err != nil {
			return nil
		}

		return scanOne(path, relPath)
	})
	if err != nil && err != filepath.SkipAll {
		return matches, truncated, err
	}

	return matches, truncated, nil
}

// searchFile scans a single file for matching lines, up to remaining.
func (t *SearchFileContentTool) searchFile(path, relPath string, re *regexp.Regexp, remaining int) ([]string, error) {
	if remaining <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 && strings.ContainsRune(line, '\x00') {
			// Binary file, skip entirely.
			return nil, nil
		}
		if !re.MatchString(line) {
			continue
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if len(trimmed) > maxSearchLineLen {
			trimmed = trimmed[:maxSearchLineLen] + "..."
		}
		matches = append(matches, fmt.Sprintf("%s:%d:%s", relPath, lineNo, trimmed))
		if len(matches) >= remaining {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		// Lines longer than the buffer mean the file is probably not text.
		return matches, nil
	}
	return matches, nil
}
