// Package models discovers the model catalog an iFlow installation ships
// with. The agent does not expose a listing API before a session exists, so
// the catalog is scraped from the bundled JavaScript entry file instead.
package models

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/flowdeck/flowdeck/internal/acp"
)

// bundleAnchors mark the model array across iFlow releases. Newer bundles
// minify the constant name, older ones keep it readable.
var bundleAnchors = []string{"CAe=[", "modelOptions=[", "models=["}

// resolveExecutablePath locates the agent executable, either as an explicit
// path or via PATH lookup.
func resolveExecutablePath(agentPath string) (string, error) {
	trimmed := strings.TrimSpace(agentPath)
	if trimmed == "" {
		return "", fmt.Errorf("iflow path cannot be empty")
	}

	if filepath.IsAbs(trimmed) || strings.ContainsRune(trimmed, os.PathSeparator) {
		if _, err := os.Stat(trimmed); err != nil {
			return "", fmt.Errorf("iflow executable not found: %s", trimmed)
		}
		if resolved, err := filepath.EvalSymlinks(trimmed); err == nil {
			return resolved, nil
		}
		return trimmed, nil
	}

	candidate, err := exec.LookPath(trimmed)
	if err != nil {
		return "", fmt.Errorf("iflow executable not found in PATH: %s", trimmed)
	}
	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		return resolved, nil
	}
	return candidate, nil
}

// bundleEntryCandidates lists the files that may hold the model constants,
// most likely first.
func bundleEntryCandidates(executableEntry string) []string {
	var candidates []string
	push := func(path string) {
		for _, existing := range candidates {
			if existing == path {
				return
			}
		}
		candidates = append(candidates, path)
	}

	if parent := filepath.Dir(executableEntry); parent != "" {
		// Newer iFlow releases put model constants in iflow.js instead of entry.js.
		push(filepath.Join(parent, "iflow.js"))
		push(filepath.Join(parent, "entry.js"))
	}
	push(executableEntry)
	return candidates
}

// resolveBundleEntry finds the JavaScript bundle holding the model catalog
// for the given agent executable.
func resolveBundleEntry(agentPath string) (string, error) {
	executablePath, err := resolveExecutablePath(agentPath)
	if err != nil {
		return "", err
	}

	if !strings.EqualFold(filepath.Ext(executablePath), ".js") {
		return "", fmt.Errorf("unsupported iflow executable target: %s", executablePath)
	}

	for _, candidate := range bundleEntryCandidates(executablePath) {
		if _, err := os.Stat(candidate); err == nil {
			if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
				return resolved, nil
			}
			return candidate, nil
		}
	}

	return "", fmt.Errorf("iflow bundle entry not found near: %s", executablePath)
}

// extractBracketBlock returns the bracket-balanced array starting at the
// anchor, tracking string literals so brackets inside them do not count.
func extractBracketBlock(source, anchor string) (string, bool) {
	anchorPos := strings.Index(source, anchor)
	if anchorPos < 0 {
		return "", false
	}
	arrayStart := anchorPos + len(anchor) - 1

	depth := 0
	inString := false
	escaped := false
	for offset, ch := range source[arrayStart:] {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '[':
			depth++
		case ch == ']':
			depth--
			if depth == 0 {
				return source[arrayStart : arrayStart+offset+1], true
			}
		}
	}
	return "", false
}

// parseModelEntries pulls {label:"...",value:"..."} pairs out of a minified
// array block.
func parseModelEntries(block string) []acp.ModelOption {
	const labelPrefix = `{label:"`
	const valueSeparator = `",value:"`

	var options []acp.ModelOption
	cursor := 0
	for {
		startRel := strings.Index(block[cursor:], labelPrefix)
		if startRel < 0 {
			break
		}
		labelStart := cursor + startRel + len(labelPrefix)

		sepRel := strings.Index(block[labelStart:], valueSeparator)
		if sepRel < 0 {
			break
		}
		labelEnd := labelStart + sepRel
		valueStart := labelEnd + len(valueSeparator)

		endRel := strings.Index(block[valueStart:], `"`)
		if endRel < 0 {
			break
		}
		valueEnd := valueStart + endRel

		label := strings.ReplaceAll(block[labelStart:labelEnd], `\"`, `"`)
		value := strings.ReplaceAll(block[valueStart:valueEnd], `\"`, `"`)
		if strings.TrimSpace(value) != "" {
			options = append(options, acp.ModelOption{Label: label, Value: value})
		}

		cursor = valueEnd + 1
	}
	return options
}

// extractFromBundle reads a bundle file and parses its model catalog.
func extractFromBundle(entryPath string) ([]acp.ModelOption, error) {
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read iflow bundle %s: %w", entryPath, err)
	}
	text := string(data)

	var block string
	found := false
	for _, anchor := range bundleAnchors {
		if block, found = extractBracketBlock(text, anchor); found {
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("failed to locate model list in iflow bundle")
	}

	options := parseModelEntries(block)
	if len(options) == 0 {
		return nil, fmt.Errorf("no model entries found in iflow bundle")
	}
	return options, nil
}

// ListAvailable returns the model catalog shipped with the agent at the
// given path or command name.
func ListAvailable(agentPath string) ([]acp.ModelOption, error) {
	entryPath, err := resolveBundleEntry(agentPath)
	if err != nil {
		return nil, err
	}
	return extractFromBundle(entryPath)
}
