// Package artifact resolves and reads HTML artifacts that agents reference
// in their replies. Agent output wraps paths in punctuation, quotes, JSON
// fragments or @-mentions, so the requested path is aggressively cleaned
// before resolution, and resolution is confined to the agent's workspace.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxHTMLArtifactSize bounds the artifact file size in bytes.
const MaxHTMLArtifactSize = 2 * 1024 * 1024

// pathWrapperRunes are the characters stripped from both ends of a
// requested path: ASCII and CJK quoting and punctuation.
const pathWrapperRunes = "\"'`()[]{}<>,.;:!?，。；：！？、「」『』【】"

// trimPathWrappers strips surrounding whitespace and wrapper punctuation.
func trimPathWrappers(path string) string {
	return strings.Trim(strings.TrimSpace(path), pathWrapperRunes+" \t\r\n")
}

// isWindowsAbsoluteLike reports whether the path looks like C:\ or C:/.
func isWindowsAbsoluteLike(path string) bool {
	if len(path) < 3 {
		return false
	}
	c := path[0]
	isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isAlpha && path[1] == ':' && (path[2] == '\\' || path[2] == '/')
}

// stripJSONLikePrefix removes a leading JSON-ish key such as
// `file_path: "..."` or `{"absolute_path": "..."}` from the request.
func stripJSONLikePrefix(path string) string {
	lowered := strings.ToLower(path)
	for _, marker := range []string{"file_path", "absolute_path", "path"} {
		markerPos := strings.Index(lowered, marker)
		if markerPos < 0 {
			continue
		}
		rest := path[markerPos+len(marker):]
		colonPos := strings.Index(rest, ":")
		if colonPos < 0 {
			continue
		}
		return trimPathWrappers(rest[colonPos+1:])
	}
	return path
}

// NormalizeRequestPath cleans an artifact path as it appeared in agent
// output: wrapper punctuation, a file:// scheme, JSON-like key prefixes and
// a leading @ mention marker are removed.
func NormalizeRequestPath(filePath string) string {
	trimmed := trimPathWrappers(filePath)
	trimmed = strings.TrimPrefix(trimmed, "file://")
	normalized := trimPathWrappers(stripJSONLikePrefix(trimmed))

	if rest, ok := strings.CutPrefix(normalized, "@"); ok {
		if strings.HasPrefix(rest, "/") ||
			strings.HasPrefix(rest, "./") ||
			strings.HasPrefix(rest, "../") ||
			strings.HasPrefix(rest, "~/") ||
			isWindowsAbsoluteLike(rest) {
			return rest
		}
	}
	return normalized
}

// ResolvePath resolves an artifact request against a workspace. Relative
// paths must stay inside the workspace after symlink resolution; absolute
// paths are allowed as-is. Only .html and .htm files qualify.
func ResolvePath(workspacePath, filePath string) (string, error) {
	workspaceRoot, err := filepath.EvalSymlinks(workspacePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace path %s: %w", workspacePath, err)
	}

	requested := NormalizeRequestPath(filePath)
	if requested == "" {
		return "", fmt.Errorf("artifact file path cannot be empty")
	}

	isAbsolute := filepath.IsAbs(requested)
	target := requested
	if !isAbsolute {
		target = filepath.Join(workspaceRoot, requested)
	}

	canonical, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve artifact path %s: %w", target, err)
	}

	if !isAbsolute && !isWithin(workspaceRoot, canonical) {
		return "", fmt.Errorf("artifact path is outside workspace")
	}

	switch strings.ToLower(filepath.Ext(canonical)) {
	case ".html", ".htm":
	default:
		return "", fmt.Errorf("only .html/.htm artifacts are supported")
	}

	return canonical, nil
}

// isWithin reports whether target sits at or below root.
func isWithin(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..")
}

// validateFile checks that the resolved artifact is a regular file within
// the size bound.
func validateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat artifact %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("artifact path is not a file")
	}
	if info.Size() > MaxHTMLArtifactSize {
		return fmt.Errorf("artifact is too large (>%d bytes)", MaxHTMLArtifactSize)
	}
	return nil
}

// ResolveHTMLArtifactPath resolves and validates an artifact request,
// returning the canonical path.
func ResolveHTMLArtifactPath(workspacePath, filePath string) (string, error) {
	canonical, err := ResolvePath(workspacePath, filePath)
	if err != nil {
		return "", err
	}
	if err := validateFile(canonical); err != nil {
		return "", err
	}
	return canonical, nil
}

// ReadHTMLArtifact resolves, validates and reads an artifact.
func ReadHTMLArtifact(workspacePath, filePath string) (string, error) {
	canonical, err := ResolveHTMLArtifactPath(workspacePath, filePath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact %s: %w", canonical, err)
	}
	return string(data), nil
}
