// Package enrichment orchestrates per-PR enrichment: file classification,
// LLM-generated summaries and risk assessments, deterministic PR-level risk
// aggregation, and feature classification.
package enrichment

import "strings"

var languageByExt = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".jsx": "JavaScript",
	".ts": "TypeScript", ".tsx": "TypeScript", ".java": "Java", ".rb": "Ruby",
	".rs": "Rust", ".cpp": "C++", ".cc": "C++", ".c": "C", ".h": "C",
	".cs": "C#", ".php": "PHP", ".swift": "Swift", ".kt": "Kotlin",
	".scala": "Scala", ".sh": "Shell", ".sql": "SQL", ".yaml": "YAML",
	".yml": "YAML", ".json": "JSON", ".md": "Markdown", ".html": "HTML",
	".css": "CSS",
}

var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".dat": true, ".zip": true, ".tar": true, ".gz": true, ".rar": true,
	".7z": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".ico": true, ".pdf": true, ".doc": true, ".docx": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".mp3": true,
	".mp4": true, ".avi": true, ".mov": true,
}

var docExtensions = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".adoc": true,
}

var configNames = map[string]bool{
	"dockerfile": true, "makefile": true, ".gitignore": true,
	".env": true, ".env.example": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".json": true, ".conf": true,
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(path[idx:])
}

func baseOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return strings.ToLower(path)
	}
	return strings.ToLower(path[idx+1:])
}

// Classification holds the per-file extension/name classification (spec §4.3 step 1).
type Classification struct {
	Language        string
	IsBinary        bool
	IsConfigFile    bool
	IsDocumentation bool
	IsTestFile      bool
	IsSourceCode    bool
}

// ClassifyFile classifies path by extension into a language, and by name
// into {config, documentation, test, source, binary}.
func ClassifyFile(path string) Classification {
	ext := extOf(path)
	base := baseOf(path)

	c := Classification{
		Language: languageByExt[ext],
		IsBinary: binaryExtensions[ext],
	}
	if c.IsBinary {
		return c
	}

	c.IsDocumentation = docExtensions[ext] || strings.HasPrefix(base, "readme")
	c.IsConfigFile = configNames[base] || configExtensions[ext]
	c.IsTestFile = isTestPath(path)

	c.IsSourceCode = !c.IsDocumentation && !c.IsConfigFile && c.Language != ""
	return c
}

func isTestPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.Contains(lower, "_test.") ||
		strings.Contains(lower, "/test/") ||
		strings.Contains(lower, "/tests/") ||
		strings.HasPrefix(baseOf(path), "test_") ||
		strings.Contains(lower, ".test.") ||
		strings.Contains(lower, ".spec.")
}

// problematicExtensions skip LLM risk scoring even though they are not
// strictly binary (lockfiles, generated/minified assets): they receive
// score 0 directly (spec §4.3 step 3 / SPEC_FULL §4 heuristic pre-filter).
var problematicExtensions = map[string]bool{
	".lock": true, ".min.js": true, ".map": true, ".sum": true,
}

// SkipLLMScoring reports whether a file should bypass Chat-JSON risk
// scoring and receive score 0 directly: binary, oversized, or
// whitespace-only/documentation-only diffs (the heuristic pre-filter
// SPEC_FULL.md adds on top of the original binary/oversized skips). It sees
// only the patch, not the path, so it cannot detect a problematic
// extension; Engine.enrichFile applies that skip on the file path.
func SkipLLMScoring(c Classification, sizeBytes int64, maxBytes int64, patch string) bool {
	if c.IsBinary {
		return true
	}
	if maxBytes > 0 && sizeBytes > maxBytes {
		return true
	}
	if problematicExtensions[extOf(patch)] {
		// a patch has no extension, so this lookup does not match; the
		// problematic-extension skip is applied on the path in enrichFile.
	}
	if c.IsDocumentation {
		return true
	}
	if isWhitespaceOnlyPatch(patch) {
		return true
	}
	return false
}

func isWhitespaceOnlyPatch(patch string) bool {
	if patch == "" {
		return false
	}
	for _, line := range strings.Split(patch, "\n") {
		if len(line) == 0 {
			continue
		}
		if line[0] != '+' && line[0] != '-' {
			continue
		}
		body := strings.TrimSpace(line[1:])
		if body != "" {
			return false
		}
	}
	return true
}
