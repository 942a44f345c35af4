package dispatch

import (
	"os"
	"sort"
	"strings"
)

// SplitSectionChunks splits a section body into the leading "Files to add to
// Aider" markdown chunk and the remaining prompt content. The split point is
// the first blank line; a body without one is all files chunk.
func SplitSectionChunks(body string) (filesMD, prompt string) {
	parts := strings.SplitN(strings.TrimSpace(body), "\n\n", 2)
	filesMD = parts[0]
	if len(parts) > 1 {
		prompt = parts[1]
	}
	return filesMD, prompt
}

// ExtractFilePaths pulls path candidates from a markdown bullet list, e.g.
// "- path/to/file.py" or "* `other/file.go`". Surrounding backticks are
// stripped. Candidates are returned unique and sorted; whether they name real
// files is the caller's problem.
func ExtractFilePaths(text string) []string {
	seen := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
			continue
		}
		candidate := strings.TrimSpace(line[2:])
		if strings.HasPrefix(candidate, "`") && strings.HasSuffix(candidate, "`") {
			candidate = strings.Trim(candidate, "`")
		}
		if candidate != "" {
			seen[candidate] = true
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// existingFiles keeps only candidates that resolve to regular files, checked
// relative to the working directory since that is where aider runs.
func existingFiles(candidates []string) []string {
	var files []string
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			files = append(files, c)
		}
	}
	return files
}
