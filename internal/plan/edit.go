package plan

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// ExtractSection returns the raw text of the section at index, including its
// "## " heading line, plus the [start, end) byte span it occupies in content.
// The span runs to the next section heading or to the end of the document.
func ExtractSection(content string, index int) (string, int, int, error) {
	headings := sectionHeadingRe.FindAllStringIndex(content, -1)
	if index < 0 || index >= len(headings) {
		return "", 0, 0, fmt.Errorf("no section %d in plan document", index)
	}

	start := headings[index][0]
	end := len(content)
	if index+1 < len(headings) {
		end = headings[index+1][0]
	}
	return content[start:end], start, end, nil
}

// ReplaceSection splices edited section text back into the stored plan
// markdown, leaving every other byte of the document untouched, and returns
// the reparsed plan. The edit may change the section count (an emptied
// section disappears); callers re-sync progress afterwards. A replacement
// that would leave the document without any section is rejected and nothing
// is written.
func (s *Store) ReplaceSection(slug string, index int, newText string) (*Plan, error) {
	path := filepath.Join(s.dir, slug, slug+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, slug)
		}
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}

	content := string(data)
	_, start, end, err := ExtractSection(content, index)
	if err != nil {
		return nil, err
	}

	updated := content[:start] + newText + content[end:]
	p, err := Parse(updated)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return nil, fmt.Errorf("failed to write plan: %w", err)
	}
	p.Slug = slug

	planLog.Info("section_replaced",
		slog.String("slug", slug),
		slog.Int("section", index))
	return p, nil
}
