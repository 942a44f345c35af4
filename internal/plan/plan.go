// Package plan holds the plan data model: ordered, titled sections parsed
// from generated markdown, plus the on-disk store keyed by slug.
package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// Section is one step of a plan. Index is the section's position in the
// plan's ordered sequence and is stable once assigned.
type Section struct {
	Index int
	Title string
	Body  string
}

// Plan is an ordered list of sections derived from a feature description.
type Plan struct {
	// Title is the human-readable plan title, from the first H1 heading.
	Title string

	// Slug is the filesystem-safe identifier derived from Title.
	Slug string

	// Sections are the ordered plan steps.
	Sections []Section

	// Raw is the original markdown the plan was parsed from.
	Raw string
}

// MalformedPlanError indicates markdown that could not be parsed into a plan.
// The raw text is preserved so callers can dump it for debugging.
type MalformedPlanError struct {
	Reason string
	Raw    string
}

func (e *MalformedPlanError) Error() string {
	return fmt.Sprintf("malformed plan: %s", e.Reason)
}

const untitledPlanTitle = "untitled-plan"

var (
	sectionHeadingRe = regexp.MustCompile(`(?m)^## +(.*)$`)
	titleHeadingRe   = regexp.MustCompile(`(?m)^# +(.*)$`)

	slugWhitespaceRe = regexp.MustCompile(`\s+`)
	slugInvalidRe    = regexp.MustCompile(`[^a-z0-9\-]`)
	slugDashRunRe    = regexp.MustCompile(`-+`)
)

// Parse splits markdown into a plan. Sections are delimited by "## " headings;
// the plan title comes from the first "# " heading. Content before the first
// section heading is dropped. Markdown with zero section headings is malformed.
func Parse(markdown string) (*Plan, error) {
	headings := sectionHeadingRe.FindAllStringSubmatchIndex(markdown, -1)
	if len(headings) == 0 {
		return nil, &MalformedPlanError{Reason: "no section headings found", Raw: markdown}
	}

	title := extractTitle(markdown)
	p := &Plan{
		Title: title,
		Slug:  Slugify(title),
		Raw:   markdown,
	}

	for i, h := range headings {
		sectionTitle := strings.TrimSpace(markdown[h[2]:h[3]])
		bodyStart := h[1]
		bodyEnd := len(markdown)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1][0]
		}
		p.Sections = append(p.Sections, Section{
			Index: i,
			Title: sectionTitle,
			Body:  strings.TrimSpace(markdown[bodyStart:bodyEnd]),
		})
	}

	return p, nil
}

// extractTitle returns the text of the first H1 heading, or a fallback title.
func extractTitle(markdown string) string {
	if m := titleHeadingRe.FindStringSubmatch(markdown); m != nil {
		if title := strings.TrimSpace(m[1]); title != "" {
			return title
		}
	}
	return untitledPlanTitle
}

// Slugify converts a plan title into a slug suitable for file and directory
// names: lowercased, whitespace runs collapsed to hyphens, everything outside
// [a-z0-9-] stripped. Deterministic, so regenerating a plan with the same
// title maps to the same slug.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugWhitespaceRe.ReplaceAllString(s, "-")
	s = slugInvalidRe.ReplaceAllString(s, "")
	s = slugDashRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "default-plan-title"
	}
	return s
}

// Section returns the section at index, or nil when out of range.
func (p *Plan) Section(index int) *Section {
	if index < 0 || index >= len(p.Sections) {
		return nil
	}
	return &p.Sections[index]
}
