// Package ingest turns source files into review-ready documents. Markdown
// is split into sections on headings; anything else is treated as plain
// text and reviewed as a single section.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/redlinehq/redline/document"
)

// Options control how a source file is split.
type Options struct {
	// SplitLevel is the deepest heading level that starts a new section.
	// 0 disables splitting: the whole file becomes one section.
	SplitLevel int

	// Title overrides the document title; defaults to the file name.
	Title string
}

// File reads path and builds a Document. The format is chosen by extension:
// .md/.markdown files are split on headings, everything else is ingested
// whole.
func File(path string, opts Options) (*document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}

	title := opts.Title
	if title == "" {
		title = filepath.Base(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Markdown(title, data, opts), nil
	default:
		doc := document.New(title, "text")
		doc.AddSection("Full Text", strings.TrimSpace(string(data)))
		return doc, nil
	}
}

type headingMark struct {
	title        string
	headingStart int // byte offset of the heading line
	contentStart int // byte offset just past the heading line
}

// Markdown splits source into sections on ATX headings up to
// opts.SplitLevel (default 2). Text before the first heading becomes a
// preamble section; duplicate titles get a counter suffix so section
// identity stays unambiguous in reports.
func Markdown(title string, source []byte, opts Options) *document.Document {
	splitLevel := opts.SplitLevel
	if splitLevel == 0 {
		splitLevel = 2
	}

	doc := document.New(title, "markdown")

	root := goldmark.New().Parser().Parse(text.NewReader(source))
	var marks []headingMark
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Level > splitLevel {
			continue
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			continue
		}
		seg := lines.At(0)

		start := seg.Start
		for start > 0 && source[start-1] != '\n' {
			start--
		}
		end := seg.Stop
		for end < len(source) && source[end] != '\n' {
			end++
		}
		marks = append(marks, headingMark{
			title:        strings.TrimSpace(string(seg.Value(source))),
			headingStart: start,
			contentStart: end,
		})
	}

	if len(marks) == 0 {
		body := strings.TrimSpace(string(source))
		if body != "" {
			doc.AddSection("Full Text", body)
		}
		return doc
	}

	seen := make(map[string]int)
	addSection := func(name, body string) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		doc.AddSection(name, body)
	}

	if preamble := string(source[:marks[0].headingStart]); strings.TrimSpace(preamble) != "" {
		addSection("Preamble", preamble)
	}
	for i, m := range marks {
		stop := len(source)
		if i+1 < len(marks) {
			stop = marks[i+1].headingStart
		}
		addSection(m.title, string(source[m.contentStart:stop]))
	}
	return doc
}
