// Package markdown prepares task and comment text for the terminal. Task
// references and ISO dates in prose are rewritten before the result is
// rendered with glamour.
package markdown

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/tgienger/todosky/internal/models"
)

var (
	taskRefPattern = regexp.MustCompile(`task:([A-Za-z0-9]+)`)
	isoDatePattern = regexp.MustCompile(`\d{4}[-.]\d{2}[-.]\d{2}`)
)

// Resolver looks up a task by sqid for inline references
type Resolver func(sqid string) (models.Task, bool)

type edit struct {
	start, stop int
	with        string
}

// Rewrite replaces task:SQID references with an inline task marker and
// annotates ISO dates with their distance from now. Code spans and code
// blocks are left alone. A nil resolve renders every reference as
// unresolved.
func Rewrite(src string, resolve Resolver, now time.Time) string {
	source := []byte(src)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var edits []edit
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock, ast.KindRawHTML, ast.KindAutoLink:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			seg := n.(*ast.Text).Segment
			edits = append(edits, scan(source, seg.Start, seg.Stop, resolve, now)...)
		}
		return ast.WalkContinue, nil
	})

	if len(edits) == 0 {
		return src
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	last := 0
	for _, e := range edits {
		if e.start < last {
			continue
		}
		b.Write(source[last:e.start])
		b.WriteString(e.with)
		last = e.stop
	}
	b.Write(source[last:])
	return b.String()
}

func scan(source []byte, start, stop int, resolve Resolver, now time.Time) []edit {
	chunk := source[start:stop]
	var edits []edit
	for _, m := range taskRefPattern.FindAllSubmatchIndex(chunk, -1) {
		sqid := string(chunk[m[2]:m[3]])
		edits = append(edits, edit{start: start + m[0], stop: start + m[1], with: taskMarker(sqid, resolve)})
	}
	for _, m := range isoDatePattern.FindAllIndex(chunk, -1) {
		raw := string(chunk[m[0]:m[1]])
		if rel, ok := RelativeDay(raw, now); ok {
			edits = append(edits, edit{start: start + m[0], stop: start + m[1], with: raw + " (" + rel + ")"})
		}
	}
	return edits
}

func taskMarker(sqid string, resolve Resolver) string {
	if resolve != nil {
		if t, ok := resolve(sqid); ok {
			return fmt.Sprintf("**[TASK %s · %s]**", t.Title, t.Status)
		}
	}
	return fmt.Sprintf("**[TASK %s]**", sqid)
}

// RelativeDay describes how many calendar days raw lies from now, e.g.
// "today", "in 3d" or "2d ago". Dates may use - or . as separator.
func RelativeDay(raw string, now time.Time) (string, bool) {
	d, err := time.ParseInLocation("2006-01-02", strings.ReplaceAll(raw, ".", "-"), now.Location())
	if err != nil {
		return "", false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	days := int(d.Sub(today).Round(time.Hour).Hours() / 24)
	switch {
	case days == 0:
		return "today", true
	case days > 0:
		return fmt.Sprintf("in %dd", days), true
	default:
		return fmt.Sprintf("%dd ago", -days), true
	}
}

// Renderer turns markdown into styled terminal text
type Renderer struct {
	Style   string
	Width   int
	Resolve Resolver
	Now     func() time.Time
}

// Render rewrites and renders src. When glamour fails the rewritten
// markdown is returned as is.
func (r Renderer) Render(src string) string {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	rewritten := Rewrite(src, r.Resolve, now())

	style := r.Style
	if style == "" {
		style = "dark"
	}
	width := r.Width
	if width <= 0 {
		width = 80
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return rewritten
	}
	out, err := tr.Render(rewritten)
	if err != nil {
		return rewritten
	}
	return strings.TrimSpace(out)
}
