package service

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"blocknotes/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Export Service — public pages as Markdown or HTML
// ─────────────────────────────────────────────────────────────

// ExportService renders public pages. Reads go through the public view, so
// exports never reveal private references.
type ExportService struct {
	pages  domain.PageStore
	reader *ReconcileService
	md     goldmark.Markdown
	// PageURL builds the link target of a page reference.
	PageURL func(pageID string) string
}

func NewExportService(pages domain.PageStore, reader *ReconcileService) *ExportService {
	return &ExportService{
		pages:  pages,
		reader: reader,
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// User text is escaped before rendering; raw HTML only comes
			// from the <u> tags emitted for underline marks.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		PageURL: func(id string) string { return "/public/pages/" + id },
	}
}

// Markdown renders a public page.
func (s *ExportService) Markdown(ctx context.Context, pageID string) (string, error) {
	page, err := publicPage(ctx, s.pages, pageID)
	if err != nil {
		return "", err
	}
	res, err := s.reader.ReadBlocks(ctx, ReadRequest{View: domain.ViewPublic, PageID: page.ID})
	if err != nil {
		return "", err
	}

	parts := []string{"# " + escapeMarkdown(page.Title)}
	for _, b := range res.Blocks {
		if md := s.blockMarkdown(b); md != "" {
			parts = append(parts, md)
		}
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

// HTML renders a public page through its Markdown form.
func (s *ExportService) HTML(ctx context.Context, pageID string) (string, error) {
	md, err := s.Markdown(ctx, pageID)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func (s *ExportService) blockMarkdown(b domain.Block) string {
	switch c := b.Content.(type) {
	case *domain.TextContent:
		text := styledMarkdown(c.Text, c.Marks)
		switch b.Type {
		case domain.BlockTypeHeading1:
			return "## " + text
		case domain.BlockTypeHeading2:
			return "### " + text
		case domain.BlockTypeHeading3:
			return "#### " + text
		case domain.BlockTypeQuote:
			return "> " + strings.ReplaceAll(text, "\n", "\n> ")
		}
		return text
	case *domain.TodoContent:
		box := "[ ]"
		if c.Checked {
			box = "[x]"
		}
		return "- " + box + " " + styledMarkdown(c.Text, c.Marks)
	case *domain.CodeContent:
		fence := codeFence(c.Code)
		return fence + c.Language + "\n" + c.Code + "\n" + fence
	case *domain.ImageContent:
		return fmt.Sprintf("![%s](<%s>)", escapeMarkdown(c.Caption), linkDest(c.URL))
	case *domain.LinkContent:
		text := c.Text
		if text == "" {
			text = c.URL
		}
		return fmt.Sprintf("[%s](<%s>)", escapeMarkdown(text), linkDest(c.URL))
	case *domain.PageRef:
		return fmt.Sprintf("[%s](<%s>)", escapeMarkdown(c.Title), s.PageURL(c.PageID))
	}
	return ""
}

// linkDest makes url safe inside an angle-bracket link destination. Only
// relative, http(s) and mailto targets survive.
func linkDest(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
	default:
		return "#"
	}
	return strings.NewReplacer("<", "%3C", ">", "%3E", "\n", "%0A").Replace(u.String())
}

func codeFence(code string) string {
	longest, run := 0, 0
	for _, r := range code {
		if r == '`' {
			run++
			longest = max(longest, run)
		} else {
			run = 0
		}
	}
	return strings.Repeat("`", max(3, longest+1))
}

const markdownSpecials = "\\`*_{}[]()<>#+-.!|~&"

func escapeMarkdown(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if strings.ContainsRune(markdownSpecials, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

var markDelims = map[domain.MarkType][2]string{
	domain.MarkBold:      {"**", "**"},
	domain.MarkItalic:    {"*", "*"},
	domain.MarkUnderline: {"<u>", "</u>"},
}

var markNesting = []domain.MarkType{domain.MarkBold, domain.MarkItalic, domain.MarkUnderline}

// styledMarkdown escapes text and wraps marked ranges. Overlapping marks of
// different types are closed and reopened so the delimiters nest.
func styledMarkdown(text string, marks []domain.Mark) string {
	units := utf16.Encode([]rune(text))
	bounds := map[int]bool{0: true, len(units): true}
	for _, m := range marks {
		bounds[max(0, min(m.Start, len(units)))] = true
		bounds[max(0, min(m.End, len(units)))] = true
	}
	cuts := make([]int, 0, len(bounds))
	for b := range bounds {
		cuts = append(cuts, b)
	}
	sort.Ints(cuts)

	var sb strings.Builder
	var open []domain.MarkType
	for i := 0; i+1 < len(cuts); i++ {
		from, to := cuts[i], cuts[i+1]
		active := map[domain.MarkType]bool{}
		for _, m := range marks {
			if m.Start <= from && m.End >= to {
				active[m.Type] = true
			}
		}

		keep := 0
		for keep < len(open) && active[open[keep]] {
			keep++
		}
		for j := len(open) - 1; j >= keep; j-- {
			sb.WriteString(markDelims[open[j]][1])
		}
		open = open[:keep]
		for _, t := range markNesting {
			if active[t] && !contains(open, t) {
				sb.WriteString(markDelims[t][0])
				open = append(open, t)
			}
		}
		sb.WriteString(escapeMarkdown(string(utf16.Decode(units[from:to]))))
	}
	for j := len(open) - 1; j >= 0; j-- {
		sb.WriteString(markDelims[open[j]][1])
	}
	return sb.String()
}

func contains(types []domain.MarkType, t domain.MarkType) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}
