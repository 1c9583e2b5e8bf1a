package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Content is the typed payload of a block. The variant set matches the
// BlockType enumeration: adding a block type means adding a variant here.
type Content interface {
	accepts(t BlockType) bool
	validate() error
	clone() Content
}

// MarkType is an inline style.
type MarkType string

const (
	MarkBold      MarkType = "bold"
	MarkItalic    MarkType = "italic"
	MarkUnderline MarkType = "underline"
)

// Valid reports whether m is a known mark type.
func (m MarkType) Valid() bool {
	return m == MarkBold || m == MarkItalic || m == MarkUnderline
}

// Mark is a half-open [Start, End) interval over the UTF-16 offsets of a
// block's text.
type Mark struct {
	Type  MarkType `json:"type" bson:"type"`
	Start int      `json:"start" bson:"start"`
	End   int      `json:"end" bson:"end"`
}

// TextContent backs paragraph, heading and quote blocks.
type TextContent struct {
	Text  string `json:"text"`
	Marks []Mark `json:"marks"`
}

// TodoContent is a checkable text line.
type TodoContent struct {
	Text    string `json:"text"`
	Marks   []Mark `json:"marks"`
	Checked bool   `json:"checked"`
}

type CodeContent struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type ImageContent struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

type LinkContent struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// PageRef is a weak relation to another page: the target id plus a cached
// display title. The block does not own the page, and the title is
// refreshed from the live page on every read.
type PageRef struct {
	PageID string `json:"pageId"`
	Title  string `json:"title,omitempty"`
}

func (c *TextContent) accepts(t BlockType) bool {
	return t.IsText() && t != BlockTypeTodo
}
func (c *TodoContent) accepts(t BlockType) bool  { return t == BlockTypeTodo }
func (c *CodeContent) accepts(t BlockType) bool  { return t == BlockTypeCode }
func (c *ImageContent) accepts(t BlockType) bool { return t == BlockTypeImage }
func (c *LinkContent) accepts(t BlockType) bool  { return t == BlockTypeLink }
func (c *PageRef) accepts(t BlockType) bool      { return t == BlockTypePage }

func (c *TextContent) validate() error { return validateMarks(c.Marks) }
func (c *TodoContent) validate() error { return validateMarks(c.Marks) }
func (c *CodeContent) validate() error { return nil }

func (c *ImageContent) validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: image dimensions must be non-negative", ErrValidation)
	}
	return nil
}

func (c *LinkContent) validate() error {
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid link url: %v", ErrValidation, err)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "mailto" {
		return fmt.Errorf("%w: unsupported link scheme %q", ErrValidation, u.Scheme)
	}
	return nil
}

func (c *PageRef) validate() error {
	if strings.TrimSpace(c.PageID) == "" {
		return fmt.Errorf("%w: page reference without pageId", ErrInvalidReference)
	}
	return nil
}

func (c *TextContent) clone() Content {
	cp := *c
	cp.Marks = cloneMarks(c.Marks)
	return &cp
}

func (c *TodoContent) clone() Content {
	cp := *c
	cp.Marks = cloneMarks(c.Marks)
	return &cp
}

func (c *CodeContent) clone() Content  { cp := *c; return &cp }
func (c *ImageContent) clone() Content { cp := *c; return &cp }
func (c *LinkContent) clone() Content  { cp := *c; return &cp }
func (c *PageRef) clone() Content      { cp := *c; return &cp }

func cloneMarks(m []Mark) []Mark {
	if m == nil {
		return []Mark{}
	}
	return append([]Mark(nil), m...)
}

func validateMarks(marks []Mark) error {
	for _, m := range marks {
		if !m.Type.Valid() {
			return fmt.Errorf("%w: unknown mark type %q", ErrValidation, m.Type)
		}
		if m.Start < 0 || m.End <= m.Start {
			return fmt.Errorf("%w: invalid mark range [%d,%d)", ErrValidation, m.Start, m.End)
		}
	}
	return nil
}

// NewContent returns an empty content variant for t.
func NewContent(t BlockType) (Content, error) {
	switch t {
	case BlockTypeParagraph, BlockTypeHeading1, BlockTypeHeading2, BlockTypeHeading3, BlockTypeQuote:
		return &TextContent{Marks: []Mark{}}, nil
	case BlockTypeTodo:
		return &TodoContent{Marks: []Mark{}}, nil
	case BlockTypeCode:
		return &CodeContent{}, nil
	case BlockTypeImage:
		return &ImageContent{}, nil
	case BlockTypeLink:
		return &LinkContent{}, nil
	case BlockTypePage:
		return &PageRef{}, nil
	}
	return nil, fmt.Errorf("%w: unknown block type %q", ErrInvalidReference, t)
}

// DecodeContent decodes a JSON payload into the variant selected by t.
// An empty payload yields the empty variant.
func DecodeContent(t BlockType, data []byte) (Content, error) {
	c, err := NewContent(t)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("%w: decode %s content: %v", ErrInvalidReference, t, err)
	}
	switch v := c.(type) {
	case *TextContent:
		if v.Marks == nil {
			v.Marks = []Mark{}
		}
	case *TodoContent:
		if v.Marks == nil {
			v.Marks = []Mark{}
		}
	}
	return c, nil
}

// TextOf returns the text and marks of text-bearing content.
func TextOf(c Content) (string, []Mark, bool) {
	switch v := c.(type) {
	case *TextContent:
		return v.Text, v.Marks, true
	case *TodoContent:
		return v.Text, v.Marks, true
	}
	return "", nil, false
}

// SetText replaces the text and marks of text-bearing content.
func SetText(c Content, text string, marks []Mark) bool {
	if marks == nil {
		marks = []Mark{}
	}
	switch v := c.(type) {
	case *TextContent:
		v.Text, v.Marks = text, marks
		return true
	case *TodoContent:
		v.Text, v.Marks = text, marks
		return true
	}
	return false
}
