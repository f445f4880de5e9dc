package extract

import (
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	appErr "ragserver/internal/pkg/errors"
)

// Page is one unit of source text in reading order. Plain-text sources
// produce a single page with Number 0 (unknown).
type Page struct {
	Number int
	Text   string
}

// FileType reports the normalized type for a filename, or "" when the
// extension is not ingestible.
func FileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return "text"
	case ".md", ".markdown":
		return "markdown"
	default:
		return ""
	}
}

// Pages extracts plain text from raw file bytes. Unsupported extensions are
// a validation error, not an internal one.
func Pages(filename string, data []byte) ([]Page, error) {
	switch FileType(filename) {
	case "text":
		return []Page{{Number: 0, Text: string(data)}}, nil
	case "markdown":
		return []Page{{Number: 0, Text: markdownToText(data)}}, nil
	default:
		return nil, appErr.ErrInvalid
	}
}

// markdownToText walks the goldmark AST and keeps only readable content:
// paragraph/heading text and fenced code bodies. Markup characters would
// otherwise pollute both embeddings and extractive answers.
func markdownToText(source []byte) string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.FencedCodeBlock:
			var sb strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				sb.Write(line.Value(source))
			}
			if code := strings.TrimSpace(sb.String()); code != "" {
				blocks = append(blocks, code)
			}
		default:
			if txt := nodeText(node, source); txt != "" {
				blocks = append(blocks, txt)
			}
		}
	}
	return strings.Join(blocks, "\n\n")
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
			if node.(*ast.Text).SoftLineBreak() || node.(*ast.Text).HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
