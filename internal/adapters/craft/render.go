package craft

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"realty_site/internal/domain"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

type chunk struct {
	text string
	list bool
}

// RenderMarkdown converts a block tree to markdown. Consecutive list items share a
// list; every other block is its own paragraph.
func RenderMarkdown(blocks []domain.Block) string {
	chunks := render(blocks, 0)
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			if c.list && chunks[i-1].list {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(c.text)
	}
	if b.Len() == 0 {
		return ""
	}
	return b.String() + "\n"
}

// ToHTML renders markdown with GitHub-flavoured extensions. Raw HTML is escaped.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func render(blocks []domain.Block, depth int) []chunk {
	var out []chunk
	n := 0
	for _, b := range blocks {
		if isText(b) && b.ListStyle == "numbered" {
			n++
		} else {
			n = 0
		}
		text, list := renderBlock(b, n)

		switch {
		case b.Type == "page" || b.Type == "card":
			// sub pages are flattened into the parent
			if text != "" {
				out = append(out, chunk{text: indent(text, depth)})
			}
			out = append(out, render(b.Blocks, depth)...)
		case list:
			var sb strings.Builder
			sb.WriteString(indent(text, depth))
			for _, c := range render(b.Blocks, depth+1) {
				sb.WriteString("\n")
				sb.WriteString(c.text)
			}
			out = append(out, chunk{text: sb.String(), list: true})
		default:
			if text != "" {
				out = append(out, chunk{text: indent(text, depth)})
			}
			out = append(out, render(b.Blocks, depth)...)
		}
	}
	return out
}

func isText(b domain.Block) bool { return b.Type == "" || b.Type == "text" }

func renderBlock(b domain.Block, n int) (string, bool) {
	content := strings.TrimSpace(b.Content)
	switch b.Type {
	case "code":
		return "```" + b.Language + "\n" + strings.TrimRight(b.Content, "\n") + "\n```", false
	case "image":
		if b.URL == "" {
			return "", false
		}
		return fmt.Sprintf("![%s](%s)", strings.ReplaceAll(b.AltText, "]", `\]`), b.URL), false
	case "url", "link", "richUrl":
		if b.URL == "" {
			return content, false
		}
		title := content
		if title == "" {
			title = b.URL
		}
		return fmt.Sprintf("[%s](%s)", title, b.URL), false
	case "line", "divider":
		return "---", false
	case "page", "card":
		if content == "" {
			return "", false
		}
		return "## " + content, false
	}

	if content == "" {
		return "", false
	}
	switch b.ListStyle {
	case "bullet", "toggle":
		return "- " + content, true
	case "numbered":
		return fmt.Sprintf("%d. %s", n, content), true
	case "todo", "task":
		box := " "
		if b.Checked {
			box = "x"
		}
		return "- [" + box + "] " + content, true
	}
	switch b.TextStyle {
	case "title":
		return "# " + content, false
	case "subtitle", "heading", "h1":
		return "## " + content, false
	case "subheading", "strong", "h2":
		return "### " + content, false
	case "caption":
		return "*" + content + "*", false
	case "quote", "block":
		return "> " + strings.ReplaceAll(content, "\n", "\n> "), false
	}
	return content, false
}

func indent(s string, depth int) string {
	if depth == 0 {
		return s
	}
	pad := strings.Repeat("  ", depth)
	return pad + strings.ReplaceAll(s, "\n", "\n"+pad)
}

// Excerpt returns the first body paragraph as plain text, cut to max runes on a word boundary.
func Excerpt(blocks []domain.Block, max int) string {
	for _, b := range blocks {
		if isText(b) && b.ListStyle == "" && (b.TextStyle == "" || b.TextStyle == "body") {
			if s := plain(b.Content); s != "" {
				return truncate(s, max)
			}
		}
		if s := Excerpt(b.Blocks, max); s != "" {
			return s
		}
	}
	return ""
}

// CoverImage returns the first image URL in document order.
func CoverImage(blocks []domain.Block) string {
	for _, b := range blocks {
		if b.Type == "image" && b.URL != "" {
			return b.URL
		}
		if u := CoverImage(b.Blocks); u != "" {
			return u
		}
	}
	return ""
}

var mdMarks = strings.NewReplacer("**", "", "__", "", "*", "", "_", "", "`", "", "#", "")

func plain(s string) string {
	return strings.Join(strings.Fields(mdMarks.Replace(s)), " ")
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
