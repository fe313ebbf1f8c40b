package llm

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spherical/pdf2md/internal/domain"
)

// buildPrompt creates the conversion prompt for a batch of consecutive pages
func buildPrompt(pages []domain.Page) string {
	var sb strings.Builder

	sb.WriteString("You are converting scanned document pages to Markdown.\n\n")
	if len(pages) == 1 {
		fmt.Fprintf(&sb, "The attached image is page %d of the document.\n", pages[0].Index+1)
	} else {
		fmt.Fprintf(&sb, "The %d attached images are consecutive pages %d to %d of the document, in order.\n",
			len(pages), pages[0].Index+1, pages[len(pages)-1].Index+1)
	}

	sb.WriteString(`
Convert the content of these images to Markdown format.

STRUCTURE:
- Preserve the structure of the original: headings, paragraphs, lists, tables and emphasis
- Map visual heading levels to #, ##, ### consistently across pages
- Render tables as GitHub-flavoured Markdown tables with a header row
- Keep list nesting and numbering as printed
- Keep the reading order of multi-column layouts (left column first)

CONTENT RULES:
- Transcribe text faithfully; do not summarise, translate or invent content
- Continue sentences and tables that run across a page break without repeating headers
- Omit running headers, footers and page numbers
- Describe figures briefly in italics, e.g. *Figure: bar chart of quarterly revenue*

OUTPUT RULES:
- Output ONLY the Markdown content
- NEVER wrap the output in code fences
- If a page has no readable content, output nothing for it`)

	return sb.String()
}

var fencePattern = regexp.MustCompile("(?s)^```(?:markdown|md)?[ \\t]*\\r?\\n(.*?)\\r?\\n?```$")

// cleanMarkdown strips a code fence wrapping the whole response, which
// models add despite being told not to.
func cleanMarkdown(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1]) + "\n"
	}
	if trimmed == "" {
		return ""
	}
	return trimmed + "\n"
}
