// Package output names and persists the Markdown produced for each section.
package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spherical/pdf2md/internal/domain"
)

// Extension is appended to every generated file
const Extension = ".md"

// Name derives the file name for a section from the document base name and
// its inclusive 0-based page range. Page numbers in the name are 1-based.
//
//	Name("doc", 0, 0) == "doc_page_1.md"
//	Name("doc", 0, 4) == "doc_pages_1-5.md"
func Name(baseName string, startPage, endPage int) string {
	if startPage == endPage {
		return fmt.Sprintf("%s_page_%d%s", baseName, startPage+1, Extension)
	}
	return fmt.Sprintf("%s_pages_%d-%d%s", baseName, startPage+1, endPage+1, Extension)
}

// BaseName returns the file name of path without directory and extension
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// File pairs generated text with the name of its section
func File(baseName string, c domain.GeneratedContent) domain.OutputFile {
	return domain.OutputFile{
		Path:    Name(baseName, c.Section.StartPage, c.Section.EndPage),
		Content: c.Text,
	}
}
