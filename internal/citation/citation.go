// Package citation formats used-passage metadata into deduplicated,
// human-readable citation records in APA style ("Author (Year). Title.").
// Missing fields fall back to Spanish placeholder markers, matching the
// language of the assistant's replies.
package citation

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aula0/aula/internal/retrieval"
)

// Fallback markers for missing metadata.
const (
	// UnknownAuthor replaces a missing author ("unknown author").
	UnknownAuthor = "Autor desconocido"

	// NoDate replaces a missing year (abbreviation of "sin fecha").
	NoDate = "s.f."
)

// Citation is one formatted reference.
type Citation struct {
	Formatted string `json:"formatted"`
	SourceID  string `json:"sourceId"`
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Year      string `json:"year,omitempty"`
}

// Assemble converts used passages into citations, deduplicated by the fully
// formatted string. Two passages that render identically are emitted once,
// keeping the first occurrence's order. Pure function; malformed metadata is
// handled by the fallback chain, never an error.
func Assemble(used []retrieval.Result) []Citation {
	seen := make(map[string]struct{}, len(used))
	citations := make([]Citation, 0, len(used))

	for _, r := range used {
		p := r.Passage
		formatted := Format(p.Author, p.Year, p.Title, p.SourceID)
		if _, ok := seen[formatted]; ok {
			continue
		}
		seen[formatted] = struct{}{}

		citations = append(citations, Citation{
			Formatted: formatted,
			SourceID:  p.SourceID,
			Title:     p.Title,
			Author:    p.Author,
			Year:      p.Year,
		})
	}

	return citations
}

// Format renders a single citation string with the fallback chain:
// missing author -> UnknownAuthor, missing year -> NoDate, missing title ->
// source filename. Multiple authors collapse to "first-author et al.".
func Format(author, year, title, sourceID string) string {
	author = formatAuthor(author)
	if author == "" {
		author = UnknownAuthor
	}
	if year = strings.TrimSpace(year); year == "" {
		year = NoDate
	}
	if title = strings.TrimSpace(title); title == "" {
		title = filepath.Base(sourceID)
	}
	return author + " (" + year + "). " + strings.TrimSuffix(title, ".") + "."
}

// conjunctionPattern matches author-list conjunctions in English and
// Spanish, and ampersands.
var conjunctionPattern = regexp.MustCompile(`\s+(?:and|y|e)\s+|\s*&\s*`)

// formatAuthor collapses multi-author fields to "first-author et al.".
// Semicolons, conjunctions and ampersands always separate authors. Commas
// are ambiguous: "Smith, J." is one author, so comma-separated fields are
// treated as multi-author only when they split into more than two parts.
func formatAuthor(author string) string {
	author = strings.TrimSpace(author)
	if author == "" {
		return ""
	}

	if idx := strings.Index(author, ";"); idx >= 0 {
		return etAl(author[:idx])
	}
	if loc := conjunctionPattern.FindStringIndex(author); loc != nil {
		return etAl(author[:loc[0]])
	}

	parts := strings.Split(author, ",")
	if len(parts) > 2 {
		// "Last, F., Other, G." keeps the first "Last, F." pair.
		return etAl(parts[0] + "," + parts[1])
	}

	return author
}

func etAl(first string) string {
	first = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(first), ","))
	if first == "" {
		return ""
	}
	return first + " et al."
}
