package retrieval

import (
	"regexp"
	"strings"
)

// pdfDatePattern matches the year in PDF-style date strings such as
// "D:20240607153000Z".
var pdfDatePattern = regexp.MustCompile(`^D:(\d{4})`)

// NormalizeMetadata collapses the metadata variants produced by different
// document loaders into the canonical passage fields.
//
// Handled variants:
//   - "authors" is folded into "author" when "author" is absent
//   - "year" falls back to the year embedded in PDF creation or
//     modification dates ("D:YYYY...")
//
// Unrelated keys pass through unchanged.
func NormalizeMetadata(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = strings.TrimSpace(v)
	}

	if out["author"] == "" && out["authors"] != "" {
		out["author"] = out["authors"]
	}
	delete(out, "authors")

	if out["year"] == "" {
		for _, key := range []string{"creationdate", "creation_date", "moddate", "mod_date"} {
			if m := pdfDatePattern.FindStringSubmatch(out[key]); m != nil {
				out["year"] = m[1]
				break
			}
		}
	}

	return out
}

// PassageFromDocument builds a Passage from loader output, applying metadata
// normalization.
func PassageFromDocument(key, sourceID, content string, metadata map[string]string) Passage {
	meta := NormalizeMetadata(metadata)
	return Passage{
		Key:      key,
		SourceID: sourceID,
		Title:    meta["title"],
		Author:   meta["author"],
		Year:     meta["year"],
		Content:  content,
	}
}
