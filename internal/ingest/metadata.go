package ingest

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// yearRegex matches the first year-like token in a filename (2000–2099).
var yearRegex = regexp.MustCompile(`(20\d{2})`)

// artifactTokens are ingestion-artifact words stripped from filenames
// before deriving a human-readable title.
var artifactTokens = []string{"EDITED", "FRIDAY"}

// MetadataDefaults are the fixed values applied to every derived metadata.
type MetadataDefaults struct {
	DocumentType string
	Jurisdiction string
}

// DeriveMetadata derives provenance metadata from a source filename.
// Pure: the same filename always yields the same metadata. The page number
// is filled in later, per page.
func DeriveMetadata(filename string, defaults MetadataDefaults) domain.Metadata {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))

	var year int
	if m := yearRegex.FindString(name); m != "" {
		year, _ = strconv.Atoi(m)
	}

	title := strings.NewReplacer("_", " ", ",", "").Replace(name)
	for _, tok := range artifactTokens {
		title = strings.ReplaceAll(title, tok, "")
	}
	title = titleCase(strings.Join(strings.Fields(title), " "))

	return domain.Metadata{
		DocumentTitle: title,
		ActName:       title,
		Year:          year,
		DocumentType:  defaults.DocumentType,
		Jurisdiction:  defaults.Jurisdiction,
		SourceFile:    filename,
	}
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := true
	for _, r := range s {
		if prevSpace {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		prevSpace = unicode.IsSpace(r)
	}
	return b.String()
}
