package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/counsel/internal/domain"
)

// Loader reads source documents from a folder.
// Unsupported extensions are skipped silently; unreadable files are
// logged and skipped so one corrupt file does not abort the run.
type Loader struct {
	defaults MetadataDefaults
	logger   *zap.Logger
}

// NewLoader creates a Loader.
func NewLoader(defaults MetadataDefaults, logger *zap.Logger) *Loader {
	return &Loader{defaults: defaults, logger: logger}
}

// Load reads all supported documents from sourceFolder.
// Returns an error if the folder is unreadable or yields no documents.
func (l *Loader) Load(ctx context.Context, sourceFolder string) ([]domain.Document, error) {
	entries, err := os.ReadDir(sourceFolder)
	if err != nil {
		return nil, fmt.Errorf("read source folder: %w", err)
	}

	var docs []domain.Document
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		filename := entry.Name()
		path := filepath.Join(sourceFolder, filename)

		var pages []domain.Page
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".pdf":
			pages, err = loadPDF(path)
		case ".txt", ".md":
			pages, err = loadText(path)
		default:
			continue
		}
		if err != nil {
			l.logger.Warn("skipping unreadable document",
				zap.String("file", filename),
				zap.Error(fmt.Errorf("%w: %w", domain.ErrIngest, err)),
			)
			continue
		}

		docs = append(docs, domain.Document{
			Meta:  DeriveMetadata(filename, l.defaults),
			Pages: pages,
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no supported documents in %s", domain.ErrIngest, sourceFolder)
	}
	return docs, nil
}

// loadPDF extracts plain text per page. Page numbers are 1-based.
func loadPDF(path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []domain.Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	return pages, nil
}

// loadText reads a plain-text file; form feeds separate pages.
func loadText(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var pages []domain.Page
	for i, part := range strings.Split(string(data), "\f") {
		pages = append(pages, domain.Page{Number: i + 1, Text: part})
	}
	return pages, nil
}
