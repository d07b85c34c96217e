package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github/itish2003/rentalqa/models"
)

// Document formats recognised by the loader.
const (
	FormatPDF      = "pdf"
	FormatText     = "text"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// PDFExtractor returns the plain text of the PDF at path.
type PDFExtractor func(ctx context.Context, path string) (string, error)

// Loader reads a corpus directory into SourceDocuments.
type Loader struct {
	extractPDF PDFExtractor
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPDFExtractor replaces the default langchaingo PDF extractor.
func WithPDFExtractor(fn PDFExtractor) LoaderOption {
	return func(l *Loader) {
		if fn != nil {
			l.extractPDF = fn
		}
	}
}

// NewLoader creates a Loader. PDFs go through langchaingo unless overridden.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{extractPDF: ExtractPDFLangchain}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var loaderLog = logrus.WithField("component", "loader")

// FormatOf maps a file extension to a document format.
func FormatOf(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, true
	case ".txt":
		return FormatText, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".html", ".htm":
		return FormatHTML, true
	default:
		return "", false
	}
}

// Load walks dir in lexical order and loads every supported file. Files that
// fail to load are skipped and returned as LoadErrors; the returned error is
// only set when the directory itself cannot be walked.
func (l *Loader) Load(ctx context.Context, dir string) ([]models.SourceDocument, []*LoadError, error) {
	var (
		docs     []models.SourceDocument
		failures []*LoadError
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := FormatOf(path); !ok {
			loaderLog.Debugf("skipping unsupported file %s", path)
			return nil
		}
		doc, err := l.LoadFile(ctx, dir, path)
		if err != nil {
			var le *LoadError
			if !errors.As(err, &le) {
				le = &LoadError{Path: path, Err: err}
			}
			loaderLog.Warnf("skipping %s: %v", path, le.Err)
			failures = append(failures, le)
			return nil
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk corpus directory %s: %w", dir, err)
	}
	loaderLog.Infof("loaded %d documents from %s (%d skipped)", len(docs), dir, len(failures))
	return docs, failures, nil
}

// SourceID names path relative to the corpus root, with forward slashes. The
// same file gets the same ID however root is spelled. Paths outside root keep
// their cleaned form.
func SourceID(root, path string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(path))
	}
	if absRoot == absPath {
		return filepath.Base(absPath)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(filepath.Clean(path))
	}
	return filepath.ToSlash(rel)
}

// LoadFile reads a single file of the corpus rooted at root. Any failure is a
// *LoadError.
func (l *Loader) LoadFile(ctx context.Context, root, path string) (models.SourceDocument, error) {
	format, ok := FormatOf(path)
	if !ok {
		return models.SourceDocument{}, &LoadError{Path: path, Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}
	hash, err := calculateFileHash(path)
	if err != nil {
		return models.SourceDocument{}, &LoadError{Path: path, Err: err}
	}

	var text string
	switch format {
	case FormatPDF:
		text, err = l.extractPDF(ctx, path)
	case FormatHTML:
		text, err = extractTextFromHTML(path)
	default:
		var content []byte
		content, err = os.ReadFile(path)
		text = string(content)
	}
	if err != nil {
		return models.SourceDocument{}, &LoadError{Path: path, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return models.SourceDocument{}, &LoadError{Path: path, Err: errors.New("no extractable text")}
	}

	return models.SourceDocument{
		ID:     SourceID(root, path),
		Text:   text,
		Format: format,
		Hash:   hash,
	}, nil
}

// SetUnidocLicense registers a metered UniDoc key. It must be called before
// ExtractPDFUnidoc is used.
func SetUnidocLicense(key string) error {
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set unidoc license key: %w", err)
	}
	return nil
}

// ExtractPDFUnidoc uses UniPDF to get all text from a PDF file.
func ExtractPDFUnidoc(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return "", err
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", err
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

// ExtractPDFLangchain extracts PDF text with langchaingo's pure-Go loader.
func ExtractPDFLangchain(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	pages, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		texts = append(texts, p.PageContent)
	}
	return strings.Join(texts, "\n\n"), nil
}

func extractTextFromHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("p, div, li, tr, br, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	// Keep one blank line between blocks so the chunker can see paragraphs.
	var lines []string
	blank := false
	for _, line := range strings.Split(doc.Find("body").Text(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		lines = append(lines, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func calculateFileHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
