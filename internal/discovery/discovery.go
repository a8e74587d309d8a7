package discovery

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

// Resolved is everything ingestion needs to know about one paper.
type Resolved struct {
	Paper     models.Paper
	Text      string
	Citations []string
}

type Resolver interface {
	Resolve(ctx context.Context, paperID string) (Resolved, error)
}

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error)
}

// ExtractPDFText returns the sanitized plain text of the PDF at path.
func ExtractPDFText(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = util.Mark(fmt.Errorf("parse pdf %s: %v", path, r), util.ErrInvalidInput)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", util.Mark(fmt.Errorf("open pdf: %w", err), util.ErrInvalidInput)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", util.Mark(fmt.Errorf("extract pdf text: %w", err), util.ErrInvalidInput)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	text = util.SanitizeText(buf.String())
	if text == "" {
		return "", util.ErrNoExtractableText
	}
	return text, nil
}

// fileName maps a paper id to a flat file name; old-style arXiv ids contain a slash.
func fileName(paperID, ext string) string {
	return strings.ReplaceAll(paperID, "/", "_") + ext
}

// heuristicTitle returns the first non-empty line of text.
func heuristicTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return util.Snippet(line, 200)
		}
	}
	return ""
}
