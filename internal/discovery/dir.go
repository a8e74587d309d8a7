package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

// Dir resolves papers from a local directory holding <id>.txt or <id>.pdf files, each with
// an optional <id>.json metadata sidecar.
type Dir struct {
	root string
}

type sidecar struct {
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Authors       []string `json:"authors"`
	Year          int      `json:"year"`
	PublishedDate string   `json:"published_date"`
	Cites         []string `json:"cites"`
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) Resolve(ctx context.Context, paperID string) (Resolved, error) {
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}
	meta, err := d.readSidecar(paperID)
	if err != nil {
		return Resolved{}, err
	}

	var text, ref string
	txtPath := filepath.Join(d.root, fileName(paperID, ".txt"))
	pdfPath := filepath.Join(d.root, fileName(paperID, ".pdf"))
	switch {
	case exists(txtPath):
		b, err := os.ReadFile(txtPath)
		if err != nil {
			return Resolved{}, fmt.Errorf("read %s: %w", txtPath, err)
		}
		text, ref = util.SanitizeText(string(b)), txtPath
		if text == "" {
			return Resolved{}, util.Mark(fmt.Errorf("%s is empty", txtPath), util.ErrInvalidInput)
		}
	case exists(pdfPath):
		text, err = ExtractPDFText(pdfPath)
		if err != nil {
			return Resolved{}, err
		}
		ref = pdfPath
	default:
		return Resolved{}, util.Mark(fmt.Errorf("paper %s not in %s", paperID, d.root), util.ErrNotFound)
	}

	p := models.Paper{
		PaperID:       paperID,
		Title:         meta.Title,
		Abstract:      meta.Abstract,
		Authors:       meta.Authors,
		Year:          meta.Year,
		Source:        "dir",
		PDFReference:  ref,
		PublishedDate: meta.PublishedDate,
	}
	if p.Title == "" {
		p.Title = heuristicTitle(text)
	}
	return Resolved{Paper: p, Text: text, Citations: meta.Cites}, nil
}

// Search matches query terms against sidecar titles and abstracts.
func (d *Dir) Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	_ = ctx
	terms := util.Terms(query)
	if len(terms) == 0 {
		return nil, util.Mark(errors.New("empty search query"), util.ErrInvalidInput)
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	matches, err := filepath.Glob(filepath.Join(d.root, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list sidecars: %w", err)
	}
	sort.Strings(matches)

	var out []models.Paper
	for _, path := range matches {
		id := strings.TrimSuffix(filepath.Base(path), ".json")
		meta, err := d.readSidecar(id)
		if err != nil {
			return nil, err
		}
		hay := strings.ToLower(meta.Title + " " + meta.Abstract)
		for _, t := range terms {
			if strings.Contains(hay, t) {
				out = append(out, models.Paper{
					PaperID: id, Title: meta.Title, Abstract: meta.Abstract, Authors: meta.Authors,
					Year: meta.Year, Source: "dir", PublishedDate: meta.PublishedDate,
				})
				break
			}
		}
		if len(out) == maxResults {
			break
		}
	}
	return out, nil
}

func (d *Dir) readSidecar(paperID string) (sidecar, error) {
	var meta sidecar
	path := filepath.Join(d.root, fileName(paperID, ".json"))
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, util.Mark(fmt.Errorf("parse %s: %w", path, err), util.ErrInvalidInput)
	}
	return meta, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
