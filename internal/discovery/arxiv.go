package discovery

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

// Arxiv resolves and searches papers through the arXiv export API.
type Arxiv struct {
	baseURL string
	pdfDir  string
	client  *http.Client
	logger  *slog.Logger
}

type ArxivOption func(*Arxiv)

func WithHTTPClient(c *http.Client) ArxivOption {
	return func(a *Arxiv) { a.client = c }
}

func WithLogger(l *slog.Logger) ArxivOption {
	return func(a *Arxiv) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewArxiv(baseURL, pdfDir string, opts ...ArxivOption) *Arxiv {
	a := &Arxiv{
		baseURL: strings.TrimRight(baseURL, "/"),
		pdfDir:  pdfDir,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("component", "arxiv")
	return a
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
		Type  string `xml:"type,attr"`
	} `xml:"link"`
}

func (e atomEntry) isError() bool {
	return strings.Contains(e.ID, "/api/errors") || strings.EqualFold(strings.TrimSpace(e.Title), "error")
}

func (e atomEntry) paper() models.Paper {
	id := e.ID
	if i := strings.Index(id, "/abs/"); i >= 0 {
		id = id[i+len("/abs/"):]
	}
	p := models.Paper{
		PaperID:       id,
		Title:         collapse(e.Title),
		Abstract:      collapse(e.Summary),
		Source:        "arxiv",
		PublishedDate: e.Published,
	}
	for _, a := range e.Authors {
		if name := collapse(a.Name); name != "" {
			p.Authors = append(p.Authors, name)
		}
	}
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		p.Year = t.Year()
	}
	return p
}

func (e atomEntry) pdfURL() string {
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			return l.Href
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (a *Arxiv) Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, util.Mark(errors.New("empty search query"), util.ErrInvalidInput)
	}
	if maxResults <= 0 || maxResults > 100 {
		maxResults = 10
	}
	v := url.Values{}
	v.Set("search_query", "all:"+query)
	v.Set("start", "0")
	v.Set("max_results", strconv.Itoa(maxResults))
	v.Set("sortBy", "relevance")
	feed, err := a.fetchFeed(ctx, v)
	if err != nil {
		return nil, err
	}
	out := make([]models.Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if e.isError() {
			continue
		}
		out = append(out, e.paper())
	}
	a.logger.Debug("search finished", "query", query, "results", len(out))
	return out, nil
}

// Lookup returns the metadata and PDF link of one paper.
func (a *Arxiv) Lookup(ctx context.Context, paperID string) (models.Paper, string, error) {
	v := url.Values{}
	v.Set("id_list", paperID)
	feed, err := a.fetchFeed(ctx, v)
	if err != nil {
		return models.Paper{}, "", err
	}
	if len(feed.Entries) == 0 || feed.Entries[0].isError() {
		return models.Paper{}, "", util.Mark(fmt.Errorf("arxiv paper %s", paperID), util.ErrNotFound)
	}
	e := feed.Entries[0]
	return e.paper(), e.pdfURL(), nil
}

// Resolve looks the paper up, downloads its PDF unless already stored, and extracts text.
func (a *Arxiv) Resolve(ctx context.Context, paperID string) (Resolved, error) {
	paper, pdfURL, err := a.Lookup(ctx, paperID)
	if err != nil {
		return Resolved{}, err
	}
	if pdfURL == "" {
		return Resolved{}, util.Mark(fmt.Errorf("arxiv paper %s has no pdf link", paperID), util.ErrNotFound)
	}
	path := filepath.Join(a.pdfDir, fileName(paper.PaperID, ".pdf"))
	if _, err := os.Stat(path); err != nil {
		if err := a.download(ctx, pdfURL, path); err != nil {
			return Resolved{}, err
		}
	}
	paper.PDFReference = path
	text, err := ExtractPDFText(path)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Paper: paper, Text: text}, nil
}

func (a *Arxiv) fetchFeed(ctx context.Context, v url.Values) (atomFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+v.Encode(), nil)
	if err != nil {
		return atomFeed{}, fmt.Errorf("build arxiv request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return atomFeed{}, transportError("arxiv query", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return atomFeed{}, statusError("arxiv query", resp)
	}
	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return atomFeed{}, util.Mark(fmt.Errorf("decode arxiv feed: %w", err), util.ErrUnavailable)
	}
	return feed, nil
}

func (a *Arxiv) download(ctx context.Context, pdfURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return fmt.Errorf("build pdf request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return transportError("download pdf", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("download pdf", resp)
	}
	n, err := util.WriteFileAtomic(path, resp.Body)
	if err != nil {
		return util.Mark(err, util.ErrUnavailable)
	}
	a.logger.Info("pdf downloaded", "path", path, "bytes", n)
	return nil
}

func transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return util.Mark(fmt.Errorf("%s: %w", op, err), util.ErrUnavailable)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return util.Mark(err, util.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return util.Mark(err, util.ErrNotFound)
	case resp.StatusCode >= 500:
		return util.Mark(err, util.ErrUnavailable)
	default:
		return err
	}
}
