package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/asadollahi99/temple-law-chatbot/internal/llm"
	"github.com/asadollahi99/temple-law-chatbot/internal/models"
	"github.com/asadollahi99/temple-law-chatbot/internal/search"
	"github.com/asadollahi99/temple-law-chatbot/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IndexStatus string

const (
	StatusAdded           IndexStatus = "added"
	StatusUpdated         IndexStatus = "updated"
	StatusUnchanged       IndexStatus = "unchanged"
	StatusSkippedDenied   IndexStatus = "skipped/denied"
	StatusSkippedNotHTML  IndexStatus = "skipped/not-html"
	StatusSkippedTooShort IndexStatus = "skipped/too-short"
	StatusError           IndexStatus = "error"
)

// IndexSummary aggregates per-status counts for one batch run.
type IndexSummary struct {
	Total  int                 `json:"total"`
	Counts map[IndexStatus]int `json:"counts"`
}

// PageStore is the page half of the document store the indexer writes to.
type PageStore interface {
	GetByURL(ctx context.Context, url string) (*models.Page, error)
	Upsert(ctx context.Context, page *models.Page) error
	Touch(ctx context.Context, url string, at time.Time) error
	Count(ctx context.Context) (int, error)
}

// ChunkWriter replaces a page's chunk set wholesale and reads it back for
// admin inspection.
type ChunkWriter interface {
	ReplaceForURL(ctx context.Context, url string, chunks []models.Chunk) error
	GetByURL(ctx context.Context, url string) ([]models.Chunk, error)
}

// Fetcher retrieves one URL; split out so tests run without a network.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (body string, contentType string, err error)
}

var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/(wp-admin|wp-login|admin|login|cart|account)(/|$)`),
	regexp.MustCompile(`(?i)/(feed|rss|atom)(/|$)`),
	regexp.MustCompile(`(?i)\.(jpe?g|png|gif|svg|webp|ico|pdf|docx?|xlsx?|pptx?|zip|gz|mp3|mp4|mov|avi|css|js|xml|json)$`),
	regexp.MustCompile(`(?i)//(www\.)?(facebook|twitter|x|instagram|linkedin|youtube|tiktok)\.com`),
}

// IndexerService keeps the page/chunk store synchronized with the live
// site: sitemap traversal, fetch, extract, chunk, embed, change-detect.
type IndexerService struct {
	pages    PageStore
	chunks   ChunkWriter
	embedder llm.Embedder
	lexical  search.Searcher
	fetcher  Fetcher
	cfg      *config.IndexConfig
	logger   *zap.Logger
}

func NewIndexerService(
	pages PageStore,
	chunks ChunkWriter,
	embedder llm.Embedder,
	lexical search.Searcher,
	fetcher Fetcher,
	cfg *config.IndexConfig,
	logger *zap.Logger,
) *IndexerService {
	if fetcher == nil {
		fetcher = &HTTPFetcher{
			Client:  &http.Client{Timeout: cfg.FetchTimeout},
			Timeout: cfg.FetchTimeout,
		}
	}
	return &IndexerService{
		pages:    pages,
		chunks:   chunks,
		embedder: embedder,
		lexical:  lexical,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
	}
}

// HTTPFetcher is the production Fetcher.
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "TempleLawChatbot/1.0 (+indexer)")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", "", err
	}

	return string(body), resp.Header.Get("Content-Type"), nil
}

type sitemapIndexXML struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

type urlSetXML struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

// CollectSitemap expands the root sitemap, recursing through index nodes,
// normalizing and deduplicating page URLs, and stopping at maxURLs. Cyclic
// sitemap references are skipped via a visited set.
func (s *IndexerService) CollectSitemap(ctx context.Context, rootURL string, maxURLs int) ([]string, error) {
	if maxURLs <= 0 {
		maxURLs = s.cfg.MaxURLs
	}

	visited := make(map[string]bool)
	seen := make(map[string]bool)
	var urls []string

	queue := []string{rootURL}
	for len(queue) > 0 && len(urls) < maxURLs {
		sitemapURL := queue[0]
		queue = queue[1:]

		if visited[sitemapURL] {
			continue
		}
		visited[sitemapURL] = true

		body, _, err := s.fetcher.Fetch(ctx, sitemapURL)
		if err != nil {
			s.logger.Warn("Failed to fetch sitemap", zap.String("url", sitemapURL), zap.Error(err))
			continue
		}

		var index sitemapIndexXML
		if err := xml.Unmarshal([]byte(body), &index); err == nil && len(index.Sitemaps) > 0 {
			for _, sm := range index.Sitemaps {
				if loc := strings.TrimSpace(sm.Loc); loc != "" {
					queue = append(queue, loc)
				}
			}
			continue
		}

		var set urlSetXML
		if err := xml.Unmarshal([]byte(body), &set); err != nil {
			s.logger.Warn("Unrecognized sitemap document", zap.String("url", sitemapURL), zap.Error(err))
			continue
		}
		for _, entry := range set.URLs {
			if len(urls) >= maxURLs {
				break
			}
			normalized := NormalizeURL(entry.Loc)
			if normalized == "" || seen[normalized] {
				continue
			}
			seen[normalized] = true
			urls = append(urls, normalized)
		}
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("sitemap %s yielded no URLs", rootURL)
	}

	return urls, nil
}

// NormalizeURL drops the fragment and collapses duplicate path separators.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parsed.Fragment = ""
	for strings.Contains(parsed.Path, "//") {
		parsed.Path = strings.ReplaceAll(parsed.Path, "//", "/")
	}

	return parsed.String()
}

func denied(url string) bool {
	for _, pattern := range denyPatterns {
		if pattern.MatchString(url) {
			return true
		}
	}
	return false
}

// IndexURL indexes one page. It returns the per-URL status; the error is
// non-nil only for the error status and never aborts a batch.
func (s *IndexerService) IndexURL(ctx context.Context, pageURL string) (IndexStatus, error) {
	if denied(pageURL) {
		return StatusSkippedDenied, nil
	}

	body, contentType, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return StatusError, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	// A missing Content-Type is treated as HTML: sitemap entries are pages
	// by construction, and extraction rejects anything that isn't.
	if contentType != "" && !strings.Contains(contentType, "text/html") {
		return StatusSkippedNotHTML, nil
	}

	text, title := ExtractContent(body, pageURL)
	if text == "" {
		return StatusSkippedTooShort, nil
	}

	sum := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(sum[:])

	prior, err := s.pages.GetByURL(ctx, pageURL)
	if err != nil {
		return StatusError, fmt.Errorf("load page %s: %w", pageURL, err)
	}

	now := time.Now()
	if prior != nil && prior.ContentHash == contentHash {
		if err := s.pages.Touch(ctx, pageURL, now); err != nil {
			return StatusError, fmt.Errorf("touch page %s: %w", pageURL, err)
		}
		return StatusUnchanged, nil
	}

	parts := SplitChunks(text, s.cfg.ChunkWindow, s.cfg.ChunkOverlap)
	if len(parts) > s.cfg.MaxChunksPerPage {
		parts = parts[:s.cfg.MaxChunksPerPage]
	}

	chunks := make([]models.Chunk, 0, len(parts))
	for i, part := range parts {
		embedding, err := s.embedder.Embed(ctx, part)
		if err != nil {
			return StatusError, fmt.Errorf("embed chunk %d of %s: %w", i, pageURL, err)
		}
		chunks = append(chunks, models.Chunk{
			ID:        uuid.New(),
			URL:       pageURL,
			Index:     i,
			Text:      part,
			Embedding: embedding,
			CreatedAt: now,
		})
	}

	if err := s.chunks.ReplaceForURL(ctx, pageURL, chunks); err != nil {
		return StatusError, fmt.Errorf("replace chunks for %s: %w", pageURL, err)
	}

	// Lexical index maintenance is best effort: the scan strategy still
	// finds the chunks through the store.
	if err := s.lexical.DeleteURL(ctx, pageURL); err != nil {
		s.logger.Warn("Failed to purge lexical index", zap.String("url", pageURL), zap.Error(err))
	}
	if err := s.lexical.IndexChunks(ctx, chunks); err != nil {
		s.logger.Warn("Failed to update lexical index", zap.String("url", pageURL), zap.Error(err))
	}

	if err := s.pages.Upsert(ctx, &models.Page{
		URL:         pageURL,
		Title:       title,
		ContentHash: contentHash,
		UpdatedAt:   now,
	}); err != nil {
		return StatusError, fmt.Errorf("upsert page %s: %w", pageURL, err)
	}

	if prior == nil {
		return StatusAdded, nil
	}
	return StatusUpdated, nil
}

// Run indexes the URL set with bounded fan-out. A single URL's failure is
// counted and logged, never fatal to the batch.
func (s *IndexerService) Run(ctx context.Context, urls []string) IndexSummary {
	summary := IndexSummary{
		Total:  len(urls),
		Counts: make(map[IndexStatus]int),
	}

	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 3
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for _, pageURL := range urls {
		wg.Add(1)
		sem <- struct{}{}
		go func(pageURL string) {
			defer wg.Done()
			defer func() { <-sem }()

			status, err := s.IndexURL(ctx, pageURL)
			if err != nil {
				s.logger.Warn("Indexing failed", zap.String("url", pageURL), zap.Error(err))
			} else {
				s.logger.Debug("Indexed", zap.String("url", pageURL), zap.String("status", string(status)))
			}

			mu.Lock()
			summary.Counts[status]++
			mu.Unlock()
		}(pageURL)
	}
	wg.Wait()

	return summary
}

// ErrInvalidPageURL rejects corpus lookups with an unusable URL.
var ErrInvalidPageURL = errors.New("invalid page url")

// CorpusStats is the admin view of the indexed corpus.
type CorpusStats struct {
	Pages int `json:"pages"`
}

// Stats reports the size of the indexed corpus.
func (s *IndexerService) Stats(ctx context.Context) (*CorpusStats, error) {
	pages, err := s.pages.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	return &CorpusStats{Pages: pages}, nil
}

// PageChunks returns the stored chunks of one indexed page in chunk order,
// for reviewing what a URL contributed to the corpus.
func (s *IndexerService) PageChunks(ctx context.Context, pageURL string) ([]models.Chunk, error) {
	normalized := NormalizeURL(pageURL)
	if normalized == "" {
		return nil, ErrInvalidPageURL
	}
	return s.chunks.GetByURL(ctx, normalized)
}

// RunSitemap collects the sitemap and indexes the result in one call.
func (s *IndexerService) RunSitemap(ctx context.Context, sitemapURL string, maxURLs int) (IndexSummary, error) {
	if sitemapURL == "" {
		sitemapURL = s.cfg.SitemapURL
	}

	urls, err := s.CollectSitemap(ctx, sitemapURL, maxURLs)
	if err != nil {
		return IndexSummary{}, err
	}

	s.logger.Info("Sitemap collected",
		zap.String("sitemap", sitemapURL),
		zap.Int("urls", len(urls)),
	)

	return s.Run(ctx, urls), nil
}
