package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/central-university-dev/go-listing-tracker/internal/common/httputil"
	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	"github.com/central-university-dev/go-listing-tracker/internal/config"
	customerrors "github.com/central-university-dev/go-listing-tracker/internal/domain/errors"
	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

const (
	cardSelector    = "[data-testid^='listing-card']"
	cardIDPrefix    = "listing-card-"
	imageSelector   = `meta[property="og:image"]`
	newestFirstSort = "3"
)

// Scraper читает страницы маркетплейса: выдачу поиска, страницу объявления и ее статус.
type Scraper struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) *Scraper {
	return NewWithClient(httputil.CreateResilientHTTPClient(cfg, logger, "marketplace"), cfg.MarketplaceBaseURL, logger)
}

func NewWithClient(client *resty.Client, baseURL string, logger *slog.Logger) *Scraper {
	return &Scraper{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// SearchURL строит адрес выдачи, отсортированной от новых к старым.
// Запрос "*" означает всю категорию без поиска.
func SearchURL(link, searchTerm string) string {
	query := url.Values{}
	if searchTerm != models.WholeCategory {
		query.Set("search", searchTerm)
	}

	query.Set("sort_by", newestFirstSort)

	separator := "?"
	if strings.Contains(link, "?") {
		separator = "&"
	}

	return link + separator + query.Encode()
}

// Scrape возвращает объявления первой страницы выдачи от старых к новым.
func (s *Scraper) Scrape(ctx context.Context, sourceLink, searchTerm string) ([]*models.Listing, error) {
	doc, err := s.fetch(ctx, "scrape", SearchURL(sourceLink, searchTerm))
	if err != nil {
		return nil, err
	}

	listings := ParseListings(doc, s.baseURL)

	s.logger.Debug("Получена выдача маркетплейса",
		"searchTerm", searchTerm,
		"sourceLink", sourceLink,
		"count", len(listings),
	)

	return listings, nil
}

func (s *Scraper) GetImage(ctx context.Context, pageURL string) (string, error) {
	doc, err := s.fetch(ctx, "image", pageURL)
	if err != nil {
		return "", err
	}

	image, ok := doc.Find(imageSelector).First().Attr("content")
	if !ok || strings.TrimSpace(image) == "" {
		return "", &customerrors.ErrImageNotFound{URL: pageURL}
	}

	return strings.TrimSpace(image), nil
}

func (s *Scraper) GetStatus(ctx context.Context, pageURL string) (models.ListingStatus, error) {
	doc, err := s.fetch(ctx, "status", pageURL)
	if err != nil {
		return "", err
	}

	return ParseStatus(doc), nil
}

func (s *Scraper) fetch(ctx context.Context, operation, pageURL string) (*goquery.Document, error) {
	start := time.Now()

	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		metrics.RecordScrapeRequest(operation, "error", time.Since(start))
		return nil, &customerrors.ErrScrape{URL: pageURL, Cause: err}
	}

	if !resp.IsSuccess() {
		metrics.RecordScrapeRequest(operation, strconv.Itoa(resp.StatusCode()), time.Since(start))

		return nil, &customerrors.ErrScrape{
			URL:   pageURL,
			Cause: &customerrors.HTTPError{StatusCode: resp.StatusCode(), Message: resp.Status()},
		}
	}

	metrics.RecordScrapeRequest(operation, "success", time.Since(start))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &customerrors.ErrScrape{URL: pageURL, Cause: err}
	}

	return doc, nil
}
