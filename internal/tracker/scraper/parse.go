package scraper

import (
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

var staleDateMarkers = []string{"month", "year"}

// ParseListings разбирает карточки выдачи. Продвигаемые карточки и объявления
// старше месяца пропускаются. Результат развернут: сначала самые старые.
func ParseListings(doc *goquery.Document, baseURL string) []*models.Listing {
	result := make([]*models.Listing, 0)

	doc.Find(cardSelector).Each(func(_ int, card *goquery.Selection) {
		if listing, ok := parseCard(card, baseURL); ok {
			result = append(result, listing)
		}
	})

	slices.Reverse(result)

	return result
}

func parseCard(card *goquery.Selection, baseURL string) (*models.Listing, bool) {
	testID, _ := card.Attr("data-testid")

	id, err := strconv.ParseInt(strings.TrimPrefix(testID, cardIDPrefix), 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}

	content := card.Children().First()
	links := content.ChildrenFiltered("a")

	dateNode := links.Eq(0).Children().Eq(1).Children().Eq(1)
	postedDate := strings.TrimSpace(dateNode.Text())
	boosted := dateNode.Children().Length() > 1

	if boosted || postedDate == "" || isStale(postedDate) {
		return nil, false
	}

	body := links.Eq(1)

	href, ok := body.Attr("href")
	if !ok || href == "" {
		return nil, false
	}

	paragraphs := body.ChildrenFiltered("p")

	return &models.Listing{
		ExternalItemID: strconv.FormatInt(id, 10),
		Title:          strings.TrimSpace(paragraphs.Eq(0).Text()),
		Condition:      strings.TrimSpace(paragraphs.Eq(1).Text()),
		Price:          strings.TrimSpace(body.ChildrenFiltered("div").Eq(1).Text()),
		PostedDate:     postedDate,
		SourceURL:      absoluteURL(baseURL, href),
		Status:         models.StatusActive,
	}, true
}

func isStale(postedDate string) bool {
	lower := strings.ToLower(postedDate)

	for _, marker := range staleDateMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}

	return false
}

func absoluteURL(baseURL, href string) string {
	path, _, _ := strings.Cut(href, "?")
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	return baseURL + path
}

// ParseStatus определяет статус по первой узнаваемой кнопке на странице.
// Страница без таких кнопок считается проданной.
func ParseStatus(doc *goquery.Document) models.ListingStatus {
	status := models.StatusSold

	doc.Find("button").EachWithBreak(func(_ int, button *goquery.Selection) bool {
		switch strings.ToLower(strings.TrimSpace(button.Text())) {
		case "reserved":
			status = models.StatusReserved
		case "sold":
			status = models.StatusSold
		case "chat":
			status = models.StatusActive
		default:
			return true
		}

		return false
	})

	return status
}
