package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/central-university-dev/go-listing-tracker/internal/domain/models"
)

const viewButtonText = "View on Carousell"

// Message - готовое к отправке сообщение об объявлении. Text размечен HTML.
type Message struct {
	ExternalItemID string
	Text           string
	ImageURL       string
	LinkURL        string
	LinkText       string
}

type ChatSender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

func FormatListing(listing *models.Listing) Message {
	var text strings.Builder

	text.WriteString(html.EscapeString(listing.Title))
	text.WriteString("\n")
	fmt.Fprintf(&text, "<strong>%s</strong>\n", html.EscapeString(listing.Price))
	text.WriteString(html.EscapeString(listing.PostedDate))

	return Message{
		ExternalItemID: listing.ExternalItemID,
		Text:           text.String(),
		ImageURL:       listing.ImageURL,
		LinkURL:        listing.SourceURL,
		LinkText:       viewButtonText,
	}
}
