package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog/log"

	"github.com/textbot/internal/actions"
)

const (
	serviceName = "notion"
	// Notion rejects rich text objects longer than this.
	maxRichTextRunes = 2000
	tagsProperty     = "Tags"
	titleProperty    = "Name"
)

// APIClient talks to the Notion API. Tokens are per user, so a notionapi client is built
// for every call.
type APIClient struct {
	version    string
	httpClient *http.Client
}

// NewAPIClient creates a Notion client pinned to the given Notion-Version.
func NewAPIClient(version string) *APIClient {
	return &APIClient{
		version:    version,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Page is the part of a created page callers care about.
type Page struct {
	ID  string
	URL string
}

func (c *APIClient) client(token string) *notionapi.Client {
	opts := []notionapi.ClientOption{
		notionapi.WithHTTPClient(c.httpClient),
		// one attempt: a 429 surfaces as a failure, the executor never retries
		notionapi.WithRetry(1),
	}
	if c.version != "" {
		opts = append(opts, notionapi.WithVersion(c.version))
	}
	return notionapi.NewClient(notionapi.Token(token), opts...)
}

// DatabaseTags returns the option names of the database's Tags multi-select property.
func (c *APIClient) DatabaseTags(ctx context.Context, token, databaseID string) ([]string, error) {
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}

	db, err := c.client(token).Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return nil, serviceError(err)
	}

	prop, ok := db.Properties[tagsProperty].(*notionapi.MultiSelectPropertyConfig)
	if !ok {
		return nil, nil
	}

	tags := make([]string, 0, len(prop.MultiSelect.Options))
	for _, opt := range prop.MultiSelect.Options {
		if opt.Name != "" {
			tags = append(tags, opt.Name)
		}
	}
	return tags, nil
}

// CreatePage adds one page to the database with the note's title, tag and content.
func (c *APIClient) CreatePage(ctx context.Context, token, databaseID string, note actions.NoteInput) (Page, error) {
	if databaseID == "" {
		return Page{}, fmt.Errorf("database id is required")
	}
	if note.Content == "" {
		return Page{}, fmt.Errorf("note content cannot be empty")
	}

	properties := notionapi.Properties{
		titleProperty: notionapi.TitleProperty{
			Title: []notionapi.RichText{richText(note.Title)},
		},
	}
	if note.Tag != "" {
		properties[tagsProperty] = notionapi.MultiSelectProperty{
			MultiSelect: []notionapi.Option{{Name: note.Tag}},
		}
	}

	var children []notionapi.Block
	for _, chunk := range chunkRunes(note.Content, maxRichTextRunes) {
		children = append(children, &notionapi.ParagraphBlock{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeParagraph,
			},
			Paragraph: notionapi.Paragraph{
				RichText: []notionapi.RichText{richText(chunk)},
			},
		})
	}

	created, err := c.client(token).Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: properties,
		Children:   children,
	})
	if err != nil {
		return Page{}, serviceError(err)
	}

	page := Page{ID: string(created.ID), URL: created.URL}
	log.Debug().Str("page_id", page.ID).Str("tag", note.Tag).Msg("Notion page created")
	return page, nil
}

// serviceError keeps Notion's own message so the user sees it verbatim.
func serviceError(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return &actions.ServiceError{Service: serviceName, Status: apiErr.Status, Message: apiErr.Message}
	}
	return fmt.Errorf("notion API request failed: %w", err)
}

func richText(content string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: content},
	}
}

func chunkRunes(s string, size int) []string {
	r := []rune(s)
	var chunks []string
	for len(r) > size {
		chunks = append(chunks, string(r[:size]))
		r = r[size:]
	}
	return append(chunks, string(r))
}
