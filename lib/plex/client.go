package plex

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LukeHagar/plexgo"
	"github.com/LukeHagar/plexgo/models/operations"
	"github.com/icco/movierec/models"
)

// DefaultRefresh is how long a fetched library listing is trusted.
const DefaultRefresh = 15 * time.Minute

const pageSize = 50

// Item is a movie held in a Plex library.
type Item struct {
	Title string
	Year  int
}

// Client answers "is this catalog movie already in my Plex library".
type Client struct {
	api     *plexgo.PlexAPI
	plexURL string
	logger  *slog.Logger
	refresh time.Duration

	// fetch lists every movie across the server's movie libraries.
	fetch func(ctx context.Context) ([]Item, error)

	mu        sync.Mutex
	owned     map[string]bool
	fetchedAt time.Time
}

func NewClient(plexURL, plexToken string, logger *slog.Logger) *Client {
	api := plexgo.New(
		plexgo.WithSecurity(plexToken),
		plexgo.WithServerURL(plexURL),
	)

	c := &Client{
		api:     api,
		plexURL: plexURL,
		logger:  logger,
		refresh: DefaultRefresh,
	}
	c.fetch = c.MovieItems
	return c
}

// GetURL returns the Plex server URL
func (c *Client) GetURL() string {
	return c.plexURL
}

// GetAllLibraries gets all libraries from Plex
func (c *Client) GetAllLibraries(ctx context.Context) (*operations.GetAllLibrariesResponse, error) {
	c.logger.Debug("Fetching libraries from Plex", slog.String("url", c.plexURL))

	resp, err := c.api.Library.GetAllLibraries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get libraries: %w", err)
	}
	if resp.Object == nil {
		return nil, fmt.Errorf("invalid response from Plex API")
	}

	c.logger.Debug("Got libraries from Plex",
		slog.Int("count", len(resp.Object.MediaContainer.Directory)))
	return resp, nil
}

// MovieItems lists every movie in every movie library, paging through each.
func (c *Client) MovieItems(ctx context.Context) ([]Item, error) {
	libraries, err := c.GetAllLibraries(ctx)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, lib := range libraries.Object.MediaContainer.Directory {
		if string(lib.Type) != "movie" {
			continue
		}
		sectionKey, err := strconv.Atoi(lib.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid library key: %w", err)
		}

		found, err := c.libraryItems(ctx, sectionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to access library %s: %w", lib.Title, err)
		}
		c.logger.Debug("Read Plex library",
			slog.String("title", lib.Title),
			slog.Int("item_count", len(found)))
		items = append(items, found...)
	}
	return items, nil
}

func (c *Client) libraryItems(ctx context.Context, sectionKey int) ([]Item, error) {
	containerSize := pageSize
	containerStart := 0
	includeGuids := operations.IncludeGuids(1)
	includeMeta := operations.GetLibraryItemsQueryParamIncludeMeta(1)

	var items []Item
	for {
		request := operations.GetLibraryItemsRequest{
			SectionKey:          sectionKey,
			Type:                operations.GetLibraryItemsQueryParamType(1),
			IncludeGuids:        &includeGuids,
			IncludeMeta:         &includeMeta,
			XPlexContainerSize:  &containerSize,
			XPlexContainerStart: &containerStart,
			Tag:                 operations.Tag("all"),
		}

		resp, err := c.api.Library.GetLibraryItems(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("failed to get items from library: %w", err)
		}
		if resp.Object == nil {
			return nil, fmt.Errorf("invalid response from Plex API")
		}

		metadata := resp.Object.MediaContainer.Metadata
		for _, m := range metadata {
			item := Item{Title: m.Title}
			if m.Year != nil {
				item.Year = *m.Year
			}
			items = append(items, item)
		}

		if len(metadata) == 0 || containerStart+len(metadata) >= int(resp.Object.MediaContainer.TotalSize) {
			break
		}
		containerStart += containerSize
	}
	return items, nil
}

// InLibrary reports whether a catalog title such as "Heat (1995)" is in the
// Plex server's movie libraries. The library listing is cached for the
// refresh interval.
func (c *Client) InLibrary(ctx context.Context, catalogTitle string) (bool, error) {
	owned, err := c.library(ctx)
	if err != nil {
		return false, err
	}
	title, year := models.SplitTitle(catalogTitle)
	if owned[matchKey(title, year)] {
		return true, nil
	}
	// Plex sometimes lacks a year; fall back to title only.
	return owned[matchKey(title, 0)], nil
}

func (c *Client) library(ctx context.Context) (map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.owned != nil && time.Since(c.fetchedAt) < c.refresh {
		return c.owned, nil
	}

	items, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(items)*2)
	for _, it := range items {
		owned[matchKey(it.Title, it.Year)] = true
		owned[matchKey(it.Title, 0)] = true
	}
	c.owned = owned
	c.fetchedAt = time.Now()
	c.logger.Info("Refreshed Plex library", slog.Int("movies", len(items)))
	return owned, nil
}

// TestConnection checks the token can list libraries.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetAllLibraries(ctx)
	return err
}

func matchKey(title string, year int) string {
	t := strings.ToLower(strings.Join(strings.Fields(models.CleanTitle(title)), " "))
	return t + "|" + strconv.Itoa(year)
}
