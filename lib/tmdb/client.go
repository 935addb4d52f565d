package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icco/movierec/models"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	posterURLPrefix = "https://image.tmdb.org/t/p/w500"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type SearchResult struct {
	Results []struct {
		ID          int     `json:"id"`
		Title       string  `json:"title"`
		ReleaseDate string  `json:"release_date"`
		PosterPath  string  `json:"poster_path"`
		VoteAverage float64 `json:"vote_average"`
	} `json:"results"`
}

func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL returns a copy of c that talks to baseURL.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.baseURL = strings.TrimRight(baseURL, "/")
	return &clone
}

func (c *Client) SearchMovie(ctx context.Context, title string, year int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("query", title)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/movie?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb search returned %s", resp.Status)
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// PosterFor looks up the poster URL for a catalog title. It returns "" when
// TMDb has no match or no poster.
func (c *Client) PosterFor(ctx context.Context, catalogTitle string) (string, error) {
	title, year := models.SplitTitle(catalogTitle)
	result, err := c.SearchMovie(ctx, title, year)
	if err != nil {
		return "", err
	}
	for _, r := range result.Results {
		if r.PosterPath != "" {
			return c.GetPosterURL(r.PosterPath), nil
		}
	}
	c.logger.Debug("No TMDb poster", slog.String("title", catalogTitle))
	return "", nil
}

func (c *Client) GetPosterURL(posterPath string) string {
	if posterPath == "" {
		return ""
	}
	return posterURLPrefix + posterPath
}
