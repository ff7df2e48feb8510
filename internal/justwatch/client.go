package justwatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// PageSize is the number of candidates requested per search.
	PageSize = 5
	// ContentTypeMovie restricts searches to feature films.
	ContentTypeMovie = "movie"
	// ProviderTMDBID is the scoring provider carrying the TMDB cross-reference.
	ProviderTMDBID = "tmdb:id"
)

// Scoring is one (provider_type, value) pair attached to a candidate.
type Scoring struct {
	ProviderType string  `json:"provider_type"`
	Value        float64 `json:"value"`
}

// Candidate is a single title returned by the search.
type Candidate struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	FullPath string    `json:"full_path"`
	Year     int       `json:"original_release_year"`
	Scoring  []Scoring `json:"scoring"`
}

// TMDBIDs returns every value scored under the tmdb:id provider.
func (c Candidate) TMDBIDs() []float64 {
	var ids []float64
	for _, s := range c.Scoring {
		if s.ProviderType == ProviderTMDBID {
			ids = append(ids, s.Value)
		}
	}
	return ids
}

// Response models the paginated search envelope.
type Response struct {
	Page         int         `json:"page"`
	PageSize     int         `json:"page_size"`
	TotalPages   int         `json:"total_pages"`
	TotalResults int         `json:"total_results"`
	Items        []Candidate `json:"items"`
}

// Searcher is the title search used by enrichment.
type Searcher interface {
	SearchTitles(ctx context.Context, title string) ([]Candidate, error)
}

// Client queries the JustWatch popular-titles endpoint.
type Client struct {
	baseURL  string
	locale   string
	language string
	fetcher  Fetcher
}

var _ Searcher = (*Client)(nil)

// New creates a client. A nil fetcher selects NewHTTPFetcher().
func New(baseURL, locale, language string, fetcher Fetcher) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("justwatch base url required")
	}
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return nil, errors.New("justwatch locale required")
	}
	if fetcher == nil {
		fetcher = NewHTTPFetcher()
	}
	return &Client{
		baseURL:  baseURL,
		locale:   locale,
		language: strings.TrimSpace(language),
		fetcher:  fetcher,
	}, nil
}

type searchBody struct {
	PageSize     int      `json:"page_size"`
	Page         int      `json:"page"`
	Query        string   `json:"query"`
	ContentTypes []string `json:"content_types"`
}

// SearchURL builds the request URL for title. The search parameters travel as
// a JSON document in the body query parameter.
func (c *Client) SearchURL(title string) (string, error) {
	endpoint, err := url.Parse(fmt.Sprintf("%s/content/titles/%s/popular", c.baseURL, url.PathEscape(c.locale)))
	if err != nil {
		return "", fmt.Errorf("parse justwatch url: %w", err)
	}
	body, err := json.Marshal(searchBody{
		PageSize:     PageSize,
		Page:         1,
		Query:        norm.NFC.String(title),
		ContentTypes: []string{ContentTypeMovie},
	})
	if err != nil {
		return "", fmt.Errorf("encode search body: %w", err)
	}
	params := url.Values{}
	if c.language != "" {
		params.Set("language", c.language)
	}
	params.Set("body", string(body))
	endpoint.RawQuery = params.Encode()
	return endpoint.String(), nil
}

// SearchTitles returns up to PageSize movie candidates for title, in the
// order JustWatch ranks them. An absent items field yields an empty list.
func (c *Client) SearchTitles(ctx context.Context, title string) ([]Candidate, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyQuery
	}
	target, err := c.SearchURL(title)
	if err != nil {
		return nil, err
	}

	raw, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	var payload *Response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ParseError{Err: err}
	}
	if payload == nil || payload.Items == nil {
		return []Candidate{}, nil
	}
	return payload.Items, nil
}
