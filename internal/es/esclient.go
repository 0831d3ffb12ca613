package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/game_store/internal/models"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":          {"type": "long"},
      "title":       {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "slug":        {"type": "keyword"},
      "description": {"type": "text"},
      "genres":      {"type": "text"},
      "platforms":   {"type": "keyword"},
      "developers":  {"type": "text"},
      "publishers":  {"type": "text"}
    }
  }
}`

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
}

// Client keeps the games index in sync and answers full-text queries.
type Client struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(cfg Config) (*Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("es: new client: %w", err)
	}
	index := cfg.Index
	if index == "" {
		index = "games"
	}
	return &Client{es: client, index: index}, nil
}

type gameDoc struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Platforms   []string `json:"platforms"`
	Developers  []string `json:"developers"`
	Publishers  []string `json:"publishers"`
}

// EnsureIndex creates the index with its mapping if it is missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: index exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es: index exists: %s", res.Status())
	}

	res, err = c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return fmt.Errorf("es: create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res.Status(), res.Body)
	}
	return nil
}

func (c *Client) IndexGame(ctx context.Context, g *models.Game) error {
	doc := gameDoc{
		ID:          g.ID,
		Title:       g.Title,
		Slug:        g.Slug,
		Description: g.Description,
		Genres:      g.Genres,
		Platforms:   g.Platforms,
		Developers:  g.Developers,
		Publishers:  g.Publishers,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("es: encode game: %w", err)
	}

	res, err := c.es.Index(c.index, &buf,
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(strconv.FormatUint(uint64(g.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("es: index game: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index game", res.Status(), res.Body)
	}
	return nil
}

func (c *Client) DeleteGame(ctx context.Context, id uint) error {
	res, err := c.es.Delete(c.index, strconv.FormatUint(uint64(id), 10), c.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("es: delete game: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return responseError("delete game", res.Status(), res.Body)
	}
	return nil
}

// SearchGames returns the total hit count and the ids of the requested page in
// relevance order. Callers load the rows from the database.
func (c *Client) SearchGames(ctx context.Context, query string, from, size int) (int64, []uint, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"title^3", "description", "genres", "developers", "publishers"},
				"fuzziness": "AUTO",
			},
		},
		"_source": []string{"id"},
		"from":    from,
		"size":    size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("es: encode query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, responseError("search", res.Status(), res.Body)
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source gameDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("es: decode search: %w", err)
	}

	ids := make([]uint, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		ids = append(ids, h.Source.ID)
	}
	return r.Hits.Total.Value, ids, nil
}

func responseError(action, status string, body io.Reader) error {
	b, _ := io.ReadAll(io.LimitReader(body, 2048))
	return fmt.Errorf("es: %s: %s: %s", action, status, bytes.TrimSpace(b))
}
