package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/sirupsen/logrus"

	"github.com/Melih7342/bookmanager/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// BookIndex mirrors the catalog into an Elasticsearch index for title/author search.
// The index is a secondary copy; the book store stays authoritative.
type BookIndex struct {
	ES        *elasticsearch.Client
	IndexName string
	Logger    *logrus.Logger
}

func NewBookIndex(es *elasticsearch.Client, index string, logger *logrus.Logger) *BookIndex {
	return &BookIndex{ES: es, IndexName: index, Logger: logger}
}

type bookDoc struct {
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Pages  int    `json:"pages"`
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "isbn":   {"type": "keyword"},
      "title":  {"type": "text"},
      "author": {"type": "text"},
      "pages":  {"type": "integer"}
    }
  }
}`

// EnsureIndex creates the index with its mapping unless it already exists.
func (i *BookIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	exists, err := esapi.IndicesExistsRequest{Index: []string{i.IndexName}}.Do(c, i.ES)
	if err != nil {
		return err
	}
	_ = exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		return nil
	}

	res, err := esapi.IndicesCreateRequest{Index: i.IndexName, Body: strings.NewReader(indexMapping)}.Do(c, i.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.IndexName, res.Status())
	}
	if i.Logger != nil {
		i.Logger.WithField("index", i.IndexName).Info("search index created")
	}
	return nil
}

// Index upserts the books in one bulk request.
func (i *BookIndex) Index(ctx context.Context, books ...entity.Book) error {
	if len(books) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, b := range books {
		meta := map[string]any{"index": map[string]any{"_index": i.IndexName, "_id": b.ISBN}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(bookDoc(b)); err != nil {
			return err
		}
	}
	return i.bulk(ctx, &buf)
}

// Remove deletes the documents for isbns. Missing documents are ignored.
func (i *BookIndex) Remove(ctx context.Context, isbns ...string) error {
	if len(isbns) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, isbn := range isbns {
		meta := map[string]any{"delete": map[string]any{"_index": i.IndexName, "_id": isbn}}
		if err := enc.Encode(meta); err != nil {
			return err
		}
	}
	return i.bulk(ctx, &buf)
}

func (i *BookIndex) bulk(ctx context.Context, body io.Reader) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := esapi.BulkRequest{Body: body, Refresh: "false"}.Do(c, i.ES)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("bulk %s: %s", i.IndexName, res.Status())
	}

	var parsed struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return err
	}
	if !parsed.Errors {
		return nil
	}
	for _, item := range parsed.Items {
		for op, r := range item {
			if op == "delete" && r.Status == http.StatusNotFound {
				continue
			}
			if r.Status >= 300 {
				return fmt.Errorf("bulk %s %s: status %d", op, r.ID, r.Status)
			}
		}
	}
	return nil
}

// Search runs a multi_match over title and author.
func (i *BookIndex) Search(ctx context.Context, q string, size int) ([]entity.Book, error) {
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     q,
				"fields":    []string{"title^2", "author"},
				"fuzziness": "AUTO",
			},
		},
		"size": size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	res, err := i.ES.Search(i.ES.Search.WithContext(c), i.ES.Search.WithIndex(i.IndexName), i.ES.Search.WithBody(bytes.NewReader(b)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", i.IndexName, res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source bookDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]entity.Book, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, entity.Book(h.Source))
	}
	return out, nil
}
