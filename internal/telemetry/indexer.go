package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Sink delivers batches of records to their destination. Write either
// delivers the whole batch or returns an error; partial delivery is
// treated as failure and the batch is retried as a unit.
type Sink interface {
	Write(ctx context.Context, records []*Record) error
}

// IndexerConfig holds the connection settings for the HTTP indexing
// backend.
type IndexerConfig struct {
	// Endpoint is the backend base URL, e.g. "http://search:9200".
	Endpoint string
	// Index is the index name records are written to.
	Index string
	// Username and Password enable basic auth when both are set.
	Username string
	Password string
	// Timeout bounds one bulk write call.
	Timeout time.Duration
}

// HTTPIndexer writes records to an indexing backend using its
// newline-delimited bulk protocol: an action line naming the target
// index followed by the record document, one pair per record, POSTed
// to the backend's _bulk endpoint.
type HTTPIndexer struct {
	config  IndexerConfig
	client  *http.Client
	bulkURL string
}

// NewHTTPIndexer creates an indexer sink.
func NewHTTPIndexer(cfg IndexerConfig) *HTTPIndexer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPIndexer{
		config:  cfg,
		client:  &http.Client{Timeout: timeout},
		bulkURL: strings.TrimSuffix(cfg.Endpoint, "/") + "/_bulk",
	}
}

// bulkAction is the action line preceding each document.
type bulkAction struct {
	Index bulkActionTarget `json:"index"`
}

type bulkActionTarget struct {
	Index string `json:"_index"`
}

// Write delivers a batch of records in one bulk call.
func (x *HTTPIndexer) Write(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	action := bulkAction{Index: bulkActionTarget{Index: x.config.Index}}

	for _, rec := range records {
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, x.bulkURL, &buf)
	if err != nil {
		return fmt.Errorf("failed to build bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if x.config.Username != "" && x.config.Password != "" {
		req.SetBasicAuth(x.config.Username, x.config.Password)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return fmt.Errorf("bulk write failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bulk write rejected: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
