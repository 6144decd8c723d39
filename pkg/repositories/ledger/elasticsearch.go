package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mportillo/dealerd/pkg/entities"
)

// ArchiverConfig holds configuration options for the ledger archiver
type ArchiverConfig struct {
	URL         string
	Username    string
	Password    string
	IndexPrefix string
}

// DefaultArchiverConfig returns a default configuration for the archiver
func DefaultArchiverConfig() *ArchiverConfig {
	return &ArchiverConfig{
		URL:         "http://localhost:9200",
		IndexPrefix: "dealerd",
	}
}

// Archiver indexes completed session entries into Elasticsearch before
// the retention sweeper purges them, so terminal outcomes remain
// searchable after they leave the in-process ledger.
type Archiver struct {
	client      *elasticsearch.Client
	indexPrefix string
}

// archivedEntry is the indexed document shape
type archivedEntry struct {
	SessionID  string    `json:"session_id"`
	PlayerID   string    `json:"player_id"`
	Result     string    `json:"result"`
	CreatedAt  time.Time `json:"created_at"`
	Processed  bool      `json:"processed"`
	ArchivedAt time.Time `json:"archived_at"`
}

// NewArchiver creates a new ledger archiver
func NewArchiver(config *ArchiverConfig) (*Archiver, error) {
	if config == nil {
		config = DefaultArchiverConfig()
	}

	cfg := elasticsearch.Config{
		Addresses: []string{config.URL},
	}
	if config.Username != "" && config.Password != "" {
		cfg.Username = config.Username
		cfg.Password = config.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	prefix := config.IndexPrefix
	if prefix == "" {
		prefix = "dealerd"
	}

	return &Archiver{
		client:      client,
		indexPrefix: prefix,
	}, nil
}

// indexName returns the dated index for a given day
func (a *Archiver) indexName(t time.Time) string {
	return fmt.Sprintf("%s-completed-%s", a.indexPrefix, t.Format("2006.01.02"))
}

// Archive bulk-indexes the given completed entries
func (a *Archiver) Archive(ctx context.Context, entries []*entities.CompletedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := time.Now()
	var buf bytes.Buffer
	for _, entry := range entries {
		meta := map[string]map[string]string{
			"index": {
				"_index": a.indexName(entry.CreatedAt),
				"_id":    entry.SessionID,
			},
		}
		metaLine, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling bulk meta: %w", err)
		}

		doc := archivedEntry{
			SessionID:  entry.SessionID,
			PlayerID:   entry.PlayerID,
			Result:     string(entry.Result),
			CreatedAt:  entry.CreatedAt,
			Processed:  entry.Processed,
			ArchivedAt: now,
		}
		docLine, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("error marshaling archived entry: %w", err)
		}

		buf.Write(metaLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := a.client.Bulk(bytes.NewReader(buf.Bytes()), a.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error executing bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk request failed: %s", res.String())
	}
	return nil
}
