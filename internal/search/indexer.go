package search

import (
	"context"
	"fmt"
	"strconv"

	"admin-service/internal/client"
	"admin-service/internal/model"
	"admin-service/internal/util"
)

// adminDocument is the search projection of an administrator. Nothing
// sensitive is ever indexed.
type adminDocument struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Status   string `json:"status"`
}

// Indexer mirrors the admin directory into Elasticsearch so operators can
// search accounts by name or username. Best effort by contract.
type Indexer struct {
	client *client.ESClient
	index  string
}

func NewIndexer(esClient *client.ESClient, index string) *Indexer {
	return &Indexer{
		client: esClient,
		index:  index,
	}
}

var _ model.DirectoryIndexer = (*Indexer)(nil)

func (i *Indexer) Index(ctx context.Context, entry *model.AdminListEntry, status string) error {
	doc := adminDocument{
		ID:       entry.ID,
		Username: entry.Username,
		FullName: entry.FullName,
		Status:   status,
	}

	res, err := i.client.IndexDocument(ctx, i.index, strconv.FormatInt(entry.ID, 10), doc)
	if err != nil {
		return fmt.Errorf("failed to index administrator: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index administrator: %s", res.String())
	}

	util.Debug("administrator indexed",
		util.Int64("admin_id", entry.ID),
		util.String("index", i.index))
	return nil
}

func (i *Indexer) Remove(ctx context.Context, id int64) error {
	res, err := i.client.DeleteDocument(ctx, i.index, strconv.FormatInt(id, 10))
	if err != nil {
		return fmt.Errorf("failed to remove administrator from index: %w", err)
	}
	defer res.Body.Close()

	// 404 is fine: the account may never have been indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("failed to remove administrator from index: %s", res.String())
	}
	return nil
}
