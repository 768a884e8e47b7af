package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"admin-service/internal/client"
	"admin-service/internal/model"
	"admin-service/internal/util"
)

// ErrCacheMiss reports that no cached row exists for the id.
var ErrCacheMiss = errors.New("account not in cache")

// AccountCache is a read-through cache of administrator rows keyed by id.
// Every mutation of a row must invalidate its entry.
type AccountCache struct {
	client *client.RedisClient
	ttl    time.Duration
}

func NewAccountCache(redisClient *client.RedisClient, ttl time.Duration) *AccountCache {
	return &AccountCache{
		client: redisClient,
		ttl:    ttl,
	}
}

var _ model.AccountCache = (*AccountCache)(nil)

func cacheKey(id int64) string {
	return fmt.Sprintf("admin:account:%d", id)
}

// cachedAccount mirrors model.AdminAccount with every field serialized. The
// model's own JSON shape hides credential hashes for API responses; a cache
// round-trip must not lose them.
type cachedAccount struct {
	model.AdminAccount
	PasswordHash      string `json:"password_hash"`
	SecondaryAuthHash string `json:"secondary_auth_hash"`
}

func toCached(account *model.AdminAccount) *cachedAccount {
	return &cachedAccount{
		AdminAccount:      *account,
		PasswordHash:      account.PasswordHash,
		SecondaryAuthHash: account.SecondaryAuthHash,
	}
}

func (c *cachedAccount) toModel() *model.AdminAccount {
	account := c.AdminAccount
	account.PasswordHash = c.PasswordHash
	account.SecondaryAuthHash = c.SecondaryAuthHash
	return &account
}

func (c *AccountCache) Get(ctx context.Context, id int64) (*model.AdminAccount, error) {
	raw, err := c.client.Get(ctx, cacheKey(id))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	entry := &cachedAccount{}
	if err := json.Unmarshal([]byte(raw), entry); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		util.Warn("dropping corrupt cache entry", util.Int64("admin_id", id))
		_ = c.client.Del(ctx, cacheKey(id))
		return nil, ErrCacheMiss
	}

	return entry.toModel(), nil
}

func (c *AccountCache) Set(ctx context.Context, account *model.AdminAccount) error {
	raw, err := json.Marshal(toCached(account))
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(account.ID), raw, c.ttl); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

func (c *AccountCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.client.Del(ctx, cacheKey(id)); err != nil {
		return fmt.Errorf("cache invalidate failed: %w", err)
	}
	return nil
}
