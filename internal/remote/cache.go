package remote

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/claimwatch/claim-analysis/pkg/models"
	"github.com/claimwatch/claim-analysis/pkg/redis"
)

const verdictKeyPrefix = "fraud:verdict:"

// verdictKeyLen bounds how much of the claim text participates in the
// cache key, matching the remote request coalescing granularity.
const verdictKeyLen = 100

// VerdictCache keeps recent remote verdicts in Redis so repeated
// submissions of the same claim skip the provider round trip.
type VerdictCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVerdictCache creates a verdict cache with the given TTL
func NewVerdictCache(client *redis.Client, ttl time.Duration) *VerdictCache {
	return &VerdictCache{client: client, ttl: ttl}
}

func verdictKey(text string, attachment *models.Attachment) string {
	key := text
	if len(key) > verdictKeyLen {
		key = key[:verdictKeyLen]
	}
	if attachment != nil {
		key += attachment.MimeType
	}
	return verdictKeyPrefix + key
}

// Get returns the cached verdict for a claim, or nil on a miss.
func (c *VerdictCache) Get(ctx context.Context, text string, attachment *models.Attachment) (*models.AnalysisResult, error) {
	data, err := c.client.GetString(ctx, verdictKey(text, attachment))
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Set stores a verdict with the configured TTL.
func (c *VerdictCache) Set(ctx context.Context, text string, attachment *models.Attachment, result *models.AnalysisResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.SetWithExpiration(ctx, verdictKey(text, attachment), data, c.ttl)
}
