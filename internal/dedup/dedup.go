// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup provides message deduplication using a Redis SET with TTL.
// The poll window deliberately overlaps the previous run so scheduler
// jitter never drops a message; this filter keeps the overlap from
// archiving the same submission twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a seen message ID. Poll windows
	// span minutes, so 24h gives a wide safety margin.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces dedup keys in Redis.
	keyPrefix = "warranty:seen:"
)

// Filter tracks which message IDs have already been processed.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// IsNew returns true if the message ID has NOT been seen before.
// If true, the message is marked as seen atomically (SETNX).
func (f *Filter) IsNew(ctx context.Context, messageID string) (bool, error) {
	key := fmt.Sprintf("%s%s", keyPrefix, messageID)

	// SET NX = set only if key does not exist. Returns true if the key was set.
	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}

// Forget clears the seen marker so a message can be retried before the TTL
// expires — used when processing fails after the marker was set.
func (f *Filter) Forget(ctx context.Context, messageID string) error {
	return f.rdb.Del(ctx, keyPrefix+messageID).Err()
}

// Ping checks the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return f.rdb.Ping(ctx).Err()
}
