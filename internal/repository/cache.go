package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// productCachePattern matches every cached product and product listing.
const productCachePattern = "catalog:products:*"

// deleteByPattern removes every key matching pattern. SCAN keeps Redis
// responsive on large keyspaces; keys written during the scan may survive.
func deleteByPattern(ctx context.Context, rdb *redis.Client, pattern string) {
	iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		rdb.Del(ctx, keys...)
	}
}
