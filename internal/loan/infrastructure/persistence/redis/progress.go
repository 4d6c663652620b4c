// Package redis 批次生成进度的 Redis 存储
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ww-care/bank-data-simulation/pkg/cache"
)

const (
	progressKeyPrefix = "loansim:batch:progress:"
	// 批次进度保留一天，批次事实由 MySQL 持久化
	progressTTL = 24 * time.Hour
)

// BatchProgressStore 批次进度存储的 Redis 实现，使用 hash 记录计数
type BatchProgressStore struct {
	cache *cache.RedisCache
}

// NewBatchProgressStore 创建进度存储
func NewBatchProgressStore(c *cache.RedisCache) *BatchProgressStore {
	return &BatchProgressStore{cache: c}
}

func progressKey(batchID string) string {
	return progressKeyPrefix + batchID
}

// InitProgress 初始化批次进度
func (s *BatchProgressStore) InitProgress(ctx context.Context, batchID string, total int) error {
	key := progressKey(batchID)
	if err := s.cache.HSet(ctx, key,
		"total", total,
		"done", 0,
		"failed", 0,
		"status", "running",
	); err != nil {
		return fmt.Errorf("init progress %s: %w", batchID, err)
	}
	return s.cache.Expire(ctx, key, progressTTL)
}

// IncrProgress 累加完成与失败计数
func (s *BatchProgressStore) IncrProgress(ctx context.Context, batchID string, succeeded, failed int) error {
	key := progressKey(batchID)
	client := s.cache.GetClient()
	pipe := client.Pipeline()
	if succeeded > 0 {
		pipe.HIncrBy(ctx, key, "done", int64(succeeded))
	}
	if failed > 0 {
		pipe.HIncrBy(ctx, key, "failed", int64(failed))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr progress %s: %w", batchID, err)
	}
	return nil
}

// GetProgress 读取当前进度
func (s *BatchProgressStore) GetProgress(ctx context.Context, batchID string) (int, int, int, error) {
	values, err := s.cache.HGetAll(ctx, progressKey(batchID))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("get progress %s: %w", batchID, err)
	}
	if len(values) == 0 {
		return 0, 0, 0, fmt.Errorf("progress %s not found", batchID)
	}
	done := parseCount(values["done"])
	failed := parseCount(values["failed"])
	total := parseCount(values["total"])
	return done, failed, total, nil
}

// MarkCompleted 标记批次完成
func (s *BatchProgressStore) MarkCompleted(ctx context.Context, batchID string) error {
	key := progressKey(batchID)
	if err := s.cache.HSet(ctx, key, "status", "completed"); err != nil {
		return fmt.Errorf("mark progress completed %s: %w", batchID, err)
	}
	return s.cache.Expire(ctx, key, progressTTL)
}

func parseCount(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
