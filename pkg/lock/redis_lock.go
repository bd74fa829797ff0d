package lock

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"payout-core/pkg/safe_random"
)

// DistributedLock 定义分布式锁接口
type DistributedLock interface {
	// Acquire 尝试获取锁
	// key: 锁的唯一标识
	// ttl: 锁的过期时间
	// 返回: (是否成功, error)
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release 释放锁
	Release(ctx context.Context, key string) error
}

// releaseScript 只删除自己持有的锁: TTL 过期后锁可能已被别的实例拿走，
// 无条件 DEL 会把别人的锁放掉
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLock 基于 Redis SETNX 的实现
// 用于对账等后台任务，防止多实例同时执行
type RedisLock struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string // key -> 本实例持有的令牌
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{
		client: client,
		tokens: make(map[string]string),
	}
}

func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token, err := safe_random.GenerateRandomHexString(16)
	if err != nil {
		return false, err
	}

	// SET key token NX EX ttl
	success, err := l.client.SetNX(ctx, "lock:"+key, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if success {
		l.mu.Lock()
		l.tokens[key] = token
		l.mu.Unlock()
	}
	return success, nil
}

func (l *RedisLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		// 不是自己拿到的锁，无权释放
		return nil
	}

	return releaseScript.Run(ctx, l.client, []string{"lock:" + key}, token).Err()
}
