package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestLock(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestAcquireIsExclusive(t *testing.T) {
	_, client := newTestLock(t)
	ctx := context.Background()

	a := NewRedisLock(client)
	b := NewRedisLock(client)

	ok, err := a.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.False(t, ok, "同一把锁不能被第二个实例拿到")

	// 持有者释放后可以重新获取
	assert.NoError(t, a.Release(ctx, "job"))
	ok, err = b.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)
}

// 没拿到锁的实例调用 Release 不能删掉持有者的锁
func TestReleaseOnlyDeletesOwnLock(t *testing.T) {
	mr, client := newTestLock(t)
	ctx := context.Background()

	a := NewRedisLock(client)
	b := NewRedisLock(client)

	ok, _ := a.Acquire(ctx, "job", time.Minute)
	assert.True(t, ok)

	assert.NoError(t, b.Release(ctx, "job"))
	assert.True(t, mr.Exists("lock:job"), "未持锁的释放不能影响别人的锁")
}

// TTL 过期后锁被另一个实例接管，过期持有者迟到的 Release 不能放掉新锁
func TestStaleReleaseDoesNotStealTakenOverLock(t *testing.T) {
	mr, client := newTestLock(t)
	ctx := context.Background()

	a := NewRedisLock(client)
	b := NewRedisLock(client)

	ok, _ := a.Acquire(ctx, "job", time.Minute)
	assert.True(t, ok)

	// 锁过期，b 接管
	mr.FastForward(2 * time.Minute)
	ok, err := b.Acquire(ctx, "job", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	// a 的任务拖过了 TTL 才结束
	assert.NoError(t, a.Release(ctx, "job"))
	assert.True(t, mr.Exists("lock:job"), "迟到的释放删掉了新持有者的锁")

	assert.NoError(t, b.Release(ctx, "job"))
	assert.False(t, mr.Exists("lock:job"))
}
