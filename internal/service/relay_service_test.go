package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"
)

type relayCtxKey struct{}

// 中继的数据库操作必须带上调用方的 ctx，关停时才能取消在途查询
func TestRelayQueriesCarryCallerContext(t *testing.T) {
	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	assert.NoError(t, err)

	var captured context.Context
	err = db.Callback().Query().Before("gorm:query").Register("capture_ctx", func(tx *gorm.DB) {
		captured = tx.Statement.Context
	})
	assert.NoError(t, err)

	s := NewRelayService(db, nil) // 没有待发送消息，producer 不会被触碰

	ctx := context.WithValue(context.Background(), relayCtxKey{}, "relay")
	s.processPendingMessages(ctx)

	assert.NotNil(t, captured)
	assert.Equal(t, "relay", captured.Value(relayCtxKey{}))
}
