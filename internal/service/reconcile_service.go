package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"payout-core/pkg/lock"
	"payout-core/pkg/logger"
)

// ReconcileService 定时收尾残留支付。
// 多实例部署时用 Redis 锁保证同一时刻只有一个节点在对账。
type ReconcileService struct {
	cron    *cron.Cron
	redis   *redis.Client
	payouts *PayoutService
	spec    string // cron 表达式，如 "@every 5m"
}

func NewReconcileService(rdb *redis.Client, payouts *PayoutService, spec string) *ReconcileService {
	return &ReconcileService{
		cron:    cron.New(),
		redis:   rdb,
		payouts: payouts,
		spec:    spec,
	}
}

func (s *ReconcileService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("对账任务已启动", zap.String("schedule", s.spec))
	return nil
}

func (s *ReconcileService) Stop() {
	s.cron.Stop()
	logger.Info("对账任务已停止")
}

func (s *ReconcileService) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	lockKey := "payout:reconcile_stale"
	locker := lock.NewRedisLock(s.redis)
	locked, err := locker.Acquire(ctx, lockKey, 3*time.Minute)
	if err != nil || !locked {
		// 有其他节点在对账，跳过
		logger.Debug("对账锁获取失败或已有实例在运行")
		return
	}
	defer locker.Release(ctx, lockKey)

	if err := s.payouts.ReconcileStale(ctx); err != nil {
		logger.Warn("对账执行失败", zap.Error(err))
	}
}
