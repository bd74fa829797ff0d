package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"payout-core/internal/model"
	"payout-core/internal/service/mq"
	"payout-core/pkg/logger"
)

// RelayService 负责将本地消息表的付款事件搬运到 MQ
type RelayService struct {
	db       *gorm.DB
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:       db,
		producer: producer,
		interval: 500 * time.Millisecond,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("付款事件中继服务已启动")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("付款事件中继服务已停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *RelayService) processPendingMessages(ctx context.Context) {
	// 每次取 50 条，避免内存爆炸
	var messages []model.OutboxMessage
	if err := s.db.WithContext(ctx).Where("status = ?", "PENDING").Limit(50).Find(&messages).Error; err != nil {
		logger.Warn("查询待发送事件失败", zap.Error(err))
		return
	}

	for _, msg := range messages {
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			logger.Warn("事件投递失败", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}

		// 只有发送成功了才更新状态 => At-least-once，消费方需做好幂等
		if err := s.db.WithContext(ctx).Model(&msg).Update("status", "SENT").Error; err != nil {
			logger.Warn("事件状态更新失败", zap.Uint64("id", msg.ID), zap.Error(err))
		}
	}
}
