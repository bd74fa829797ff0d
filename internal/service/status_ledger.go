package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"payout-core/internal/model"
)

// SQLStatusLedger StatusLedger 的 gorm 实现。
// 付款到达终态时在同一事务里写 outbox 事件，由 Relay 投递。
type SQLStatusLedger struct {
	db    *gorm.DB
	topic string
}

func NewSQLStatusLedger(db *gorm.DB, eventTopic string) *SQLStatusLedger {
	return &SQLStatusLedger{db: db, topic: eventTopic}
}

// payoutEvent 投递到 MQ 的终态事件
type payoutEvent struct {
	EventID      string `json:"event_id"`
	PaymentID    string `json:"payment_id"`
	RecipientUID string `json:"recipient_uid"`
	Amount       string `json:"amount"`
	TxID         string `json:"txid,omitempty"`
	Status       string `json:"status"`
	OccurredAt   string `json:"occurred_at"`
}

// Upsert 按 payment_id 插入或更新 (ON CONFLICT DO UPDATE)
func (l *SQLStatusLedger) Upsert(ctx context.Context, payout *model.Payout) error {
	now := time.Now()
	payout.UpdatedAt = now
	if payout.CreatedAt.IsZero() {
		payout.CreatedAt = now
	}

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"txid", "status", "updated_at"}),
		}).Create(payout).Error
		if err != nil {
			return err
		}

		// 终态时写 outbox，保证状态与事件原子落库
		if payout.Terminal() {
			payload, err := json.Marshal(payoutEvent{
				EventID:      uuid.NewString(),
				PaymentID:    payout.PaymentID,
				RecipientUID: payout.RecipientUID,
				Amount:       payout.Amount.String(),
				TxID:         payout.TxID,
				Status:       payout.Status,
				OccurredAt:   now.UTC().Format(time.RFC3339),
			})
			if err != nil {
				return err
			}
			return tx.Create(&model.OutboxMessage{
				Topic:   l.topic,
				Key:     payout.PaymentID,
				Payload: payload,
				Status:  "PENDING",
			}).Error
		}
		return nil
	})
}

func (l *SQLStatusLedger) Get(ctx context.Context, paymentID string) (*model.Payout, error) {
	var payout model.Payout
	if err := l.db.WithContext(ctx).First(&payout, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (l *SQLStatusLedger) List(ctx context.Context, uid string, limit int) ([]model.Payout, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := l.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if uid != "" {
		q = q.Where("recipient_uid = ?", uid)
	}

	var payouts []model.Payout
	if err := q.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
