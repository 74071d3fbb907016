package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"multisig-core/internal/model"
	"multisig-core/internal/service/mq"
	"multisig-core/pkg/logger"
	"multisig-core/pkg/monitor"
)

// RelayService 负责将本地消息表的消息搬运到 MQ
// 只有发送成功才标记 SENT => At-least-once，下游需按 (id, type) 幂等
type RelayService struct {
	db        *gorm.DB
	producer  mq.Producer
	interval  time.Duration
	batchSize int
	log       *zap.Logger
}

func NewRelayService(db *gorm.DB, producer mq.Producer) *RelayService {
	return &RelayService{
		db:        db,
		producer:  producer,
		interval:  500 * time.Millisecond,
		batchSize: 50,
		log:       logger.Named("relay"),
	}
}

// Start 阻塞轮询直到 ctx 取消
func (s *RelayService) Start(ctx context.Context) {
	s.log.Info("Outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := s.RelayOnce(ctx); err != nil {
				s.log.Warn("Relay batch failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce 投递一批 PENDING 消息，返回成功投递的条数。
// 行锁 SKIP LOCKED 保证多实例不会重复投递同一批消息。
func (s *RelayService) RelayOnce(ctx context.Context) (int, error) {
	sent := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 获取一批 Pending 消息 (按 ID 顺序，保证同一笔交易的事件有序)
		var messages []model.OutboxMessage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.OutboxStatusPending).
			Order("id").
			Limit(s.batchSize).
			Find(&messages).Error; err != nil {
			return err
		}

		for _, msg := range messages {
			// 2. 发送 MQ。失败后停止本批，后续消息留到下一轮，避免乱序
			if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
				monitor.Business.OutboxRelayedTotal.WithLabelValues("error").Inc()
				s.log.Warn("Publish failed", zap.Uint64("id", msg.ID), zap.String("topic", msg.Topic), zap.Error(err))
				return nil
			}

			// 3. 更新状态为 SENT
			if err := tx.Model(&model.OutboxMessage{}).
				Where("id = ?", msg.ID).
				Update("status", model.OutboxStatusSent).Error; err != nil {
				return err
			}
			monitor.Business.OutboxRelayedTotal.WithLabelValues("sent").Inc()
			sent++
		}
		return nil
	})
	if sent > 0 {
		s.log.Debug("Relayed outbox messages", zap.Int("count", sent))
	}
	return sent, err
}
