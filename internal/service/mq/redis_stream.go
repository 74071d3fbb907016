package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"multisig-core/pkg/logger"
)

// RedisProducer 实现 Producer 接口 (Redis Streams)
type RedisProducer struct {
	client redis.UniversalClient
	maxLen int64
}

// NewRedisProducer maxLen > 0 时按近似长度裁剪 Stream
func NewRedisProducer(client redis.UniversalClient, maxLen int64) *RedisProducer {
	return &RedisProducer{client: client, maxLen: maxLen}
}

// Publish XADD <topic> * key <key> payload <payload>
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis xadd error: %w", err)
	}
	return nil
}

// Close 客户端由调用方统一关闭
func (p *RedisProducer) Close() error {
	return nil
}

// RedisConsumer 实现 Consumer 接口 (Consumer Group)
type RedisConsumer struct {
	client redis.UniversalClient
	group  string
	name   string
}

func NewRedisConsumer(client redis.UniversalClient, group, name string) *RedisConsumer {
	return &RedisConsumer{client: client, group: group, name: name}
}

func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// XGROUP CREATE <stream> <group> $ MKSTREAM
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("创建消费者组失败: %w", err)
	}

	log := logger.Named("redis-stream")
	log.Info("Subscribed", zap.String("topic", topic), zap.String("group", c.group))

	for {
		if ctx.Err() != nil {
			return nil
		}

		// XREADGROUP GROUP <group> <consumer> BLOCK 2000 COUNT 10 STREAMS <topic> >
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    2 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("Read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, x := range stream.Messages {
				msg, ok := decodeStreamMessage(topic, x)
				if !ok {
					log.Warn("Malformed stream entry, acking", zap.String("id", x.ID))
					c.client.XAck(ctx, topic, c.group, x.ID)
					continue
				}
				if err := handler(msg); err != nil {
					log.Warn("Handler failed", zap.String("id", x.ID), zap.Error(err))
					continue
				}
				c.client.XAck(ctx, topic, c.group, x.ID)
			}
		}
	}
}

func (c *RedisConsumer) Close() error {
	return nil
}

func decodeStreamMessage(topic string, x redis.XMessage) (*Message, bool) {
	payload, ok := x.Values["payload"].(string)
	if !ok {
		return nil, false
	}
	key, _ := x.Values["key"].(string)
	return &Message{ID: x.ID, Topic: topic, Key: key, Payload: []byte(payload)}, true
}
