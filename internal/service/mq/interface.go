package mq

import "context"

// Message 代表一条通用的业务消息
type Message struct {
	ID      string // 消息ID (Redis Stream ID 或 Kafka partition/offset)
	Topic   string
	Key     string // 分区键，这里是待签名交易 ID，保证同一笔交易的事件有序
	Payload []byte // JSON
}

// Producer 生产者接口
type Producer interface {
	// Publish 发送消息
	// key: 用于分区排序 (Partition Key)，传空字符串则随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe 阻塞订阅主题直到 ctx 取消
	// handler 返回 error 时消息不确认，稍后会被重新投递
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}
