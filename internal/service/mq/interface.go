package mq

import "context"

// Message MQ 消息
type Message struct {
	ID      string
	Topic   string
	Payload []byte
}

// Producer 事件生产者 (kafka / redis streams)
type Producer interface {
	// Publish key 用于分区，同一笔付款的事件保持有序
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 事件消费者
type Consumer interface {
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}
