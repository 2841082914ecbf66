package types

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
//                              Message
// ============================================================================

// Message 模块间消息信封
//
// 消息一经路由器接受即视为不可变：路由器在接受时复制一份，
// 发送方之后对原对象的修改不会影响投递。
type Message struct {
	// ID 消息唯一标识
	ID string `json:"id"`

	// Type 消息类型标签，例如 "ping"
	Type string `json:"type"`

	// Source 发送方模块 ID
	Source string `json:"source"`

	// Target 接收方模块 ID，为空表示广播
	Target string `json:"target,omitempty"`

	// Payload 不透明负载
	Payload any `json:"payload,omitempty"`

	// Timestamp 创建时间，为零值时由路由器在接受时填充
	Timestamp time.Time `json:"timestamp"`

	// CorrelationID 请求/响应关联 ID
	CorrelationID string `json:"correlationId,omitempty"`

	// TTL 最大存活时间，0 表示不过期
	TTL time.Duration `json:"ttl,omitempty"`

	// Priority 优先级提示，当前不影响投递顺序
	Priority int `json:"priority,omitempty"`

	// Metadata 附加元数据
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewMessageID 生成新的消息 ID
func NewMessageID() string {
	return uuid.New().String()
}

// NewCorrelationID 生成新的关联 ID
func NewCorrelationID() string {
	return uuid.New().String()
}

// IsBroadcast 是否为广播消息
func (m *Message) IsBroadcast() bool {
	return m.Target == ""
}

// IsCorrelated 是否携带关联 ID
func (m *Message) IsCorrelated() bool {
	return m.CorrelationID != ""
}

// Expired 判断消息在 now 时刻是否已超过 TTL
func (m *Message) Expired(now time.Time) bool {
	if m.TTL <= 0 || m.Timestamp.IsZero() {
		return false
	}
	return now.Sub(m.Timestamp) > m.TTL
}

// Clone 深拷贝信封（Payload 按引用共享）
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.Metadata != nil {
		c.Metadata = maps.Clone(m.Metadata)
	}
	return &c
}

// WithTarget 返回目标改为 target 的副本，用于广播扇出
func (m *Message) WithTarget(target string) *Message {
	c := m.Clone()
	c.Target = target
	return c
}

// Meta 读取元数据
func (m *Message) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// Validate 校验单向/广播消息必须字段：id、source、type
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	if m.Source == "" {
		return fmt.Errorf("%w: missing source", ErrMalformedMessage)
	}
	if m.Type == "" {
		return fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return nil
}

// ValidateRequest 校验请求消息，额外要求 target
func (m *Message) ValidateRequest() error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.Target == "" {
		return fmt.Errorf("%w: request %s has no target", ErrMalformedMessage, m.ID)
	}
	return nil
}

// String 用于日志
func (m *Message) String() string {
	target := m.Target
	if target == "" {
		target = "*"
	}
	return fmt.Sprintf("Message{id=%s type=%s %s->%s}", m.ID, m.Type, m.Source, target)
}
