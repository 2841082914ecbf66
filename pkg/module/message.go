package module

import (
	"maps"
	"time"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// 内置消息类型
const (
	// TypePing 存活探测
	TypePing = "ping"

	// TypeInfo 查询模块描述
	TypeInfo = "info"

	// TypeData 流水线数据
	TypeData = "data"
)

// 流水线数据的元数据键
const (
	// MetaPort 目标输入端口
	MetaPort = "port"

	// MetaSourcePort 来源输出端口
	MetaSourcePort = "source_port"
)

// MessageOption 消息构造选项
type MessageOption func(*types.Message)

// WithTTL 设置消息存活时间
func WithTTL(ttl time.Duration) MessageOption {
	return func(m *types.Message) {
		m.TTL = ttl
	}
}

// WithPriority 设置优先级提示
func WithPriority(p int) MessageOption {
	return func(m *types.Message) {
		m.Priority = p
	}
}

// WithMetadata 添加一个元数据项
func WithMetadata(key, value string) MessageOption {
	return func(m *types.Message) {
		if m.Metadata == nil {
			m.Metadata = make(map[string]string)
		}
		m.Metadata[key] = value
	}
}

// WithMetadataMap 合并一组元数据
func WithMetadataMap(md map[string]string) MessageOption {
	return func(m *types.Message) {
		if len(md) == 0 {
			return
		}
		if m.Metadata == nil {
			m.Metadata = make(map[string]string, len(md))
		}
		maps.Copy(m.Metadata, md)
	}
}

// WithCorrelationID 指定关联 ID
func WithCorrelationID(id string) MessageOption {
	return func(m *types.Message) {
		m.CorrelationID = id
	}
}

// NewMessage 构造一条由本模块发出的消息
//
// target 为空表示广播。Timestamp 留空，由路由器接受时按其时钟填充。
func (b *BaseModule) NewMessage(msgType string, payload any, target string, opts ...MessageOption) *types.Message {
	m := &types.Message{
		ID:      types.NewMessageID(),
		Type:    msgType,
		Source:  b.info.ID,
		Target:  target,
		Payload: payload,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}
