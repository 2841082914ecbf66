package router

import (
	"context"
	"sync"

	"github.com/dep2p/go-modrouter/pkg/types"
)

// MockHandler 可编程的模块处理器，用于测试
//
// HandleFunc 为 nil 时对关联消息返回 nil（由路由器合成成功响应）。
// 所有收到的消息和生命周期通知都会被记录。
type MockHandler struct {
	HandleFunc func(ctx context.Context, msg *types.Message) (*types.MessageResponse, error)

	mu           sync.Mutex
	messages     []*types.Message
	registered   []string
	unregistered []string
}

// NewMockHandler 创建 MockHandler
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// HandleMessage 记录消息并调用 HandleFunc
func (m *MockHandler) HandleMessage(ctx context.Context, msg *types.Message) (*types.MessageResponse, error) {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	fn := m.HandleFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return nil, nil
}

// OnModuleRegistered 记录注册通知
func (m *MockHandler) OnModuleRegistered(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = append(m.registered, id)
}

// OnModuleUnregistered 记录注销通知
func (m *MockHandler) OnModuleUnregistered(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unregistered = append(m.unregistered, id)
}

// Messages 返回已收到消息的副本
func (m *MockHandler) Messages() []*types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Message(nil), m.messages...)
}

// MessageCount 返回已收到消息数
func (m *MockHandler) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Registered 返回收到的注册通知
func (m *MockHandler) Registered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.registered...)
}

// Unregistered 返回收到的注销通知
func (m *MockHandler) Unregistered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unregistered...)
}
