package types

import (
	"errors"
	"time"
)

// MessageResponse 关联响应
//
// Data 仅在 Success 时有意义，Error 仅在失败时有意义。
type MessageResponse struct {
	// MessageID 回显请求消息 ID
	MessageID string `json:"messageId"`

	// CorrelationID 关联 ID
	CorrelationID string `json:"correlationId,omitempty"`

	// Success 是否成功
	Success bool `json:"success"`

	// Data 成功时的结果
	Data any `json:"data,omitempty"`

	// Error 失败时的错误描述
	Error string `json:"error,omitempty"`

	// Timestamp 响应时间
	Timestamp time.Time `json:"timestamp"`
}

// NewSuccessResponse 构造成功响应
func NewSuccessResponse(req *Message, data any) *MessageResponse {
	resp := newResponse(req)
	resp.Success = true
	resp.Data = data
	return resp
}

// NewFailureResponse 构造失败响应
func NewFailureResponse(req *Message, reason string) *MessageResponse {
	resp := newResponse(req)
	resp.Error = reason
	return resp
}

// newResponse 回显请求的 ID，req 可以为 nil
//
// Timestamp 留空，由路由器结算时填充。
func newResponse(req *Message) *MessageResponse {
	resp := &MessageResponse{}
	if req != nil {
		resp.MessageID = req.ID
		resp.CorrelationID = req.CorrelationID
	}
	return resp
}

// ResponseFromError 把任意错误转换为失败响应
//
// 如果错误链中带有 *ResponseError，直接使用其中的响应；
// 否则合成一个失败响应。
func ResponseFromError(req *Message, err error) *MessageResponse {
	var respErr *ResponseError
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response
	}
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return NewFailureResponse(req, reason)
}
