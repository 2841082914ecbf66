package correlator

import "errors"

var (
	// ErrClosed 关联器已关闭
	ErrClosed = errors.New("correlator: closed")

	// ErrInvalidTimeout 超时必须为正
	ErrInvalidTimeout = errors.New("correlator: timeout must be positive")

	// ErrEmptyCorrelationID 关联 ID 为空
	ErrEmptyCorrelationID = errors.New("correlator: empty correlation id")
)
