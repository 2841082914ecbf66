package router

import "errors"

var (
	// ErrAlreadyStarted 路由器已启动
	ErrAlreadyStarted = errors.New("router: already started")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("router: invalid config")
)
