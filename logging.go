package modrouter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dep2p/go-modrouter/config"
	"github.com/dep2p/go-modrouter/pkg/lib/log"
)

// logOutput 日志输出目标，文件输出时持有文件句柄
type logOutput struct {
	file *os.File
	once sync.Once
}

// setupLogging 按配置重建默认 logger
//
// 日志文件以追加方式打开，目录不存在时自动创建。
func setupLogging(cfg config.LogConfig) (*logOutput, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	out := &logOutput{}
	var w io.Writer = os.Stderr
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out.file = f
		w = f
	}

	log.Setup(w, level, log.Format(strings.ToLower(cfg.Format)))
	return out, nil
}

// Close 关闭日志文件，日志重新输出到 stderr
func (o *logOutput) Close() error {
	if o == nil || o.file == nil {
		return nil
	}
	var err error
	o.once.Do(func() {
		log.Setup(os.Stderr, log.LevelInfo, log.FormatText)
		err = o.file.Close()
	})
	return err
}
