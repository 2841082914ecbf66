package types

import "fmt"

// Connection 流水线连接：生产者输出端口 -> 消费者输入端口
type Connection struct {
	From    string `json:"from"`
	OutPort string `json:"outPort"`
	To      string `json:"to"`
	InPort  string `json:"inPort"`
}

// String 用于日志
func (c Connection) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", c.From, c.OutPort, c.To, c.InPort)
}
