package types

import "slices"

// ModuleInfo 模块描述
//
// Inputs/Outputs 声明可用于流水线连接的端口，
// Accepts 声明默认处理器会给出通用确认的消息类型。
type ModuleInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Version     string   `json:"version,omitempty"`
	Description string   `json:"description,omitempty"`
	Inputs      []string `json:"inputs,omitempty"`
	Outputs     []string `json:"outputs,omitempty"`
	Accepts     []string `json:"accepts,omitempty"`
}

// HasInput 是否声明了输入端口
func (i ModuleInfo) HasInput(port string) bool {
	return slices.Contains(i.Inputs, port)
}

// HasOutput 是否声明了输出端口
func (i ModuleInfo) HasOutput(port string) bool {
	return slices.Contains(i.Outputs, port)
}

// AcceptsType 是否声明接受该消息类型
func (i ModuleInfo) AcceptsType(msgType string) bool {
	return slices.Contains(i.Accepts, msgType)
}

// Clone 拷贝切片字段
func (i ModuleInfo) Clone() ModuleInfo {
	i.Inputs = slices.Clone(i.Inputs)
	i.Outputs = slices.Clone(i.Outputs)
	i.Accepts = slices.Clone(i.Accepts)
	return i
}
