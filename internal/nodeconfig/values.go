package nodeconfig

import (
	json "github.com/goccy/go-json"
)

// ValuesPayload 上传给协调端的测量结果
type ValuesPayload struct {
	DataID json.RawMessage   `json:"dataId"`
	Values map[string]string `json:"values"`
}

// NewValuesPayload 以配置中的 dataId 创建空结果
func NewValuesPayload(c *Config) *ValuesPayload {
	p := &ValuesPayload{Values: map[string]string{}}
	if c != nil && len(c.DataID) > 0 {
		p.DataID = append(json.RawMessage(nil), c.DataID...)
	} else {
		p.DataID = json.RawMessage("null")
	}
	return p
}

// Set 写入一个结果
func (p *ValuesPayload) Set(tag Tag, value string) {
	p.Values[string(tag)] = value
}

// Marshal 序列化为请求体
func (p *ValuesPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}
