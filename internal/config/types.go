package config

import (
	"encoding/json"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。YAML 文件先转为 JSON 再走同一解码路径。
type Config struct {
	// Name: 数据集名，产物为 <name><ext>（扁平文件名，不含路径分隔符）。
	Name        string   `json:"name" validate:"required,excludesall=/\\"`
	Inputs      []string `json:"inputs" validate:"required,min=1,dive,required"`
	Concurrency int      `json:"concurrency" validate:"gte=1,lte=1024"`

	// 以下布尔项用指针区分“未设置”与显式 false，便于逐层覆盖。
	Force           *bool `json:"force,omitempty"`
	OnlySingleChain *bool `json:"only_single_chain,omitempty"`
	CheckSequence   *bool `json:"check_sequence,omitempty"`

	Logging Logging `json:"logging"`
	// MetricsOut: 非空时在运行结束后写出 Prometheus 文本格式指标。
	MetricsOut string `json:"metrics_out,omitempty"`

	// 组件名选择（空则使用默认名）。
	Components Components `json:"components"`

	// 各组件 Options 子树，原样 JSON 传入工厂。
	Options Options `json:"options"`
}

// Logging: 日志等级与目录；轮转策略为固定默认。
type Logging struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `json:"dir,omitempty"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Reader    string `json:"reader"`
	Parser    string `json:"parser"`
	Annotator string `json:"annotator"`
	Embedder  string `json:"embedder"`
	Graph     string `json:"graph"`
	Collator  string `json:"collator"`
	Writer    string `json:"writer"`
}

// Options: 各组件的原样 JSON Options。
type Options struct {
	Reader    json.RawMessage `json:"reader,omitempty"`
	Parser    json.RawMessage `json:"parser,omitempty"`
	Annotator json.RawMessage `json:"annotator,omitempty"`
	Embedder  json.RawMessage `json:"embedder,omitempty"`
	Graph     json.RawMessage `json:"graph,omitempty"`
	Collator  json.RawMessage `json:"collator,omitempty"`
	Writer    json.RawMessage `json:"writer,omitempty"`
}

// Bool 返回指针值（nil 视为 false）。
func Bool(p *bool) bool { return p != nil && *p }

// BoolPtr 便于字面量构造。
func BoolPtr(v bool) *bool { return &v }
