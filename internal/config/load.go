package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix: 环境变量前缀。
const EnvPrefix = "PDBGRAPH_"

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Name 与 Inputs 不设默认（必须由文件/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Concurrency: 1,
		Logging:     Logging{Level: "info", Dir: "logs"},
		Components: Components{
			Reader:    "fs",
			Parser:    "pdb",
			Annotator: "none",
			Embedder:  "onehot",
			Graph:     "radius",
			Collator:  "blob",
			Writer:    "fs",
		},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadYAML 解析 YAML 配置：先解为通用树，再转 JSON 走严格解码，
// 这样 options 子树仍以原样 JSON 交给工厂。
func LoadYAML(raw []byte) (Config, error) {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	if tree == nil {
		return Config{}, errors.New("yaml: empty document")
	}
	js, err := json.Marshal(tree)
	if err != nil {
		// 非字符串键等无法映射为 JSON 对象
		return Config{}, fmt.Errorf("yaml: %w", err)
	}
	return LoadJSON("", js)
}

// LoadFile 按扩展名选择解码器：.yaml/.yml 为 YAML，其余按 JSON。
func LoadFile(path string) (Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		return LoadYAML(raw)
	default:
		return LoadJSON(path, nil)
	}
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if s := strings.TrimSpace(over.Name); s != "" {
		out.Name = s
	}
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if over.Concurrency != 0 {
		out.Concurrency = over.Concurrency
	}
	if over.Force != nil {
		out.Force = BoolPtr(*over.Force)
	}
	if over.OnlySingleChain != nil {
		out.OnlySingleChain = BoolPtr(*over.OnlySingleChain)
	}
	if over.CheckSequence != nil {
		out.CheckSequence = BoolPtr(*over.CheckSequence)
	}
	if s := strings.TrimSpace(over.Logging.Level); s != "" {
		out.Logging.Level = s
	}
	if s := strings.TrimSpace(over.Logging.Dir); s != "" {
		out.Logging.Dir = s
	}
	if s := strings.TrimSpace(over.MetricsOut); s != "" {
		out.MetricsOut = s
	}

	// 组件名（空不覆盖）
	mergeName(&out.Components.Reader, over.Components.Reader)
	mergeName(&out.Components.Parser, over.Components.Parser)
	mergeName(&out.Components.Annotator, over.Components.Annotator)
	mergeName(&out.Components.Embedder, over.Components.Embedder)
	mergeName(&out.Components.Graph, over.Components.Graph)
	mergeName(&out.Components.Collator, over.Components.Collator)
	mergeName(&out.Components.Writer, over.Components.Writer)

	// Options（完整替换对应键）
	mergeRaw(&out.Options.Reader, over.Options.Reader)
	mergeRaw(&out.Options.Parser, over.Options.Parser)
	mergeRaw(&out.Options.Annotator, over.Options.Annotator)
	mergeRaw(&out.Options.Embedder, over.Options.Embedder)
	mergeRaw(&out.Options.Graph, over.Options.Graph)
	mergeRaw(&out.Options.Collator, over.Options.Collator)
	mergeRaw(&out.Options.Writer, over.Options.Writer)
	return out
}

func mergeName(dst *string, v string) {
	if s := strings.TrimSpace(v); s != "" {
		*dst = s
	}
}

func mergeRaw(dst *json.RawMessage, v json.RawMessage) {
	if len(v) > 0 {
		*dst = cloneRaw(v)
	}
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 PDBGRAPH_；集合之外的键忽略。
// 支持：NAME, INPUTS, CONCURRENCY, FORCE, ONLY_SINGLE_CHAIN, CHECK_SEQUENCE,
// LOG_LEVEL, LOG_DIR, METRICS_OUT, COMPONENTS_<X>, OPTIONS_<X>_JSON。
// 数值/布尔无法解析时返回错误，而不是静默忽略。
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key := strings.TrimPrefix(kv[:eq], EnvPrefix)
		val := strings.TrimSpace(kv[eq+1:])
		if val == "" {
			// 空值视为未设置，避免清空现有配置
			continue
		}
		switch key {
		case "NAME":
			over.Name = val
		case "INPUTS":
			over.Inputs = splitComma(val)
		case "CONCURRENCY":
			v, err := strconv.Atoi(val)
			if err != nil {
				return over, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			over.Concurrency = v
		case "FORCE", "ONLY_SINGLE_CHAIN", "CHECK_SEQUENCE":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return over, fmt.Errorf("env %s%s: %w", EnvPrefix, key, err)
			}
			switch key {
			case "FORCE":
				over.Force = BoolPtr(b)
			case "ONLY_SINGLE_CHAIN":
				over.OnlySingleChain = BoolPtr(b)
			default:
				over.CheckSequence = BoolPtr(b)
			}
		case "LOG_LEVEL":
			over.Logging.Level = val
		case "LOG_DIR":
			over.Logging.Dir = val
		case "METRICS_OUT":
			over.MetricsOut = val
		case "COMPONENTS_READER":
			over.Components.Reader = val
		case "COMPONENTS_PARSER":
			over.Components.Parser = val
		case "COMPONENTS_ANNOTATOR":
			over.Components.Annotator = val
		case "COMPONENTS_EMBEDDER":
			over.Components.Embedder = val
		case "COMPONENTS_GRAPH":
			over.Components.Graph = val
		case "COMPONENTS_COLLATOR":
			over.Components.Collator = val
		case "COMPONENTS_WRITER":
			over.Components.Writer = val
		case "OPTIONS_READER_JSON":
			over.Options.Reader = json.RawMessage(val)
		case "OPTIONS_PARSER_JSON":
			over.Options.Parser = json.RawMessage(val)
		case "OPTIONS_ANNOTATOR_JSON":
			over.Options.Annotator = json.RawMessage(val)
		case "OPTIONS_EMBEDDER_JSON":
			over.Options.Embedder = json.RawMessage(val)
		case "OPTIONS_GRAPH_JSON":
			over.Options.Graph = json.RawMessage(val)
		case "OPTIONS_COLLATOR_JSON":
			over.Options.Collator = json.RawMessage(val)
		case "OPTIONS_WRITER_JSON":
			over.Options.Writer = json.RawMessage(val)
		default:
			// CONFIG_JSON 等由 cmd 层处理
		}
	}
	return over, nil
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
