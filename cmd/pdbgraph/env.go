package main

import (
	"bufio"
	"errors"
	"os"
	"strings"
)

// loadDotEnv 读取简单的 .env 文件格式并注入进程环境。
// 规则：
// - 忽略不存在的文件；
// - 跳过空行与以 # 开头的行；支持可选的前缀 "export "；
// - 仅按首个 '=' 分割；成对的单/双引号会被去除，双引号内处理 \n/\t/\r/\"/\\；
// - 不覆盖已存在的环境变量（保持系统/调用者优先）。
func loadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := unquote(strings.TrimSpace(line[eq+1:]))
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, val)
	}
	return s.Err()
}

func unquote(val string) string {
	if len(val) < 2 {
		return val
	}
	q := val[0]
	if (q != '\'' && q != '"') || val[len(val)-1] != q {
		return val
	}
	val = val[1 : len(val)-1]
	if q == '"' {
		val = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\r`, "\r", `\"`, `"`, `\\`, `\`).Replace(val)
	}
	return val
}

// dotEnvKeys: .env 模板中列出的覆盖项（按分组）。
var dotEnvKeys = []struct {
	title string
	keys  []string
}{
	{"配置来源（可二选一）", []string{"CONFIG_FILE", "CONFIG_JSON"}},
	{"运行参数覆盖", []string{"NAME", "INPUTS", "CONCURRENCY", "FORCE", "ONLY_SINGLE_CHAIN", "CHECK_SEQUENCE", "LOG_LEVEL", "LOG_DIR", "METRICS_OUT"}},
	{"组件选择", []string{"COMPONENTS_READER", "COMPONENTS_PARSER", "COMPONENTS_ANNOTATOR", "COMPONENTS_EMBEDDER", "COMPONENTS_GRAPH", "COMPONENTS_COLLATOR", "COMPONENTS_WRITER"}},
	{"组件选项（原样 JSON）", []string{"OPTIONS_READER_JSON", "OPTIONS_PARSER_JSON", "OPTIONS_ANNOTATOR_JSON", "OPTIONS_EMBEDDER_JSON", "OPTIONS_GRAPH_JSON", "OPTIONS_COLLATOR_JSON", "OPTIONS_WRITER_JSON"}},
}

// writeDotEnv 生成 .env 模板（若文件已存在则跳过）。
func writeDotEnv(path string) error {
	var b strings.Builder
	b.WriteString("# pdbgraph .env 模板（由 --init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件\n")
	b.WriteString("# 空值表示未设置。\n\n")
	for _, g := range dotEnvKeys {
		b.WriteString("# " + g.title + "\n")
		for _, k := range g.keys {
			b.WriteString("PDBGRAPH_" + k + "=\n")
		}
		b.WriteString("\n")
	}
	// s3 writer 走 AWS 默认凭证链
	b.WriteString("# S3 writer（未在 options 中给出静态凭证时使用）\n")
	b.WriteString("AWS_ACCESS_KEY_ID=\n")
	b.WriteString("AWS_SECRET_ACCESS_KEY=\n")
	b.WriteString("AWS_REGION=\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return err
	}
	defer f.Close()
	_, err = f.WriteString(b.String())
	return err
}
