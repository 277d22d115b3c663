package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	cfgpkg "pdbgraph/internal/config"
	"pdbgraph/internal/diag"
	"pdbgraph/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 成功；1 运行期失败；3 配置/装配失败。
const (
	exitOK     = 0
	exitRun    = 1
	exitConfig = 3
)

// CLI：默认子命令 build；另有 describe（数据集统计）与 browse（交互浏览）。
// 位置参数为 roots（文件/目录 或 "-" 表示 STDIN，不能与其他根混用）。
func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "describe":
			return runDescribe(os.Args[2:])
		case "browse":
			return runBrowse(os.Args[2:])
		case "build":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}
	return runBuild()
}

func runBuild() int {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前，尝试加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = loadDotEnv(".env")
	// 先占位默认，稍后在解析/合并配置后重建 logger 以使用最终 level/dir
	logger := diag.NewLogger(corrID, "info", "")
	defer func() { _ = logger.Close() }()

	var (
		flagConfig      string
		flagName        string
		flagGraph       string
		flagConcurrency int
		flagForce       bool
		flagSingleChain bool
		flagCheckSeq    bool
		flagLogLevel    string
		flagMetricsOut  string
		flagInitDir     string
		flagTemplate    string
		flagStatus      bool
	)
	flag.StringVar(&flagConfig, "config", "", "配置文件路径（JSON 或 .yaml/.yml）；缺省读取 ./config.json（若存在）")
	flag.StringVar(&flagName, "name", "", "数据集名（产物为 <name>.pdbg）")
	flag.StringVar(&flagGraph, "graph", "", "图构造方式：radius|eps|knn（覆盖配置）")
	flag.IntVar(&flagConcurrency, "concurrency", 0, "并发度（覆盖配置）")
	flag.BoolVar(&flagForce, "force", false, "忽略已存在的数据集，重新构建")
	flag.BoolVar(&flagSingleChain, "only-single-chain", false, "跳过多链蛋白")
	flag.BoolVar(&flagCheckSeq, "check-sequence", false, "跳过残基编号不是 1..n 的蛋白")
	flag.StringVar(&flagLogLevel, "log-level", "", "日志等级：debug|info|warn|error")
	flag.StringVar(&flagMetricsOut, "metrics-out", "", "运行结束后写出 Prometheus 文本指标的路径")
	flag.StringVar(&flagInitDir, "init-config", "", "在指定目录生成默认配置 config.json 和 .env 模板（config.json 已存在时报错）；不带值时默认当前目录")
	flag.StringVar(&flagTemplate, "template", "default", "--init-config 使用的模板：default|pdbbind")
	flag.BoolVar(&flagStatus, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	normalizeInitArg()
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return exitConfig
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	roots := flag.Args()

	// --init-config: 生成模板并退出
	if initDir := strings.TrimSpace(flagInitDir); initDir != "" {
		if err := initConfig(initDir, flagTemplate); err != nil {
			fprintf(os.Stderr, "生成默认配置失败: %v\n", err)
			logger.Error("cmd", err, "", nil)
			return exitConfig
		}
		return exitOK
	}

	cfg, err := loadConfig(flagConfig)
	if err != nil {
		fprintf(os.Stderr, "配置解析失败: %v\n", err)
		logger.Error("config", err, "", nil)
		return exitConfig
	}

	// CLI 覆盖（仅显式给出的旗标）
	var overCLI cfgpkg.Config
	overCLI.Name = flagName
	overCLI.Components.Graph = flagGraph
	if flagConcurrency > 0 {
		overCLI.Concurrency = flagConcurrency
	}
	if set["force"] {
		overCLI.Force = cfgpkg.BoolPtr(flagForce)
	}
	if set["only-single-chain"] {
		overCLI.OnlySingleChain = cfgpkg.BoolPtr(flagSingleChain)
	}
	if set["check-sequence"] {
		overCLI.CheckSequence = cfgpkg.BoolPtr(flagCheckSeq)
	}
	overCLI.Logging.Level = flagLogLevel
	overCLI.MetricsOut = flagMetricsOut
	if len(roots) > 0 {
		overCLI.Inputs = roots
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(os.Stderr, "配置校验失败: %v\n", err)
		// 提示打印有效配置，便于诊断
		_ = dumpConfig(cfg)
		logger.Error("config", err, "", nil)
		return exitConfig
	}

	// 使用最终配置重建 logger
	_ = logger.Close()
	logger = diag.NewLogger(corrID, cfg.Logging.Level, cfg.Logging.Dir)

	if err := preflightCheckOutputDir(cfg); err != nil {
		fprintf(os.Stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", err, "", nil)
		return exitConfig
	}

	comp, pset, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(os.Stderr, "装配失败: %v\n", err)
		logger.Error("config", err, "", nil)
		return exitConfig
	}

	term := diag.NewTerminal(os.Stderr, flagStatus)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)

	logger.Debugf("config", "", map[string]string{
		"name":        cfg.Name,
		"inputs":      fmt.Sprint(len(cfg.Inputs)),
		"concurrency": fmt.Sprint(cfg.Concurrency),
		"reader":      cfg.Components.Reader,
		"parser":      cfg.Components.Parser,
		"annotator":   cfg.Components.Annotator,
		"embedder":    cfg.Components.Embedder,
		"graph":       pset.GraphName,
		"collator":    cfg.Components.Collator,
		"writer":      cfg.Components.Writer,
	}, "effective config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	t := logger.Start("pipeline", "run")
	sum, err := pipelineRun(ctx, comp, pset, logger)
	code := exitOK
	if err != nil {
		t.Fail(err)
		if !errors.Is(err, context.Canceled) {
			fprintf(os.Stderr, "运行失败: %v\n", err)
		}
		code = exitRun
	} else {
		t.Finish("run", int64(sum.Graphs))
	}
	if cfg.MetricsOut != "" {
		if werr := logger.Metrics().WriteFile(cfg.MetricsOut); werr != nil {
			fprintf(os.Stderr, "指标写出失败: %v\n", werr)
		}
	}
	logger.Debugf("pipeline", "", nil, "total %s", time.Since(start))
	return code
}

// loadConfig 按优先级合并：Defaults < 文件/PDBGRAPH_CONFIG_JSON < ENV。
func loadConfig(path string) (cfgpkg.Config, error) {
	var cfgJSON []byte
	if s := os.Getenv(cfgpkg.EnvPrefix + "CONFIG_JSON"); s != "" {
		cfgJSON = []byte(s)
	}
	if path == "" {
		path = os.Getenv(cfgpkg.EnvPrefix + "CONFIG_FILE")
	}
	// 默认读取工作目录下 config.json（若存在）
	if path == "" && len(cfgJSON) == 0 {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}

	cfg := cfgpkg.Defaults()
	var base cfgpkg.Config
	var err error
	switch {
	case len(cfgJSON) > 0:
		base, err = cfgpkg.LoadJSON("", cfgJSON)
	case path != "":
		base, err = cfgpkg.LoadFile(path)
	}
	if err != nil {
		return cfg, err
	}
	cfg = cfgpkg.Merge(cfg, base)

	overEnv, err := cfgpkg.EnvOverlay(os.Environ())
	if err != nil {
		return cfg, err
	}
	return cfgpkg.Merge(cfg, overEnv), nil
}

func initConfig(dir, template string) error {
	var cfg cfgpkg.Config
	switch template {
	case "", "default":
		cfg = cfgpkg.DefaultTemplateConfig()
	case "pdbbind":
		cfg = cfgpkg.PDBBindTemplateConfig()
	default:
		return fmt.Errorf("unknown template %q", template)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeConfig(filepath.Join(dir, "config.json"), cfg); err != nil {
		return err
	}
	// .env 失败不致命
	if err := writeDotEnv(filepath.Join(dir, ".env")); err != nil {
		fprintf(os.Stderr, "提示：.env 生成失败（已跳过）：%v\n", err)
	}
	return nil
}

func fprintf(w *os.File, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	_, _ = os.Stderr.Write(append([]byte("有效配置:\n"), b...))
	_, _ = os.Stderr.Write([]byte("\n"))
	return nil
}

// writeConfig 写出 JSON 配置；path 为 "-" 时写到 stdout；不覆盖已存在文件。
func writeConfig(path string, c cfgpkg.Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if path == "-" {
		_, err = os.Stdout.Write(append(b, '\n'))
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(b, '\n'))
	return err
}

// normalizeInitArg: 允许 --init-config 在未提供路径值时采用默认值当前目录 "."。
//
//	--init-config                => 等价于 --init-config .
//	--init-config=out
//	--init-config out
func normalizeInitArg() {
	args := os.Args
	if len(args) <= 1 {
		return
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0])
	for i := 1; i < len(args); i++ {
		a := args[i]
		out = append(out, a)
		if a == "--init-config" || a == "-init-config" {
			if i == len(args)-1 || strings.HasPrefix(args[i+1], "-") {
				out = append(out, ".")
			}
		}
	}
	os.Args = out
}

// preflightCheckOutputDir: 当 Writer 使用文件系统实现(fs)时，启动前检查输出目录可写性。
// 目录存在则试写临时文件；不存在则检查最近的已存在祖先目录可写。
func preflightCheckOutputDir(cfg cfgpkg.Config) error {
	name := strings.TrimSpace(cfg.Components.Writer)
	if name == "" {
		name = cfgpkg.Defaults().Components.Writer
	}
	if name != "fs" {
		return nil
	}
	var wopts struct {
		OutputDir string `json:"output_dir"`
	}
	if len(cfg.Options.Writer) > 0 {
		_ = json.Unmarshal(cfg.Options.Writer, &wopts)
	}
	dir := strings.TrimSpace(wopts.OutputDir)
	if dir == "" {
		// 未指定时让装配阶段按实现自行报错
		return nil
	}
	for {
		st, err := os.Stat(dir)
		if err == nil {
			if !st.IsDir() {
				return fmt.Errorf("路径存在但不是目录: %s", dir)
			}
			f, err := os.CreateTemp(dir, ".wcheck-*")
			if err != nil {
				return err
			}
			name := f.Name()
			_ = f.Close()
			return os.Remove(name)
		}
		if !os.IsNotExist(err) {
			return err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		dir = parent
	}
}
