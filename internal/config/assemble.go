package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"pdbgraph/internal/pipeline"
	"pdbgraph/pkg/registry"
)

// validate: 结构体标签校验器（并发安全，进程级复用）。
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 对最小必要边界做静态校验：结构体标签 + 注册表名称。
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config: %w", err)
	}
	if n := strings.TrimSpace(cfg.Name); n == "." || n == ".." || n != cfg.Name {
		return fmt.Errorf("config: invalid name %q", cfg.Name)
	}
	// 输入路径不得为空白；"-" 不能与其他根混用
	dash := false
	for _, r := range cfg.Inputs {
		if strings.TrimSpace(r) == "" {
			return errors.New("config: input path cannot be empty")
		}
		if strings.TrimSpace(r) == "-" {
			dash = true
		}
	}
	if dash && len(cfg.Inputs) > 1 {
		return errors.New("config: '-' cannot be mixed with other roots")
	}

	// 组件名若为空，使用默认名（由 Defaults() 提供）。此处只要最终有值即可。
	d := Defaults().Components
	c := cfg.Components
	checks := []struct {
		kind, name string
		ok         bool
	}{
		{"reader", effName(c.Reader, d.Reader), registry.Reader[effName(c.Reader, d.Reader)] != nil},
		{"parser", effName(c.Parser, d.Parser), registry.Parser[effName(c.Parser, d.Parser)] != nil},
		{"annotator", effName(c.Annotator, d.Annotator), registry.Annotator[effName(c.Annotator, d.Annotator)] != nil},
		{"embedder", effName(c.Embedder, d.Embedder), registry.Embedder[effName(c.Embedder, d.Embedder)] != nil},
		{"graph", effName(c.Graph, d.Graph), registry.GraphBuilder[effName(c.Graph, d.Graph)] != nil},
		{"collator", effName(c.Collator, d.Collator), registry.Collator[effName(c.Collator, d.Collator)] != nil},
		{"writer", effName(c.Writer, d.Writer), registry.Writer[effName(c.Writer, d.Writer)] != nil},
	}
	for _, ck := range checks {
		if !ck.ok {
			return fmt.Errorf("config: %s %q not registered", ck.kind, ck.name)
		}
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}

	d := Defaults().Components
	c := cfg.Components
	var comp pipeline.Components
	var err error
	wrap := func(kind string, e error) error { return fmt.Errorf("config: %s options: %w", kind, e) }

	if comp.Reader, err = registry.Reader[effName(c.Reader, d.Reader)](cfg.Options.Reader); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("reader", err)
	}
	if comp.Parser, err = registry.Parser[effName(c.Parser, d.Parser)](cfg.Options.Parser); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("parser", err)
	}
	if comp.Annotator, err = registry.Annotator[effName(c.Annotator, d.Annotator)](cfg.Options.Annotator); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("annotator", err)
	}
	if comp.Embedder, err = registry.Embedder[effName(c.Embedder, d.Embedder)](cfg.Options.Embedder); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("embedder", err)
	}
	graphName := effName(c.Graph, d.Graph)
	if comp.Graph, err = registry.GraphBuilder[graphName](cfg.Options.Graph); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("graph", err)
	}
	if comp.Collator, err = registry.Collator[effName(c.Collator, d.Collator)](cfg.Options.Collator); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("collator", err)
	}
	if comp.Writer, err = registry.Writer[effName(c.Writer, d.Writer)](cfg.Options.Writer); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, wrap("writer", err)
	}

	set := pipeline.Settings{
		Name:            cfg.Name,
		Inputs:          cloneStrings(cfg.Inputs),
		Concurrency:     cfg.Concurrency,
		Force:           Bool(cfg.Force),
		OnlySingleChain: Bool(cfg.OnlySingleChain),
		CheckSequence:   Bool(cfg.CheckSequence),
		GraphName:       graphName,
	}
	return comp, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}
