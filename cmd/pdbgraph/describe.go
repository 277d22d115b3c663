package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"

	"pdbgraph/pkg/dataset"
)

// runDescribe: pdbgraph describe [--format table|markdown|latex] <file.pdbg>...
func runDescribe(args []string) int {
	fs := flag.NewFlagSet("describe", flag.ContinueOnError)
	format := fs.String("format", dataset.FormatTable, "输出格式：table|markdown|latex")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}
	if fs.NArg() == 0 {
		fprintf(os.Stderr, "用法: pdbgraph describe [--format table|markdown|latex] <dataset%s>...\n", dataset.Ext)
		return exitConfig
	}
	stats := make([]dataset.Stats, 0, fs.NArg())
	for _, p := range fs.Args() {
		ds, err := dataset.Load(p)
		if err != nil {
			fprintf(os.Stderr, "读取数据集失败: %v\n", err)
			return exitRun
		}
		stats = append(stats, dataset.Describe(datasetName(p), ds))
	}
	if err := dataset.Render(os.Stdout, *format, stats...); err != nil {
		fprintf(os.Stderr, "输出失败: %v\n", err)
		return exitConfig
	}
	return exitOK
}

// datasetName: 去目录与扩展名的数据集名。
func datasetName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), dataset.Ext)
}
