package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 输入为 ./raw 目录，数据集写到 ./processed/<name>.pdbg；
// - 组件采用仓库内置实现（radius 图、one-hot 特征）；
// - 选项包含全部键，值为中性默认，便于按需修改。
func DefaultTemplateConfig() Config {
	d := Defaults()
	cfg := Config{
		Name:            "dataset",
		Inputs:          []string{"raw"},
		Concurrency:     4,
		Force:           BoolPtr(false),
		OnlySingleChain: BoolPtr(false),
		CheckSequence:   BoolPtr(false),
		Logging:         d.Logging,
		Components:      d.Components,
	}
	cfg.Options.Reader = json.RawMessage(`{
  "buf_size": 65536,
  "exclude_dir_names": [".git"],
  "include": [],
  "stdin_name": "stdin.pdb"
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "allow_suffixes": [".pdb", ".ent", ".pdb.gz", ".ent.gz"],
  "unknown_residue": "error",
  "id_mode": "stem"
}`)
	// none 无配置项；pdbbind 见 PDBBindTemplateConfig
	cfg.Options.Annotator = json.RawMessage(`{}`)
	cfg.Options.Embedder = json.RawMessage(`{
  "alphabet": "ACDEFGHIKLMNPQRSTVWY",
  "unknown": "zero"
}`)
	cfg.Options.Graph = json.RawMessage(`{
  "eps": 8,
  "weighted": false
}`)
	cfg.Options.Collator = json.RawMessage(`{
  "unique_ids": true
}`)
	cfg.Options.Writer = json.RawMessage(`{
  "output_dir": "processed",
  "atomic": true,
  "perm_file": 0,
  "perm_dir": 0,
  "buf_size": 65536
}`)
	return cfg
}

// PDBBindTemplateConfig 返回 PDBBind refined 目录布局的模板：
// 只读取 *_protein.pdb，ID 取文件名前四位，口袋文件标注结合位点。
func PDBBindTemplateConfig() Config {
	cfg := DefaultTemplateConfig()
	cfg.Name = "pdbbind_refined"
	cfg.Inputs = []string{"raw/files"}
	cfg.Components.Annotator = "pdbbind"
	cfg.Options.Reader = json.RawMessage(`{
  "include": ["*_protein.pdb"]
}`)
	cfg.Options.Parser = json.RawMessage(`{
  "unknown_residue": "x",
  "id_mode": "prefix4"
}`)
	cfg.Options.Annotator = json.RawMessage(`{
  "pocket_suffix": "_pocket.pdb",
  "protein_suffix": "_protein.pdb",
  "match_chain": true,
  "attr": "binding_site"
}`)
	return cfg
}
