// Package pdbbind 按 PDBBind 目录布局（<id>/<id>_protein.pdb 与 <id>_pocket.pdb）
// 为蛋白附加逐残基结合位点标签。
package pdbbind

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"pdbgraph/pkg/contract"
	"pdbgraph/plugins/parser/pdb"
)

// Options 为 PDBBind Annotator 的可选配置。
type Options struct {
	// PocketSuffix: 口袋文件后缀，默认 "_pocket.pdb"。
	PocketSuffix string `json:"pocket_suffix"`
	// ProteinSuffix: 蛋白文件后缀，默认 "_protein.pdb"。
	ProteinSuffix string `json:"protein_suffix"`
	// MatchChain: 是否同时匹配链标识；nil 视为 true。
	MatchChain *bool `json:"match_chain"`
	// Attr: 写入的属性名，默认 "binding_site"。
	Attr string `json:"attr"`
}

// Annotator 实现 contract.Annotator。
type Annotator struct {
	pocketSuffix  string
	proteinSuffix string
	matchChain    bool
	attr          string
	parser        *pdb.Parser
}

// New 创建 Annotator。
func New(opts *Options) (*Annotator, error) {
	a := &Annotator{pocketSuffix: "_pocket.pdb", proteinSuffix: "_protein.pdb", matchChain: true, attr: "binding_site"}
	if opts != nil {
		if opts.PocketSuffix != "" {
			a.pocketSuffix = opts.PocketSuffix
		}
		if opts.ProteinSuffix != "" {
			a.proteinSuffix = opts.ProteinSuffix
		}
		if opts.MatchChain != nil {
			a.matchChain = *opts.MatchChain
		}
		if opts.Attr != "" {
			a.attr = opts.Attr
		}
	}
	// 口袋文件常含修饰残基，统一记为 X，不做后缀过滤
	p, err := pdb.New(&pdb.Options{AllowSuffixes: []string{}, UnknownResidue: pdb.UnknownX})
	if err != nil {
		return nil, err
	}
	a.parser = p
	return a, nil
}

// PocketPath 返回与蛋白文件同目录的口袋文件路径。
func (a *Annotator) PocketPath(p *contract.Protein) string {
	base := p.FileID.Base()
	stem := p.ID
	if strings.HasSuffix(base, a.proteinSuffix) {
		stem = strings.TrimSuffix(base, a.proteinSuffix)
	}
	return filepath.FromSlash(path.Join(p.FileID.Dir(), stem+a.pocketSuffix))
}

type siteKey struct {
	chain string
	seq   int
	icode string
}

// Annotate 读取口袋文件，残基 (chain, resSeq, iCode) 命中口袋时记 1，否则 0。
func (a *Annotator) Annotate(ctx context.Context, p *contract.Protein) error {
	pp := a.PocketPath(p)
	f, err := os.Open(pp)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: pocket %s", contract.ErrMissingInput, pp)
		}
		return err
	}
	defer f.Close()
	pocket, err := a.parser.Parse(ctx, contract.NormalizeFileID(pp), f)
	if err != nil {
		return fmt.Errorf("pocket %s: %w", pp, err)
	}
	site := make(map[siteKey]struct{}, pocket.Len())
	for i := range pocket.ResidueIndex {
		site[a.key(pocket, i)] = struct{}{}
	}
	v := make([]float64, p.Len())
	for i := range p.ResidueIndex {
		if _, ok := site[a.key(p, i)]; ok {
			v[i] = 1
		}
	}
	p.SetAttr(a.attr, v)
	return nil
}

func (a *Annotator) key(p *contract.Protein, i int) siteKey {
	k := siteKey{chain: p.ChainID[i], seq: p.ResidueIndex[i]}
	if !a.matchChain {
		k.chain = ""
	}
	if p.InsertionCode != nil {
		k.icode = p.InsertionCode[i]
	}
	return k
}
