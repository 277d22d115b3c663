// Package pdb 解析 PDB 固定列格式，并归约为“每残基一个 CA 原子”的 Protein。
package pdb

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"pdbgraph/pkg/contract"
)

// 未知残基策略。
const (
	UnknownError = "error"
	UnknownX     = "x"
	UnknownDrop  = "drop"
)

// ID 派生方式。
const (
	IDStem    = "stem"
	IDPrefix4 = "prefix4"
	IDHeader  = "header"
)

// Options 为 PDB Parser 的可选配置。
type Options struct {
	// AllowSuffixes: 允许处理的文件后缀（大小写不敏感，含点）。
	// 为空时采用默认；显式设为空切片表示不限制。
	AllowSuffixes []string `json:"allow_suffixes"`
	// UnknownResidue: error | x | drop，默认 error。
	UnknownResidue string `json:"unknown_residue"`
	// IDMode: stem | prefix4 | header，默认 stem。
	IDMode string `json:"id_mode"`
}

var defaultSuffixes = []string{".pdb", ".ent", ".pdb.gz", ".ent.gz"}

// Parser 实现 contract.Parser。
type Parser struct {
	allow   []string
	unknown string
	idMode  string
}

// New 创建 Parser；非法枚举值返回 ErrInvalidInput。
func New(opts *Options) (*Parser, error) {
	p := &Parser{allow: defaultSuffixes, unknown: UnknownError, idMode: IDStem}
	if opts == nil {
		return p, nil
	}
	if opts.AllowSuffixes != nil {
		p.allow = make([]string, 0, len(opts.AllowSuffixes))
		for _, s := range opts.AllowSuffixes {
			if s != "" {
				p.allow = append(p.allow, strings.ToLower(s))
			}
		}
	}
	switch strings.ToLower(opts.UnknownResidue) {
	case "":
	case UnknownError, UnknownX, UnknownDrop:
		p.unknown = strings.ToLower(opts.UnknownResidue)
	default:
		return nil, fmt.Errorf("%w: unknown_residue %q", contract.ErrInvalidInput, opts.UnknownResidue)
	}
	switch mode := strings.ToLower(opts.IDMode); mode {
	case "":
	case IDStem, IDPrefix4, IDHeader:
		p.idMode = mode
	default:
		return nil, fmt.Errorf("%w: id_mode %q", contract.ErrInvalidInput, opts.IDMode)
	}
	return p, nil
}

// Accepts 判断文件名是否命中后缀白名单。
func (p *Parser) Accepts(fileID contract.FileID) bool {
	if len(p.allow) == 0 {
		return true
	}
	name := strings.ToLower(fileID.Base())
	for _, s := range p.allow {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// Stem 去除结构文件后缀后的文件名。
func Stem(fileID contract.FileID) string {
	name := path.Base(string(fileID))
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".gz") {
		name, lower = name[:len(name)-3], lower[:len(lower)-3]
	}
	for _, s := range []string{".pdb", ".ent"} {
		if strings.HasSuffix(lower, s) {
			return name[:len(name)-len(s)]
		}
	}
	return name
}

type resKey struct {
	chain string
	seq   int
	icode byte
}

type residue struct {
	key   resKey
	order int // 链首次出现序
	code  byte
	coord contract.Coord
}

// Parse 读取 PDB 并归约为残基级 Protein。
func (p *Parser) Parse(ctx context.Context, fileID contract.FileID, r io.Reader) (*contract.Protein, error) {
	if !p.Accepts(fileID) {
		return nil, nil
	}
	src, err := maybeGunzip(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: gzip: %v", contract.ErrMalformed, fileID, err)
	}
	res, header, err := p.scan(ctx, fileID, src)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s: no CA residues", contract.ErrMalformed, fileID)
	}
	sort.SliceStable(res, func(i, j int) bool {
		a, b := res[i], res[j]
		if a.order != b.order {
			return a.order < b.order
		}
		if a.key.seq != b.key.seq {
			return a.key.seq < b.key.seq
		}
		return a.key.icode < b.key.icode
	})
	prot := &contract.Protein{
		ID:            p.deriveID(fileID, header),
		FileID:        fileID,
		ResidueIndex:  make([]int, len(res)),
		ChainID:       make([]string, len(res)),
		Coords:        make([]contract.Coord, len(res)),
		InsertionCode: make([]string, len(res)),
	}
	seq := make([]byte, len(res))
	for i, rr := range res {
		seq[i] = rr.code
		prot.ResidueIndex[i] = rr.key.seq
		prot.ChainID[i] = rr.key.chain
		prot.Coords[i] = rr.coord
		prot.InsertionCode[i] = strings.TrimSpace(string(rr.key.icode))
	}
	prot.Sequence = string(seq)
	return prot, nil
}

func (p *Parser) scan(ctx context.Context, fileID contract.FileID, r io.Reader) ([]residue, string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var (
		out    []residue
		header string
		seen   = make(map[resKey]struct{})
		chains = make(map[string]int)
		lineNo int
	)
	for sc.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, "", err
			}
		}
		line := sc.Bytes()
		switch recordName(line) {
		case "HEADER":
			if len(line) >= 66 {
				header = strings.TrimSpace(string(line[62:66]))
			}
		case "ENDMDL":
			// 仅读取第一个 MODEL
			return out, header, nil
		case "ATOM":
			if len(line) < 54 {
				return nil, "", fmt.Errorf("%w: %s:%d: short ATOM record", contract.ErrMalformed, fileID, lineNo)
			}
			if strings.TrimSpace(string(line[12:16])) != "CA" {
				continue
			}
			resName := strings.TrimSpace(string(line[17:20]))
			chain := strings.TrimSpace(string(line[21:22]))
			seqNum, err := strconv.Atoi(strings.TrimSpace(string(line[22:26])))
			if err != nil {
				return nil, "", fmt.Errorf("%w: %s:%d: resSeq: %v", contract.ErrMalformed, fileID, lineNo, err)
			}
			icode := byte(' ')
			if len(line) > 26 {
				icode = line[26]
			}
			key := resKey{chain: chain, seq: seqNum, icode: icode}
			if _, dup := seen[key]; dup {
				// altLoc：首个 CA 生效
				continue
			}
			code, ok := OneLetter(resName)
			if !ok {
				switch p.unknown {
				case UnknownDrop:
					continue
				case UnknownX:
					code = 'X'
				default:
					return nil, "", fmt.Errorf("%w: %s:%d: unknown residue %q", contract.ErrMalformed, fileID, lineNo, resName)
				}
			}
			var c contract.Coord
			for k, span := range [3][2]int{{30, 38}, {38, 46}, {46, 54}} {
				v, err := strconv.ParseFloat(strings.TrimSpace(string(line[span[0]:span[1]])), 64)
				if err != nil {
					return nil, "", fmt.Errorf("%w: %s:%d: coordinate: %v", contract.ErrMalformed, fileID, lineNo, err)
				}
				// ParseFloat 接受 NaN/Inf，数据集编码无法表示
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, "", fmt.Errorf("%w: %s:%d: non-finite coordinate %v", contract.ErrMalformed, fileID, lineNo, v)
				}
				c[k] = v
			}
			ord, ok := chains[chain]
			if !ok {
				ord = len(chains)
				chains[chain] = ord
			}
			seen[key] = struct{}{}
			out = append(out, residue{key: key, order: ord, code: code, coord: c})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", contract.ErrMalformed, fileID, err)
	}
	return out, header, nil
}

func recordName(line []byte) string {
	if len(line) > 6 {
		line = line[:6]
	}
	return strings.TrimSpace(string(line))
}

func (p *Parser) deriveID(fileID contract.FileID, header string) string {
	stem := Stem(fileID)
	switch p.idMode {
	case IDPrefix4:
		if len(stem) >= 4 {
			return stem[:4]
		}
	case IDHeader:
		if header != "" {
			return header
		}
	}
	return stem
}

var gzipMagic = []byte{0x1f, 0x8b}

// maybeGunzip 按 gzip 魔数透明解压。
func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil || !bytes.Equal(head, gzipMagic) {
		return br, nil
	}
	return gzip.NewReader(br)
}
