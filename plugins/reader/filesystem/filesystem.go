// Package filesystem 以稳定字典序遍历本地结构文件（或 STDIN）。
package filesystem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pdbgraph/pkg/contract"
)

// Options 为文件系统 Reader 的可选配置。
type Options struct {
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// ExcludeDirNames: 递归时跳过的目录基名（大小写不敏感）。
	ExcludeDirNames []string `json:"exclude_dir_names"`
	// Include: 文件基名通配（path.Match 语法），任一命中即产出；为空不过滤。
	// 例如 PDBBind 布局使用 ["*_protein.pdb"]。
	Include []string `json:"include"`
	// StdinName: STDIN 的 FileID，默认 "stdin.pdb"。
	StdinName string `json:"stdin_name"`
}

// Reader 实现 contract.Reader。
type Reader struct {
	bufSize    int
	excludeDir map[string]struct{}
	include    []string
	stdinName  string
}

// New 创建 Reader；Include 中存在非法通配时返回 ErrInvalidInput。
func New(opts *Options) (*Reader, error) {
	r := &Reader{bufSize: 64 * 1024, excludeDir: map[string]struct{}{}, stdinName: "stdin.pdb"}
	if opts == nil {
		return r, nil
	}
	if opts.BufSize > 0 {
		r.bufSize = opts.BufSize
	}
	for _, name := range opts.ExcludeDirNames {
		if name != "" {
			r.excludeDir[strings.ToLower(name)] = struct{}{}
		}
	}
	for _, pat := range opts.Include {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("%w: include pattern %q: %v", contract.ErrInvalidInput, pat, err)
		}
		r.include = append(r.include, pat)
	}
	if opts.StdinName != "" {
		r.stdinName = opts.StdinName
	}
	return r, nil
}

var _ contract.Reader = (*Reader)(nil)

// Iterate 依次遍历 roots；roots 为空或仅为 "-" 时读取 STDIN。
func (r *Reader) Iterate(ctx context.Context, roots []string, yield func(fileID contract.FileID, rc io.ReadCloser) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(roots) == 0 || (len(roots) == 1 && roots[0] == "-") {
		return yield(contract.FileID(r.stdinName), bufferedFile(os.Stdin, r.bufSize))
	}
	for _, root := range roots {
		if root == "-" {
			return fmt.Errorf("%w: stdin '-' cannot be mixed with other roots", contract.ErrInvalidInput)
		}
	}
	for _, root := range roots {
		if err := r.walk(ctx, root, yield); err != nil {
			return err
		}
	}
	return nil
}

// walk: WalkDir 按字典序遍历；只跟随指向常规文件的符号链接。
func (r *Reader) walk(ctx context.Context, root string, yield func(contract.FileID, io.ReadCloser) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := r.excludeDir[strings.ToLower(d.Name())]; skip && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		mode := d.Type()
		if mode&fs.ModeSymlink != 0 {
			st, err := os.Stat(p)
			if err != nil {
				return err
			}
			mode = st.Mode().Type()
		}
		if !mode.IsRegular() || !r.included(d.Name()) {
			return nil
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		rc := bufferedFile(f, r.bufSize)
		if err := yield(contract.NormalizeFileID(p), rc); err != nil {
			_ = rc.Close()
			return err
		}
		return nil
	})
}

func (r *Reader) included(name string) bool {
	if len(r.include) == 0 {
		return true
	}
	for _, pat := range r.include {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// readCloser 将 bufio.Reader 与底层文件组合。
type readCloser struct {
	*bufio.Reader
	f io.Closer
}

func bufferedFile(f io.ReadCloser, size int) *readCloser {
	return &readCloser{Reader: bufio.NewReaderSize(f, size), f: f}
}

func (rc *readCloser) Close() error { return rc.f.Close() }
