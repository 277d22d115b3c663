// Package filesystem 将数据集工件原子写入本地目录。
package filesystem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"pdbgraph/pkg/contract"
)

// Options: 文件系统 Writer 选项。
type Options struct {
	// OutputDir: 输出目录（必需），不存在时创建。
	OutputDir string `json:"output_dir"`
	// Atomic: 同目录临时文件 + rename。nil 视为 true。
	Atomic *bool `json:"atomic,omitempty"`
	// PermFile/PermDir: 为 0 时使用 0644/0755。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用 256KiB。
	BufSize int `json:"buf_size,omitempty"`
}

// Writer 实现 contract.Writer 与 contract.Stater。
type Writer struct {
	root    string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// New 创建 Writer。
func New(opts *Options) (*Writer, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("%w: output_dir is required", contract.ErrInvalidInput)
	}
	w := &Writer{root: opts.OutputDir, atomic: true, permF: 0o644, permD: 0o755, bufSize: 256 * 1024}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if opts.PermFile != 0 {
		w.permF = opts.PermFile
	}
	if opts.PermDir != 0 {
		w.permD = opts.PermDir
	}
	if opts.BufSize > 0 {
		w.bufSize = opts.BufSize
	}
	return w, nil
}

var (
	_ contract.Writer = (*Writer)(nil)
	_ contract.Stater = (*Writer)(nil)
)

// Path 返回工件对应的本地路径。工件名必须是单个文件名。
func (w *Writer) Path(id contract.ArtifactID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, name)
	}
	return filepath.Join(w.root, name), nil
}

// Exists 报告工件是否已存在（仅普通文件计入）。
func (w *Writer) Exists(ctx context.Context, id contract.ArtifactID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := w.Path(id)
	if err != nil {
		return false, err
	}
	st, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Mode().IsRegular(), nil
}

// Write 将 r 的全部字节写入工件。
func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dest, err := w.Path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(w.root, w.permD); err != nil {
		return err
	}
	if !w.atomic {
		return w.writeInPlace(ctx, dest, r)
	}
	return w.writeAtomic(ctx, dest, r)
}

func (w *Writer) writeInPlace(ctx context.Context, dest string, r io.Reader) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return err
	}
	if err := w.copyTo(ctx, f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (w *Writer) writeAtomic(ctx context.Context, dest string, r io.Reader) (err error) {
	tmp, err := os.CreateTemp(w.root, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = tmp.Chmod(w.permF)
	if err = w.copyTo(ctx, tmp, r); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	// Windows 上 os.Rename 同样覆盖已存在目标
	if err = os.Rename(tmpPath, dest); err != nil {
		return err
	}
	syncDir(w.root)
	return nil
}

func (w *Writer) copyTo(ctx context.Context, f *os.File, r io.Reader) error {
	bw := bufio.NewWriterSize(f, w.bufSize)
	if _, err := io.Copy(bw, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	return bw.Flush()
}

// syncDir: 尽力同步目录元数据；Windows 不支持目录 fsync。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

// ctxReader: 每次 Read 前检查取消。
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
