package diag

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LineSink: 按行写出日志。
type LineSink interface {
	WriteLine(b []byte) error
}

// RotatingFile 将日志行追加到 <dir>/pdbgraph-current.txt；
// 写入会超过 maxBytes 时先将其改名为 pdbgraph-<UTC 时间戳>.txt 再新建。
type RotatingFile struct {
	dir      string
	maxBytes int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

const currentLog = "pdbgraph-current.txt"

// NewRotatingFile 创建轮转文件；maxBytes<=0 时取 10MiB。文件在首次写入时打开。
func NewRotatingFile(dir string, maxBytes int64) *RotatingFile {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &RotatingFile{dir: dir, maxBytes: maxBytes}
}

// WriteLine 追加一行（自动补换行）。
func (w *RotatingFile) WriteLine(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.open(); err != nil {
		return err
	}
	need := int64(len(b) + 1)
	if w.size > 0 && w.size+need > w.maxBytes {
		if err := w.roll(); err != nil {
			return err
		}
	}
	n, err := w.f.Write(append(b, '\n'))
	w.size += int64(n)
	return err
}

func (w *RotatingFile) open() error {
	if w.f != nil {
		return nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.dir, currentLog), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w.f, w.size = f, 0
	if st, err := f.Stat(); err == nil {
		w.size = st.Size()
	}
	return nil
}

func (w *RotatingFile) roll() error {
	cur := w.f.Name()
	_ = w.f.Close()
	w.f = nil
	// 纳秒精度，避免同秒覆盖
	dst := filepath.Join(w.dir, fmt.Sprintf("pdbgraph-%s.txt", time.Now().UTC().Format("20060102-150405.000000000")))
	if err := os.Rename(cur, dst); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return w.open()
}

// Close 关闭当前文件。
func (w *RotatingFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
