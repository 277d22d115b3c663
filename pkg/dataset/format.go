// Package dataset 定义图数据集工件的二进制布局，并提供编码、解码、
// 内存映射加载与统计描述。
//
// 布局（大端）：
//
//	0   magic   "PDBGRAPH"
//	8   version uint16
//	10  flags   uint16
//	12  count   uint32
//	16  digest  [32]byte  BLAKE2b-256(未压缩 JSONL 记录流)
//	48  snappy framed stream，逐行一个 Graph 的 JSON
package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/golang/snappy"
	"golang.org/x/crypto/blake2b"

	"pdbgraph/pkg/contract"
)

// Version: 当前布局版本。
const Version uint16 = 1

// Ext: 数据集工件扩展名。
const Ext = ".pdbg"

// Magic: 文件头魔数。
var Magic = [8]byte{'P', 'D', 'B', 'G', 'R', 'A', 'P', 'H'}

// Header: 固定 48 字节文件头。
type Header struct {
	Magic   [8]byte
	Version uint16
	Flags   uint16
	Count   uint32
	Digest  [32]byte
}

// HeaderSize 为 Header 的编码长度。
var HeaderSize = binary.Size(Header{})

// Dataset: 解码后的有序图集合。
type Dataset struct {
	Header Header
	Graphs []contract.Graph
}

// Encode 将图集合完整写出：先缓冲 JSONL 以计算摘要，再写头与压缩流。
func Encode(w io.Writer, graphs []contract.Graph) error {
	if len(graphs) == 0 {
		return fmt.Errorf("%w: empty dataset", contract.ErrInvalidInput)
	}
	if uint64(len(graphs)) > math.MaxUint32 {
		return fmt.Errorf("%w: too many graphs (%d)", contract.ErrInvalidInput, len(graphs))
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return err
	}
	var body bytes.Buffer
	enc := json.NewEncoder(io.MultiWriter(&body, h))
	for i := range graphs {
		if err := enc.Encode(&graphs[i]); err != nil {
			return fmt.Errorf("encode graph %s: %w", graphs[i].ID, err)
		}
	}
	hdr := Header{Magic: Magic, Version: Version, Count: uint32(len(graphs))}
	copy(hdr.Digest[:], h.Sum(nil))
	if err := binary.Write(w, binary.BigEndian, &hdr); err != nil {
		return err
	}
	sw := snappy.NewBufferedWriter(w)
	if _, err := body.WriteTo(sw); err != nil {
		return err
	}
	return sw.Close()
}

// ReadHeader 读取并校验文件头。
func ReadHeader(r io.Reader) (Header, error) {
	var hdr Header
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return hdr, fmt.Errorf("%w: truncated header", contract.ErrFormat)
		}
		return hdr, err
	}
	if hdr.Magic != Magic {
		return hdr, fmt.Errorf("%w: invalid magic %x", contract.ErrFormat, hdr.Magic)
	}
	if hdr.Version != Version {
		return hdr, fmt.Errorf("%w: unsupported version %d", contract.ErrFormat, hdr.Version)
	}
	return hdr, nil
}

// Decode 读取完整数据集，校验条数、摘要与每条图记录的不变量。
func Decode(r io.Reader) (*Dataset, error) {
	hdr, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}
	tee := io.TeeReader(snappy.NewReader(r), h)
	dec := json.NewDecoder(bufio.NewReader(tee))
	ds := &Dataset{Header: hdr, Graphs: make([]contract.Graph, 0, hdr.Count)}
	for {
		var g contract.Graph
		if err := dec.Decode(&g); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: record %d: %v", contract.ErrFormat, len(ds.Graphs), err)
		}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", contract.ErrFormat, len(ds.Graphs), err)
		}
		ds.Graphs = append(ds.Graphs, g)
	}
	if uint64(len(ds.Graphs)) != uint64(hdr.Count) {
		return nil, fmt.Errorf("%w: header count %d, stream has %d", contract.ErrFormat, hdr.Count, len(ds.Graphs))
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	if sum != hdr.Digest {
		return nil, fmt.Errorf("%w: digest mismatch", contract.ErrFormat)
	}
	return ds, nil
}
