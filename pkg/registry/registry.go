package registry

import (
	"bytes"
	"context"
	"encoding/json"

	"pdbgraph/pkg/contract"
	annnone "pdbgraph/plugins/annotator/none"
	annpdbbind "pdbgraph/plugins/annotator/pdbbind"
	blob "pdbgraph/plugins/collator/blob"
	onehot "pdbgraph/plugins/embedder/onehot"
	gknn "pdbgraph/plugins/graph/knn"
	gradius "pdbgraph/plugins/graph/radius"
	ppdb "pdbgraph/plugins/parser/pdb"
	rfs "pdbgraph/plugins/reader/filesystem"
	wfs "pdbgraph/plugins/writer/filesystem"
	ws3 "pdbgraph/plugins/writer/s3"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewReader 工厂签名：接收原样 JSON Options。
type NewReader func(raw json.RawMessage) (contract.Reader, error)

// NewParser 工厂签名：接收原样 JSON Options。
type NewParser func(raw json.RawMessage) (contract.Parser, error)

// NewAnnotator 工厂签名：接收原样 JSON Options。
type NewAnnotator func(raw json.RawMessage) (contract.Annotator, error)

// NewEmbedder 工厂签名：接收原样 JSON Options。
type NewEmbedder func(raw json.RawMessage) (contract.Embedder, error)

// NewGraphBuilder 工厂签名：接收原样 JSON Options。
type NewGraphBuilder func(raw json.RawMessage) (contract.GraphBuilder, error)

// NewCollator 工厂签名：接收原样 JSON Options。
type NewCollator func(raw json.RawMessage) (contract.Collator, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Reader 工厂注册表（显式、零反射）。
var Reader = map[string]NewReader{
	// fs: 文件系统/STDIN Reader
	"fs": func(raw json.RawMessage) (contract.Reader, error) {
		var opts rfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return rfs.New(&opts)
	},
}

// Parser 工厂注册表。
var Parser = map[string]NewParser{
	// pdb: 固定列 PDB，CA 归约
	"pdb": func(raw json.RawMessage) (contract.Parser, error) {
		var opts ppdb.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ppdb.New(&opts)
	},
}

// Annotator 工厂注册表。
var Annotator = map[string]NewAnnotator{
	"none": func(raw json.RawMessage) (contract.Annotator, error) {
		var opts struct{}
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return annnone.New(), nil
	},
	// pdbbind: <id>_pocket.pdb → binding_site
	"pdbbind": func(raw json.RawMessage) (contract.Annotator, error) {
		var opts annpdbbind.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return annpdbbind.New(&opts)
	},
}

// Embedder 工厂注册表。
var Embedder = map[string]NewEmbedder{
	"onehot": func(raw json.RawMessage) (contract.Embedder, error) {
		var opts onehot.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return onehot.New(&opts)
	},
}

func newRadius(raw json.RawMessage) (contract.GraphBuilder, error) {
	var opts gradius.Options
	if err := strictUnmarshal(raw, &opts); err != nil {
		return nil, err
	}
	return gradius.New(&opts)
}

// GraphBuilder 工厂注册表。"eps" 为 "radius" 的别名。
var GraphBuilder = map[string]NewGraphBuilder{
	"radius": newRadius,
	"eps":    newRadius,
	"knn": func(raw json.RawMessage) (contract.GraphBuilder, error) {
		var opts gknn.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return gknn.New(&opts)
	},
}

// Collator 工厂注册表。
var Collator = map[string]NewCollator{
	// blob: 单文件数据集（magic + 摘要 + snappy JSONL）
	"blob": func(raw json.RawMessage) (contract.Collator, error) {
		var opts blob.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return blob.New(&opts), nil
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// fs: 本地目录（原子替换）
	"fs": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wfs.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wfs.New(&opts)
	},
	// s3: S3 兼容对象存储
	"s3": func(raw json.RawMessage) (contract.Writer, error) {
		var opts ws3.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return ws3.New(context.Background(), &opts)
	},
}
