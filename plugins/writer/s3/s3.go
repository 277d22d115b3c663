// Package s3 将数据集工件上传到 S3 兼容对象存储。
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"pdbgraph/pkg/contract"
)

// Options: S3 Writer 选项。未提供静态凭据时走默认凭据链（环境变量/共享配置/IMDS）。
type Options struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix,omitempty"`
	Region          string `json:"region,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"`
	PathStyle       bool   `json:"path_style,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	SessionToken    string `json:"session_token,omitempty"`
	ContentType     string `json:"content_type,omitempty"`
}

// API: 所用的 S3 客户端方法子集。
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Writer 实现 contract.Writer 与 contract.Stater。
type Writer struct {
	api         API
	bucket      string
	prefix      string
	contentType string
}

var (
	_ contract.Writer = (*Writer)(nil)
	_ contract.Stater = (*Writer)(nil)
)

// New 依据选项构造 S3 客户端。
func New(ctx context.Context, opts *Options) (*Writer, error) {
	if opts == nil || strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("%w: bucket is required", contract.ErrInvalidInput)
	}
	if (opts.AccessKeyID == "") != (opts.SecretAccessKey == "") {
		return nil, fmt.Errorf("%w: access_key_id and secret_access_key must be set together", contract.ErrInvalidInput)
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken)))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.PathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewWithAPI(client, opts)
}

// NewWithAPI 使用给定客户端构造 Writer（测试或自定义客户端）。
func NewWithAPI(api API, opts *Options) (*Writer, error) {
	if api == nil || opts == nil || strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("%w: bucket and client are required", contract.ErrInvalidInput)
	}
	ct := opts.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Writer{api: api, bucket: opts.Bucket, prefix: strings.Trim(opts.Prefix, "/"), contentType: ct}, nil
}

// Key 返回工件的对象键。
func (w *Writer) Key(id contract.ArtifactID) (string, error) {
	name := string(id)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", contract.ErrPathInvalid, name)
	}
	if w.prefix == "" {
		return name, nil
	}
	return path.Join(w.prefix, name), nil
}

// Write 读取全部字节后以单次 PutObject 上传（请求签名需要可回绕的 body）。
func (w *Writer) Write(ctx context.Context, id contract.ArtifactID, r io.Reader) error {
	key, err := w.Key(id)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	_, err = w.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(w.contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", w.bucket, key, err)
	}
	return nil
}

// Exists 通过 HeadObject 判断对象是否存在。
func (w *Writer) Exists(ctx context.Context, id contract.ArtifactID) (bool, error) {
	key, err := w.Key(id)
	if err != nil {
		return false, err
	}
	_, err = w.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(w.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return false, nil
	}
	return false, fmt.Errorf("s3 head %s/%s: %w", w.bucket, key, err)
}
