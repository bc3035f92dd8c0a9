// Package s3 implements the provider for files on S3 compatible object
// stores.
package s3

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config contains all settings necessary to reach an S3 compatible
// endpoint. Either IAMRole or the AccessKey/SecretKey pair must be set.
type Config struct {
	Endpoint  string
	Region    string
	UseSSL    bool
	IAMRole   string
	AccessKey string
	SecretKey string
}

// S3 serves the "s3" scheme through a minio client.
type S3 struct {
	client *minio.Client
}

// make sure that *S3 implements vfs.Provider
var _ vfs.Provider = &S3{}

// New connects a provider to the configured endpoint. Instance profile
// credentials are used when an IAM role is configured, static keys
// otherwise; having neither is a configuration error.
func New(cfg Config) (*S3, error) {
	debug.Log("open, config %#v", cfg)

	var creds *credentials.Credentials
	switch {
	case cfg.IAMRole != "":
		creds = credentials.NewIAM("")
	case cfg.AccessKey != "" && cfg.SecretKey != "":
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	default:
		return nil, errors.Fatal("s3: neither an IAM role nor an access key pair is configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     creds,
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: http.DefaultTransport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "minio.New")
	}

	return &S3{client: client}, nil
}

func (*S3) Scheme() string {
	return "s3"
}

// mapError converts minio error responses into the vfs sentinels where
// one applies.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var e minio.ErrorResponse
	if errors.As(err, &e) {
		switch e.Code {
		case "NoSuchKey", "NoSuchBucket":
			return errors.Wrap(vfs.ErrNotFound, err.Error())
		case "AccessDenied":
			return errors.Wrap(vfs.ErrPermission, err.Error())
		}
	}
	return err
}

func (be *S3) Open(ctx context.Context, loc vfs.Location) (io.ReadCloser, error) {
	debug.Log("Open %v/%v", loc.Bucket, loc.Path)

	obj, err := be.client.GetObject(ctx, loc.Bucket, loc.Path, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err)
	}

	// GetObject only opens a handle; a missing key surfaces on the
	// first operation on it.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapError(err)
	}
	return obj, nil
}

type putWriter struct {
	pw   *io.PipeWriter
	done <-chan error
}

func (w *putWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *putWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.done
}

// Create streams the written bytes into a multipart upload. The object
// becomes visible when Close returns without error.
func (be *S3) Create(ctx context.Context, loc vfs.Location) (io.WriteCloser, error) {
	debug.Log("Create %v/%v", loc.Bucket, loc.Path)

	pr, pw := io.Pipe()
	done := make(chan error, 1)

	go func() {
		opts := minio.PutObjectOptions{
			ContentType:    "application/octet-stream",
			SendContentMd5: true,
		}
		_, err := be.client.PutObject(ctx, loc.Bucket, loc.Path, pr, -1, opts)
		if err != nil {
			// unblock a writer stuck in Write
			pr.CloseWithError(err)
		}
		done <- mapError(err)
	}()

	return &putWriter{pw: pw, done: done}, nil
}

func (be *S3) Stat(ctx context.Context, loc vfs.Location) (vfs.Info, error) {
	if loc.Path == "" {
		return vfs.Info{Dir: true}, nil
	}

	fi, err := be.client.StatObject(ctx, loc.Bucket, loc.Path, minio.StatObjectOptions{})
	if err == nil {
		return vfs.Info{Size: fi.Size}, nil
	}

	err = mapError(err)
	if !errors.Is(err, vfs.ErrNotFound) {
		return vfs.Info{}, err
	}

	// The key itself does not exist; report it as a directory if at
	// least one object lives under it as a prefix.
	dir, derr := be.hasPrefix(ctx, loc)
	if derr != nil {
		return vfs.Info{}, derr
	}
	if dir {
		return vfs.Info{Dir: true}, nil
	}
	return vfs.Info{}, err
}

func (be *S3) hasPrefix(ctx context.Context, loc vfs.Location) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := strings.TrimSuffix(loc.Path, "/") + "/"
	for obj := range be.client.ListObjects(ctx, loc.Bucket, minio.ListObjectsOptions{
		Prefix:  prefix,
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return false, mapError(obj.Err)
		}
		return true, nil
	}
	return false, nil
}

func (be *S3) Remove(ctx context.Context, loc vfs.Location) error {
	debug.Log("Remove %v/%v", loc.Bucket, loc.Path)

	// RemoveObject succeeds for missing keys, so probe first to keep
	// the not-found contract.
	if _, err := be.Stat(ctx, loc); err != nil {
		return err
	}
	err := be.client.RemoveObject(ctx, loc.Bucket, loc.Path, minio.RemoveObjectOptions{})
	return mapError(err)
}

// MkdirAll is a no-op: object stores have no directories.
func (*S3) MkdirAll(_ context.Context, _ vfs.Location) error {
	return nil
}

// Walk reports every object below loc.Path. Zero-length directory
// markers are skipped.
func (be *S3) Walk(ctx context.Context, loc vfs.Location, fn vfs.WalkFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := loc.Path
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	for obj := range be.client.ListObjects(ctx, loc.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return mapError(obj.Err)
		}
		if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
			continue
		}

		err := fn(vfs.Location{Scheme: "s3", Bucket: loc.Bucket, Path: obj.Key}, obj.Size)
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return ctx.Err()
}
