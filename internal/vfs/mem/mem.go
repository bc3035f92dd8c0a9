// Package mem implements an in-memory provider, used for tests.
package mem

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// Mem keeps all files in a map. It serves the "mem" scheme.
type Mem struct {
	m    sync.Mutex
	data map[string][]byte
}

// make sure that *Mem implements vfs.Provider
var _ vfs.Provider = &Mem{}

// New returns an empty in-memory provider.
func New() *Mem {
	return &Mem{data: make(map[string][]byte)}
}

func (*Mem) Scheme() string {
	return "mem"
}

func key(loc vfs.Location) string {
	return loc.Bucket + "/" + loc.Path
}

func (be *Mem) Open(_ context.Context, loc vfs.Location) (io.ReadCloser, error) {
	be.m.Lock()
	defer be.m.Unlock()

	buf, ok := be.data[key(loc)]
	if !ok {
		return nil, errors.Wrapf(vfs.ErrNotFound, "open %v", loc)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

type memWriter struct {
	bytes.Buffer
	commit func([]byte)
}

func (w *memWriter) Close() error {
	w.commit(w.Bytes())
	return nil
}

func (be *Mem) Create(_ context.Context, loc vfs.Location) (io.WriteCloser, error) {
	k := key(loc)
	return &memWriter{commit: func(buf []byte) {
		be.m.Lock()
		defer be.m.Unlock()
		be.data[k] = append([]byte{}, buf...)
	}}, nil
}

func (be *Mem) Stat(_ context.Context, loc vfs.Location) (vfs.Info, error) {
	be.m.Lock()
	defer be.m.Unlock()

	if loc.Path == "" {
		return vfs.Info{Dir: true}, nil
	}

	if buf, ok := be.data[key(loc)]; ok {
		return vfs.Info{Size: int64(len(buf))}, nil
	}

	prefix := strings.TrimSuffix(key(loc), "/") + "/"
	for k := range be.data {
		if strings.HasPrefix(k, prefix) {
			return vfs.Info{Dir: true}, nil
		}
	}
	return vfs.Info{}, errors.Wrapf(vfs.ErrNotFound, "stat %v", loc)
}

func (be *Mem) Remove(_ context.Context, loc vfs.Location) error {
	be.m.Lock()
	defer be.m.Unlock()

	k := key(loc)
	if _, ok := be.data[k]; !ok {
		return errors.Wrapf(vfs.ErrNotFound, "remove %v", loc)
	}
	delete(be.data, k)
	return nil
}

func (*Mem) MkdirAll(_ context.Context, _ vfs.Location) error {
	return nil
}

// Walk reports the files below loc in lexical order.
func (be *Mem) Walk(ctx context.Context, loc vfs.Location, fn vfs.WalkFunc) error {
	be.m.Lock()
	prefix := strings.TrimSuffix(key(loc), "/") + "/"
	var keys []string
	for k := range be.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	sizes := make(map[string]int64, len(keys))
	for _, k := range keys {
		sizes[k] = int64(len(be.data[k]))
	}
	be.m.Unlock()

	for _, k := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		path := strings.TrimPrefix(k, loc.Bucket+"/")
		err := fn(vfs.Location{Scheme: "mem", Bucket: loc.Bucket, Path: path}, sizes[k])
		if err != nil {
			return err
		}
	}
	return nil
}
