// Package vfs routes file operations to storage providers by URI scheme.
//
// Source files, staging directories and finished artifacts are all named
// by Location values. A System dispatches each operation to the provider
// registered for the location's scheme, so the rest of the pipeline never
// cares whether a path lives on local disk or in an object store.
package vfs

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Location is a parsed file address: a scheme, an optional bucket for
// object stores, and the path or key within it.
type Location struct {
	Scheme string
	Bucket string
	Path   string
}

// Parse extracts a Location from the string s. If s carries no scheme
// separator it is interpreted as a local file path. For object store
// schemes the first path element names the bucket and the remainder is
// the key, without a leading slash.
func Parse(s string) Location {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Scheme: "file", Path: s}
	}

	if scheme == "file" {
		return Location{Scheme: "file", Path: rest}
	}

	bucket, key, _ := strings.Cut(rest, "/")
	return Location{Scheme: scheme, Bucket: bucket, Path: key}
}

// String renders the location back into its textual form. Local paths
// are returned bare, the way they were given.
func (l Location) String() string {
	if l.Scheme == "" || l.Scheme == "file" {
		return l.Path
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Path
}

// Join returns a copy of the location descending into the given path
// elements. Object store keys always join with forward slashes.
func (l Location) Join(elem ...string) Location {
	parts := append([]string{l.Path}, elem...)
	if l.Scheme == "" || l.Scheme == "file" {
		l.Path = filepath.Join(parts...)
	} else {
		l.Path = path.Join(parts...)
	}
	return l
}

// Base returns the last element of the location's path.
func (l Location) Base() string {
	if l.Scheme == "" || l.Scheme == "file" {
		return filepath.Base(l.Path)
	}
	return path.Base(l.Path)
}

// Info describes a stored file.
type Info struct {
	Size int64
	Dir  bool
}

// WalkFunc is called once per regular file found below a walked
// location.
type WalkFunc func(loc Location, size int64) error

// FS is the set of file operations the pipeline needs.
//
// Operations that return an error will be retried when the FS is wrapped
// by retry.New. To prevent that, an operation should return one of the
// sentinel errors below or another error for which IsTransient is false.
type FS interface {
	// Open returns a reader for the file at loc.
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)

	// Create creates or truncates the file at loc. Parent directories
	// are created as needed. The write is complete when Close returns.
	Create(ctx context.Context, loc Location) (io.WriteCloser, error)

	// Stat returns information about the file at loc.
	Stat(ctx context.Context, loc Location) (Info, error)

	// Remove deletes the file at loc.
	Remove(ctx context.Context, loc Location) error

	// MkdirAll creates the directory at loc together with any missing
	// parents. Providers without real directories treat this as a no-op.
	MkdirAll(ctx context.Context, loc Location) error

	// Walk calls fn for every regular file below loc. Directories
	// themselves are not reported.
	Walk(ctx context.Context, loc Location, fn WalkFunc) error
}

// Provider is an FS bound to a single scheme.
type Provider interface {
	FS

	// Scheme returns the URI scheme this provider serves.
	Scheme() string
}

// System dispatches FS operations to registered providers by scheme.
type System struct {
	providers map[string]Provider
}

// NewSystem returns an empty System.
func NewSystem() *System {
	return &System{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering two providers for the same
// scheme is a wiring error.
func (s *System) Register(p Provider) {
	if s.providers[p.Scheme()] != nil {
		panic("duplicate provider for scheme " + p.Scheme())
	}
	s.providers[p.Scheme()] = p
}

func (s *System) provider(loc Location) (Provider, error) {
	scheme := loc.Scheme
	if scheme == "" {
		scheme = "file"
	}
	p := s.providers[scheme]
	if p == nil {
		return nil, errSchemeUnsupported(scheme)
	}
	return p, nil
}

func (s *System) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	p, err := s.provider(loc)
	if err != nil {
		return nil, err
	}
	return p.Open(ctx, loc)
}

func (s *System) Create(ctx context.Context, loc Location) (io.WriteCloser, error) {
	p, err := s.provider(loc)
	if err != nil {
		return nil, err
	}
	return p.Create(ctx, loc)
}

func (s *System) Stat(ctx context.Context, loc Location) (Info, error) {
	p, err := s.provider(loc)
	if err != nil {
		return Info{}, err
	}
	return p.Stat(ctx, loc)
}

func (s *System) Remove(ctx context.Context, loc Location) error {
	p, err := s.provider(loc)
	if err != nil {
		return err
	}
	return p.Remove(ctx, loc)
}

func (s *System) MkdirAll(ctx context.Context, loc Location) error {
	p, err := s.provider(loc)
	if err != nil {
		return err
	}
	return p.MkdirAll(ctx, loc)
}

func (s *System) Walk(ctx context.Context, loc Location, fn WalkFunc) error {
	p, err := s.provider(loc)
	if err != nil {
		return err
	}
	return p.Walk(ctx, loc, fn)
}
