package hashing

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/debug"
	"github.com/geopack/bundler/internal/errors"
	"github.com/geopack/bundler/internal/vfs"
)

// New returns the hash.Hash implementing the given digest algorithm.
func New(t bundler.HashType) (hash.Hash, error) {
	switch t {
	case bundler.HashMD5:
		return md5.New(), nil
	case bundler.HashSHA1:
		return sha1.New(), nil
	case bundler.HashSHA256:
		return sha256.New(), nil
	case bundler.HashSHA384:
		return sha512.New384(), nil
	case bundler.HashSHA512:
		return sha512.New(), nil
	}
	return nil, errors.Errorf("unknown hash type %q", t)
}

// Digest streams the file at loc through the given algorithm and
// returns the lowercase hex digest. The file is never held in memory.
func Digest(ctx context.Context, fs vfs.FS, loc vfs.Location, t bundler.HashType) (string, error) {
	h, err := New(t)
	if err != nil {
		return "", err
	}

	rd, err := fs.Open(ctx, loc)
	if err != nil {
		return "", err
	}

	hr := NewReader(rd, h)
	if _, err := io.Copy(io.Discard, hr); err != nil {
		_ = rd.Close()
		return "", errors.Wrapf(err, "hash %v", loc)
	}
	if err := rd.Close(); err != nil {
		return "", errors.Wrapf(err, "hash %v", loc)
	}

	return hex.EncodeToString(hr.Sum(nil)), nil
}

// DigestToFile hashes the file at in and writes the digest as a single
// hex line to out.
func DigestToFile(ctx context.Context, fs vfs.FS, in, out vfs.Location, t bundler.HashType) error {
	sum, err := Digest(ctx, fs, in, t)
	if err != nil {
		return err
	}

	debug.Log("%v digest of %v is %v", t, in, sum)

	w, err := fs.Create(ctx, out)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, sum); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "write digest %v", out)
	}
	return w.Close()
}
