package mem_test

import (
	"testing"

	"github.com/geopack/bundler/internal/repo"
	"github.com/geopack/bundler/internal/repo/mem"
	"github.com/geopack/bundler/internal/repo/test"
)

func TestMemStore(t *testing.T) {
	s := &test.Suite{
		Create: func(testing.TB) repo.Store {
			return mem.New()
		},
	}
	s.RunTests(t)
}
