package jobs_test

import (
	"testing"

	"github.com/geopack/bundler/internal/bundler"
	"github.com/geopack/bundler/internal/jobs"
	rtest "github.com/geopack/bundler/internal/test"
)

func TestTemplate(t *testing.T) {
	var tests = []struct {
		in   string
		want string
	}{
		{"bundle.zip", "bundle"},
		{"bundle", "bundle"},
		{"my.archive.zip", "my.archive"},
		{"  field_data.tar  ", "field_data"},
		{"night.pass.tar.gz", "night.pass.tar"},
		{"", jobs.DefaultTemplate},
		{".", jobs.DefaultTemplate},
		{"..", jobs.DefaultTemplate},
		{".hidden", jobs.DefaultTemplate},
		{"/", jobs.DefaultTemplate},

		// directory components are dropped, whatever the separator
		{"reports/2026/q1.zip", "q1"},
		{`C:\out\scenes.tar`, "scenes"},
		{"../../etc/passwd", "passwd"},
	}

	for _, test := range tests {
		t.Run("", func(t *testing.T) {
			rtest.Equals(t, test.want, jobs.Template(test.in))
		})
	}
}

func TestNamerArtifact(t *testing.T) {
	n := jobs.NewNamer("/staging/bundles", bundler.HashSHA1)

	rtest.Equals(t, "/staging/bundles/J1", n.JobDir("J1").String())

	art := n.Artifact("J1", 0, "bundle", bundler.ArchiveZip)
	rtest.Equals(t, "/staging/bundles/J1/bundle_0.zip", art.String())
	rtest.Equals(t, "/staging/bundles/J1/bundle_0.sha1", n.HashSibling(art).String())

	// the compressed tar family keeps the inner extension on the digest
	art = n.Artifact("J1", 3, "survey", bundler.ArchiveGzip)
	rtest.Equals(t, "/staging/bundles/J1/survey_3.tar.gz", art.String())
	rtest.Equals(t, "/staging/bundles/J1/survey_3.tar.sha1", n.HashSibling(art).String())
}

func TestNamerObjectStore(t *testing.T) {
	n := jobs.NewNamer("s3://bundles/staging", bundler.HashSHA256)

	art := n.Artifact("J9", 1, "data_archive", bundler.ArchiveTar)
	rtest.Equals(t, "s3://bundles/staging/J9/data_archive_1.tar", art.String())
	rtest.Equals(t, "s3://bundles/staging/J9/data_archive_1.sha256", n.HashSibling(art).String())
}
