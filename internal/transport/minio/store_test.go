package minio

import (
	"errors"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docrag/internal/domain"
)

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name, owner, file, want string
	}{
		{"plain", "alice", "report.pdf", "documents/alice/K1_report.pdf"},
		{"spaces", "alice", "annual report 2026.pdf", "documents/alice/K1_annual_report_2026.pdf"},
		{"strips directories", "bob", "../../etc/passwd", "documents/bob/K1_passwd"},
		{"windows path", "bob", `C:\docs\my file.txt`, "documents/bob/K1_my_file.txt"},
		{"empty", "bob", "", "documents/bob/K1_document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildKey(tt.owner, tt.file, "K1"))
		})
	}
}

func TestNewKey_Unique(t *testing.T) {
	a := NewKey("alice", "a.pdf")
	b := NewKey("alice", "a.pdf")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "documents/alice/"))
	assert.True(t, strings.HasSuffix(a, "_a.pdf"))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "pdf", FormatOf("documents/a/x_Report.PDF"))
	assert.Equal(t, "", FormatOf("documents/a/x_README"))
}

func TestPublicURL(t *testing.T) {
	got := publicURL("https://cdn.example.com", "documents", "documents/alice/K1_a b.pdf")
	assert.Equal(t, "https://cdn.example.com/documents/documents/alice/K1_a%20b.pdf", got)
}

func TestClassify(t *testing.T) {
	notFound := classify("get", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404})
	assert.True(t, errors.Is(notFound, domain.ErrObjectNotFound))

	other := classify("put", minio.ErrorResponse{Code: "AccessDenied", StatusCode: 403})
	assert.True(t, errors.Is(other, domain.ErrObjectStore))
	assert.False(t, errors.Is(other, domain.ErrObjectNotFound))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&Config{Bucket: "b"})
	require.Error(t, err)
	_, err = New(&Config{Endpoint: "localhost:9000"})
	require.Error(t, err)

	s, err := New(&Config{Endpoint: "http://localhost:9000", Bucket: "b", PublicBaseURL: "http://cdn/"})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn", s.publicBase)
}
