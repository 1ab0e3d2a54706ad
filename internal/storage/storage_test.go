package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilenameIsIdempotent(t *testing.T) {
	cases := []string{
		"report.txt",
		"../../etc/passwd",
		"relatório final (2024).csv",
		strings.Repeat("a", 400) + ".log",
		"",
	}
	for _, c := range cases {
		once := SanitizeFilename(c)
		twice := SanitizeFilename(once)
		assert.Equal(t, once, twice, "sanitize not idempotent for %q", c)
		assert.LessOrEqual(t, len(once), maxFilenameLen)
	}
}

func TestSanitizeFilenameReplacesUnsafeChars(t *testing.T) {
	got := SanitizeFilename("../../etc/passwd")
	assert.NotContains(t, got, "/")
	assert.NotContains(t, got, "..")
}

func TestPathIsPureFunctionOfHashAndName(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	sha := strings.Repeat("ab", 32)
	p1, err := s.Path(sha, "evil name!.txt")
	require.NoError(t, err)
	p2, err := s.Path(sha, "evil name!.txt")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	assert.Equal(t, filepath.Join(dir, "ab", "ab", sha+"_evil_name_.txt"), p1)
}

func TestHashAndPlaceRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	tmp, err := os.CreateTemp(t.TempDir(), "upload-*.txt")
	require.NoError(t, err)
	_, err = tmp.WriteString("hello world\n")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	sha, path, err := s.HashAndPlace(tmp.Name(), "report.txt")
	require.NoError(t, err)
	assert.Len(t, sha, 64)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reHash, err := HashFile(f)
	require.NoError(t, err)
	assert.Equal(t, sha, reHash)
}

func TestHashAndPlaceIsIdempotentUnderCollision(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	write := func() (string, string) {
		tmp, err := os.CreateTemp(t.TempDir(), "upload-*.txt")
		require.NoError(t, err)
		_, err = tmp.WriteString("same bytes\n")
		require.NoError(t, err)
		require.NoError(t, tmp.Close())
		sha, path, err := s.HashAndPlace(tmp.Name(), "same.txt")
		require.NoError(t, err)
		return sha, path
	}

	sha1, path1 := write()
	sha2, path2 := write()
	assert.Equal(t, sha1, sha2)
	assert.Equal(t, path1, path2)
}

func TestIsExtractable(t *testing.T) {
	assert.True(t, IsExtractable("application/octet-stream", "archive.zip"))
	assert.True(t, IsExtractable("application/x-rar-compressed", "data.bin"))
	assert.True(t, IsExtractable("application/x-7z-compressed", "data.bin"))
	assert.False(t, IsExtractable("image/png", "photo.png"))
}

func TestIsScanEligible(t *testing.T) {
	assert.True(t, IsScanEligible("application/octet-stream", "creds.env"))
	assert.True(t, IsScanEligible("text/plain", "notes"))
	assert.False(t, IsScanEligible("image/jpeg", "photo.jpg"))
	assert.False(t, IsScanEligible("application/pdf", "report.pdf"))
	assert.False(t, IsScanEligible("application/octet-stream", "binary.out"))
}
