package extract

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/storage"
)

func newTestExtractor(t *testing.T) (*Extractor, *storage.Store) {
	t.Helper()
	st, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return New(st), st
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func TestExtractZipHappyPath(t *testing.T) {
	ex, _ := newTestExtractor(t)
	archive := writeZip(t, map[string]string{"d.txt": "hello"})

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", archive, "archive.zip", 0)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, out.State)
	require.Len(t, out.Children, 1)
	assert.Equal(t, 1, out.Children[0].Depth)
	assert.Equal(t, "parentsha", out.Children[0].ParentSHA256)
}

func TestExtractZipSlipBlocked(t *testing.T) {
	ex, _ := newTestExtractor(t)
	archive := writeZip(t, map[string]string{"../../etc/passwd": "root:x:0:0"})

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", archive, "evil.zip", 0)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, out.State)
	assert.Empty(t, out.Children)
}

func TestExtractZipHappyPathShapeIgnoringVolatileFields(t *testing.T) {
	ex, _ := newTestExtractor(t)
	jobID := uuid.New()
	archive := writeZip(t, map[string]string{"d.txt": "hello"})

	out, err := ex.ExtractRecursive(jobID, "parentsha", archive, "archive.zip", 0)
	require.NoError(t, err)

	want := models.ExtractedFile{
		JobID:        jobID,
		ParentSHA256: "parentsha",
		Filename:     "d.txt",
		MimeType:     models.DefaultMimeType,
		Depth:        1,
	}
	got := out.Children[0]
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(models.ExtractedFile{}, "SHA256", "StoragePath")); diff != "" {
		t.Errorf("unexpected ExtractedFile shape (-want +got):\n%s", diff)
	}
}

func TestExtractZipAbsolutePathBlocked(t *testing.T) {
	ex, _ := newTestExtractor(t)
	archive := writeZip(t, map[string]string{"/etc/passwd": "root:x:0:0"})

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", archive, "evil2.zip", 0)
	require.NoError(t, err)
	assert.Empty(t, out.Children)
}

func TestExtractZipBombGuardAborts(t *testing.T) {
	ex, _ := newTestExtractor(t)

	entries := map[string]string{}
	chunk := bytes.Repeat([]byte("x"), 20*1024*1024) // 20 MiB declared per entry
	for i := 0; i < 10; i++ {
		entries[filepath.Base(filepath.Join("f", string(rune('a'+i))))+".bin"] = string(chunk)
	}
	archive := writeZip(t, entries)

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", archive, "bomb.zip", 0)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, out.State)
	assert.LessOrEqual(t, len(out.Children), 5)
	assert.NotEmpty(t, out.Children) // already-emitted children are kept
}

func TestExtractZipEntryCountGuardAborts(t *testing.T) {
	ex, _ := newTestExtractor(t)

	entries := map[string]string{}
	for i := 0; i < MaxEntries+5; i++ {
		entries[padName(i)] = "x"
	}
	archive := writeZip(t, entries)

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", archive, "many.zip", 0)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, out.State)
}

func padName(i int) string {
	return "file_" + itoa(i) + ".txt"
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func TestExtractRecursionCapNestedArchives(t *testing.T) {
	ex, _ := newTestExtractor(t)

	cZip := writeZip(t, map[string]string{"d.txt": "leaf"})
	cBytes, err := os.ReadFile(cZip)
	require.NoError(t, err)

	bDir := t.TempDir()
	bZipPath := filepath.Join(bDir, "b.zip")
	bf, err := os.Create(bZipPath)
	require.NoError(t, err)
	bw := zip.NewWriter(bf)
	cw, err := bw.Create("c.zip")
	require.NoError(t, err)
	_, err = cw.Write(cBytes)
	require.NoError(t, err)
	require.NoError(t, bw.Close())
	require.NoError(t, bf.Close())
	bBytes, err := os.ReadFile(bZipPath)
	require.NoError(t, err)

	aDir := t.TempDir()
	aZipPath := filepath.Join(aDir, "a.zip")
	af, err := os.Create(aZipPath)
	require.NoError(t, err)
	aw := zip.NewWriter(af)
	bw2, err := aw.Create("b.zip")
	require.NoError(t, err)
	_, err = bw2.Write(bBytes)
	require.NoError(t, err)
	require.NoError(t, aw.Close())
	require.NoError(t, af.Close())

	out, err := ex.ExtractRecursive(uuid.New(), "root", aZipPath, "a.zip", 0)
	require.NoError(t, err)

	var sawDepth3 bool
	for _, c := range out.Children {
		assert.LessOrEqual(t, c.Depth, MaxDepth)
		if c.Depth == 3 {
			sawDepth3 = true
			assert.Equal(t, "d.txt", c.Filename)
		}
	}
	assert.True(t, sawDepth3, "expected d.txt to surface at depth 3")
}

func TestUnsupportedFormatIsDataDefinedAbort(t *testing.T) {
	ex, _ := newTestExtractor(t)
	path := filepath.Join(t.TempDir(), "data.7z")
	require.NoError(t, os.WriteFile(path, []byte("not a real 7z"), 0o644))

	out, err := ex.ExtractRecursive(uuid.New(), "parentsha", path, "data.7z", 0)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, out.State)
	assert.Empty(t, out.Children)
}

func TestIsSafePathRejectsTraversalAndAbsolute(t *testing.T) {
	base := t.TempDir()

	_, ok := isSafePath(base, "../outside.txt")
	assert.False(t, ok)

	_, ok = isSafePath(base, "/etc/passwd")
	assert.False(t, ok)

	target, ok := isSafePath(base, "nested/file.txt")
	assert.True(t, ok)
	assert.Contains(t, target, base)
}
