package patterns

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		CPF:        `\d{3}\.\d{3}\.\d{3}-\d{2}`,
		EmailGDF:   `[\w.+-]+@[\w.-]+\.gov\.br`,
		DomainDF:   `[\w.-]+\.df\.gov\.br`,
		IPInternal: `\b10\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
	}
}

func TestScanFilePlainTextCapture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leak.txt")
	require.NoError(t, os.WriteFile(path, []byte("contact: admin@example.gov.br\n"), 0o644))

	m, err := New(testConfig())
	require.NoError(t, err)

	matches, err := m.ScanFile(path)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	got := matches[0]
	assert.Equal(t, "email_gdf", got.IOCType)
	assert.Equal(t, "admin@example.gov.br", got.Value)
	assert.Equal(t, 1, got.LineNumber)
	assert.Contains(t, got.Context, ">")
	assert.Contains(t, got.Context, "admin@example.gov.br")
}

func TestScanFileMissingReturnsNoMatches(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	matches, err := m.ScanFile(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestScanFileOversizedIsDropped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	big := strings.Repeat("a", maxScanBytes+1)
	require.NoError(t, os.WriteFile(path, []byte(big), 0o644))

	m, err := New(testConfig())
	require.NoError(t, err)

	matches, err := m.ScanFile(path)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestScanLinesContextWindowClampedAtBounds(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	lines := []string{"line one", "admin@example.gov.br here"}
	matches := m.ScanLines(lines)
	require.Len(t, matches, 1)

	want := fmt.Sprintf("%c %4d | %s", ' ', 1, "line one") + "\n" +
		fmt.Sprintf("%c %4d | %s", '>', 2, "admin@example.gov.br here")
	assert.Equal(t, want, matches[0].Context)
}

func TestCredentialsPatternMatchesKeywordVariants(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	lines := []string{`password: Sup3rSecret!`, `senha="OutraSenha123"`, `not a hit`}
	matches := m.ScanLines(lines)

	var creds []Match
	for _, match := range matches {
		if match.IOCType == "credentials" {
			creds = append(creds, match)
		}
	}
	require.Len(t, creds, 2)
}

func TestScanLinesGlobalEnumerationPerLine(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)

	lines := []string{"contact a@x.gov.br and b@y.gov.br"}
	matches := m.ScanLines(lines)
	require.Len(t, matches, 2)
	assert.Equal(t, "a@x.gov.br", matches[0].Value)
	assert.Equal(t, "b@y.gov.br", matches[1].Value)
}
