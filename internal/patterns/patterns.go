// Package patterns implements the line-oriented multi-pattern IOC scanning
// engine: a fixed set of named regular expressions evaluated against every
// line of an eligible file, each hit rendered with a five-line context
// window.
package patterns

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Match is one pattern hit within a file.
type Match struct {
	IOCType    string
	Value      string
	LineNumber int
	Context    string
}

// Config supplies the configuration-driven pattern bodies. The credentials
// pattern is fixed and not configurable.
type Config struct {
	CPF        string
	EmailGDF   string
	DomainDF   string
	IPInternal string
}

var credentialsPattern = regexp.MustCompile(
	`(?i)(password|senha|passwd)[\s:="']{0,3}([A-Za-z0-9@#$%^&*()_+\-={}\[\]:;"'<>,.?/\\|` + "`" + `~]{8,})`,
)

// namedPattern pairs a pattern with a stable name so iteration order
// (and therefore match emission order for a given line) is deterministic.
type namedPattern struct {
	name string
	re   *regexp.Regexp
}

// Matcher evaluates every registered pattern against every line of a file.
type Matcher struct {
	patterns []namedPattern
}

// New compiles the configuration-supplied patterns plus the fixed
// credentials pattern. Registered names are stable: cpf, email_gdf,
// domain_df, ip_internal, credentials.
func New(cfg Config) (*Matcher, error) {
	specs := []struct {
		name string
		body string
	}{
		{"cpf", cfg.CPF},
		{"email_gdf", cfg.EmailGDF},
		{"domain_df", cfg.DomainDF},
		{"ip_internal", cfg.IPInternal},
	}

	m := &Matcher{}
	for _, spec := range specs {
		re, err := regexp.Compile(spec.body)
		if err != nil {
			return nil, fmt.Errorf("patterns: compile %s: %w", spec.name, err)
		}
		m.patterns = append(m.patterns, namedPattern{name: spec.name, re: re})
	}
	m.patterns = append(m.patterns, namedPattern{name: "credentials", re: credentialsPattern})
	return m, nil
}

// Names returns the registered pattern names, in registration order.
func (m *Matcher) Names() []string {
	names := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		names[i] = p.name
	}
	return names
}

const maxScanBytes = 10 * 1024 * 1024 // 10 MiB

// ScanFile scans a file at path if it exists and is within the 10 MiB
// ceiling, decoding as UTF-8 with replacement for invalid bytes. Returns nil,
// nil (no error, no matches) if the file is missing, oversized, or produces
// no hits.
func (m *Matcher) ScanFile(path string) ([]Match, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("patterns: stat %s: %w", path, err)
	}
	if info.Size() > maxScanBytes {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("patterns: open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := readLinesUTF8(f)
	if err != nil {
		return nil, fmt.Errorf("patterns: read %s: %w", path, err)
	}
	return m.ScanLines(lines), nil
}

// ScanLines evaluates every registered pattern against every line, enumerating
// all non-overlapping matches per line per pattern (global match enumeration).
func (m *Matcher) ScanLines(lines []string) []Match {
	var matches []Match
	for i, line := range lines {
		lineNum := i + 1
		for _, p := range m.patterns {
			for _, loc := range p.re.FindAllStringIndex(line, -1) {
				value := line[loc[0]:loc[1]]
				matches = append(matches, Match{
					IOCType:    p.name,
					Value:      value,
					LineNumber: lineNum,
					Context:    renderContext(lines, i),
				})
			}
		}
	}
	return matches
}

// renderContext builds the five-line window [line-2 .. line+2] clamped to
// file bounds around the 0-indexed hitIdx, marking the hit line with '>'.
func renderContext(lines []string, hitIdx int) string {
	start := hitIdx - 2
	if start < 0 {
		start = 0
	}
	end := hitIdx + 2
	if end > len(lines)-1 {
		end = len(lines) - 1
	}

	var out []byte
	for i := start; i <= end; i++ {
		marker := byte(' ')
		if i == hitIdx {
			marker = '>'
		}
		if i > start {
			out = append(out, '\n')
		}
		out = append(out, fmt.Sprintf("%c %4d | %s", marker, i+1, rstrip(lines[i]))...)
	}
	return string(out)
}

func rstrip(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == ' ' || s[end-1] == '\t' || s[end-1] == '\r' || s[end-1] == '\n') {
		end--
	}
	return s[:end]
}

// readLinesUTF8 reads all lines of r, replacing invalid UTF-8 sequences with
// the Unicode replacement character rather than failing.
func readLinesUTF8(r io.Reader) ([]string, error) {
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	clean := strings.ToValidUTF8(string(decoded), "�")

	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(clean))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScanBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
