package storage

import (
	"path/filepath"
	"strings"
)

var archiveExtensions = map[string]bool{
	".zip": true,
	".rar": true,
	".7z":  true,
}

var archiveMimeSubstrings = []string{"zip", "rar", "7z", "archive"}

// IsExtractable decides whether a downloaded file should be handed to the
// extractor: extension in {.zip, .rar, .7z} OR mime contains one of
// {zip, rar, 7z, archive}. Note .7z is flagged extractable here (matching
// the wire contract) but the extractor itself skips .7z bodies — see
// internal/extract.
func IsExtractable(mimeType, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if archiveExtensions[ext] {
		return true
	}
	lowerMime := strings.ToLower(mimeType)
	for _, sub := range archiveMimeSubstrings {
		if strings.Contains(lowerMime, sub) {
			return true
		}
	}
	return false
}

var textExtensions = map[string]bool{
	".txt": true, ".csv": true, ".json": true, ".xml": true, ".log": true,
	".ini": true, ".env": true, ".sql": true, ".conf": true, ".yml": true,
	".yaml": true, ".md": true,
}

var binaryExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".mp4": true,
	".mp3": true, ".exe": true, ".dll": true, ".so": true, ".pdf": true,
	".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
}

var textMimeSubstrings = []string{"text", "json", "xml", "csv"}

// IsScanEligible decides whether a file's contents are worth feeding to the
// IOC matcher: extension in the text whitelist, OR (extension not in the
// binary blacklist AND mime contains a text-ish substring).
func IsScanEligible(mimeType, filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if textExtensions[ext] {
		return true
	}
	if binaryExtensions[ext] {
		return false
	}
	lowerMime := strings.ToLower(mimeType)
	for _, sub := range textMimeSubstrings {
		if strings.Contains(lowerMime, sub) {
			return true
		}
	}
	return false
}
