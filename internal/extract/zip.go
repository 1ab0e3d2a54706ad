package extract

import (
	"archive/zip"
	"fmt"
	"io"
)

// extractZip iterates a ZIP archive's entries in order, applying the
// zip-slip and bomb-guard checks before writing each regular file into
// scratch, then invoking emit(path, name) for each one extracted.
func (e *Extractor) extractZip(archivePath, scratch string, emit func(path, name string) error) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnsupportedFormat, err)
	}
	defer zr.Close()

	var total int64
	var count int

	for _, f := range zr.File {
		count++
		if count > MaxEntries {
			return fmt.Errorf("%w: more than %d entries", ErrLimitExceeded, MaxEntries)
		}

		if f.FileInfo().IsDir() {
			continue
		}

		target, ok := isSafePath(scratch, f.Name)
		if !ok {
			continue // unsafe entry: skip, keep iterating the archive
		}

		total += int64(f.UncompressedSize64)
		if total > MaxExtractedBytes {
			return fmt.Errorf("%w: more than %d bytes declared", ErrLimitExceeded, MaxExtractedBytes)
		}

		if err := copyZipEntry(f, target); err != nil {
			continue // corrupt individual entry: skip, keep iterating
		}

		if err := emit(target, f.Name); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeEntry(target, io.LimitReader(rc, MaxExtractedBytes+1))
}
