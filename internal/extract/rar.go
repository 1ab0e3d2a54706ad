package extract

import (
	"errors"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

// extractRar iterates a RAR archive's entries in order, applying the same
// zip-slip and bomb-guard checks as extractZip before writing each regular
// file into scratch.
func (e *Extractor) extractRar(archivePath, scratch string, emit func(path, name string) error) error {
	rc, err := rardecode.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", errUnsupportedFormat, err)
	}
	defer rc.Close()

	var total int64
	var count int

	for {
		header, err := rc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", errUnsupportedFormat, err)
		}

		count++
		if count > MaxEntries {
			return fmt.Errorf("%w: more than %d entries", ErrLimitExceeded, MaxEntries)
		}

		if header.IsDir {
			continue
		}

		target, ok := isSafePath(scratch, header.Name)
		if !ok {
			continue
		}

		total += header.UnPackedSize
		if total > MaxExtractedBytes {
			return fmt.Errorf("%w: more than %d bytes declared", ErrLimitExceeded, MaxExtractedBytes)
		}

		if err := writeEntry(target, io.LimitReader(rc, MaxExtractedBytes+1)); err != nil {
			continue
		}

		if err := emit(target, header.Name); err != nil {
			return err
		}
	}
	return nil
}
