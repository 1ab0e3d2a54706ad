package extractor

import (
	"testing"

	"github.com/fastleaksdf/pipeline/internal/models"
	"github.com/fastleaksdf/pipeline/internal/storage"
)

func TestChildArchiveDetectionIsCaseInsensitive(t *testing.T) {
	cases := map[string]bool{
		"a.zip":    true,
		"a.ZIP":    true,
		"a.Rar":    true,
		"a.7z":     true,
		"a.txt":    false,
		"a":        false,
		"a.tar.gz": false,
	}
	for name, want := range cases {
		if got := storage.IsExtractable(models.DefaultMimeType, name); got != want {
			t.Errorf("storage.IsExtractable(%q) = %v, want %v", name, got, want)
		}
	}
}
