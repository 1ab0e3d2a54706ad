package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentFromMediaExtractsFilenameSizeAndMime(t *testing.T) {
	media := &tg.MessageMediaDocument{
		Document: &tg.Document{
			ID:       42,
			MimeType: "application/zip",
			Size:     1024,
			Attributes: []tg.DocumentAttributeClass{
				&tg.DocumentAttributeFilename{FileName: "leak.zip"},
			},
		},
	}

	doc, err := DocumentFromMedia(media)
	require.NoError(t, err)
	assert.Equal(t, int64(42), doc.DocID)
	assert.Equal(t, "leak.zip", doc.Filename)
	assert.Equal(t, "application/zip", doc.MimeType)
	assert.Equal(t, int64(1024), doc.SizeBytes)
}

func TestDocumentFromMediaRejectsNonDocumentMedia(t *testing.T) {
	_, err := DocumentFromMedia(&tg.MessageMediaUnsupported{})
	assert.Error(t, err)
}

func TestDocumentFromMediaRejectsMissingFilenameOrSize(t *testing.T) {
	media := &tg.MessageMediaDocument{
		Document: &tg.Document{
			ID:       1,
			MimeType: "application/zip",
			Size:     0,
		},
	}
	_, err := DocumentFromMedia(media)
	assert.Error(t, err)
}
