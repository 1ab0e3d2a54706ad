package telegram

import (
	"context"
	"fmt"
	"io"

	"github.com/gotd/td/telegram/downloader"
)

// Download streams doc's content into w using gotd/td's own downloader,
// the same downloader.NewDownloader().Download(api, location).Stream
// pattern used for high-speed Telegram retrieval in the retrieval
// corpus, without the extra chunked-parallel bookkeeping this pipeline
// doesn't need (the stream is written in order into a single temp file,
// which is hashed once the download completes).
func (c *Client) Download(ctx context.Context, doc *Document, w io.Writer) error {
	dl := downloader.NewDownloader()
	_, err := dl.Download(c.API(), doc.Location).Stream(ctx, w)
	if err != nil {
		return fmt.Errorf("telegram: download %s: %w", doc.Filename, err)
	}
	return nil
}
