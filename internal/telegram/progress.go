package telegram

import (
	"context"
	"io"
)

// progressReader counts bytes as the bot API streams a file upload, feeding
// the upload progress callback. It also gives uploads a cancellation point:
// once ctx is cancelled the next read fails and aborts the send.
type progressReader struct {
	ctx        context.Context
	r          io.Reader
	total      int64
	sent       int64
	onProgress func(sent, total int64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}

	n, err := p.r.Read(buf)
	if n > 0 {
		p.sent += int64(n)
		if p.onProgress != nil {
			p.onProgress(p.sent, p.total)
		}
	}
	return n, err
}
