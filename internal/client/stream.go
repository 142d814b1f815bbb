package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/MegaGrindStone/duo-chat-ui/internal/models"
	"github.com/MegaGrindStone/duo-chat-ui/internal/stream"
)

// readBufferSize is how much of the response body is pulled per read. Fragment boundaries carry no
// meaning; the marker parser reassembles whatever framing the transport produced.
const readBufferSize = 4096

// ChatStream performs one streaming exchange against the given method endpoint. Content fragments
// are delivered through onChunk in arrival order; exactly one of onComplete or onError fires, and
// no chunk is delivered after it. Every failure class, network, status, protocol, and parse, is
// surfaced through onError; ChatStream never panics past its boundary and returns nothing.
func (c *Client) ChatStream(
	ctx context.Context,
	method models.Method,
	message string,
	onChunk func(content string),
	onComplete func(meta stream.Meta),
	onError func(message string),
) {
	body, err := json.Marshal(models.ChatRequest{
		Message: message,
		Method:  method,
		Stream:  true,
	})
	if err != nil {
		onError("failed to marshal request: " + err.Error())
		return
	}

	url := c.baseURL + "/api/chat/" + string(method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		onError("failed to create request: " + err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.stream.Do(req)
	if err != nil {
		c.logger.Error("Streaming request failed",
			slog.String("method", string(method)),
			slog.String("err", err.Error()))
		onError("request failed: " + err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		onError(fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, readError(resp)))
		return
	}

	p := stream.NewParser(onChunk, onComplete, onError)

	// A read can end in the middle of a multi-byte UTF-8 sequence. The unfinished bytes are held
	// back and prepended to the next read so no chunk ever carries a torn code point.
	var pending []byte
	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			hold := trailingPartialRune(data)
			p.Feed(string(data[:len(data)-hold]))
			pending = append(pending[:0], data[len(data)-hold:]...)
		}
		if err != nil {
			if err == io.EOF {
				if len(pending) > 0 {
					p.Feed(string(pending))
				}
				p.Close()
				return
			}
			// A mid-stream read failure after the terminal marker changes nothing; before it,
			// the parser has fired no terminal event yet, so this is the one error report.
			if !p.Done() {
				onError("reading stream failed: " + err.Error())
			}
			return
		}
		if p.Done() {
			return
		}
	}
}

// trailingPartialRune reports how many bytes at the end of data start a UTF-8 sequence whose
// remaining bytes have not arrived yet. Invalid bytes are not held back; waiting on them would
// never resolve.
func trailingPartialRune(data []byte) int {
	for i := 1; i <= utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if b < utf8.RuneSelf {
			return 0
		}
		var want int
		switch {
		case b&0xE0 == 0xC0:
			want = 2
		case b&0xF0 == 0xE0:
			want = 3
		case b&0xF8 == 0xF0:
			want = 4
		default:
			return 0
		}
		if want > i {
			return i
		}
		return 0
	}
	return 0
}
