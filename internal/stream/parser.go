// Package stream implements the in-band marker protocol used by the streaming chat endpoints. A
// streamed response body is plain text whose final bytes carry exactly one terminal marker, either
// [METADATA]{json}[/METADATA] on success or [ERROR]message[/ERROR] on failure; every other byte is
// literal content. The package provides both halves of the protocol: Parser consumes a response
// body fragment by fragment on the consuming side, and WriteMeta/WriteError emit the terminal
// markers on the producing side.
package stream

import (
	"encoding/json"
	"strings"
)

const (
	metaOpen  = "[METADATA]"
	metaClose = "[/METADATA]"
	errOpen   = "[ERROR]"
	errClose  = "[/ERROR]"
)

// ErrNoTerminalMarker is the message reported when a stream ends before any terminal marker
// arrives.
const ErrNoTerminalMarker = "stream ended without completion signal"

// Meta is the payload carried by the completion marker.
type Meta struct {
	ID         string  `json:"id,omitempty"`
	Method     string  `json:"method,omitempty"`
	Timestamp  string  `json:"timestamp"`
	TimeTaken  float64 `json:"time_taken"`
	TotalChars int     `json:"total_chars"`
}

// Rate derives the characters-per-second rate from the payload. It returns zero when the elapsed
// time is missing or nonsensical rather than dividing by zero.
func (m Meta) Rate() float64 {
	if m.TimeTaken <= 0 {
		return 0
	}
	return float64(m.TotalChars) / m.TimeTaken
}

// Parser converts a sequence of raw text fragments into content events plus exactly one terminal
// event. Fragments carry no alignment guarantee, so a marker may arrive split across any number of
// deliveries; the parser holds back the shortest buffer suffix that could still turn into a marker
// and emits everything in front of it verbatim. Concatenating all content events reproduces the
// model output exactly, with no duplicated tail and no dropped fragment.
//
// Parser is not safe for concurrent use; a single goroutine owns one streaming session.
type Parser struct {
	onChunk    func(content string)
	onComplete func(meta Meta)
	onError    func(message string)

	buf  string
	done bool
}

// NewParser creates a Parser delivering events to the three callbacks. OnChunk may fire any number
// of times; exactly one of onComplete or onError fires once, and no chunk is delivered after it.
func NewParser(onChunk func(string), onComplete func(Meta), onError func(string)) *Parser {
	return &Parser{
		onChunk:    onChunk,
		onComplete: onComplete,
		onError:    onError,
	}
}

// Feed appends one raw fragment to the session buffer and processes it. Fragments arriving after
// the terminal event are ignored.
func (p *Parser) Feed(fragment string) {
	if p.done || fragment == "" {
		return
	}
	p.buf += fragment
	p.scan()
}

// Close signals end of stream. A session that never saw a terminal marker is a protocol error, so
// the error event fires with ErrNoTerminalMarker; held-back bytes that never disambiguated into a
// marker are discarded rather than leaked as content.
func (p *Parser) Close() {
	if p.done {
		return
	}
	p.done = true
	p.buf = ""
	p.onError(ErrNoTerminalMarker)
}

// Done reports whether the terminal event has fired.
func (p *Parser) Done() bool {
	return p.done
}

func (p *Parser) scan() {
	if i, payload, ok := cutMarker(p.buf, metaOpen, metaClose); ok {
		p.emit(p.buf[:i])
		p.buf = ""
		p.done = true

		var m Meta
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			p.onError("invalid completion metadata: " + err.Error())
			return
		}
		p.onComplete(m)
		return
	}

	if i, payload, ok := cutMarker(p.buf, errOpen, errClose); ok {
		p.emit(p.buf[:i])
		p.buf = ""
		p.done = true
		p.onError(payload)
		return
	}

	h := holdIndex(p.buf)
	p.emit(p.buf[:h])
	p.buf = p.buf[h:]
}

func (p *Parser) emit(content string) {
	if content == "" {
		return
	}
	p.onChunk(content)
}

// cutMarker finds a complete open..close marker in buf. It returns the marker's start index and
// the enclosed payload. A marker counts only when both tags are present.
func cutMarker(buf, open, closeTag string) (int, string, bool) {
	i := strings.Index(buf, open)
	if i < 0 {
		return 0, "", false
	}
	rest := buf[i+len(open):]
	j := strings.Index(rest, closeTag)
	if j < 0 {
		return 0, "", false
	}
	return i, rest[:j], true
}

// holdIndex returns the earliest index from which the buffer tail could still become a terminal
// marker, or len(buf) when the whole buffer is safe to emit. A tail qualifies when it is a proper
// prefix of an open tag, or starts with a complete open tag whose close tag has not arrived yet.
func holdIndex(buf string) int {
	for i := strings.IndexByte(buf, '['); i >= 0; {
		if couldBeMarker(buf[i:]) {
			return i
		}
		next := strings.IndexByte(buf[i+1:], '[')
		if next < 0 {
			break
		}
		i += 1 + next
	}
	return len(buf)
}

func couldBeMarker(tail string) bool {
	for _, open := range []string{metaOpen, errOpen} {
		if len(tail) < len(open) {
			if strings.HasPrefix(open, tail) {
				return true
			}
			continue
		}
		if strings.HasPrefix(tail, open) {
			return true
		}
	}
	return false
}
