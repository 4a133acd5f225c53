package wire

import (
	"bytes"
	"encoding/json"

	"github.com/isuzu-shiranui/UnityMCP/core/logx"
)

// MaxBufferSize caps the per-connection receive buffer. A peer that exceeds
// it without completing a message is dropped.
const MaxBufferSize = 1 << 20

// Framer accumulates bytes from one connection and splits them into complete
// JSON messages. Messages are normally newline-delimited, but the Unity side
// of the protocol transmits without a trailing newline, so after draining all
// newline-delimited messages the framer also emits the remaining buffer if it
// parses as a complete JSON value on its own.
type Framer struct {
	buf []byte
}

// Feed appends p to the buffer and returns every complete message now
// available, in arrival order. A line that fails to parse is logged and
// skipped; resynchronization is the next newline. Feed returns
// ErrBufferOverflow when the buffer exceeds MaxBufferSize, after which the
// framer is unusable and the connection should be closed.
func (f *Framer) Feed(p []byte) ([]json.RawMessage, error) {
	f.buf = append(f.buf, p...)
	if len(f.buf) > MaxBufferSize {
		return nil, ErrBufferOverflow
	}
	var msgs []json.RawMessage
	for {
		i := bytes.IndexByte(f.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.Clone(bytes.TrimSpace(f.buf[:i]))
		f.buf = append(f.buf[:0], f.buf[i+1:]...)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			logx.Log.Warn().Str("data", truncate(line, 256)).Msg("dropping unparsable message")
			continue
		}
		msgs = append(msgs, json.RawMessage(line))
	}
	// The editor transmits without a trailing newline: emit the tail if it
	// already forms a complete JSON value.
	if tail := bytes.TrimSpace(f.buf); len(tail) > 0 && json.Valid(tail) {
		msgs = append(msgs, json.RawMessage(bytes.Clone(tail)))
		f.buf = f.buf[:0]
	}
	return msgs, nil
}

// Pending reports how many buffered bytes await completion.
func (f *Framer) Pending() int { return len(f.buf) }

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
