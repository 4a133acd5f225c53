package wire

import (
	"encoding/json"
	"fmt"
	"testing"
)

func feedAll(t *testing.T, f *Framer, data []byte, chunk int) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for i := 0; i < len(data); i += chunk {
		end := i + chunk
		if end > len(data) {
			end = len(data)
		}
		msgs, err := f.Feed(data[i:end])
		if err != nil {
			t.Fatalf("feed: %v", err)
		}
		out = append(out, msgs...)
	}
	return out
}

func TestFramerRoundTrip(t *testing.T) {
	var data []byte
	want := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		msg := fmt.Sprintf(`{"command":"test.run","id":"%d"}`, i)
		want = append(want, msg)
		data = append(data, msg...)
		data = append(data, '\n')
	}
	for _, chunk := range []int{1, 3, 7, len(data)} {
		var f Framer
		got := feedAll(t, &f, data, chunk)
		if len(got) != len(want) {
			t.Fatalf("chunk %d: got %d messages, want %d", chunk, len(got), len(want))
		}
		for i, m := range got {
			if string(m) != want[i] {
				t.Fatalf("chunk %d message %d: got %s want %s", chunk, i, m, want[i])
			}
		}
	}
}

func TestFramerTrailingObjectWithoutNewline(t *testing.T) {
	data := []byte("{\"id\":\"1\"}\n{\"id\":\"2\"}")
	for _, chunk := range []int{1, 5, len(data)} {
		var f Framer
		got := feedAll(t, &f, data, chunk)
		if len(got) != 2 {
			t.Fatalf("chunk %d: got %d messages, want 2", chunk, len(got))
		}
		if string(got[1]) != `{"id":"2"}` {
			t.Fatalf("chunk %d: got %s", chunk, got[1])
		}
		if f.Pending() != 0 {
			t.Fatalf("chunk %d: %d bytes left pending", chunk, f.Pending())
		}
	}
}

func TestFramerHoldsIncompleteTail(t *testing.T) {
	var f Framer
	msgs, err := f.Feed([]byte(`{"id":"1"`))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}
	msgs, err = f.Feed([]byte(`}`))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != `{"id":"1"}` {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestFramerNewlinesDrainBeforeTailParse(t *testing.T) {
	// Two complete lines and a complete trailing object arriving together.
	var f Framer
	msgs, err := f.Feed([]byte("{\"id\":\"1\"}\n\n  {\"id\":\"2\"}\n{\"id\":\"3\"}"))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if string(msgs[2]) != `{"id":"3"}` {
		t.Fatalf("tail message: %s", msgs[2])
	}
}

func TestFramerSkipsUnparsableLine(t *testing.T) {
	var f Framer
	msgs, err := f.Feed([]byte("not json\n{\"id\":\"1\"}\n"))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0]) != `{"id":"1"}` {
		t.Fatalf("unexpected messages %v", msgs)
	}
}

func TestFramerOverflow(t *testing.T) {
	var f Framer
	big := make([]byte, MaxBufferSize+1)
	for i := range big {
		big[i] = 'a'
	}
	if _, err := f.Feed(big); err != ErrBufferOverflow {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
}
