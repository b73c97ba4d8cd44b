package chat

import (
	"io"
	"net/http"

	"github.com/botforge/chatbot-platform/internal/sse"
)

const relayBufSize = 4 << 10

// relay copies the upstream SSE stream to the client byte for byte,
// flushing after every chunk, while reassembling the assistant reply
// on the side. It returns the accumulated text and whether the
// upstream terminal sentinel was observed. Write errors mean the
// client went away; the partial text accumulated so far is kept.
func relay(w http.ResponseWriter, upstream io.Reader) (text string, done bool) {
	flusher, _ := w.(http.Flusher)

	var frames sse.Reassembler
	var acc sse.Accumulator
	buf := make([]byte, relayBufSize)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for _, payload := range frames.Next(string(chunk)) {
				acc.Consume(payload)
			}
			if _, werr := w.Write(chunk); werr != nil {
				break
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			break
		}
	}
	return acc.Text(), frames.Done()
}
