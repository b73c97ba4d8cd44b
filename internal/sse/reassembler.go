// Package sse reassembles server-sent-event frames from arbitrarily
// split byte chunks and accumulates streamed chat completion deltas.
package sse

import "strings"

// DoneSentinel is the terminal payload an upstream stream emits.
const DoneSentinel = "[DONE]"

const dataPrefix = "data: "

// State tracks where a stream is in its lifecycle.
type State int

const (
	// StateIdle means no bytes have been fed yet.
	StateIdle State = iota
	// StateBuffering means bytes arrived but no complete frame has been
	// emitted yet.
	StateBuffering
	// StateEmitting means at least one frame has been emitted.
	StateEmitting
	// StateDone means the [DONE] sentinel was seen. Further input is
	// ignored.
	StateDone
	// StateErrored means the stream was aborted by the caller.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Feed splits buffer+chunk into complete SSE data payloads. A trailing
// line without a newline is pushed back as rest for the next call.
// Blank lines and comment lines (leading ':') are dropped; only lines
// carrying the "data: " prefix produce frames. The [DONE] sentinel is
// returned as a frame so callers can observe the terminal marker.
func Feed(buffer, chunk string) (frames []string, rest string) {
	data := buffer + chunk
	for {
		idx := strings.IndexByte(data, '\n')
		if idx < 0 {
			return frames, data
		}
		line := strings.TrimSuffix(data[:idx], "\r")
		data = data[idx+1:]
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		frames = append(frames, line[len(dataPrefix):])
	}
}

// Reassembler is a stateful wrapper around Feed tracking the stream
// lifecycle. Zero value is ready to use.
type Reassembler struct {
	state State
	rest  string
}

// State reports the current lifecycle state.
func (r *Reassembler) State() State { return r.state }

// Next feeds a chunk and returns the complete payloads it unlocked.
// The [DONE] sentinel moves the reassembler to StateDone and is not
// returned; payloads after it are discarded.
func (r *Reassembler) Next(chunk string) []string {
	if r.state == StateDone || r.state == StateErrored {
		return nil
	}
	if r.state == StateIdle && chunk != "" {
		r.state = StateBuffering
	}
	frames, rest := Feed(r.rest, chunk)
	r.rest = rest
	out := frames[:0]
	for _, f := range frames {
		if f == DoneSentinel {
			r.state = StateDone
			r.rest = ""
			break
		}
		out = append(out, f)
	}
	if len(out) > 0 && r.state != StateDone {
		r.state = StateEmitting
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Abort marks the stream as errored. Subsequent Next calls return nil.
func (r *Reassembler) Abort() {
	if r.state != StateDone {
		r.state = StateErrored
		r.rest = ""
	}
}

// Done reports whether the terminal sentinel was seen.
func (r *Reassembler) Done() bool { return r.state == StateDone }
