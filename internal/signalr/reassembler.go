package signalr

import "strings"

// Reassembler joins the fragments of one text message. A connection owns
// exactly one; it is not safe for concurrent use.
type Reassembler struct {
	buf     strings.Builder
	pending bool
}

// Add appends a fragment. When last is true it returns the complete message
// and resets for the next one.
func (r *Reassembler) Add(fragment string, last bool) (string, bool) {
	r.buf.WriteString(fragment)
	r.pending = true
	if !last {
		return "", false
	}
	msg := r.buf.String()
	r.Reset()
	return msg, true
}

// Pending reports whether a partial message is buffered.
func (r *Reassembler) Pending() bool {
	return r.pending
}

// Reset drops any partial message.
func (r *Reassembler) Reset() {
	r.buf.Reset()
	r.pending = false
}
