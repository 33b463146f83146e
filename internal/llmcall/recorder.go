package llmcall

import (
	"github.com/soulscribe/soulscribe/internal/providers"
	"github.com/soulscribe/soulscribe/internal/storedb"
)

// Recorder handles fire-and-forget LLM call recording via a Sink.
type Recorder struct {
	sink *storedb.Sink
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(sink *storedb.Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record captures an LLM call asynchronously.
// This is non-blocking, the write is queued and batched.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r.sink == nil {
		return
	}

	call := FromChatResult(result, opts)
	if call == nil {
		return
	}
	r.sink.Send(storedb.WriteOp{
		Op:         storedb.OpCreate,
		Collection: "LLMCall",
		Document:   call.ToMap(),
	})
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r.sink == nil || call == nil {
		return
	}

	r.sink.Send(storedb.WriteOp{
		Op:         storedb.OpCreate,
		Collection: "LLMCall",
		Document:   call.ToMap(),
	})
}
