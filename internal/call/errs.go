package call

import (
	"errors"
	"fmt"
)

// Kind classifies a failure inside the call pipeline. Adapters and tasks
// attach a Kind to the errors they surface; only the dialog loop decides
// which kinds are terminal for the call.
type Kind string

const (
	// KindProviderTransport covers WebSocket framing, base64 and frame-size
	// errors. The offending frame is dropped and the call continues.
	KindProviderTransport Kind = "provider_transport"

	// KindASRTransient covers ASR timeouts and 5xx responses after retries.
	// Treated as an empty transcript.
	KindASRTransient Kind = "asr_transient"

	// KindASRInputTooShort marks an utterance below the minimum audio gate.
	// Discarded without a network call.
	KindASRInputTooShort Kind = "asr_input_too_short"

	// KindLLMTransient covers intent LLM errors. The lexicon classifier is
	// used instead.
	KindLLMTransient Kind = "llm_transient"

	// KindTTSFailure marks synthesis failing in both the requested language
	// and the English retry.
	KindTTSFailure Kind = "tts_failure"

	// KindTransferFailure marks a refused or timed-out bridge request. The
	// call detours through the goodbye and ends.
	KindTransferFailure Kind = "transfer_failure"

	// KindMissingContext marks a call with no customer snapshot after the
	// grace period. Terminal.
	KindMissingContext Kind = "missing_context"

	// KindTimeoutGlobal marks the hard call-duration cap. Terminal.
	KindTimeoutGlobal Kind = "timeout_global"

	// KindSessionProtocol marks a forbidden transition such as a duplicate
	// start envelope. Terminal with outcome failed.
	KindSessionProtocol Kind = "session_protocol"
)

// Error pairs a Kind with an underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a Kind. A nil err still produces a non-nil error so that
// kinds without an underlying cause (a plain timeout, say) remain reportable.
func E(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, unwrapping as needed. Returns the empty
// Kind for errors that did not originate in this package.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
