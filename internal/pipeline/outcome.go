package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies every user-visible failure the pipeline can produce. The
// transport layer maps kinds to localized strings; the pipeline itself never
// hands free text to users.
type Kind int

const (
	KindOK Kind = iota
	// KindQuotaDenied: daily free limit reached and no premium entitlement.
	KindQuotaDenied
	// KindSessionBusy: a session is already awaiting a language choice and
	// the reject policy is active.
	KindSessionBusy
	// KindSessionExpired: no live session for a language choice or cancel.
	KindSessionExpired
	// KindCollaboratorFailure: transcription/translation/download failed.
	KindCollaboratorFailure
	// KindStoreUnavailable: persistence failed and fail-open is disabled.
	KindStoreUnavailable
	KindFileTooLarge
	KindUnsupportedFormat
	// KindEmptyTranscription: the audio produced no usable text.
	KindEmptyTranscription
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindQuotaDenied:
		return "quota_denied"
	case KindSessionBusy:
		return "session_busy"
	case KindSessionExpired:
		return "session_expired"
	case KindCollaboratorFailure:
		return "collaborator_failure"
	case KindStoreUnavailable:
		return "store_unavailable"
	case KindFileTooLarge:
		return "file_too_large"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindEmptyTranscription:
		return "empty_transcription"
	default:
		return "unknown"
	}
}

// Error wraps a cause with its user-visible kind.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// errKind tags err with kind. An error that already carries a kind keeps it:
// re-wrapping at an outer layer (e.g. a publish failure surfacing an inline
// worker's outcome) must not mask the original classification.
func errKind(kind Kind, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		kind = pe.Kind
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the kind from an error chain; unknown errors count as
// collaborator failures so nothing internal reaches the user.
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindCollaboratorFailure
}
