package signature

import (
	"errors"
	"fmt"
)

// Reason identifies why a delivery was rejected. The values are stable and
// safe to persist or log; they are never sent back to the caller.
type Reason string

const (
	// ReasonAllowlistRejected means the caller address is not on the
	// configured source allowlist.
	ReasonAllowlistRejected Reason = "allowlist_rejected"
	// ReasonMissingHeader means a required webhook header is absent or empty.
	ReasonMissingHeader Reason = "missing_header"
	// ReasonMalformedTimestamp means the timestamp header is not a finite
	// numeric Unix seconds value.
	ReasonMalformedTimestamp Reason = "malformed_timestamp"
	// ReasonTimestampTooOld means the timestamp is before the replay window.
	ReasonTimestampTooOld Reason = "timestamp_too_old"
	// ReasonTimestampTooNew means the timestamp is after the replay window.
	ReasonTimestampTooNew Reason = "timestamp_too_new"
	// ReasonNoValidSignatures means no usable asymmetric signature candidate
	// could be extracted from the signature header.
	ReasonNoValidSignatures Reason = "no_valid_signatures"
	// ReasonMissingBody means the request carried no body.
	ReasonMissingBody Reason = "missing_body"
	// ReasonInvalidBodyEncoding means the body is not valid base64.
	ReasonInvalidBodyEncoding Reason = "invalid_body_encoding"
	// ReasonInvalidJSON means the decoded body is not valid JSON.
	ReasonInvalidJSON Reason = "invalid_json"
	// ReasonMissingAppID means the body carries no appDefinition.id string.
	ReasonMissingAppID Reason = "missing_app_id"
	// ReasonKeyFetchFailed means the app's JWK set could not be retrieved.
	ReasonKeyFetchFailed Reason = "key_fetch_failed"
	// ReasonSignatureMismatch means no candidate verified against any key.
	ReasonSignatureMismatch Reason = "signature_mismatch"
)

// VerificationError describes a rejected delivery.
type VerificationError struct {
	Reason Reason
	Header string // populated for ReasonMissingHeader
	Detail string
	Err    error
}

func (e *VerificationError) Error() string {
	switch {
	case e.Header != "":
		return fmt.Sprintf("webhook verification failed: %s (%s)", e.Reason, e.Header)
	case e.Err != nil:
		return fmt.Sprintf("webhook verification failed: %s: %v", e.Reason, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("webhook verification failed: %s: %s", e.Reason, e.Detail)
	default:
		return fmt.Sprintf("webhook verification failed: %s", e.Reason)
	}
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the rejection reason from an error returned by Verify.
// It returns the empty string when err did not originate here.
func ReasonOf(err error) Reason {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return ""
}

func newError(reason Reason) *VerificationError {
	return &VerificationError{Reason: reason}
}

func newErrorf(reason Reason, format string, args ...interface{}) *VerificationError {
	return &VerificationError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func newMissingHeaderError(name string) *VerificationError {
	return &VerificationError{Reason: ReasonMissingHeader, Header: name}
}

func newKeyFetchError(err error) *VerificationError {
	return &VerificationError{Reason: ReasonKeyFetchFailed, Err: err}
}
