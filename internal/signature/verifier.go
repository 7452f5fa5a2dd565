package signature

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/jwks"
)

// KeyProvider supplies the signing keys registered for an app.
// Implementations look keys up fresh on every call; Verify performs
// exactly one lookup per delivery and never caches the result.
type KeyProvider interface {
	AppKeys(ctx context.Context, appID string) ([]jwks.JWK, error)
}

// Request is one inbound webhook delivery.
type Request struct {
	// Headers holds the request headers, one value per name, in whatever
	// casing they arrived with.
	Headers map[string]string

	// Body is the base64-encoded request body.
	Body string

	// SourceIP is the caller's network address, when known.
	SourceIP string
}

// Result describes an accepted delivery.
type Result struct {
	MessageID string
	Timestamp string // raw webhook-timestamp header value
	AppID     string
	Payload   interface{} // parsed JSON body, unmodified
	RawBody   []byte
}

// Verifier authenticates webhook deliveries against per-app EC keys.
type Verifier struct {
	config *Config
	keys   KeyProvider
	logger logging.Logger
}

// NewVerifier creates a verifier. A nil config behaves like DefaultConfig.
func NewVerifier(config *Config, keys KeyProvider, logger logging.Logger) *Verifier {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Verifier{
		config: config,
		keys:   keys,
		logger: logger,
	}
}

// Verify runs the verification pipeline on req. On success it returns the
// delivery identifiers together with the parsed body; on failure it
// returns a *VerificationError whose Reason names the first check that
// failed. The context only bounds the key lookup.
func (v *Verifier) Verify(ctx context.Context, req *Request) (*Result, error) {
	headers := NormalizeHeaders(req.Headers)

	if !v.sourceAllowed(req.SourceIP) {
		return nil, v.reject(newErrorf(ReasonAllowlistRejected, "source %q not allowed", req.SourceIP), "")
	}

	for _, name := range requiredHeaders {
		if headers[name] == "" {
			return nil, v.reject(newMissingHeaderError(name), "")
		}
	}

	messageID := headers[HeaderID]
	timestamp := headers[HeaderTimestamp]

	if verr := checkTimestamp(timestamp, time.Now()); verr != nil {
		return nil, v.reject(verr, messageID)
	}

	candidates := extractSignatures(headers[HeaderSignature])
	if len(candidates) == 0 {
		return nil, v.reject(newError(ReasonNoValidSignatures), messageID)
	}

	rawBody, verr := decodeBody(req.Body)
	if verr != nil {
		return nil, v.reject(verr, messageID)
	}

	payload, verr := parseBody(rawBody)
	if verr != nil {
		return nil, v.reject(verr, messageID)
	}

	appID, verr := appIDFrom(payload)
	if verr != nil {
		return nil, v.reject(verr, messageID)
	}

	keys, err := v.keys.AppKeys(ctx, appID)
	if err != nil {
		return nil, v.reject(newKeyFetchError(err), messageID)
	}
	if len(keys) == 0 {
		return nil, v.reject(newErrorf(ReasonKeyFetchFailed, "no keys registered for app %s", appID), messageID)
	}

	signingString := fmt.Sprintf("%s.%s.%s", messageID, timestamp, rawBody)
	if !v.matchSignature(keys, signingString, candidates) {
		return nil, v.reject(newError(ReasonSignatureMismatch), messageID)
	}

	v.logger.Info("Webhook verified",
		logging.Field{Key: "message_id", Value: messageID},
		logging.Field{Key: "app_id", Value: appID})

	return &Result{
		MessageID: messageID,
		Timestamp: timestamp,
		AppID:     appID,
		Payload:   payload,
		RawBody:   rawBody,
	}, nil
}

// matchSignature tries every usable key against every candidate and
// reports whether any pair verifies. Keys that are not EC, or whose
// public key cannot be constructed, are skipped; a candidate failing
// against one key is still tried against the rest.
func (v *Verifier) matchSignature(keys []jwks.JWK, signingString string, candidates [][]byte) bool {
	digest := sha256.Sum256([]byte(signingString))
	for i := range keys {
		pub, err := keys[i].ECPublicKey()
		if err != nil {
			v.logger.Debug("Skipping unusable key",
				logging.Field{Key: "kid", Value: keys[i].Kid},
				logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		for _, candidate := range candidates {
			if ecdsa.VerifyASN1(pub, digest[:], candidate) {
				return true
			}
		}
	}
	return false
}

func (v *Verifier) reject(verr *VerificationError, messageID string) error {
	fields := []logging.Field{{Key: "reason", Value: string(verr.Reason)}}
	if messageID != "" {
		fields = append(fields, logging.Field{Key: "message_id", Value: messageID})
	}
	if verr.Header != "" {
		fields = append(fields, logging.Field{Key: "header", Value: verr.Header})
	}
	v.logger.Warn("Webhook rejected", fields...)
	return verr
}
