// Package signature authenticates inbound Benchling app webhooks.
//
// Every delivery is checked against the asymmetric webhook signing scheme:
// the sender signs the string "{message-id}.{timestamp}.{body}" with an
// EC private key and sends the ASN.1 DER signature, base64 encoded, in the
// webhook-signature header. The matching public keys are published per app
// as a JWK set, fetched through a KeyProvider.
//
// # Verification pipeline
//
// Verify runs a fixed sequence with no retries and a single terminal
// outcome per delivery:
//
//  1. Header names are lower-cased and empty values dropped.
//  2. The caller address is checked against the configured source allowlist.
//  3. The webhook-id, webhook-timestamp and webhook-signature headers must
//     be present.
//  4. The timestamp must be numeric Unix seconds within five minutes of
//     the current time, in either direction.
//  5. Signature candidates are extracted from the signature header; only
//     asymmetric scheme versions are kept.
//  6. The body is base64 decoded and parsed as JSON, and the app id is
//     read from appDefinition.id.
//  7. The app's JWK set is fetched, exactly once, and every EC key is
//     tried against every candidate until one verifies.
//
// The first failing step rejects the delivery with a VerificationError
// carrying a stable Reason code. Callers are expected to collapse all
// rejections into one uniform response so the outcome reveals nothing
// about which check failed.
//
// # Usage
//
//	verifier := signature.NewVerifier(&signature.Config{
//		AllowedSources: []string{"203.0.113.7"},
//	}, jwksClient, logger)
//
//	result, err := verifier.Verify(ctx, &signature.Request{
//		Headers:  headers,
//		Body:     base64Body,
//		SourceIP: callerAddr,
//	})
//	if err != nil {
//		// signature.ReasonOf(err) for logging, respond 401
//	}
//	// result.Payload is the parsed, unmodified JSON body
//
// # Security considerations
//
// Signature comparison uses ECDSA over SHA-256; there is no shared-secret
// fallback, and symmetric scheme versions in the signature header are
// ignored rather than evaluated. Key fetches are never cached or retried
// here, so a revoked key stops verifying on the next delivery. The replay
// window is fixed at five minutes and is not configurable.
package signature
