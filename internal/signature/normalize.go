package signature

import "strings"

// Webhook header names, lower case. Incoming header maps are normalized
// before lookup so any casing on the wire is accepted.
const (
	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"
)

// requiredHeaders is the presence-check order. The first absent header
// names the rejection.
var requiredHeaders = []string{HeaderID, HeaderTimestamp, HeaderSignature}

// NormalizeHeaders lower-cases header names and drops entries with empty
// values. The input map is left untouched. When two names collide after
// lower-casing, the later entry in map iteration wins; real requests do
// not carry such duplicates.
func NormalizeHeaders(headers map[string]string) map[string]string {
	normalized := make(map[string]string, len(headers))
	for name, value := range headers {
		if value == "" {
			continue
		}
		normalized[strings.ToLower(name)] = value
	}
	return normalized
}
