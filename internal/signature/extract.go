package signature

import (
	"encoding/base64"
	"strings"
)

// asymmetricMarker tags signature scheme versions that use EC keys, as in
// "v1a". Versions without it are symmetric schemes and are skipped.
const asymmetricMarker = "a"

// extractSignatures parses the webhook-signature header into decoded
// signature candidates. The header holds space-delimited entries of the
// form "version,signature"; each entry is split on its first comma only,
// so additional commas stay part of the signature text. Entries with an
// unsupported version, an empty signature, or signature text that is not
// valid base64 are dropped silently. The result preserves header order
// and may be empty.
func extractSignatures(header string) [][]byte {
	var candidates [][]byte
	for _, entry := range strings.Fields(header) {
		version, encoded, found := strings.Cut(entry, ",")
		if !found || encoded == "" {
			continue
		}
		if !strings.Contains(version, asymmetricMarker) {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		candidates = append(candidates, decoded)
	}
	return candidates
}
