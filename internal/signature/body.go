package signature

import (
	"encoding/base64"
	"encoding/json"
)

// decodeBody turns the base64 request body into raw bytes.
func decodeBody(body string) ([]byte, *VerificationError) {
	if body == "" {
		return nil, newError(ReasonMissingBody)
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, newErrorf(ReasonInvalidBodyEncoding, "body is not valid base64: %v", err)
	}
	return raw, nil
}

// parseBody decodes the raw body as JSON. The returned value is handed
// back to the caller unmodified on success.
func parseBody(raw []byte) (interface{}, *VerificationError) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, newErrorf(ReasonInvalidJSON, "body is not valid JSON: %v", err)
	}
	return payload, nil
}

// appIDFrom reads the app id from appDefinition.id. Bodies that are not
// JSON objects, or that carry anything but a non-empty string there, have
// no app id. No other part of the body is inspected.
func appIDFrom(payload interface{}) (string, *VerificationError) {
	object, ok := payload.(map[string]interface{})
	if !ok {
		return "", newError(ReasonMissingAppID)
	}
	definition, ok := object["appDefinition"].(map[string]interface{})
	if !ok {
		return "", newError(ReasonMissingAppID)
	}
	id, ok := definition["id"].(string)
	if !ok || id == "" {
		return "", newError(ReasonMissingAppID)
	}
	return id, nil
}
