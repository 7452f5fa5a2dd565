package signature

// sourceAllowed reports whether the caller address may deliver webhooks.
// An empty allowlist admits everything, including requests with no source
// address at all. A non-empty allowlist requires an exact match, so an
// absent address is rejected.
func (v *Verifier) sourceAllowed(source string) bool {
	if len(v.config.AllowedSources) == 0 {
		return true
	}
	if source == "" {
		return false
	}
	for _, allowed := range v.config.AllowedSources {
		if source == allowed {
			return true
		}
	}
	return false
}
