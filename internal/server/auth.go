package server

// authorize checks the session token of a call. Without a configured secret every call is
// accepted.
func (h *Handler) authorize(service, action string, p params) error {
	if h.cfg.Secret == "" || (service == "session" && action == "start") {
		return nil
	}
	ks := p.str("ks")
	if ks == "" {
		return apiException("MISSING_KS", "Missing KS, session not established")
	}
	valid, expired := h.state.validSession(ks)
	switch {
	case expired:
		return apiException("EXPIRED_KS", "KS has expired")
	case !valid:
		return apiException("INVALID_KS", "Invalid KS")
	}
	return nil
}
