package authorization

// Principal is the authenticated identity attached to a request. It carries
// no privilege data; privileges are resolved live against the identity
// backend using the principal's own credentials.
type Principal struct {
	// Username is the authenticated subject, echoed into check results and
	// audit records for correlation.
	Username string
	// Token is the caller's raw bearer credential, forwarded verbatim to the
	// identity backend so backend-side authorization is preserved end-to-end.
	Token string
}

// Anonymous reports whether the principal is absent (unauthenticated route).
func (p Principal) Anonymous() bool {
	return p.Username == "" && p.Token == ""
}
