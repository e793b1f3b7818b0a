/*
Package httpserver serves the event sign-in form over HTTP.

Endpoints:

	GET  /         the empty sign-in form
	POST /         submit the form (application/x-www-form-urlencoded)
	GET  /livez    liveness probe
	GET  /readyz   readiness probe, 503 while draining
	GET  /drain    mark the server not ready
	GET  /undrain  mark the server ready again
	     /debug/*  pprof, only with EnablePprof

Both form endpoints answer text/html. Rejected submissions (a missing field or
an unknown secret) are ordinary 200 responses carrying the form with an inline
message; only storage or key-list failures produce a 500.

Submitted fields:

	secret, major, name, email                  required, non-blank
	add_to_ccdc, add_to_cdt, add_to_sig_sec     optional checkboxes, true when present

The caller's IP is taken from the connection. When TrustProxy is set, the
X-Forwarded-For and X-Real-IP headers are honored first, which is only safe
behind a proxy that overwrites them.
*/
package httpserver
