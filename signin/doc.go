// Package signin implements the event sign-in form.
//
// A Handler renders the sign-in page and processes submissions: it checks
// that the required fields (secret, major, name, email) are present, reloads
// the allow-list of secret keys, and appends an attendance record to the log
// of the submitted secret.
//
// # Templates
//
// Pages are rendered with html/template, so every value is HTML-escaped. A
// custom template can replace the embedded default; it receives:
//
//	.Response     message shown above the form ("" on a fresh page)
//	.Secret       submitted secret key
//	.Major        submitted major
//	.Name         submitted name
//	.Email        submitted email
//	.CCDCChecked  true if add_to_ccdc was submitted
//	.CDTChecked   true if add_to_cdt was submitted
//	.SecChecked   true if add_to_sig_sec was submitted
package signin
