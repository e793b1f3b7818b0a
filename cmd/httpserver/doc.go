// Package main (cmd/httpserver) runs the event sign-in server.
//
// The server renders the sign-in form on GET /, accepts submissions on POST /,
// checks the submitted secret against the key list and appends the attendee to
// the log of that secret in every configured storage location.
//
// The key list is re-read on every submission, so secrets can be added or
// revoked with cmd/admin while the server is running.
//
// Storage locations are given as URIs and may be repeated; a submission is
// accepted when at least one location stored it:
//
//	file://./data                                  <dir>/<secret>.json
//	s3://AK:SK@bucket/prefix?region=us-east-1      <prefix>/<secret>.json
//	vault://127.0.0.1:8200/secret/signin?token=T   KV v2 <mount>/data/<path>/<secret>
//
// The server implements graceful shutdown on SIGINT/SIGTERM and exposes
// Prometheus metrics on a separate listener.
//
// Example usage:
//
//	signin-server --listen-addr=0.0.0.0:8080 \
//	    --keys-file=./keys.json \
//	    --storage=file://./data \
//	    --storage=vault://127.0.0.1:8200/secret/signin?token=root\&tls=false
package main
