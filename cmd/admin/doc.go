// Package main (cmd/admin) is the operator tool for the event sign-in server.
//
// Commands:
//
//	keys list                 print the accepted secrets
//	keys add <secret>         add a secret to the key list
//	keys remove <secret>      revoke a secret
//	keys generate             add a new random secret and print it
//	attendance count          print how many attendees signed in with a secret
//	server status             print the readiness of a running server
//	server drain | undrain    take a running server out of, or back into, rotation
//
// The key list is the same JSON file the server reads; changes take effect on
// the next submission without a restart.
//
// Example workflow:
//
//	admin keys generate --keys-file=./keys.json
//	admin attendance count --secret=3FA9C01B --storage=file://./data
package main
