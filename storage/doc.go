// Package storage persists per-secret attendance logs with pluggable backends.
//
// Every backend keeps one document per secret key, in the same format:
//
//	{"attendees": [record, ...]}
//
// Appends are read-modify-write of that document, serialized per secret so
// that concurrent sign-ins under the same key never overwrite each other.
//
// # Storage URI Format
//
// Backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/signin/ or file://./relative/path
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket-name/prefix/?region=us-west-2&endpoint=minio:9000&path_style=true
//   - vault://vault.example.com:8200/secret/signin?token=...&tls=false
//
// # File Storage
//
// The log for secret S is the file <dir>/S.json. Writers take an in-process
// lock and an flock(2) lock on <dir>/S.json.lock, write a temporary file and
// rename it over the log, so readers never observe a partial document.
//
// # S3 Storage
//
// The log for secret S is the object <prefix>/S.json. Appends are serialized
// inside the process only; two servers writing the same bucket can still race.
//
// # Vault Storage
//
// The log for secret S is the KV v2 entry <mount>/data/<path>/S. Appends use
// check-and-set on the version that was read and retry when another writer won.
//
// # Multi-Store
//
// MultiStore appends to every available backend and succeeds if at least one
// of them accepted the record. Fetch returns the log from the first backend
// that has one.
package storage
