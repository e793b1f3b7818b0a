// Package interfaces defines the core types and contracts of the sign-in
// service, separating interface definitions from implementations.
//
// # Attendance Types
//
// AttendanceRecord is one attendee's sign-in submission. AttendanceLog is the
// per-secret document accumulating those records, persisted as:
//
//	{"attendees": [record, ...]}
//
// SignInForm carries the raw values a browser submitted, including which
// mailing-list checkboxes were present.
//
// # Storage Interfaces
//
// AttendanceStore: appends records to, and reads back, the attendance log of a
// secret key. Implementations exist for the local file system, S3 and Vault.
//
// AttendanceStoreFactory: creates stores from location URIs and aggregates
// several of them into a redundant multi-store.
//
// # Key Interfaces
//
// KeySource: yields the current allow-list of secret keys. The list is
// reloaded on demand rather than cached for the life of the process.
package interfaces
