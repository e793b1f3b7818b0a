package common

// Version is set at build time with -ldflags "-X github.com/ruteri/event-signin/common.Version=..."
var Version = "dev"

// PackageName prefixes exported metrics.
const PackageName = "signin"
