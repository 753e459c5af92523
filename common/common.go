package common

// Version is set at build time via -ldflags.
var Version = "dev"

const PackageName = "github.com/ruteri/envelope-registry"
