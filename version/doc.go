// Package version carries the build version of gorest.
//
// Version, Commit and BuildTime are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/gorest/version.Version=1.2.0"
//
// Missing values are filled from the module build info when available.
package version
