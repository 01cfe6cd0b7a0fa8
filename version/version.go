package version

import (
	"fmt"
	"strings"
)

const (
	appMajor uint = 0
	appMinor uint = 2
	appPatch uint = 0
)

// appBuild can be overridden at link time with
// '-ldflags "-X github.com/gamestatenet/gamestated/version.appBuild=foo"'.
// It may only contain alphanumerics and dashes.
var appBuild string

// Version returns the application version string, including build metadata
// when set.
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if build := sanitizeBuild(appBuild); build != "" {
		version = fmt.Sprintf("%s-%s", version, build)
	}
	return version
}

// sanitizeBuild returns the build string, or an empty string if it contains
// characters that are not allowed in build metadata.
func sanitizeBuild(build string) string {
	const valid = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-"
	for _, r := range build {
		if !strings.ContainsRune(valid, r) {
			return ""
		}
	}
	return build
}
