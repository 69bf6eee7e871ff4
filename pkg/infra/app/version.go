package app

import (
	"github.com/kart-io/version"
)

// GetVersion returns the git version the binary was built from, as reported
// by --version and attached to every log line as service.version.
func GetVersion() string {
	return version.Get().GitVersion
}
