package common

import "fmt"

// NAME is the name of the application, it drives default paths and the
// prefix for environment variables.
const NAME = "romcellar"

// These are overridden at build time via ldflags.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

// AppVersionInfo describes the built binary.
type AppVersionInfo struct {
	Name    string
	Version string
	Commit  string
	Date    string
	Summary string
}

// AppVersion is the rendered version information for the running binary.
var AppVersion AppVersionInfo

func init() {
	summary := version
	if commit != "" {
		summary = fmt.Sprintf("%s (%s)", version, commit)
	}

	AppVersion = AppVersionInfo{
		Name:    NAME,
		Version: version,
		Commit:  commit,
		Date:    date,
		Summary: summary,
	}
}
