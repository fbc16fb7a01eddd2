// Package version holds the build information of the dgsync binary.
//
// The variables are injected at build time:
//
//	-ldflags "-X dgsync/internal/version.version=v1.2.0 -X dgsync/internal/version.commit=abc123 -X dgsync/internal/version.buildTime=2026-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
	"time"
)

//nolint:gochecknoglobals // Set via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is printed at the top of the full version output.
const ApplicationName = "dgsync"

// Values reported when the build did not inject any.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info is the build information of the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the build information with defaults for missing values.
func Get() Info {
	return Info{
		Version:   withDefault(version, DefaultVersion),
		Commit:    withDefault(commit, DefaultCommit),
		BuildTime: withDefault(buildTime, DefaultBuildTime),
	}
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// String renders the full multi-line form.
func (i Info) String() string {
	return fmt.Sprintf("%s\nVersion: %s\nCommit: %s\nBuilt: %s\n", ApplicationName, i.Version, i.Commit, i.BuildTime)
}

// Write prints the version only when short is set, the full form otherwise.
func (i Info) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, i.Version)
		return err
	}
	_, err := io.WriteString(w, i.String())
	return err
}

// IsDevelopment reports whether the binary was built without a version.
func (i Info) IsDevelopment() bool {
	return i.Version == DefaultVersion
}

// Built parses the build time. It returns the zero time when the value is
// missing or not RFC 3339.
func (i Info) Built() time.Time {
	t, err := time.Parse(time.RFC3339, i.BuildTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SetBuildVars overrides the injected values. Tests use it.
func SetBuildVars(ver, com, built string) {
	version, commit, buildTime = ver, com, built
}

// ResetBuildVars clears the injected values.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}
