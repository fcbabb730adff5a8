package main

import (
	"runtime/debug"

	"github.com/satchel-app/satchel/cmd"
)

// version is injected on release builds via -ldflags "-X main.version=...".
// Dev builds fall back to whatever the module build info can tell us.
var version = "dev"

func resolveVersion() string {
	if version != "" && version != "dev" {
		return version
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	// `go install module@vX.Y.Z` stamps the module version.
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}

	rev, dirty := "", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return version
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if dirty {
		return "devel+" + rev + "+dirty"
	}
	return "devel+" + rev
}

func main() {
	cmd.SetVersion(resolveVersion())
	cmd.Execute()
}
