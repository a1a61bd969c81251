// Package compileinfo reports how a fracback tool was built, so that the
// derivatives it writes can be traced back to a commit.
package compileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
)

type CompileInfo struct {
	Tool       string
	Module     string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	if c.Commit == "" {
		return fmt.Sprintf("%s (%s %s) was built with %s without VCS information.", c.Tool, c.Module, c.Version, c.GoVersion)
	}

	dirty := ""
	if c.Modified {
		dirty = " The working tree had uncommitted changes."
	}

	return fmt.Sprintf("%s (%s %s) was built with %s at commit %s (%s).%s", c.Tool, c.Module, c.Version, c.GoVersion, c.Commit, c.CommitTime, dirty)
}

func Get() CompileInfo {
	out := CompileInfo{
		Tool: filepath.Base(os.Args[0]),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = bi.GoVersion
	out.Module = bi.Main.Path
	out.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Get())
}
