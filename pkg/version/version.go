// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package version

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Version is set at link time with -ldflags "-X".
var Version string

const Name = "statgraph"

type BuildInfo struct {
	GoVersion string `json:"go_version" yaml:"go_version"`
	Commit    string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Time      string `json:"time,omitempty" yaml:"time,omitempty"`
	Modified  string `json:"modified,omitempty" yaml:"modified,omitempty"`
}

func ReadBuildInfo() *BuildInfo {
	info := &BuildInfo{}
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = buildInfo.GoVersion
	for _, s := range buildInfo.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
		case "vcs.time":
			info.Time = s.Value
		case "vcs.modified":
			info.Modified = s.Value
		}
	}
	return info
}

// TreeState turns the vcs.modified setting into "dirty" or "clean".
func (info BuildInfo) TreeState() string {
	switch info.Modified {
	case "true":
		return "dirty"
	case "":
		return ""
	}
	return "clean"
}

func (info BuildInfo) Print(w io.Writer) {
	v := Version
	if v == "" {
		v = "devel"
	}
	fmt.Fprintf(w, "%s %s\n", Name, v)
	if info.GoVersion != "" {
		fmt.Fprintf(w, "GoVersion: %s\n", info.GoVersion)
	}
	if info.Time != "" {
		fmt.Fprintf(w, "Date: %s\n", info.Time)
	}
	if info.Commit != "" {
		fmt.Fprintf(w, "GitCommit: %s\n", info.Commit)
	}
	if state := info.TreeState(); state != "" {
		fmt.Fprintf(w, "GitTreeState: %s\n", state)
	}
}
