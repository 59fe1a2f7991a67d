package main

import (
	"runtime/debug"
	"strings"
)

// Build-time variables injected via ldflags
//
//nolint:gochecknoglobals // These are build-time injected variables
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// BuildInfo resolves version details from ldflags, falling back to the Go build metadata
type BuildInfo struct {
	settings map[string]string
	module   string
}

// NewBuildInfo reads the embedded build metadata once
func NewBuildInfo() *BuildInfo {
	bi := &BuildInfo{settings: map[string]string{}}
	if info, ok := debug.ReadBuildInfo(); ok {
		bi.module = info.Main.Version
		for _, s := range info.Settings {
			bi.settings[s.Key] = s.Value
		}
	}
	return bi
}

// Version returns the release version, the module version, or "dev"
func (b *BuildInfo) Version() string {
	if usable(Version) && Version != "dev" {
		return Version
	}
	if usable(b.module) && b.module != "(devel)" {
		return b.module
	}
	return "dev"
}

// Commit returns the short commit hash the binary was built from
func (b *BuildInfo) Commit() string {
	if usable(Commit) && Commit != "none" {
		return Commit
	}
	if rev := b.settings["vcs.revision"]; rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		return rev
	}
	return "none"
}

// BuildDate returns the build or commit time
func (b *BuildInfo) BuildDate() string {
	if usable(BuildDate) && BuildDate != "unknown" {
		return BuildDate
	}
	if ts := b.settings["vcs.time"]; ts != "" {
		return ts
	}
	return "unknown"
}

// IsModified reports whether the working tree had uncommitted changes at build time
func (b *BuildInfo) IsModified() bool {
	return b.settings["vcs.modified"] == "true"
}

// usable rejects empty values and unrendered release templates
func usable(s string) bool {
	return s != "" && !isTemplateString(s)
}

func isTemplateString(s string) bool {
	return strings.Contains(s, "{{") && strings.Contains(s, "}}")
}
