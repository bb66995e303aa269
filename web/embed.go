// Package web provides embedded static assets for the bitmap viewer.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var staticFS embed.FS

// StaticFS returns a filesystem rooted at the static/ directory.
// This strips the "static" prefix so files are served from root.
func StaticFS() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
