// Package assets embeds the built-in kind registry and template bundles.
//
// The embedded tree is a source in the layout the engine loads from any
// fs.FS: kinds.yaml at the root and one directory per bundle under
// templates/, split by write mode.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed all:builtin
var builtin embed.FS

// Builtin returns the built-in source.
func Builtin() fs.FS {
	sub, err := fs.Sub(builtin, "builtin")
	if err != nil {
		panic("assets: " + err.Error())
	}
	return sub
}
