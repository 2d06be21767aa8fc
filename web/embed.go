// Package web embeds the console's page templates and static assets.
package web

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed static templates
var content embed.FS

// StaticFS is the asset tree served under /static/.
func StaticFS() fs.FS { return sub("static") }

// TemplatesFS holds layout.html and the page templates.
func TemplatesFS() fs.FS { return sub("templates") }

func sub(dir string) fs.FS {
	s, err := fs.Sub(content, dir)
	if err != nil {
		panic(fmt.Sprintf("embedded %s directory: %v", dir, err))
	}
	return s
}
