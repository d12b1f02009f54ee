// Package ui embeds the bundled static web interface.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

//go:embed dist
var dist embed.FS

// Handler serves the bundled assets, falling back to index.html for any
// path that doesn't match a file so client-side routing works.
func Handler() gin.HandlerFunc {
	assets, err := fs.Sub(dist, "dist")
	if err != nil {
		panic("ui: embedded assets missing: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(assets))

	return func(c *gin.Context) {
		requested := strings.TrimPrefix(path.Clean(c.Request.URL.Path), "/")
		if requested == "" {
			requested = "index.html"
		}

		if _, err := fs.Stat(assets, requested); err != nil {
			c.Request.URL.Path = "/"
		}

		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}
