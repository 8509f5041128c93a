// Package web holds the single-page bundle served by the HTTP layer.
package web

import "embed"

//go:embed index.html config-required.html app.js app.css
var Files embed.FS
