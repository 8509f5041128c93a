package handler

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"lumina/internal/transport/http/response"
)

// SPAHandler serves the embedded bundle. Unknown paths get index.html, or
// the configuration screen when the store is not configured.
type SPAHandler struct {
	configured bool
	files      fs.FS
	fileServer http.Handler
	page       []byte
}

func NewSPAHandler(files fs.FS, configured bool) (*SPAHandler, error) {
	name := "index.html"
	if !configured {
		name = "config-required.html"
	}
	page, err := fs.ReadFile(files, name)
	if err != nil {
		return nil, err
	}
	return &SPAHandler{
		configured: configured,
		files:      files,
		fileServer: http.FileServer(http.FS(files)),
		page:       page,
	}, nil
}

func (h *SPAHandler) Serve(c *gin.Context) {
	p := c.Request.URL.Path
	if strings.HasPrefix(p, "/api/") {
		if !h.configured {
			response.Error(c, http.StatusServiceUnavailable, response.CodeConfigurationRequired, "configuration required")
			return
		}
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "not found")
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean(p), "/")
	if name != "" && !strings.HasSuffix(name, ".html") {
		if info, err := fs.Stat(h.files, name); err == nil && !info.IsDir() {
			h.fileServer.ServeHTTP(c.Writer, c.Request)
			return
		}
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.page)
}
