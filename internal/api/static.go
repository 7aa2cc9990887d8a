package api

import (
	"io/fs"
	"net/http"
)

var staticFiles = func() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}()

var staticHandler = http.FileServer(http.FS(staticFiles))

// staticFile serves the browser UI: index.html at / plus its script and
// stylesheet.
func (s *Server) staticFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	staticHandler.ServeHTTP(w, r)
}
