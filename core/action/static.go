package action

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/strandkit/strand/core/http"
)

// Static serves files from a directory. The route's remainder capture picks
// the relative path; requests resolving outside Root get 404 rather than a
// hint that the path exists.
type Static struct {
	Root  string `arg:"root"`
	Index string `arg:"index"`
	Param string `arg:"param"`
}

var contentTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".txt":  "text/plain",
	".xml":  "application/xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".wasm": "application/wasm",
}

// NewStatic is the registry factory for static file routes.
func NewStatic(args map[string]any) (any, error) {
	s := &Static{Index: "index.html", Param: "word"}
	if err := DecodeArgs(args, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Static) Get(ctx *Ctx) error {
	rel, _ := ctx.Params.String(s.Param)
	if rel == "" {
		rel = s.Index
	}

	full := filepath.Join(s.Root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(full, filepath.Clean(s.Root)+string(os.PathSeparator)) && full != filepath.Clean(s.Root) {
		return s.notFound(ctx)
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return s.notFound(ctx)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return s.notFound(ctx)
	}

	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(full))]; ok {
		ctx.Response.SetHeader("Content-Type", ct)
	} else {
		ctx.Response.SetHeader("Content-Type", "application/octet-stream")
	}
	_, err = ctx.Response.Write(data)
	return err
}

func (s *Static) notFound(ctx *Ctx) error {
	ctx.Response.SetStatus(http.StatusNotFound)
	_, err := ctx.Response.WriteString(http.StatusText(http.StatusNotFound))
	return err
}
