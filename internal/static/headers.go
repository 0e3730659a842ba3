package static

import (
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path/filepath"
	"time"
)

// etagFor builds a weak validator from the file's modification time and
// size, the same shape browsers saw from the original controller.
func etagFor(info fs.FileInfo) string {
	return fmt.Sprintf(`"%d-%d"`, info.ModTime().Unix(), info.Size())
}

// contentTypeFor maps a file name to its MIME type by extension,
// falling back to a generic byte stream
func contentTypeFor(name string) string {
	if ctype := mime.TypeByExtension(filepath.Ext(name)); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}

// setFileHeaders writes the validator and cache headers for a resolved
// file. ServeContent consumes the ETag when evaluating conditional
// requests, so it must be set before the handoff.
func setFileHeaders(w http.ResponseWriter, info fs.FileInfo, maxAge int) {
	w.Header().Set("Etag", etagFor(info))
	w.Header().Set("Content-Type", contentTypeFor(info.Name()))
	w.Header().Set("Cache-Control", fmt.Sprintf("max-age=%d, public", maxAge))
	w.Header().Set("Expires", time.Now().Add(time.Duration(maxAge)*time.Second).UTC().Format(http.TimeFormat))
}
