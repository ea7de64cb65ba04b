package evidence

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// File is one uploaded evidence file as the UI hands it over.
type File struct {
	Name     string
	MIMEType string
	Data     []byte
}

// extensions the stdlib mime table is missing or gets wrong on some platforms.
var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".xls":  "application/vnd.ms-excel",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
}

// DetectType guesses a MIME type from the file name, then from the content.
func DetectType(name string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// FromPath reads a file from disk. An empty mimeType is detected.
func FromPath(path, mimeType string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read evidence file: %w", err)
	}
	name := filepath.Base(path)
	if mimeType == "" {
		mimeType = DetectType(name, data)
	}
	return File{Name: name, MIMEType: mimeType, Data: data}, nil
}
