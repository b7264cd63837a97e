package data

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type ContentType string

const (
	ContentTypeDirectory         ContentType = "application/x-directory"
	ContentTypeTextPlain         ContentType = "text/plain"
	ContentTypeTextHTML          ContentType = "text/html"
	ContentTypeTextCSS           ContentType = "text/css"
	ContentTypeTextJavaScript    ContentType = "text/javascript"
	ContentTypeTextCSV           ContentType = "text/csv"
	ContentTypeImageJPEG         ContentType = "image/jpeg"
	ContentTypeImagePNG          ContentType = "image/png"
	ContentTypeImageGIF          ContentType = "image/gif"
	ContentTypeImageWebP         ContentType = "image/webp"
	ContentTypeImageSVGXML       ContentType = "image/svg+xml"
	ContentTypeAudioMpeg         ContentType = "audio/mpeg"
	ContentTypeAudioWAV          ContentType = "audio/wav"
	ContentTypeAudioOGG          ContentType = "audio/ogg"
	ContentTypeAudioWebM         ContentType = "audio/webm"
	ContentTypeVideoMP4          ContentType = "video/mp4"
	ContentTypeVideoWebM         ContentType = "video/webm"
	ContentTypeVideoQuickTime    ContentType = "video/quicktime"
	ContentTypeApplicationPDF    ContentType = "application/pdf"
	ContentTypeApplicationZip    ContentType = "application/zip"
	ContentTypeApplicationGZip   ContentType = "application/gzip"
	ContentTypeApplicationXTar   ContentType = "application/x-tar"
	ContentTypeApplicationJson   ContentType = "application/json"
	ContentTypeApplicationXML    ContentType = "application/xml"
	ContentTypeApplicationStream ContentType = "application/octet-stream"
	ContentTypeApplicationCustom ContentType = "application/x-custom"
)

// ExtensionToMIME maps file extensions to MIME types
var ExtensionToMIME = map[string]ContentType{
	".txt":  ContentTypeTextPlain,
	".html": ContentTypeTextHTML,
	".css":  ContentTypeTextCSS,
	".js":   ContentTypeTextJavaScript,
	".csv":  ContentTypeTextCSV,
	".jpg":  ContentTypeImageJPEG,
	".jpeg": ContentTypeImageJPEG,
	".png":  ContentTypeImagePNG,
	".gif":  ContentTypeImageGIF,
	".webp": ContentTypeImageWebP,
	".svg":  ContentTypeImageSVGXML,
	".mp3":  ContentTypeAudioMpeg,
	".wav":  ContentTypeAudioWAV,
	".ogg":  ContentTypeAudioOGG,
	".mp4":  ContentTypeVideoMP4,
	".webm": ContentTypeVideoWebM,
	".pdf":  ContentTypeApplicationPDF,
	".zip":  ContentTypeApplicationZip,
	".gz":   ContentTypeApplicationGZip,
	".tar":  ContentTypeApplicationXTar,
	".json": ContentTypeApplicationJson,
	".xml":  ContentTypeApplicationXML,
}

// SniffLength is the number of leading bytes DetectContentType inspects.
const SniffLength = 3072

// ContentTypeByName maps the extension of name to a MIME type.
func ContentTypeByName(name string) (ContentType, bool) {
	ext := strings.ToLower(path.Ext(name))
	ct, ok := ExtensionToMIME[ext]
	return ct, ok
}

// DetectContentType prefers the extension of name and falls back to
// sniffing head, the first bytes of the content.
func DetectContentType(name string, head []byte) ContentType {
	if ct, ok := ContentTypeByName(name); ok {
		return ct
	}
	if len(head) == 0 {
		return ContentTypeApplicationStream
	}
	if len(head) > SniffLength {
		head = head[:SniffLength]
	}

	mime := mimetype.Detect(head).String()
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return ContentType(mime)
}
