package constants

import (
	"path/filepath"
	"strings"
)

// FileKind is the coarse document family used for routing.
type FileKind string

const (
	KindPDF   FileKind = "pdf"
	KindXLSX  FileKind = "xlsx"
	KindXLS   FileKind = "xls"
	KindCSV   FileKind = "csv"
	KindImage FileKind = "image"
	KindOther FileKind = "other"
)

// IsTabular reports whether the kind is decoded as a cell grid.
func (k FileKind) IsTabular() bool {
	return k == KindXLSX || k == KindXLS || k == KindCSV
}

// IsScan reports whether the kind goes through OCR.
func (k FileKind) IsScan() bool {
	return k == KindPDF || k == KindImage
}

// AllowedExtensions holds the file extensions accepted for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"xlsx": {},
	"xlsm": {},
	"xls":  {},
	"csv":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"heic": {},
	"heif": {},
}

var mimeKinds = map[string]FileKind{
	"application/pdf":          KindPDF,
	"application/vnd.ms-excel": KindXLS,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": KindXLSX,
	"text/csv":   KindCSV,
	"image/png":  KindImage,
	"image/jpeg": KindImage,
	"image/tiff": KindImage,
	"image/heic": KindImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsHEICExt reports whether ext is a HEIC/HEIF image.
func IsHEICExt(ext string) bool {
	ext = NormalizeExt(ext)
	return ext == "heic" || ext == "heif"
}

// KindFromExt maps a normalized extension to its kind.
func KindFromExt(ext string) FileKind {
	switch NormalizeExt(ext) {
	case "pdf":
		return KindPDF
	case "xlsx", "xlsm":
		return KindXLSX
	case "xls":
		return KindXLS
	case "csv":
		return KindCSV
	case "jpg", "jpeg", "png", "tif", "tiff", "heic", "heif":
		return KindImage
	default:
		return KindOther
	}
}

// KindFromFilename resolves the kind by extension first, then by declared MIME type.
func KindFromFilename(filename, mime string) FileKind {
	if k := KindFromExt(filepath.Ext(filename)); k != KindOther {
		return k
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if k, ok := mimeKinds[mime]; ok {
		return k
	}
	if strings.HasPrefix(mime, "image/") {
		return KindImage
	}
	return KindOther
}

// MIMEForExt returns the canonical MIME type for an extension, or application/octet-stream.
func MIMEForExt(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return "application/pdf"
	case "xlsx", "xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "xls":
		return "application/vnd.ms-excel"
	case "csv":
		return "text/csv"
	case "png":
		return "image/png"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "heic", "heif":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
