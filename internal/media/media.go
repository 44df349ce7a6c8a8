package media

import (
	"path/filepath"
	"strings"
)

// Kind distinguishes the two publishable media types.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// KindOf classifies a filename by extension. The second return value is false
// for unrecognized extensions.
func KindOf(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if imageExtensions[ext] {
		return KindImage, true
	}
	if videoExtensions[ext] {
		return KindVideo, true
	}
	return KindImage, false
}

// Item is a local media file selected for one publish cycle.
type Item struct {
	Path        string
	Kind        Kind
	SizeBytes   int64
	CaptionSeed string
}

// Limits bounds the acceptable file size per media kind.
type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

// Max returns the size cap for the given kind.
func (l Limits) Max(kind Kind) int64 {
	if kind == KindVideo {
		return l.MaxVideoBytes
	}
	return l.MaxImageBytes
}
