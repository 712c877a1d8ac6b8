// Package imaging prepares photographs for evaluation.
//
// Downscaling and recompression happen upstream in the export pipeline; this
// package only carries already-sized JPEGs across the base64 boundary.
package imaging

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// Anthropic rejects request bodies past ~32MB; a 20MB file is far beyond any
// correctly exported evaluation JPEG, so treat it as a caller mistake.
const maxFileBytes = 20 << 20

// Encoder turns a photo source reference into a base64 payload for the wire.
type Encoder interface {
	// Encode returns the base64 data and its media type for one source.
	Encode(ctx context.Context, source string) (data string, mediaType string, err error)
}

// FileEncoder reads JPEG files from disk.
type FileEncoder struct {
	// MaxBytes overrides the file size bound; 0 means the default.
	MaxBytes int64
}

// Encode reads the file at source and returns its base64-encoded bytes.
func (e *FileEncoder) Encode(ctx context.Context, source string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	if !isJPEGPath(source) {
		return "", "", fmt.Errorf("unsupported image type for %q: only JPEG is supported", source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", "", fmt.Errorf("stat image: %w", err)
	}
	max := e.MaxBytes
	if max <= 0 {
		max = maxFileBytes
	}
	if info.Size() > max {
		return "", "", fmt.Errorf("image %q is %d bytes, over the %d byte limit", source, info.Size(), max)
	}

	raw, err := os.ReadFile(source)
	if err != nil {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	if len(raw) < 2 || raw[0] != 0xFF || raw[1] != 0xD8 {
		return "", "", fmt.Errorf("image %q is not a JPEG (missing SOI marker)", source)
	}

	return base64.StdEncoding.EncodeToString(raw), "image/jpeg", nil
}

func isJPEGPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg")
}
