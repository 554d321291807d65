package entities

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultAudioFilename is used when a transcribe request names no file
const DefaultAudioFilename = "audio.wav"

var supportedAudioExtensions = map[string]bool{
	"mp3":  true,
	"mpeg": true,
	"wav":  true,
	"m4a":  true,
	"webm": true,
	"ogg":  true,
	"mp4":  true,
	"flac": true,
	"aac":  true,
}

// IsSupportedAudioFilename reports whether the file extension is one the
// transcription service accepts
func IsSupportedAudioFilename(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return supportedAudioExtensions[ext]
}

// RecordingFilename names a browser recording made at t
func RecordingFilename(t time.Time) string {
	return fmt.Sprintf("recording_%d.webm", t.Unix())
}

// ArtifactFilename returns the last segment of an artifact path
func ArtifactFilename(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
