package processor

import (
	"fmt"
	"unicode/utf8"

	"montage/internal/compiler"
)

// ArtifactKey is the object key a finished render is uploaded under.
func ArtifactKey(jobID string) string {
	return fmt.Sprintf("renders/%s/%s", jobID, compiler.OutputFilename)
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
