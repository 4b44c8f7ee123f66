package chunker

import "strings"

const DefaultSize = 500

// Split cuts text into consecutive, non-overlapping windows of size runes.
// Concatenating the result reproduces text exactly. A non-positive size
// falls back to DefaultSize.
func Split(text string, size int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// AllBlank reports whether no chunk carries anything but whitespace.
func AllBlank(chunks []string) bool {
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
