// Package document implements the document processor (§4.5): splitting
// text into chunks, requesting embeddings in batch, and atomically
// installing the resulting chunk set into a library.
package document

import "unicode"

// Split breaks text into chunks of at most chunkSize runes, preferring a
// whitespace break within the last 20% of the window and hard-breaking
// otherwise. Empty text yields zero chunks (§4.5).
func Split(text string, chunkSize int) []string {
	if text == "" || chunkSize <= 0 {
		return nil
	}

	runes := []rune(text)
	var chunks []string
	softZone := chunkSize / 5 // last 20% of the window

	start := 0
	for start < len(runes) {
		end := start + chunkSize
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		breakAt := end
		for i := end; i > end-softZone && i > start; i-- {
			if unicode.IsSpace(runes[i-1]) {
				breakAt = i - 1
				break
			}
		}
		if breakAt <= start {
			breakAt = end
		}

		chunk := runes[start:breakAt]
		chunks = append(chunks, string(chunk))

		next := breakAt
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next == start {
			next = end
		}
		start = next
	}

	return chunks
}
