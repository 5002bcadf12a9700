package service

// SplitChunks windows text into substrings of at most window characters,
// advancing by window-overlap so consecutive chunks share exactly overlap
// characters. Window and overlap count runes, not bytes, so multi-byte
// text never splits mid-rune. The final chunk may be shorter. Pure
// function of its input; the indexer applies the per-page cap separately.
func SplitChunks(text string, window, overlap int) []string {
	if text == "" || window <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= window {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= window {
		return []string{text}
	}

	stride := window - overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + window
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
