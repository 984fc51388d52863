package chunker

import "strings"

// separators tried in order by the recursive character splitter: paragraph
// breaks first, then line breaks, sentence ends, words, and finally single
// characters as a last resort.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// splitRecursiveCharacter splits text on the coarsest separator that
// produces pieces small enough, recursing into oversized pieces with the
// finer separators, then merges adjacent pieces back into chunks of at most
// size characters with roughly overlap characters shared between neighbors.
func splitRecursiveCharacter(text string, size, overlap int) []string {
	pieces := splitWithSeparators(text, separators, size)
	return mergePieces(pieces, size, overlap)
}

// splitWithSeparators recursively breaks text into pieces no longer than
// size runes, preferring the earliest (coarsest) separator present.
func splitWithSeparators(text string, seps []string, size int) []string {
	if len([]rune(text)) <= size {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sep := seps[len(seps)-1]
	rest := seps
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var splits []string
	if sep == "" {
		// Character-level fallback for text with no usable separator.
		return splitNaive(text, size)
	}
	parts := strings.Split(text, sep)
	for i, p := range parts {
		// Keep the separator attached so joins reconstruct the original text.
		if i < len(parts)-1 {
			p += sep
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		if len([]rune(p)) > size {
			splits = append(splits, splitWithSeparators(p, rest, size)...)
		} else {
			splits = append(splits, p)
		}
	}
	return splits
}

// mergePieces greedily packs pieces into chunks of at most size runes.
// When a chunk closes, the next one starts with trailing pieces totaling at
// most overlap runes, preserving context across the boundary.
func mergePieces(pieces []string, size, overlap int) []string {
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(current, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Seed the next chunk with the overlap tail.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			n := len([]rune(current[i]))
			if tailLen+n > overlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += n
		}
		current = tail
		currentLen = tailLen
	}

	for _, p := range pieces {
		n := len([]rune(p))
		if currentLen+n > size && currentLen > 0 {
			flush()
			// A large overlap can leave a tail that would push the next
			// chunk over size; drop leading tail pieces until p fits.
			for currentLen > 0 && currentLen+n > size {
				currentLen -= len([]rune(current[0]))
				current = current[1:]
			}
		}
		current = append(current, p)
		currentLen += n
	}
	if currentLen > 0 {
		chunk := strings.TrimSpace(strings.Join(current, ""))
		// The overlap tail alone is already part of the previous chunk.
		if chunk != "" && (len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1], chunk)) {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
