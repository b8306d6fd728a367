package service

import (
	"unicode"
)

// ChunkConfig sizes the windows a document is split into. Sizes are in
// runes. Consecutive windows share up to Overlap runes of whole words, so a
// sentence cut by one boundary is intact in the neighbouring chunk.
// MaxChunks of zero means no limit.
type ChunkConfig struct {
	Window    int
	Overlap   int
	MaxChunks int
}

func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{Window: 1200, Overlap: 200}
}

// NewChunkConfig builds a config from the configured window and overlap.
// A non-positive window keeps the default; an overlap that does not fit in
// the window is cut to half of it.
func NewChunkConfig(window, overlap, maxChunks int) ChunkConfig {
	cfg := DefaultChunkConfig()
	if window > 0 {
		cfg.Window = window
	}
	if overlap >= 0 {
		cfg.Overlap = overlap
	}
	if cfg.Overlap >= cfg.Window {
		cfg.Overlap = cfg.Window / 2
	}
	cfg.MaxChunks = maxChunks
	return cfg
}

type wordSpan struct{ start, end int }

// wordSpans returns the rune offsets of each whitespace-delimited word.
func wordSpans(runes []rune) []wordSpan {
	var spans []wordSpan
	start := -1
	for i, r := range runes {
		switch {
		case unicode.IsSpace(r) && start >= 0:
			spans = append(spans, wordSpan{start, i})
			start = -1
		case !unicode.IsSpace(r) && start < 0:
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, wordSpan{start, len(runes)})
	}
	return spans
}

// chunkText packs whole words into windows of at most cfg.Window runes. The
// original spacing inside a window is kept. A word longer than the window is
// cut into window-sized pieces.
func chunkText(text string, cfg ChunkConfig) []string {
	if cfg.Window <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(text)
	words := wordSpans(runes)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	full := func() bool { return cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks }

	for i := 0; i < len(words) && !full(); {
		begin := words[i].start
		limit := begin + cfg.Window

		j := i
		for j < len(words) && words[j].end <= limit {
			j++
		}
		if j == i {
			chunks = append(chunks, string(runes[begin:limit]))
			words[i].start = limit
			continue
		}

		end := words[j-1].end
		chunks = append(chunks, string(runes[begin:end]))
		if j == len(words) {
			break
		}

		next := j
		for k := i + 1; k < j; k++ {
			if words[k].start >= end-cfg.Overlap {
				next = k
				break
			}
		}
		i = next
	}
	return chunks
}
