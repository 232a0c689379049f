// Package segmenter groups word-level timings into subtitle-sized segments.
package segmenter

import (
	"strings"

	"voice-dub-go/internal/config"
	"voice-dub-go/internal/types"
)

// Group walks words in order and closes a segment each time it holds maxWords
// words. The trailing partial segment is emitted as-is. maxWords < 1 falls back
// to config.DefaultSegmentWords.
func Group(words []types.WordSpan, maxWords int) []types.Segment {
	if maxWords < 1 {
		maxWords = config.DefaultSegmentWords
	}
	segments := make([]types.Segment, 0, (len(words)+maxWords-1)/maxWords)

	var (
		texts []string
		cur   types.Segment
	)
	flush := func() {
		cur.Text = strings.Join(texts, " ")
		segments = append(segments, cur)
		texts = texts[:0]
		cur = types.Segment{}
	}

	for _, w := range words {
		if len(texts) == 0 {
			cur.Start = w.Start
		}
		texts = append(texts, w.Text)
		cur.End = w.End
		if len(texts) == maxWords {
			flush()
		}
	}
	if len(texts) > 0 {
		flush()
	}
	return segments
}

// Text joins segment texts with single spaces.
func Text(segments []types.Segment) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}
