package segmenter

import (
	"fmt"
	"strings"
	"testing"

	"voice-dub-go/internal/types"
)

func makeWords(n int) []types.WordSpan {
	words := make([]types.WordSpan, n)
	for i := range words {
		words[i] = types.WordSpan{
			Text:  fmt.Sprintf("w%d", i),
			Start: float64(i) * 0.5,
			End:   float64(i)*0.5 + 0.4,
		}
	}
	return words
}

func TestGroupEmpty(t *testing.T) {
	got := Group(nil, 10)
	if got == nil {
		t.Fatal("expected empty non-nil slice")
	}
	if len(got) != 0 {
		t.Fatalf("expected no segments, got %d", len(got))
	}
}

func TestGroupCounts(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 20, 25, 99} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			words := makeWords(n)
			segs := Group(words, 10)
			want := (n + 9) / 10
			if len(segs) != want {
				t.Fatalf("got %d segments, want %d", len(segs), want)
			}

			var joined []string
			for _, w := range words {
				joined = append(joined, w.Text)
			}
			if got := Text(segs); got != strings.Join(joined, " ") {
				t.Fatalf("concatenated text mismatch:\n got %q\nwant %q", got, strings.Join(joined, " "))
			}

			for i, s := range segs {
				first := words[i*10]
				lastIdx := i*10 + 9
				if lastIdx >= n {
					lastIdx = n - 1
				}
				if s.Start != first.Start || s.End != words[lastIdx].End {
					t.Errorf("segment %d bounds = [%v,%v], want [%v,%v]", i, s.Start, s.End, first.Start, words[lastIdx].End)
				}
				if s.Start > s.End {
					t.Errorf("segment %d has start after end", i)
				}
				if i > 0 && s.Start < segs[i-1].Start {
					t.Errorf("segment %d starts before previous", i)
				}
				if i < len(segs)-1 && len(strings.Fields(s.Text)) != 10 {
					t.Errorf("non-final segment %d has %d words", i, len(strings.Fields(s.Text)))
				}
			}
		})
	}
}

func TestGroupCustomThreshold(t *testing.T) {
	segs := Group(makeWords(7), 3)
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if segs[2].Text != "w6" {
		t.Errorf("last segment = %q, want w6", segs[2].Text)
	}
}

func TestGroupInvalidThresholdFallsBack(t *testing.T) {
	segs := Group(makeWords(15), 0)
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2 with default threshold", len(segs))
	}
}
