package karma

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var (
	upvote   = []string{"+1", "thumbsup"}
	downvote = []string{"-1", "thumbsdown"}
)

func TestDetermineSuccess(t *testing.T) {
	tests := []struct {
		name      string
		reactions Reactions
		want      bool
	}{
		{"empty", Reactions{}, false},
		{"nil", nil, false},
		{"one up", Reactions{"+1": 1}, true},
		{"up across emoji", Reactions{"+1": 1, "thumbsup": 1, "-1": 1}, true},
		{"tie", Reactions{"+1": 2, "thumbsdown": 2}, false},
		{"more down", Reactions{"+1": 1, "-1": 3}, false},
		{"ignored emoji", Reactions{"tada": 10, "heart": 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineSuccess(tt.reactions, upvote, downvote))
		})
	}
}

func TestDetermineSuccess_DuplicateEmojiCountOnce(t *testing.T) {
	r := Reactions{"+1": 1, "-1": 1}
	assert.False(t, DetermineSuccess(r, []string{"+1", "+1"}, []string{"-1"}))
}

var emojiNames = []string{"+1", "thumbsup", "-1", "thumbsdown", "tada", "eyes"}

var emojiGen = gen.IntRange(0, len(emojiNames)-1).Map(func(i int) string { return emojiNames[i] })

func reactionsFrom(names []string, counts []int) Reactions {
	r := Reactions{}
	for i := 0; i < len(names) && i < len(counts); i++ {
		r[names[i]] += counts[i]
	}
	return r
}

func TestDetermineSuccess_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("result does not depend on insertion order", prop.ForAll(
		func(names []string, counts []int) bool {
			forward := reactionsFrom(names, counts)

			rn := make([]string, len(names))
			rc := make([]int, len(counts))
			for i := range names {
				rn[len(names)-1-i] = names[i]
			}
			for i := range counts {
				rc[len(counts)-1-i] = counts[i]
			}
			n := min(len(names), len(counts))
			backward := reactionsFrom(rn[len(rn)-n:], rc[len(rc)-n:])

			return DetermineSuccess(forward, upvote, downvote) == DetermineSuccess(backward, upvote, downvote)
		},
		gen.SliceOf(emojiGen),
		gen.SliceOf(gen.IntRange(0, 20)),
	))

	properties.Property("emoji outside both lists never change the result", prop.ForAll(
		func(up, down, other int) bool {
			base := Reactions{"+1": up, "-1": down}
			noisy := Reactions{"+1": up, "-1": down, "tada": other}
			return DetermineSuccess(base, upvote, downvote) == DetermineSuccess(noisy, upvote, downvote)
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.Property("success iff strictly more upvotes", prop.ForAll(
		func(up, down int) bool {
			return DetermineSuccess(Reactions{"thumbsup": up, "thumbsdown": down}, upvote, downvote) == (up > down)
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}
