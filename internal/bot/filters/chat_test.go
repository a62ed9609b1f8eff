package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"serotonyl.ru/karmabot/internal/features/karma"
)

func TestChatFilter_CheckMention(t *testing.T) {
	f := NewChatFilter("UBOT")
	ok := karma.Mention{UserID: "U1", Channel: "C1", Text: "<@UBOT> <@U2> +", TS: "1.0"}

	tests := []struct {
		name    string
		mutate  func(m *karma.Mention)
		fromBot bool
		want    bool
	}{
		{"addressed to bot", func(*karma.Mention) {}, false, true},
		{"private group", func(m *karma.Mention) { m.Channel = "G123" }, false, false},
		{"other user first", func(m *karma.Mention) { m.Text = "<@U2> <@UBOT> +" }, false, false},
		{"bot mentioned later", func(m *karma.Mention) { m.Text = "hey <@UBOT> <@U2> +" }, false, false},
		{"missing ts", func(m *karma.Mention) { m.TS = "" }, false, false},
		{"missing user", func(m *karma.Mention) { m.UserID = "" }, false, false},
		{"from another bot", func(*karma.Mention) {}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ok
			tt.mutate(&m)
			assert.Equal(t, tt.want, f.CheckMention(m, tt.fromBot))
		})
	}
}

func TestChatFilter_NoBotID(t *testing.T) {
	m := karma.Mention{UserID: "U1", Channel: "C1", Text: "<@UBOT> <@U2> +", TS: "1.0"}
	assert.False(t, NewChatFilter("").CheckMention(m, false))
}

func TestChatFilter_CheckCommand(t *testing.T) {
	f := NewChatFilter("UBOT")
	assert.True(t, f.CheckCommand(karma.SlashCommand{ChannelID: "C1", Text: "digest"}))
	assert.False(t, f.CheckCommand(karma.SlashCommand{Text: "digest"}))
}
