package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/karmabot/internal/bot/filters"
	"serotonyl.ru/karmabot/internal/bot/middleware"
	"serotonyl.ru/karmabot/internal/features/karma"
	"serotonyl.ru/karmabot/internal/metrics"
)

type fakeSocket struct {
	mu    sync.Mutex
	acked []string
}

func (s *fakeSocket) RunContext(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeSocket) Ack(req socketmode.Request, _ ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acked = append(s.acked, req.EnvelopeID)
}

type fakeKarma struct {
	mu       sync.Mutex
	mentions []karma.Mention
	commands []karma.SlashCommand
	panicOn  string
}

func (f *fakeKarma) HandleMention(_ context.Context, m karma.Mention) {
	if f.panicOn != "" && m.Text == f.panicOn {
		panic("handler bug")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mentions = append(f.mentions, m)
}

func (f *fakeKarma) HandleCommand(_ context.Context, c karma.SlashCommand) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, c)
}

type fakeMembers struct {
	mu     sync.Mutex
	joined []string
}

func (f *fakeMembers) HandleTeamJoin(_ context.Context, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, userID)
}

func mentionEvent(envelope, user, channel, text string) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "app_mention",
				Data: &slackevents.AppMentionEvent{User: user, Channel: channel, Text: text, TimeStamp: "100.0"},
			},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

// runEvents прогоняет события через бота и дожидается всех обработчиков.
func runEvents(t *testing.T, limit int, karmaH *fakeKarma, membersH *fakeMembers, events ...socketmode.Event) *fakeSocket {
	t.Helper()
	socket := &fakeSocket{}
	ch := make(chan socketmode.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)

	rl := middleware.NewRateLimiter(limit, time.Minute, clockwork.NewFakeClock())
	t.Cleanup(rl.Close)

	b := New(socket, ch, 4, filters.NewChatFilter("UBOT"), rl, karmaH, membersH)
	done := make(chan struct{})
	go func() {
		b.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop after the events channel was closed")
	}
	return socket
}

func TestBot_DispatchesMentions(t *testing.T) {
	karmaH := &fakeKarma{}
	socket := runEvents(t, 10, karmaH, &fakeMembers{},
		mentionEvent("e1", "U1", "C1", "<@UBOT> <@U2> ++"),
		mentionEvent("e2", "U1", "G1", "<@UBOT> <@U2> ++"),
		mentionEvent("e3", "U1", "C1", "<@UOTHER> <@U2> ++"),
		mentionEvent("e4", "", "C1", "<@UBOT> <@U2> ++"),
	)

	assert.ElementsMatch(t, []string{"e1", "e2", "e3", "e4"}, socket.acked)
	require.Len(t, karmaH.mentions, 1)
	assert.Equal(t, karma.Mention{UserID: "U1", Channel: "C1", Text: "<@UBOT> <@U2> ++", TS: "100.0"}, karmaH.mentions[0])
}

func TestBot_RateLimitsPerUser(t *testing.T) {
	karmaH := &fakeKarma{}
	runEvents(t, 1, karmaH, &fakeMembers{},
		mentionEvent("e1", "U1", "C1", "<@UBOT> <@U2> +"),
		mentionEvent("e2", "U1", "C1", "<@UBOT> <@U3> +"),
		mentionEvent("e3", "U4", "C1", "<@UBOT> <@U2> +"),
	)
	assert.Len(t, karmaH.mentions, 2)
}

func TestBot_SlashCommandAndTeamJoin(t *testing.T) {
	karmaH := &fakeKarma{}
	membersH := &fakeMembers{}
	runEvents(t, 10, karmaH, membersH,
		socketmode.Event{
			Type:    socketmode.EventTypeSlashCommand,
			Data:    slack.SlashCommand{Command: "/karma", UserID: "U1", UserName: "alice", ChannelID: "C1", Text: "digest"},
			Request: &socketmode.Request{EnvelopeID: "c1"},
		},
		socketmode.Event{
			Type: socketmode.EventTypeEventsAPI,
			Data: slackevents.EventsAPIEvent{
				Type: slackevents.CallbackEvent,
				InnerEvent: slackevents.EventsAPIInnerEvent{
					Type: "team_join",
					Data: &slackevents.TeamJoinEvent{User: &slack.User{ID: "U9"}},
				},
			},
			Request: &socketmode.Request{EnvelopeID: "j1"},
		},
		socketmode.Event{Type: socketmode.EventTypeConnected},
	)

	assert.Equal(t, []karma.SlashCommand{{UserID: "U1", UserName: "alice", ChannelID: "C1", Text: "digest"}}, karmaH.commands)
	assert.Equal(t, []string{"U9"}, membersH.joined)
}

func TestBot_RecoversFromHandlerPanic(t *testing.T) {
	karmaH := &fakeKarma{panicOn: "<@UBOT> <@U2> +"}
	before := testutil.ToFloat64(metrics.EventsInflight)

	runEvents(t, 10, karmaH, &fakeMembers{},
		mentionEvent("e1", "U1", "C1", "<@UBOT> <@U2> +"),
		mentionEvent("e2", "U3", "C1", "<@UBOT> <@U2> ++"),
	)

	assert.Len(t, karmaH.mentions, 1)
	assert.Equal(t, before, testutil.ToFloat64(metrics.EventsInflight))
}
