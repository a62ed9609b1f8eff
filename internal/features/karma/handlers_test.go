package karma

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/karmabot/internal/words"
)

type posted struct {
	channel  string
	threadTS string
	msg      words.Message
}

type updated struct {
	channel string
	ts      string
	msg     words.Message
}

type fakeTransport struct {
	*fakeReactions
	mu      sync.Mutex
	seq     int
	posts   []posted
	updates []updated
	postErr error
}

func (f *fakeTransport) Post(_ context.Context, channel string, msg words.Message, threadTS string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	f.seq++
	f.posts = append(f.posts, posted{channel: channel, threadTS: threadTS, msg: msg})
	return fmt.Sprintf("500.%06d", f.seq), nil
}

func (f *fakeTransport) Update(_ context.Context, channel, ts string, msg words.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updated{channel: channel, ts: ts, msg: msg})
	return nil
}

type fakeNames map[string]string

func (n fakeNames) UserName(_ context.Context, id string) string {
	if name, ok := n[id]; ok {
		return name
	}
	return id
}

func (n fakeNames) ChannelName(_ context.Context, id string) string {
	return "#" + id
}

type handlerEnv struct {
	*testEnv
	handler   *Handler
	transport *fakeTransport
	format    *words.Format
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	env := newTestEnv(t, testSettings())
	transport := &fakeTransport{fakeReactions: env.reactions}
	s := env.svc.Settings()
	format := words.New("en", s.UpvoteEmoji, s.DownvoteEmoji, s.VoteTimeout)
	isAdmin := func(userID, userName string) bool { return userName == "admin" }
	names := fakeNames{"U1": "alice", "U2": "bob"}

	return &handlerEnv{
		testEnv:   env,
		handler:   NewHandler(env.svc, transport, names, format, isAdmin, time.UTC, "UBOT"),
		transport: transport,
		format:    format,
	}
}

func mention(text, ts string) Mention {
	return Mention{UserID: "U1", Channel: "C1", Text: text, TS: ts}
}

func TestHandleMention_CreatesVoting(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	env.handler.HandleMention(ctx, mention("<@UBOT> <@U2> +++ great talk", "100.000001"))

	require.Len(t, env.transport.posts, 1)
	p := env.transport.posts[0]
	assert.Equal(t, "C1", p.channel)
	assert.Equal(t, "100.000001", p.threadTS)
	assert.Equal(t, env.format.NewVoting("bob", 3), p.msg)

	open, err := env.svc.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "500.000001", open[0].BotMessageTS)
	assert.Equal(t, 3, open[0].Delta)
	assert.Equal(t, "<@UBOT> <@U2> +++ great talk", open[0].MessageText)

	// Повторная доставка того же события
	env.handler.HandleMention(ctx, mention("<@UBOT> <@U2> +++ great talk", "100.000001"))
	assert.Len(t, env.transport.posts, 1)
}

func TestHandleMention_Rejections(t *testing.T) {
	tests := []struct {
		name string
		text string
		want func(f *words.Format) words.Message
	}{
		{"unparsed", "<@UBOT> hello", func(f *words.Format) words.Message { return f.ParsingError() }},
		{"self", "<@UBOT> <@U1> +", func(f *words.Format) words.Message { return f.StrangeError() }},
		{"robot", "<@UBOT> <@UBOT> +", func(f *words.Format) words.Message { return f.RoboError() }},
		{"too large", "<@UBOT> <@U2> ++++++", func(f *words.Format) words.Message { return f.MaxDiffError(5) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newHandlerEnv(t)
			env.handler.HandleMention(context.Background(), mention(tt.text, "100.0"))

			require.Len(t, env.transport.posts, 1)
			assert.Equal(t, "100.0", env.transport.posts[0].threadTS)
			assert.Equal(t, tt.want(env.format), env.transport.posts[0].msg)
			assert.Equal(t, 0, votingCount(t, env.db))
		})
	}
}

func TestHandleMention_PostFailureCreatesNothing(t *testing.T) {
	env := newHandlerEnv(t)
	env.transport.postErr = errors.New("channel_is_archived")

	env.handler.HandleMention(context.Background(), mention("<@UBOT> <@U2> +", "100.0"))
	assert.Equal(t, 0, votingCount(t, env.db))
}

func TestHandleCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("get unknown user reports initial value", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.handler.HandleCommand(ctx, SlashCommand{UserID: "U1", UserName: "alice", ChannelID: "C9", Text: "get <@U2>"})
		require.Len(t, env.transport.posts, 1)
		assert.Equal(t, env.format.ReportKarma("bob", 10), env.transport.posts[0].msg)
		assert.Equal(t, "", env.transport.posts[0].threadTS)
	})

	t.Run("set requires admin", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.handler.HandleCommand(ctx, SlashCommand{UserID: "U1", UserName: "alice", ChannelID: "C9", Text: "set <@U2> 42"})
		require.Len(t, env.transport.posts, 1)
		assert.Equal(t, env.format.NotAdminError(), env.transport.posts[0].msg)

		points, err := env.svc.Get(ctx, "U2")
		require.NoError(t, err)
		assert.Equal(t, 10, points)
	})

	t.Run("set by admin", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.handler.HandleCommand(ctx, SlashCommand{UserID: "U7", UserName: "admin", ChannelID: "C9", Text: "set <@U2> 42"})
		require.Len(t, env.transport.posts, 1)
		assert.Equal(t, env.format.ReportKarma("bob", 42), env.transport.posts[0].msg)

		points, err := env.svc.Get(ctx, "U2")
		require.NoError(t, err)
		assert.Equal(t, 42, points)
	})

	t.Run("digest", func(t *testing.T) {
		env := newHandlerEnv(t)
		require.NoError(t, env.svc.Set(ctx, "U1", 3))
		require.NoError(t, env.svc.Set(ctx, "U2", 5))
		env.handler.HandleCommand(ctx, SlashCommand{UserName: "alice", ChannelID: "C9", Text: "digest"})
		require.Len(t, env.transport.posts, 1)
		want := env.format.Digest([]words.DigestRow{{Name: "bob", Points: 5}, {Name: "alice", Points: 3}})
		assert.Equal(t, want, env.transport.posts[0].msg)
	})

	t.Run("pending", func(t *testing.T) {
		env := newHandlerEnv(t)
		_, err := env.svc.Create(ctx, newVoting("100.0", "100.5", 2))
		require.NoError(t, err)
		env.handler.HandleCommand(ctx, SlashCommand{UserName: "alice", ChannelID: "C9", Text: "pending"})
		require.Len(t, env.transport.posts, 1)
		want := env.format.Pending([]words.PendingRow{{
			Initiator: "alice", Target: "bob", Channel: "#C1", Points: 2,
			Expires: "01.01.1970 01:01",
		}})
		assert.Equal(t, want, env.transport.posts[0].msg)
	})

	t.Run("help and config", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.handler.HandleCommand(ctx, SlashCommand{ChannelID: "C9", Text: "help"})
		env.handler.HandleCommand(ctx, SlashCommand{ChannelID: "C9", Text: "config"})
		require.Len(t, env.transport.posts, 2)
		assert.Equal(t, env.format.Hello(), env.transport.posts[0].msg)
		assert.Contains(t, env.transport.posts[1].msg.Text, "max diff: 5")
	})

	t.Run("unknown", func(t *testing.T) {
		env := newHandlerEnv(t)
		env.handler.HandleCommand(ctx, SlashCommand{ChannelID: "C9", Text: "launch rockets"})
		require.Len(t, env.transport.posts, 1)
		assert.Equal(t, env.format.CmdError(), env.transport.posts[0].msg)
	})
}

func TestProcessExpired_UpdatesAnnouncements(t *testing.T) {
	env := newHandlerEnv(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, newVoting("100.0", "100.5", 2))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, newVoting("200.0", "200.5", -1))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, newVoting("300.0", "300.5", 1))
	require.NoError(t, err)
	env.reactions.set("100.5", Reactions{"+1": 2})
	env.reactions.gone["300.0"] = true

	require.NoError(t, env.handler.ProcessExpired(ctx, expiredAt(t, "300.5")))

	require.Len(t, env.transport.updates, 2)
	assert.Equal(t, updated{"C1", "100.5", env.format.VotingResult("bob", 2, true)}, env.transport.updates[0])
	assert.Equal(t, updated{"C1", "200.5", env.format.VotingResult("bob", -1, false)}, env.transport.updates[1])

	points, err := env.svc.Get(ctx, "U2")
	require.NoError(t, err)
	assert.Equal(t, 12, points)
	assert.Equal(t, 2, votingCount(t, env.db))
}
