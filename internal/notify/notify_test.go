package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nightOwl() Notification {
	return Notification{
		UserID:        "u1",
		Username:      "alice",
		AchievementID: "night_owl",
		Title:         "Late Listener",
		Achievement:   "Night Owl",
		FlavorText:    "The quiet hours are yours.",
		Points:        25,
		Rarity:        "rare",
		ItemTitle:     "Dune",
		EarnedAt:      time.Date(2024, 3, 5, 3, 30, 0, 0, time.UTC),
		DiscoveredAt:  time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	}
}

func TestDiscordSink_PayloadGolden(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	sink := NewDiscordSink("http://example.invalid",
		WithAliases(map[string]string{"alice": "Alice A."}),
		WithDateLocation(ny),
	)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	body, err := sink.Payload(nightOwl())
	require.NoError(t, err)
	g.Assert(t, "discord_night_owl", body)

	body, err = sink.Payload(Notification{UserID: "u9", AchievementID: "bookworm", Title: "Bookworm"})
	require.NoError(t, err)
	g.Assert(t, "discord_minimal", body)
}

func TestDiscordSink_RarityColors(t *testing.T) {
	sink := NewDiscordSink("")
	cases := map[string]int{
		"Common":    0x9d9d9d,
		"UNCOMMON":  0x1eff00,
		"epic":      0xa335ee,
		"Legendary": 0xff8000,
		"mythic":    0x9d9d9d,
	}
	for rarity, want := range cases {
		body, err := sink.Payload(Notification{UserID: "u", Title: "t", Rarity: rarity})
		require.NoError(t, err)

		var p discordPayload
		require.NoError(t, json.Unmarshal(body, &p))
		require.Len(t, p.Embeds, 1)
		assert.Equal(t, want, p.Embeds[0].Color, rarity)
	}
}

func TestDiscordSink_Posts(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies [][]byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, b)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewDiscordSink(srv.URL, WithInterval(0))
	second := nightOwl()
	second.AchievementID = "early_bird"
	require.NoError(t, sink.Notify(context.Background(), []Notification{nightOwl(), second}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 2)
	var p discordPayload
	require.NoError(t, json.Unmarshal(bodies[0], &p))
	assert.Equal(t, "The System", p.Username)
	assert.Equal(t, "🏆 Night Owl", p.Embeds[0].Title)
}

func TestDiscordSink_FailuresAreJoined(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewDiscordSink(srv.URL, WithInterval(0), WithDiscordLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	err := sink.Notify(context.Background(), []Notification{nightOwl(), nightOwl()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, int32(2), calls.Load(), "a failed post does not stop the batch")
}

func TestDiscordSink_DisabledWithoutURL(t *testing.T) {
	assert.NoError(t, NewDiscordSink("  ").Notify(context.Background(), []Notification{nightOwl()}))
}

func TestParseAliases(t *testing.T) {
	got := ParseAliases(" alice:Alice A. , bob:Bobby,broken, :nobody,carol:Car:ol")
	assert.Equal(t, map[string]string{
		"alice": "Alice A.",
		"bob":   "Bobby",
		"carol": "Car:ol",
	}, got)
	assert.Empty(t, ParseAliases(""))
}

type recordingSink struct {
	got []Notification
	err error
}

func (r *recordingSink) Notify(_ context.Context, batch []Notification) error {
	r.got = append(r.got, batch...)
	return r.err
}

func TestMulti(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("smtp down")}

	err := Multi{failing, nil, ok}.Notify(context.Background(), []Notification{nightOwl()})
	assert.ErrorIs(t, err, failing.err)
	assert.Len(t, ok.got, 1, "later sinks still run")
	assert.Len(t, failing.got, 1)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, sink.Notify(context.Background(), []Notification{nightOwl()}))
	out := buf.String()
	assert.Contains(t, out, "achievement unlocked")
	assert.Contains(t, out, "achievement=night_owl")
	assert.Contains(t, out, `title="Night Owl"`)
}

func TestNotification_Headline(t *testing.T) {
	assert.Equal(t, "Night Owl", nightOwl().Headline())
	assert.Equal(t, "Bookworm", Notification{Title: "Bookworm"}.Headline())
	assert.Equal(t, "Achievement", Notification{}.Headline())
}
