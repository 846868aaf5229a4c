package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glow-labs/glow/internal/app/engagement"
	"github.com/glow-labs/glow/internal/app/reward"
	"github.com/glow-labs/glow/internal/health"
	"github.com/glow-labs/glow/internal/infra/memstore"
)

var (
	utcPlus3 = time.FixedZone("UTC+3", 3*60*60)
	testNow  = time.Date(2025, 7, 1, 10, 0, 0, 0, utcPlus3)
)

type fixture struct {
	store  *memstore.Store
	server *Server
	clock  *reward.FixedClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clock := reward.NewFixedClock(testNow)
	eng := reward.NewEngine(clock, reward.Config{Location: utcPlus3})
	svc := engagement.NewService(store, engagement.Options{
		Engine: eng,
		Random: reward.NewLockedRandom(reward.NewRandom(7)),
	})
	return &fixture{store: store, server: NewServer(svc, "1.2.3"), clock: clock}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(v), rec.Body.String())
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const calm10 = `{"type":"calm","duration_minutes":10,"breath_score":0,"used_breath_tracking":false}`

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	rec = f.do(t, "GET", "/api/version", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var v map[string]string
	decode(t, rec, &v)
	assert.Equal(t, "1.2.3", v["version"])
}

func TestHealthReportsStoreDown(t *testing.T) {
	f := newFixture(t)
	checker := health.NewChecker(f.store, "", time.Minute, nil)
	f.server.SetHealthChecker(checker)

	checker.RunOnce(context.Background())
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/health", "").Code)

	f.store.Close()
	checker.RunOnce(context.Background())
	rec := f.do(t, "GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}

func TestEnrollAndProgression(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "PUT", "/api/users/u1", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, "PUT", "/api/users/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "GET", "/api/users/u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st struct {
		UserID   string `json:"user_id"`
		Level    int    `json:"level"`
		Progress struct {
			NextLevelXP int64   `json:"next_level_xp"`
			XPToNext    int64   `json:"xp_to_next"`
			ProgressPct float64 `json:"progress_pct"`
		} `json:"level_progress"`
	}
	decode(t, rec, &st)
	assert.Equal(t, "u1", st.UserID)
	assert.Equal(t, 1, st.Level)
	assert.Equal(t, int64(200), st.Progress.NextLevelXP)
	assert.Equal(t, int64(200), st.Progress.XPToNext)
	assert.Equal(t, 0.0, st.Progress.ProgressPct)

	rec = f.do(t, "GET", "/api/users/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var eb errorBody
	decode(t, rec, &eb)
	assert.Equal(t, "not_found", eb.Error.Type)
}

func TestRecordSession(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")

	rec := f.do(t, "POST", "/api/users/u1/sessions", calm10)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Outcome struct {
			XPGained             int64 `json:"xp_gained"`
			TokensEarned         int64 `json:"tokens_earned"`
			NewStreak            int   `json:"new_streak"`
			IsFirstActivityOfDay bool  `json:"is_first_activity_of_day"`
		} `json:"outcome"`
		Progression struct {
			Tokens    int64 `json:"tokens"`
			GlowCards int   `json:"glow_cards"`
		} `json:"progression"`
		Ledger []struct {
			Type string `json:"type"`
		} `json:"ledger"`
	}
	decode(t, rec, &res)
	assert.Equal(t, int64(53), res.Outcome.XPGained)
	assert.Equal(t, int64(6), res.Outcome.TokensEarned)
	assert.Equal(t, 1, res.Outcome.NewStreak)
	assert.True(t, res.Outcome.IsFirstActivityOfDay)
	assert.Equal(t, 1, res.Progression.GlowCards)
	// Session reward plus the first_session achievement.
	assert.Equal(t, int64(16), res.Progression.Tokens)
	assert.Len(t, res.Ledger, 2)
}

func TestRecordSessionRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")

	cases := map[string]string{
		"bad duration":  `{"type":"calm","duration_minutes":12}`,
		"bad type":      `{"type":"nap","duration_minutes":10}`,
		"bad score":     `{"type":"calm","duration_minutes":10,"breath_score":101}`,
		"unknown field": `{"type":"calm","duration_minutes":10,"mood":"great"}`,
		"not json":      `{"type":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.do(t, "POST", "/api/users/u1/sessions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var eb errorBody
			decode(t, rec, &eb)
			assert.Equal(t, "invalid_input", eb.Error.Type)
		})
	}

	rec := f.do(t, "GET", "/api/users/u1", "")
	assert.Contains(t, rec.Body.String(), `"xp":0`)
}

func TestStoreFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")
	f.store.Close()

	rec := f.do(t, "POST", "/api/users/u1/sessions", calm10)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var eb errorBody
	decode(t, rec, &eb)
	assert.Equal(t, "upstream_failure", eb.Error.Type)
	assert.Contains(t, eb.Error.Message, "please try again")
	assert.NotContains(t, eb.Error.Message, "store closed")
}

func TestRevealCard(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")

	rec := f.do(t, "POST", "/api/users/u1/cards/reveal", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no cards yet")

	f.do(t, "POST", "/api/users/u1/sessions", calm10)
	rec = f.do(t, "POST", "/api/users/u1/cards/reveal", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Reveal struct {
			Picks int `json:"picks"`
			Draws []struct {
				Kind string `json:"kind"`
			} `json:"draws"`
		} `json:"reveal"`
		Progression struct {
			GlowCards int `json:"glow_cards"`
		} `json:"progression"`
	}
	decode(t, rec, &res)
	assert.GreaterOrEqual(t, res.Reveal.Picks, 1)
	assert.Len(t, res.Reveal.Draws, res.Reveal.Picks)
	assert.Equal(t, 0, res.Progression.GlowCards)
}

func TestLedger(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")
	f.do(t, "POST", "/api/users/u1/sessions", calm10)

	rec := f.do(t, "GET", "/api/users/u1/ledger?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Entries []struct {
			Balance int64 `json:"balance"`
		} `json:"entries"`
	}
	decode(t, rec, &res)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, int64(16), res.Entries[0].Balance)

	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/api/users/u1/ledger?limit=-3", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "GET", "/api/users/u1/ledger?limit=ten", "").Code)
}

func TestAchievements(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")
	f.do(t, "POST", "/api/users/u1/sessions", calm10)

	rec := f.do(t, "GET", "/api/users/u1/achievements", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Achievements []struct {
			ID       string `json:"id"`
			Unlocked bool   `json:"unlocked"`
		} `json:"achievements"`
	}
	decode(t, rec, &res)
	unlocked := map[string]bool{}
	for _, a := range res.Achievements {
		unlocked[a.ID] = a.Unlocked
	}
	assert.True(t, unlocked["first_session"])
	assert.False(t, unlocked["streak_7"])
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	f.do(t, "PUT", "/api/users/u1", "")
	f.do(t, "POST", "/api/users/u1/sessions", calm10)

	rec := f.do(t, "GET", "/api/users/u1/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Notifications []struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"notifications"`
	}
	decode(t, rec, &res)
	require.NotEmpty(t, res.Notifications)
	id := res.Notifications[0].ID

	path := "/api/users/u1/notifications/" + jsonInt(id) + "/shown"
	assert.Equal(t, http.StatusNoContent, f.do(t, "POST", path, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "POST", "/api/users/u2/notifications/"+jsonInt(id)+"/shown", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, "POST", "/api/users/u1/notifications/abc/shown", "").Code)
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, "POST", "/api/rewards/preview", `{"activity":`+calm10+`,"current_streak":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		XPGained     int64   `json:"xp_gained"`
		TokensEarned int64   `json:"tokens_earned"`
		Multiplier   float64 `json:"streak_multiplier"`
	}
	decode(t, rec, &out)
	assert.Equal(t, int64(63), out.XPGained)
	assert.Equal(t, int64(7), out.TokensEarned)
	assert.Equal(t, 1.2, out.Multiplier)

	rec = f.do(t, "POST", "/api/rewards/preview", `{"activity":`+calm10+`,"current_streak":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	auth, err := NewAuthenticator(AuthConfig{HMACSecret: "s3cret", Issuer: "glow"}, nil)
	require.NoError(t, err)
	f.server.SetAuthenticator(auth)

	now := time.Now()
	mine, err := IssueToken("s3cret", "glow", "u1", time.Hour, now)
	require.NoError(t, err)
	theirs, err := IssueToken("s3cret", "glow", "u2", time.Hour, now)
	require.NoError(t, err)
	forged, err := IssueToken("other", "glow", "u1", time.Hour, now)
	require.NoError(t, err)
	expired, err := IssueToken("s3cret", "glow", "u1", time.Hour, now.Add(-3*time.Hour))
	require.NoError(t, err)
	forever, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "u1",
		Issuer:  "glow",
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", "/api/users/u1", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", "/api/users/u1", "", "Authorization", "Bearer "+forged).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", "/api/users/u1", "", "Authorization", "Bearer "+expired).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, "PUT", "/api/users/u1", "", "Authorization", "Bearer "+forever).Code, "token without exp")
	assert.Equal(t, http.StatusForbidden, f.do(t, "PUT", "/api/users/u1", "", "Authorization", "Bearer "+theirs).Code)
	assert.Equal(t, http.StatusCreated, f.do(t, "PUT", "/api/users/u1", "", "Authorization", "Bearer "+mine).Code)

	// Public routes stay open.
	assert.Equal(t, http.StatusOK, f.do(t, "GET", "/api/version", "").Code)

	_, err = NewAuthenticator(AuthConfig{HMACSecret: "  "}, nil)
	assert.Error(t, err)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t)
	f.server.SetRateLimiter(NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 2}))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/api/users/ghost", "").Code)
	}
	rec := f.do(t, "GET", "/api/users/ghost", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Another client has its own bucket.
	rec = f.do(t, "GET", "/api/users/ghost", "", "X-Real-IP", "10.0.0.9")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiterDropsIdleClients(t *testing.T) {
	l := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.Equal(t, 2, l.size())

	now = now.Add(10 * time.Minute)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 1, l.size())
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusNotFound, f.do(t, "GET", "/metrics", "").Code)

	f.server.EnableMetrics()
	f.do(t, "GET", "/api/version", "")
	rec := f.do(t, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "glow_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, "OPTIONS", "/api/users/u1/sessions", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
