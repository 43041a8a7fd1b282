package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gwgp-assistant-backend/internal/capability"
	"gwgp-assistant-backend/internal/config"
	"gwgp-assistant-backend/internal/datauri"
	"gwgp-assistant-backend/internal/llm"
	"gwgp-assistant-backend/internal/llm/llmtest"
	"gwgp-assistant-backend/internal/news"
	"gwgp-assistant-backend/internal/prompts"
	"gwgp-assistant-backend/internal/session"
	"gwgp-assistant-backend/internal/store"
	"gwgp-assistant-backend/internal/types"
)

type harness struct {
	srv      *Server
	fake     *llmtest.Fake
	sessions *store.MemoryStore
}

func newHarness(t *testing.T, fake *llmtest.Fake, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Config{
		AllowedOrigin: "*",
		SessionTTL:    time.Minute,
		MaxBodyBytes:  1 << 20,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	p := prompts.Default()
	a := capability.New(capability.Options{
		Backend: fake,
		Prompts: p,
		News:    news.NewStaticSource(),
		Logger:  zerolog.Nop(),
	})
	sessions := store.NewMemoryStore(cfg.SessionTTL, a, p.Voice.ErrorReply)
	return &harness{
		srv:      NewServer(cfg, a, sessions, zerolog.Nop()),
		fake:     fake,
		sessions: sessions,
	}
}

func (h *harness) do(method, path, sid string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{})
	rec := h.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "provider": "fake"}, decode[map[string]string](t, rec))
}

func TestAnswerIssuesSession(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "Paris."})

	rec := h.do(http.MethodPost, "/api/answer", "", types.AnswerRequest{Question: "Capital of France?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paris.", decode[types.AnswerResponse](t, rec).Answer)

	sid := rec.Header().Get(SessionHeader)
	assert.True(t, store.ValidID(sid))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, CookieName, rec.Result().Cookies()[0].Name)
	assert.Equal(t, sid, rec.Result().Cookies()[0].Value)

	rec = h.do(http.MethodPost, "/api/answer", sid, types.AnswerRequest{Question: "And Spain?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sid, rec.Header().Get(SessionHeader))
	assert.Empty(t, rec.Result().Cookies())
}

func TestAnswerRejectsBadInputBeforeUpstream(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "nope"})

	for name, body := range map[string]string{
		"empty question": `{"question":""}`,
		"malformed":      `{"question":`,
		"unknown field":  `{"question":"q","model":"x"}`,
		"bad media":      `{"question":"q","media":{"dataUri":"http://x","type":"image"}}`,
	} {
		rec := h.do(http.MethodPost, "/api/answer", "", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.NotEmpty(t, decode[types.ErrorResponse](t, rec).Error, name)
	}
	assert.Zero(t, h.fake.TotalCalls())
}

func TestBodyTooLarge(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{}, func(c *config.Config) { c.MaxBodyBytes = 16 })
	rec := h.do(http.MethodPost, "/api/answer", "", types.AnswerRequest{Question: strings.Repeat("a", 64)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBusySessionGetsConflict(t *testing.T) {
	fake := &llmtest.Fake{Text: "done", Gate: make(chan struct{})}
	h := newHarness(t, fake)
	sid := store.NewID()

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- h.do(http.MethodPost, "/api/answer", sid, types.AnswerRequest{Question: "slow"})
	}()
	require.Eventually(t, func() bool {
		s, ok := h.sessions.Lookup(sid)
		return ok && s.Machine(session.PageAsk).Busy()
	}, time.Second, time.Millisecond)

	rec := h.do(http.MethodPost, "/api/answer", sid, types.AnswerRequest{Question: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Other pages and other sessions are unaffected.
	rec = h.do(http.MethodPost, "/api/search", sid, types.SearchRequest{Query: "q"})
	assert.Equal(t, http.StatusOK, rec.Code)

	close(fake.Gate)
	assert.Equal(t, http.StatusOK, (<-first).Code)
	assert.Equal(t, 1, fake.Calls("GenerateText"))
}

func TestHardFailuresMapToStatus(t *testing.T) {
	photo := datauri.Encode("image/png", []byte("png"))

	h := newHarness(t, &llmtest.Fake{})
	rec := h.do(http.MethodPost, "/api/image/edit", "", types.EditImageRequest{PhotoDataURI: photo, Prompt: "hat"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "the model returned no output", decode[types.ErrorResponse](t, rec).Error)

	h = newHarness(t, &llmtest.Fake{VideoErr: llm.ErrUnsupported})
	rec = h.do(http.MethodPost, "/api/video", "", types.VideoRequest{Prompt: "a cat"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	h = newHarness(t, &llmtest.Fake{TextErr: assert.AnError})
	rec = h.do(http.MethodPost, "/api/answer", "", types.AnswerRequest{Question: "q"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestMediaEndpoints(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{
		Image: &llm.Blob{MIMEType: "image/png", Data: []byte("edited")},
		PCM:   []byte{0, 1, 2, 3},
		Video: &llm.Blob{MIMEType: "video/mp4", Data: []byte("mp4")},
	})

	rec := h.do(http.MethodPost, "/api/image/edit", "", types.EditImageRequest{
		PhotoDataURI: datauri.Encode("image/jpeg", []byte("jpg")),
		Prompt:       "hat",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, datauri.Encode("image/png", []byte("edited")), decode[types.EditImageResponse](t, rec).EditedPhotoDataURI)

	rec = h.do(http.MethodPost, "/api/speech", "", types.SpeechRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[types.SpeechResponse](t, rec).Media, "data:audio/wav;base64,"))

	rec = h.do(http.MethodPost, "/api/video", "", types.VideoRequest{Prompt: "cat"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, datauri.Encode("video/mp4", []byte("mp4")), decode[types.VideoResponse](t, rec).VideoDataURI)
}

func TestBriefingAndSearch(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{CallTools: true})

	rec := h.do(http.MethodGet, "/api/news/briefing", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[types.BriefingResponse](t, rec).Briefing, "# Your Daily Briefing"))

	rec = h.do(http.MethodPost, "/api/search", "", types.SearchRequest{Query: "golang"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, prompts.Default().Search.Fallback, decode[types.SearchResponse](t, rec).Results)
}

func TestVoiceTurnAndTranscript(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "Hello!", PCM: []byte{0, 0}})
	sid := store.NewID()

	rec := h.do(http.MethodPost, "/api/voice/turn", sid, types.VoiceTurnRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[types.VoiceTurnResponse](t, rec)
	assert.Equal(t, "Hello!", resp.Reply)
	assert.NotEmpty(t, resp.Media)
	assert.Len(t, resp.Transcript, 2)

	rec = h.do(http.MethodGet, "/api/voice/transcript", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.Transcript, decode[types.TranscriptResponse](t, rec).Turns)

	rec = h.do(http.MethodDelete, "/api/session", sid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.do(http.MethodGet, "/api/voice/transcript", sid, nil)
	assert.Empty(t, decode[types.TranscriptResponse](t, rec).Turns)
}

func TestVoiceTurnFailureIsInBand(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{TextErr: assert.AnError})

	rec := h.do(http.MethodPost, "/api/voice/turn", "", types.VoiceTurnRequest{Text: "hi"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[types.VoiceTurnResponse](t, rec)
	assert.Equal(t, prompts.Default().Voice.ErrorReply, resp.Reply)
	assert.Equal(t, types.Turn{Speaker: types.SpeakerAssistant, Text: resp.Reply}, resp.Transcript[1])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "x"})
	h.do(http.MethodPost, "/api/answer", "", types.AnswerRequest{Question: "q"})

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gwgp_capability_calls_total")
	assert.Contains(t, rec.Body.String(), "gwgp_http_requests_total")
}

func TestVoiceWebSocket(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "It is noon.", PCM: []byte{1, 0}})
	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/voice/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.True(t, store.ValidID(resp.Header.Get(SessionHeader)))

	read := func() types.VoiceFrame {
		t.Helper()
		var f types.VoiceFrame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}
	assert.Equal(t, types.VoiceFrame{Type: frameState, State: string(session.Idle)}, read())

	require.NoError(t, conn.WriteJSON(types.VoiceFrame{Type: frameListen, Lang: "en-US"}))
	require.NoError(t, conn.WriteJSON(types.VoiceFrame{Type: frameTranscript, Text: "what time is it"}))

	var frames []types.VoiceFrame
	for {
		f := read()
		frames = append(frames, f)
		if f.Type == frameAudio || f.Type == frameError {
			break
		}
	}

	var states []string
	var turns []types.Turn
	for _, f := range frames {
		switch f.Type {
		case frameState:
			states = append(states, f.State)
		case frameTurn:
			turns = append(turns, *f.Turn)
		}
	}
	assert.Equal(t, []string{"listening", "submitting", "succeeded", "idle"}, states)
	assert.Equal(t, []types.Turn{
		{Speaker: types.SpeakerUser, Text: "what time is it"},
		{Speaker: types.SpeakerAssistant, Text: "It is noon."},
	}, turns)
	last := frames[len(frames)-1]
	require.Equal(t, frameAudio, last.Type)
	assert.True(t, strings.HasPrefix(last.Media, "data:audio/wav;base64,"))
}

func TestVoiceWebSocketRecognitionError(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "unused"})
	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/voice/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() types.VoiceFrame {
		var f types.VoiceFrame
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		require.NoError(t, conn.ReadJSON(&f))
		return f
	}
	read() // initial state

	require.NoError(t, conn.WriteJSON(types.VoiceFrame{Type: frameListen}))
	require.NoError(t, conn.WriteJSON(types.VoiceFrame{Type: frameStop}))

	assert.Equal(t, "listening", read().State)
	assert.Equal(t, "idle", read().State)
	assert.Zero(t, h.fake.TotalCalls())
}

type voiceClient struct {
	t    *testing.T
	conn *websocket.Conn
	sid  string
}

func dialVoice(t *testing.T, ts *httptest.Server, sid string) *voiceClient {
	t.Helper()
	hdr := http.Header{}
	if sid != "" {
		hdr.Set(SessionHeader, sid)
	}
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/voice/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &voiceClient{t: t, conn: conn, sid: resp.Header.Get(SessionHeader)}
}

func (c *voiceClient) send(f types.VoiceFrame) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(f))
}

func (c *voiceClient) read() types.VoiceFrame {
	c.t.Helper()
	var f types.VoiceFrame
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(c.t, c.conn.ReadJSON(&f))
	return f
}

// readUntil collects frames up to and including the first of type typ.
func (c *voiceClient) readUntil(typ string) []types.VoiceFrame {
	c.t.Helper()
	var frames []types.VoiceFrame
	for {
		f := c.read()
		frames = append(frames, f)
		if f.Type == typ {
			return frames
		}
	}
}

func TestVoiceWebSocketKeepsSessionAlive(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "Still here.", PCM: []byte{1, 0}}, func(c *config.Config) {
		c.SessionTTL = 50 * time.Millisecond
	})
	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	sid := store.NewID()
	vc := dialVoice(t, ts, sid)
	require.Equal(t, sid, vc.sid)
	vc.read() // initial state, handler is attached

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, h.sessions.Prune())

	vc.send(types.VoiceFrame{Type: frameListen})
	vc.send(types.VoiceFrame{Type: frameTranscript, Text: "are you there"})
	vc.readUntil(frameAudio)

	rec := h.do(http.MethodGet, "/api/voice/transcript", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []types.Turn{
		{Speaker: types.SpeakerUser, Text: "are you there"},
		{Speaker: types.SpeakerAssistant, Text: "Still here."},
	}, decode[types.TranscriptResponse](t, rec).Turns)
}

func TestVoiceWebSocketRepeatedListen(t *testing.T) {
	h := newHarness(t, &llmtest.Fake{Text: "Once.", PCM: []byte{1, 0}})
	ts := httptest.NewServer(h.srv.Router())
	defer ts.Close()

	vc := dialVoice(t, ts, "")
	vc.read()

	vc.send(types.VoiceFrame{Type: frameListen})
	vc.send(types.VoiceFrame{Type: frameListen})
	vc.send(types.VoiceFrame{Type: frameListen})
	vc.send(types.VoiceFrame{Type: frameTranscript, Text: "hello"})

	var states []string
	for _, f := range vc.readUntil(frameAudio) {
		if f.Type == frameState {
			states = append(states, f.State)
		}
	}
	assert.Equal(t, []string{"listening", "submitting", "succeeded", "idle"}, states)
	assert.Equal(t, 1, h.fake.Calls("GenerateText"))

	// No recognizer is left waiting: a stop while idle is simply buffered
	// and discarded by the next listen.
	vc.send(types.VoiceFrame{Type: frameStop})
	vc.send(types.VoiceFrame{Type: frameListen})
	vc.send(types.VoiceFrame{Type: frameTranscript, Text: "again"})
	vc.readUntil(frameAudio)
	assert.Equal(t, 2, h.fake.Calls("GenerateText"))
}

func TestNewSessionLoggedOnServerLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	p := prompts.Default()
	a := capability.New(capability.Options{Backend: &llmtest.Fake{Text: "hi"}, Prompts: p, Logger: zerolog.Nop()})
	cfg := config.Config{AllowedOrigin: "*", SessionTTL: time.Minute}
	srv := NewServer(cfg, a, store.NewMemoryStore(cfg.SessionTTL, a, p.Voice.ErrorReply), logger)

	req := httptest.NewRequest(http.MethodGet, "/api/voice/transcript", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, buf.String(), "creating new session")
	assert.Contains(t, buf.String(), rec.Header().Get(SessionHeader))
}
