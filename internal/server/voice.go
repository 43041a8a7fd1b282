package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"gwgp-assistant-backend/internal/session"
	"gwgp-assistant-backend/internal/store"
	"gwgp-assistant-backend/internal/types"
)

// Voice channel frame types.
const (
	frameListen           = "listen"
	frameTranscript       = "transcript"
	frameRecognitionError = "recognition_error"
	frameStop             = "stop"

	frameState = "state"
	frameTurn  = "turn"
	frameAudio = "audio"
	frameError = "error"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 64 << 10
)

func originChecker(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed == "*" {
			return true
		}
		if strings.EqualFold(origin, allowed) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type recognition struct {
	text string
	err  error
}

// wsRecognizer turns transcript frames from the browser's speech
// recognition into session.Recognizer results. One result is buffered
// so a transcript that beats the listening goroutine is not lost.
type wsRecognizer struct {
	results chan recognition
}

func newWSRecognizer() *wsRecognizer {
	return &wsRecognizer{results: make(chan recognition, 1)}
}

func (w *wsRecognizer) Recognize(ctx context.Context, _ string) (string, error) {
	select {
	case res := <-w.results:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *wsRecognizer) deliver(res recognition) {
	select {
	case w.results <- res:
	default:
	}
}

func (w *wsRecognizer) drain() {
	for {
		select {
		case <-w.results:
		default:
			return
		}
	}
}

// handleVoiceWS bridges the browser's speech recognition to the session's
// conversation and streams state, turns and synthesized audio back.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	sid := getSessionID(r)
	hdr := http.Header{}
	if sid == "" {
		sid = store.NewID()
		hdr.Add("Set-Cookie", sessionCookie(sid, s.cfg.SessionTTL).String())
	}
	hdr.Set(SessionHeader, sid)

	conn, err := s.upgrader.Upgrade(w, r, hdr)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.log.With().Str("session", sid).Logger()
	sess := s.sessions.Get(sid)
	detach := sess.Attach()
	defer detach()
	conv := sess.Conversation()
	machine := conv.Machine()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan types.VoiceFrame, 32)
	send := func(f types.VoiceFrame) {
		select {
		case out <- f:
		case <-ctx.Done():
		}
	}
	go func() {
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteJSON(f); err != nil {
					log.Debug().Err(err).Msg("websocket write failed")
					cancel()
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	unsubscribe := machine.Subscribe(func(ev session.Event) {
		f := types.VoiceFrame{Type: frameState, State: string(ev.State)}
		if ev.State == session.Failed {
			f.Error = "request failed"
		}
		send(f)
	})
	defer unsubscribe()
	removeWatcher := conv.OnTurn(func(turn types.Turn) {
		t := turn
		send(types.VoiceFrame{Type: frameTurn, Turn: &t})
	})
	defer removeWatcher()

	send(types.VoiceFrame{Type: frameState, State: string(machine.State())})

	rec := newWSRecognizer()
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var in types.VoiceFrame
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("voice channel closed")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch in.Type {
		case frameListen:
			started, err := machine.StartListening()
			if err != nil {
				send(types.VoiceFrame{Type: frameError, Error: err.Error()})
				continue
			}
			if !started {
				continue
			}
			rec.drain()
			lang := in.Lang
			go func() {
				reply, err := conv.Listen(ctx, rec, lang)
				if reply.Media != "" {
					send(types.VoiceFrame{Type: frameAudio, Media: reply.Media})
				}
				switch {
				case err == nil, errors.Is(err, session.ErrNoSpeech), errors.Is(err, context.Canceled):
				default:
					log.Warn().Err(err).Msg("voice turn failed")
					send(types.VoiceFrame{Type: frameError, Error: "voice turn failed"})
				}
			}()
		case frameTranscript:
			if machine.State() == session.Listening {
				rec.deliver(recognition{text: in.Text})
			} else {
				send(types.VoiceFrame{Type: frameError, Error: "not listening"})
			}
		case frameRecognitionError:
			msg := in.Error
			if msg == "" {
				msg = "speech recognition failed"
			}
			rec.deliver(recognition{err: errors.New(msg)})
		case frameStop:
			rec.deliver(recognition{err: session.ErrNoSpeech})
		default:
			send(types.VoiceFrame{Type: frameError, Error: "unknown frame type " + in.Type})
		}
	}
}
