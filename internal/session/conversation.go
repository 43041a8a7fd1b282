package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gwgp-assistant-backend/internal/capability"
	"gwgp-assistant-backend/internal/types"
)

// ErrNoSpeech means recognition ended without a transcript.
var ErrNoSpeech = errors.New("no speech recognized")

// Responder answers and voices a voice turn. *capability.Assistant
// satisfies it.
type Responder interface {
	Answer(ctx context.Context, req types.AnswerRequest) (types.AnswerResponse, error)
	Speak(ctx context.Context, req types.SpeechRequest) (types.SpeechResponse, error)
}

// Recognizer is the speech-recognition capability. Recognize blocks for
// one utterance and returns its final transcript, or an error when
// recognition fails or input ends first.
type Recognizer interface {
	Recognize(ctx context.Context, lang string) (string, error)
}

// Reply is the outcome of one voice turn. Media is a WAV data URI and is
// empty when synthesis failed.
type Reply struct {
	Text  string
	Media string
}

type turnWatcher struct {
	id int
	fn func(types.Turn)
}

// Conversation is the voice page: a machine plus an append-only
// transcript that outlives individual request cycles.
type Conversation struct {
	machine    *Machine
	responder  Responder
	errorReply string

	mu       sync.Mutex
	turns    []types.Turn
	watchers []turnWatcher
	nextID   int
}

func NewConversation(responder Responder, errorReply string) *Conversation {
	return &Conversation{
		machine:    NewMachine(PageVoice),
		responder:  responder,
		errorReply: errorReply,
	}
}

func (c *Conversation) Machine() *Machine { return c.machine }

// Transcript returns a copy of every turn so far.
func (c *Conversation) Transcript() []types.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Turn(nil), c.turns...)
}

// OnTurn calls fn with every turn appended from now on.
func (c *Conversation) OnTurn(fn func(types.Turn)) (remove func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, turnWatcher{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Conversation) append(speaker types.Speaker, text string) {
	turn := types.Turn{Speaker: speaker, Text: text}
	c.mu.Lock()
	c.turns = append(c.turns, turn)
	watchers := append([]turnWatcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		w.fn(turn)
	}
}

// HandleUtterance runs one voice turn: record the user, answer, record
// the assistant, then synthesize the reply. Any failure records the
// error reply and settles the cycle as failed; the reply is still
// returned alongside the error.
func (c *Conversation) HandleUtterance(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: empty utterance", capability.ErrInvalidInput)
	}

	var reply Reply
	err := c.machine.Submit(ctx, func(ctx context.Context) error {
		c.append(types.SpeakerUser, text)

		ans, err := c.responder.Answer(ctx, types.AnswerRequest{Question: text})
		if err != nil {
			c.append(types.SpeakerAssistant, c.errorReply)
			reply = Reply{Text: c.errorReply}
			return err
		}
		c.append(types.SpeakerAssistant, ans.Answer)
		reply = Reply{Text: ans.Answer}

		speech, err := c.responder.Speak(ctx, types.SpeechRequest{Text: ans.Answer})
		if err != nil {
			c.append(types.SpeakerAssistant, c.errorReply)
			return err
		}
		reply.Media = speech.Media
		return nil
	})
	return reply, err
}

// Listen drives Idle -> Listening -> Submitting from one recognition.
// A recognition error or empty transcript returns the page to Idle.
func (c *Conversation) Listen(ctx context.Context, rec Recognizer, lang string) (Reply, error) {
	if _, err := c.machine.StartListening(); err != nil {
		return Reply{}, err
	}
	text, err := rec.Recognize(ctx, lang)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrNoSpeech
	}
	if err != nil {
		c.machine.StopListening()
		return Reply{}, err
	}
	return c.HandleUtterance(ctx, text)
}
