package types

// MediaKind tags the single attachment a question may carry.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is an attachment encoded as a data URI.
type Media struct {
	DataURI string    `json:"dataUri"`
	Type    MediaKind `json:"type"`
}

type AnswerRequest struct {
	Question string `json:"question"`
	Media    *Media `json:"media,omitempty"`
}

type AnswerResponse struct {
	Answer string `json:"answer"`
}

type EditImageRequest struct {
	PhotoDataURI string `json:"photoDataUri"`
	Prompt       string `json:"prompt"`
}

type EditImageResponse struct {
	EditedPhotoDataURI string `json:"editedPhotoDataUri"`
}

type SpeechRequest struct {
	Text string `json:"text"`
}

type SpeechResponse struct {
	Media string `json:"media"`
}

type VideoRequest struct {
	Prompt string `json:"prompt"`
}

type VideoResponse struct {
	VideoDataURI string `json:"videoDataUri"`
}

type BriefingResponse struct {
	Briefing string `json:"briefing"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Results string `json:"results"`
}

// Article is one headline returned by the news tool.
type Article struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Turn is one utterance in a voice conversation.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

type VoiceTurnRequest struct {
	Text string `json:"text"`
}

type VoiceTurnResponse struct {
	SessionID  string `json:"sessionId"`
	Transcript []Turn `json:"transcript"`
	Reply      string `json:"reply"`
	Media      string `json:"media,omitempty"`
}

type TranscriptResponse struct {
	SessionID string `json:"sessionId"`
	Turns     []Turn `json:"turns"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// VoiceFrame is exchanged on the voice WebSocket in both directions.
// Client frames use Type listen, transcript, recognition_error or stop;
// server frames use state, turn, audio or error.
type VoiceFrame struct {
	Type  string `json:"type"`
	Lang  string `json:"lang,omitempty"`
	Text  string `json:"text,omitempty"`
	State string `json:"state,omitempty"`
	Turn  *Turn  `json:"turn,omitempty"`
	Media string `json:"media,omitempty"`
	Error string `json:"error,omitempty"`
}
