package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/soldier14/survey-runtime/internal/app"
	"github.com/soldier14/survey-runtime/internal/domain"
)

// WSHandler bridges one renderer connection to one survey session. The
// renderer sends action messages and receives full UI-state snapshots; it
// holds no survey logic of its own.
type WSHandler struct {
	service        *app.SurveyService
	defaultBackend string
	upgrader       websocket.Upgrader
}

func NewWSHandler(service *app.SurveyService, defaultBackend string) *WSHandler {
	return &WSHandler{
		service:        service,
		defaultBackend: defaultBackend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type updatePayload struct {
	QuestionID string   `json:"questionId"`
	Kind       string   `json:"kind"`
	Text       string   `json:"text"`
	Selection  []string `json:"selection"`
	Rating     int      `json:"rating"`
	Value      float64  `json:"value"`
	Low        float64  `json:"low"`
	High       float64  `json:"high"`
	Statement  string   `json:"statement"`
	Choice     string   `json:"choice"`
	Date       string   `json:"date"` // 2006-01-02
	Time       string   `json:"time"` // 15:04
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// answerView is the wire shape of one answer in a content snapshot.
type answerView struct {
	QuestionID string `json:"questionId"`
	Kind       string `json:"kind"`
	Title      string `json:"title"`
	Required   bool   `json:"required"`
	Answered   bool   `json:"answered"`
	Value      any    `json:"value,omitempty"`
	Display    string `json:"display,omitempty"`
}

type contentState struct {
	PageIndex int               `json:"pageIndex"`
	PageCount int               `json:"pageCount"`
	PageTitle string            `json:"pageTitle"`
	Answers   []answerView      `json:"answers"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type statePayload struct {
	Phase   app.Phase        `json:"phase"`
	Summary *app.SummaryView `json:"summary,omitempty"`
	Content *contentState    `json:"content,omitempty"`
}

var errUnsupportedMessage = errors.New("unsupported message type")

// ServeWS upgrades the request and runs the action/state message loop for
// a single session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("survey")
	if ref == "" {
		http.Error(w, "missing survey", http.StatusBadRequest)
		return
	}
	backend := r.URL.Query().Get("backend")
	if backend == "" {
		backend = h.defaultBackend
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session, err := h.service.Open(r.Context(), ref, backend)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	notifyDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Background persistence settles after the session has already
	// returned to the summary; push a refreshed snapshot when it does.
	persisted := make(chan struct{}, 1)
	session.SetCompletionListener(func(domain.Summary) {
		select {
		case persisted <- struct{}{}:
		default:
		}
	})
	go func() {
		defer close(notifyDone)
		for {
			select {
			case <-persisted:
				select {
				case send <- stateMessage(session):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- stateMessage(session)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := dispatch(session, inbound); err != nil {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			continue
		}
		send <- stateMessage(session)
	}

	close(closeSignals)
	<-notifyDone
	close(send)
	<-writerDone
}

func dispatch(session *app.Session, inbound inboundMessage) error {
	switch inbound.Type {
	case "take":
		return session.Take()
	case "cancel":
		return session.Cancel()
	case "back":
		return session.Back()
	case "advance":
		return session.Advance()
	case "update":
		var payload updatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return err
		}
		return applyUpdate(session, payload)
	default:
		return errUnsupportedMessage
	}
}

func applyUpdate(session *app.Session, p updatePayload) error {
	switch p.Kind {
	case "text":
		return session.UpdateText(p.QuestionID, p.Text)
	case "selection":
		return session.UpdateSelection(p.QuestionID, p.Selection)
	case "rating":
		return session.UpdateRating(p.QuestionID, p.Rating)
	case "sliderValue":
		return session.UpdateSliderValue(p.QuestionID, p.Value)
	case "sliderRange":
		return session.UpdateSliderRange(p.QuestionID, p.Low, p.High)
	case "likert":
		return session.UpdateLikert(p.QuestionID, p.Statement, p.Choice)
	case "date":
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return err
		}
		return session.UpdateDate(p.QuestionID, date)
	case "time":
		clock, err := time.Parse("15:04", p.Time)
		if err != nil {
			return err
		}
		return session.UpdateTime(p.QuestionID, clock)
	default:
		return errUnsupportedMessage
	}
}

func stateMessage(session *app.Session) outboundMessage[any] {
	state := session.State()
	payload := statePayload{Phase: state.Phase, Summary: state.Summary}
	if state.Content != nil {
		content := &contentState{
			PageIndex: state.Content.PageIndex,
			PageCount: state.Content.PageCount,
			PageTitle: state.Content.PageTitle,
			Errors:    state.Content.Errors,
		}
		for _, answer := range state.Content.Answers {
			content.Answers = append(content.Answers, answerView{
				QuestionID: answer.Question.ID,
				Kind:       string(answer.Question.Kind()),
				Title:      answer.Question.Title,
				Required:   answer.Question.Required,
				Answered:   answer.Answered,
				Value:      answer.Value,
				Display:    answer.Display,
			})
		}
		payload.Content = content
	}
	return outboundMessage[any]{Type: "state", Payload: payload}
}
