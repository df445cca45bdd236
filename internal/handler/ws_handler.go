package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/examtrail/examtrail-backend/internal/exam"
	"github.com/examtrail/examtrail-backend/internal/middleware"
	"github.com/examtrail/examtrail-backend/internal/model"
	ws "github.com/examtrail/examtrail-backend/internal/websocket"
	"github.com/examtrail/examtrail-backend/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// tickInterval is how often the countdown is pushed to the client.
const tickInterval = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live exam session: answers in, countdown and the
// forced-submit push out.
type WSHandler struct {
	manager  *exam.Manager
	queue    *worker.Queue
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(manager *exam.Manager, queue *worker.Queue, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:  manager,
		queue:    queue,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ExamStream godoc
// WS /ws/v1/exams/:exam_id/stream
// Upgrades to WebSocket for real-time answering and countdown. The
// session must already be started over the REST API.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	sess, ok := h.manager.Get(claims.LearnerID, examID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session for this exam"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("learner_id", claims.LearnerID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Learner connected")

	stream := &examStream{
		conn:  conn,
		sess:  sess,
		queue: h.queue,
		log:   wsLog,
		done:  make(chan struct{}),
	}
	stream.run()
}

// examStream is one learner's WebSocket attached to one live session.
// Writes come from three places (the read loop, the ticker, the
// finalize hook), so they serialize through writeMu.
type examStream struct {
	conn  *websocket.Conn
	sess  *exam.Session
	queue *worker.Queue
	log   zerolog.Logger

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (s *examStream) run() {
	defer s.closeOnce.Do(func() { close(s.done) })

	// The client rebuilds its screen from this before anything else.
	s.write(ws.StateResponse{Event: ws.EventState, State: s.sess.State()})

	// Push the terminal transition the moment it happens, whether the
	// learner submitted here, on another tab, or the timer ran out.
	s.sess.OnFinalize(func(report *model.SubmissionReport) {
		s.write(ws.SubmittedResponse{
			Event:  ws.EventSubmitted,
			Forced: report.Forced,
			Report: report,
		})
	})

	go s.tickLoop()

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(s.conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				s.log.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			s.handleAnswer(&msg)
		case ws.ActionClear:
			s.handleClear(&msg)
		case ws.ActionPosition:
			s.handlePosition(&msg)
		case ws.ActionSubmit:
			s.handleSubmit()
		case ws.ActionPing:
			s.write(ws.PongResponse{Event: ws.EventPong})
		default:
			s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			s.writeError("unknown action: " + string(msg.Action))
		}
	}
}

// tickLoop pushes the remaining time until the connection closes or
// the session leaves IN_PROGRESS.
func (s *examStream) tickLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.sess.Lifecycle() != model.StateInProgress {
				return
			}
			s.write(ws.TickResponse{
				Event:            ws.EventTick,
				RemainingSeconds: s.sess.Remaining().Seconds(),
			})
		}
	}
}

func (s *examStream) handleAnswer(msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		s.writeError("invalid q_id format")
		return
	}

	ans, err := s.sess.Answer(questionID, model.AnswerPayload{
		Selected: msg.Selected,
		Text:     msg.Text,
	})
	if err != nil {
		s.writeError(err.Error())
		return
	}

	if raw, err := json.Marshal(ans); err == nil {
		s.queue.PublishAnswer(context.Background(), worker.AnswerEvent{
			LearnerID:  s.sess.LearnerID(),
			ExamID:     s.sess.ExamID().String(),
			QuestionID: questionID.String(),
			Answer:     raw,
		})
	}

	s.write(ws.SavedResponse{
		Event:            ws.EventSaved,
		QID:              msg.QID,
		RemainingSeconds: s.sess.Remaining().Seconds(),
	})
}

func (s *examStream) handleClear(msg *ws.RequestPayload) {
	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		s.writeError("invalid q_id format")
		return
	}

	if err := s.sess.ClearAnswer(questionID); err != nil {
		s.writeError(err.Error())
		return
	}

	s.queue.PublishAnswer(context.Background(), worker.AnswerEvent{
		LearnerID:  s.sess.LearnerID(),
		ExamID:     s.sess.ExamID().String(),
		QuestionID: questionID.String(),
		Cleared:    true,
	})

	s.write(ws.SavedResponse{
		Event:            ws.EventSaved,
		QID:              msg.QID,
		RemainingSeconds: s.sess.Remaining().Seconds(),
	})
}

func (s *examStream) handlePosition(msg *ws.RequestPayload) {
	if msg.Index == nil {
		s.writeError("index is required")
		return
	}
	if err := s.sess.GoTo(*msg.Index); err != nil {
		s.writeError(err.Error())
		return
	}
	s.write(ws.SavedResponse{
		Event:            ws.EventSaved,
		RemainingSeconds: s.sess.Remaining().Seconds(),
	})
}

// handleSubmit finalizes the session. The submitted event reaches the
// client through the OnFinalize hook registered at connect.
func (s *examStream) handleSubmit() {
	if _, err := s.sess.Submit(); err != nil {
		s.writeError(err.Error())
		return
	}
	s.log.Info().Msg("Session submitted over WebSocket")
}

func (s *examStream) write(v interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := ws.WriteTyped(s.conn, v); err != nil {
		s.log.Debug().Err(err).Msg("WebSocket write failed")
	}
}

func (s *examStream) writeError(msg string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = ws.WriteError(s.conn, msg)
}
