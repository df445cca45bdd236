package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examtrail/examtrail-backend/internal/bank"
	"github.com/examtrail/examtrail-backend/internal/entitlement"
	"github.com/examtrail/examtrail-backend/internal/exam"
	"github.com/examtrail/examtrail-backend/internal/middleware"
	"github.com/examtrail/examtrail-backend/internal/model"
	"github.com/examtrail/examtrail-backend/internal/response"
	"github.com/examtrail/examtrail-backend/internal/service"
	"github.com/examtrail/examtrail-backend/internal/validator"
	"github.com/examtrail/examtrail-backend/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionHandler drives a learner's exam attempt over HTTP: paper
// delivery, session lifecycle, navigation, answers and submission.
type SessionHandler struct {
	manager *exam.Manager
	loader  *bank.CachedLoader
	gate    entitlement.Gate
	queue   *worker.Queue
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	manager *exam.Manager,
	loader *bank.CachedLoader,
	gate entitlement.Gate,
	queue *worker.Queue,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		loader:  loader,
		gate:    gate,
		queue:   queue,
		log:     log.With().Str("component", "session_handler").Logger(),
	}
}

// GetExamPaper godoc
// GET /api/v1/exams/:exam_id/paper
// Returns the question paper without answer keys. Entitlement-gated.
func (h *SessionHandler) GetExamPaper(c *gin.Context) {
	claims, examID, ok := h.requireExamContext(c)
	if !ok {
		return
	}
	if !h.requireEntitled(c, claims.LearnerID, examID) {
		return
	}

	payload, err := h.loader.LoadPayload(c.Request.Context(), examID)
	if err != nil {
		h.failLoadError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": payload})
}

// StartSession godoc
// POST /api/v1/exams/:exam_id/session
// Starts the learner's attempt, or resumes an interrupted one. The
// response says which happened.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims, examID, ok := h.requireExamContext(c)
	if !ok {
		return
	}
	if !h.requireEntitled(c, claims.LearnerID, examID) {
		return
	}

	sess, resumed, err := h.manager.StartOrResume(c.Request.Context(), claims.LearnerID, examID)
	if err != nil {
		h.failLoadError(c, err)
		return
	}

	state := sess.State()
	if state.State == model.StateSubmitted {
		// The restored snapshot was already terminal, or its budget ran
		// out while it sat in the store. Either way the attempt is over.
		report, _ := sess.Report()
		response.Success(c, http.StatusOK, gin.H{
			"resumed": resumed,
			"state":   state,
			"report":  report,
		})
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"resumed": resumed,
		"state":   state,
	})
}

// GetState godoc
// GET /api/v1/exams/:exam_id/session
// Returns the live session view: position, answers, remaining time.
func (h *SessionHandler) GetState(c *gin.Context) {
	_, sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, gin.H{"state": sess.State()})
}

// SetPosition godoc
// PUT /api/v1/exams/:exam_id/session/position
// Moves the session cursor. Any question may be revisited.
func (h *SessionHandler) SetPosition(c *gin.Context) {
	_, sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req model.PositionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := sess.GoTo(*req.Index); err != nil {
		h.failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"position": *req.Index})
}

// SaveAnswer godoc
// PUT /api/v1/exams/:exam_id/session/answers/:question_id
// Records (or replaces) the learner's answer to one question.
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	claims, sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ans, err := sess.Answer(questionID, model.AnswerPayload{
		Selected: req.Selected,
		Text:     req.Text,
	})
	if err != nil {
		h.failSessionError(c, err)
		return
	}

	h.publishAnswer(c, claims.LearnerID, sess.ExamID(), questionID, &ans)

	response.Success(c, http.StatusOK, gin.H{
		"answer":            ans,
		"remaining_seconds": sess.Remaining().Seconds(),
	})
}

// ClearAnswer godoc
// DELETE /api/v1/exams/:exam_id/session/answers/:question_id
// Removes the learner's answer. The question reverts to unanswered.
func (h *SessionHandler) ClearAnswer(c *gin.Context) {
	claims, sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := sess.ClearAnswer(questionID); err != nil {
		h.failSessionError(c, err)
		return
	}

	h.publishAnswer(c, claims.LearnerID, sess.ExamID(), questionID, nil)

	response.Success(c, http.StatusOK, gin.H{
		"remaining_seconds": sess.Remaining().Seconds(),
	})
}

// Submit godoc
// POST /api/v1/exams/:exam_id/session/submit
// Finalizes the attempt and returns the scored report. Submitting an
// already-submitted session returns the same report again.
func (h *SessionHandler) Submit(c *gin.Context) {
	_, sess, ok := h.requireSession(c)
	if !ok {
		return
	}

	report, err := sess.Submit()
	if err != nil {
		h.failSessionError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}

// ─── Helpers ───────────────────────────────────────────────────────

func (h *SessionHandler) requireExamContext(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}

	return claims, examID, true
}

func (h *SessionHandler) requireSession(c *gin.Context) (*service.Claims, *exam.Session, bool) {
	claims, examID, ok := h.requireExamContext(c)
	if !ok {
		return nil, nil, false
	}

	sess, ok := h.manager.Get(claims.LearnerID, examID)
	if !ok {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
		return nil, nil, false
	}

	return claims, sess, true
}

func (h *SessionHandler) requireEntitled(c *gin.Context, learnerID int, examID uuid.UUID) bool {
	entitled, err := h.gate.MayStart(c.Request.Context(), learnerID, examID)
	if err != nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
		return false
	}
	if !entitled {
		response.Fail(c, http.StatusForbidden, response.ErrNotEntitled)
		return false
	}
	return true
}

// publishAnswer queues the answer (or clear, when ans is nil) for
// durable persistence. Best effort; the snapshot store is the source
// of truth for a live session.
func (h *SessionHandler) publishAnswer(c *gin.Context, learnerID int, examID, questionID uuid.UUID, ans *model.Answer) {
	event := worker.AnswerEvent{
		LearnerID:  learnerID,
		ExamID:     examID.String(),
		QuestionID: questionID.String(),
	}
	if ans == nil {
		event.Cleared = true
	} else {
		raw, err := json.Marshal(ans)
		if err != nil {
			h.log.Error().Err(err).Msg("Marshal answer failed")
			return
		}
		event.Answer = raw
	}
	h.queue.PublishAnswer(c.Request.Context(), event)
}

func (h *SessionHandler) failSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exam.ErrNotStarted):
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotActive)
	case errors.Is(err, exam.ErrSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
	case errors.Is(err, exam.ErrIndexOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrIndexOutOfRange)
	case errors.Is(err, exam.ErrUnknownQuestion):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, exam.ErrInvalidAnswer):
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidAnswer)
	default:
		h.log.Error().Err(err).Msg("Session operation failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func (h *SessionHandler) failLoadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, bank.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, bank.ErrUnavailable), errors.Is(err, entitlement.ErrUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
	case errors.Is(err, exam.ErrCorruptState):
		response.Fail(c, http.StatusConflict, response.ErrCorruptState)
	default:
		h.log.Error().Err(err).Msg("Session start failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
