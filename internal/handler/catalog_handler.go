package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/examtrail/examtrail-backend/internal/middleware"
	"github.com/examtrail/examtrail-backend/internal/repository"
	"github.com/examtrail/examtrail-backend/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CatalogHandler serves the browsable exam catalog and a learner's
// attempt history.
type CatalogHandler struct {
	subjectRepo *repository.SubjectRepository
	examRepo    *repository.ExamRepository
	sessionRepo *repository.SessionRepository
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(
	subjectRepo *repository.SubjectRepository,
	examRepo *repository.ExamRepository,
	sessionRepo *repository.SessionRepository,
) *CatalogHandler {
	return &CatalogHandler{
		subjectRepo: subjectRepo,
		examRepo:    examRepo,
		sessionRepo: sessionRepo,
	}
}

// ListSubjects godoc
// GET /api/v1/catalog/subjects
// Returns all subjects with their published exam counts.
func (h *CatalogHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.subjectRepo.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"subjects": subjects})
}

// ListExams godoc
// GET /api/v1/catalog/subjects/:subject_id/exams
// Returns the published exams of one subject.
func (h *CatalogHandler) ListExams(c *gin.Context) {
	subjectID, err := strconv.Atoi(c.Param("subject_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if _, err := h.subjectRepo.GetByID(c.Request.Context(), subjectID); err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	exams, err := h.examRepo.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// ListAttempts godoc
// GET /api/v1/me/attempts
// Returns the authenticated learner's completed attempts, newest first.
func (h *CatalogHandler) ListAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.sessionRepo.ListByLearner(c.Request.Context(), claims.LearnerID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// GetAttemptReport godoc
// GET /api/v1/me/attempts/:exam_id/report
// Returns the full submission report of a completed attempt.
func (h *CatalogHandler) GetAttemptReport(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	report, err := h.sessionRepo.GetReport(c.Request.Context(), examID, claims.LearnerID)
	if err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"report": report})
}
