package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailpilot-backend/internal/triage/domain"
	"mailpilot-backend/internal/triage/usecase"
)

type TriageHandler struct {
	triageUsecase usecase.TriageUsecase
}

func NewTriageHandler(triageUsecase usecase.TriageUsecase) *TriageHandler {
	return &TriageHandler{
		triageUsecase: triageUsecase,
	}
}

type runRequest struct {
	Intent       string          `json:"intent"`
	MustHave     []string        `json:"must_have"`
	NiceToHave   []string        `json:"nice_to_have"`
	Limit        int             `json:"limit"`
	FullScan     bool            `json:"full_scan"`
	ForceRefresh bool            `json:"force_refresh"`
	Signals      *domain.Signals `json:"signals"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
}

func (h *TriageHandler) StartRun(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.AccessToken == "" && req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mailbox credentials required"})
		return
	}

	result, err := h.triageUsecase.Run(c.Request.Context(), usecase.RunInput{
		UserID:       userID,
		Intent:       req.Intent,
		MustHave:     req.MustHave,
		NiceToHave:   req.NiceToHave,
		Limit:        req.Limit,
		FullScan:     req.FullScan,
		ForceRefresh: req.ForceRefresh,
		Signals:      req.Signals,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *TriageHandler) GetRun(c *gin.Context) {
	userID := c.GetString("userID")
	runID := c.Param("id")

	run, err := h.triageUsecase.GetRun(c.Request.Context(), userID, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *TriageHandler) GetRunAnalyses(c *gin.Context) {
	userID := c.GetString("userID")
	runID := c.Param("id")

	analyses, err := h.triageUsecase.GetAnalyses(c.Request.Context(), userID, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (h *TriageHandler) GetRunSuggestions(c *gin.Context) {
	userID := c.GetString("userID")
	runID := c.Param("id")

	suggestions, err := h.triageUsecase.GetSuggestions(c.Request.Context(), userID, runID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
