package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mailpilot-backend/internal/prefs/usecase"
)

type PreferencesHandler struct {
	prefsUsecase usecase.PreferencesUsecase
}

func NewPreferencesHandler(prefsUsecase usecase.PreferencesUsecase) *PreferencesHandler {
	return &PreferencesHandler{
		prefsUsecase: prefsUsecase,
	}
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	prefs, err := h.prefsUsecase.Get(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, prefs)
}

type updateRequest struct {
	VIPSenders     []string `json:"vip_senders"`
	UrgentKeywords []string `json:"urgent_keywords"`
}

func (h *PreferencesHandler) Update(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	prefs, err := h.prefsUsecase.Update(userID, req.VIPSenders, req.UrgentKeywords)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, prefs)
}
