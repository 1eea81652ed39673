package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/cron-agent/internal/api/dto"
	"github.com/cuongbtq/cron-agent/internal/settings"
	"github.com/gin-gonic/gin"
)

// SettingsHandler updates completion settings
type SettingsHandler struct {
	logger *slog.Logger
	store  SettingsStore
	cipher *settings.Cipher
}

// NewSettingsHandler creates a new SettingsHandler instance
func NewSettingsHandler(deps *Dependencies) *SettingsHandler {
	return &SettingsHandler{
		logger: deps.Logger,
		store:  deps.Settings,
		cipher: deps.Cipher,
	}
}

// UpdateSettings handles PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	update := settings.Update{
		ModelBaseURL: strings.TrimSpace(req.ModelBaseURL),
		ModelName:    strings.TrimSpace(req.ModelName),
	}

	if req.ModelAPIKey != nil || req.BraveAPIKey != nil {
		if h.cipher == nil {
			h.logger.Error("Cannot store API keys without an encryption key")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Encryption is not configured",
			})
			return
		}

		var err error
		if update.ModelAPIKeyEnc, err = h.encrypt(req.ModelAPIKey); err != nil {
			h.respondEncryptError(c, err)
			return
		}
		if update.BraveAPIKeyEnc, err = h.encrypt(req.BraveAPIKey); err != nil {
			h.respondEncryptError(c, err)
			return
		}
	}

	if err := h.store.Save(c.Request.Context(), update); err != nil {
		h.logger.Error("Failed to save settings", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to save settings",
		})
		return
	}

	h.logger.Info("Settings updated",
		slog.String("model", update.ModelName),
		slog.Bool("model_key_changed", update.ModelAPIKeyEnc != nil),
		slog.Bool("search_key_changed", update.BraveAPIKeyEnc != nil),
	)

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SettingsHandler) encrypt(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	enc, err := h.cipher.Encrypt(strings.TrimSpace(*value))
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

func (h *SettingsHandler) respondEncryptError(c *gin.Context, err error) {
	h.logger.Error("Failed to encrypt API key", slog.Any("error", err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to save settings",
	})
}
