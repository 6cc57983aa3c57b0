package handler

import (
	"errors"
	"net/http"

	"session-service/internal/account"
	"session-service/internal/auth"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

func (h *Handler) createAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.manager.CreateAccount(
		c.Request.Context(),
		req.Email,
		req.Password,
		req.DisplayName,
	)
	if errors.Is(err, account.ErrProfileIncomplete) {
		// the account exists; the client may sign in and retry the name
		classified := auth.Classify(err)
		c.JSON(statusFor(classified.Kind), gin.H{
			"error":           errorView{Kind: classified.Kind, Message: classified.Message},
			"account_created": true,
			"session":         view(h.manager.State()),
		})
		return
	}

	if err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, view(h.manager.State()))
}
