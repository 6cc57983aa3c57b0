package handler

import (
	"errors"
	"net/http"

	"session-service/internal/auth"
	"session-service/internal/auth/provider"

	"github.com/gin-gonic/gin"
)

var errNoAppleSignIn = errors.New("no apple sign-in in progress")

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) signInWithEmail(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	h.respond(c, h.manager.SignInWithEmail(c.Request.Context(), req.Email, req.Password))
}

func (h *Handler) beginApple(c *gin.Context) {
	hashed, err := h.manager.BeginAppleSignIn()
	if err != nil {
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": hashed})
}

type appleRequest struct {
	IdentityToken string `json:"identity_token" binding:"required"`
	Email         string `json:"email"`
	FullName      string `json:"full_name"`
}

func (h *Handler) completeApple(c *gin.Context) {
	var req appleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.manager.CompleteAppleSignIn(c.Request.Context(), provider.AppleCredential{
		IdentityToken: req.IdentityToken,
		Email:         req.Email,
		FullName:      req.FullName,
	})
	if errors.Is(err, auth.ErrMissingNonce) {
		c.JSON(http.StatusConflict, gin.H{"error": errNoAppleSignIn.Error()})
		return
	}

	h.respond(c, err)
}

type googleRequest struct {
	IDToken     string `json:"id_token" binding:"required"`
	AccessToken string `json:"access_token" binding:"required"`
}

func (h *Handler) signInWithGoogle(c *gin.Context) {
	var req googleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	// The HTTP client is the presentation context and already holds the
	// tokens.
	tokens := provider.GoogleTokens{IDToken: req.IDToken, AccessToken: req.AccessToken}
	h.respond(c, h.manager.SignInWithGoogle(c.Request.Context(), tokens))
}
