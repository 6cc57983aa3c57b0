package handler

import (
	"net/http"

	"session-service/internal/account"
	"session-service/internal/auth"
	"session-service/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager *account.Manager
}

func NewHandler(manager *account.Manager) *Handler {
	return &Handler{manager: manager}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	s := r.Group("/session")

	s.GET("", h.state)
	s.GET("/status", h.status)
	s.DELETE("", h.signOut)
	s.DELETE("/error", h.clearError)

	s.POST("/email", h.signInWithEmail)
	s.POST("/account", h.createAccount)
	s.POST("/apple/nonce", h.beginApple)
	s.POST("/apple", h.completeApple)
	s.POST("/google", h.signInWithGoogle)
	s.POST("/guest", h.signInAsGuest)
}

type errorView struct {
	Kind    auth.Kind `json:"kind"`
	Message string    `json:"message"`
}

type stateView struct {
	Current   *auth.Identity `json:"current"`
	Loading   bool           `json:"loading"`
	LastError *errorView     `json:"last_error,omitempty"`
}

func view(st account.State) stateView {
	v := stateView{Current: st.Current, Loading: st.Loading}
	if st.LastError != nil {
		v.LastError = &errorView{Kind: st.LastError.Kind, Message: st.LastError.Message}
	}
	return v
}

func (h *Handler) state(c *gin.Context) {
	c.JSON(http.StatusOK, view(h.manager.State()))
}

func (h *Handler) status(c *gin.Context) {
	ok := h.manager.CheckAuthenticationStatus(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"authenticated": ok,
		"session":       view(h.manager.State()),
	})
}

func (h *Handler) clearError(c *gin.Context) {
	h.manager.ClearError(c.Request.Context())
	c.JSON(http.StatusOK, view(h.manager.State()))
}

func (h *Handler) signOut(c *gin.Context) {
	ctx := c.Request.Context()

	if c.Query("force") == "true" {
		h.manager.ForceSignOut(ctx)
		c.JSON(http.StatusOK, view(h.manager.State()))
		return
	}

	if err := h.manager.SignOut(ctx); err != nil {
		// signed out locally regardless
		h.respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view(h.manager.State()))
}

func (h *Handler) signInAsGuest(c *gin.Context) {
	h.respond(c, h.manager.SignInAsGuest(c.Request.Context()))
}

// respond writes the session state, with the classified failure when err
// is non-nil.
func (h *Handler) respond(c *gin.Context, err error) {
	st := view(h.manager.State())
	if err == nil {
		c.JSON(http.StatusOK, st)
		return
	}

	classified := auth.Classify(err)
	c.JSON(statusFor(classified.Kind), gin.H{
		"error":   errorView{Kind: classified.Kind, Message: classified.Message},
		"session": st,
	})
}

func badRequest(c *gin.Context, err error) {
	logger.Debug("rejected session request", map[string]any{
		"path":  c.FullPath(),
		"error": err.Error(),
	})
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func statusFor(k auth.Kind) int {
	switch k {
	case auth.KindInvalidCredential:
		return http.StatusUnauthorized
	case auth.KindWeakPassword:
		return http.StatusUnprocessableEntity
	case auth.KindEmailAlreadyInUse:
		return http.StatusConflict
	case auth.KindUserDisabled:
		return http.StatusForbidden
	case auth.KindTooManyRequests:
		return http.StatusTooManyRequests
	case auth.KindConfiguration:
		return http.StatusServiceUnavailable
	case auth.KindNetwork:
		return http.StatusBadGateway
	case auth.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
