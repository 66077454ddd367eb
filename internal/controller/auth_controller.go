package controller

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/auth"
	"copilot-salud-backend/internal/dto"
	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/ratelimit"
	"copilot-salud-backend/internal/roles"
)

type AuthController struct {
	store   *auth.Store
	issuer  *auth.TokenIssuer
	limiter *ratelimit.Limiter
}

func NewAuthController(store *auth.Store, issuer *auth.TokenIssuer, limiter *ratelimit.Limiter) *AuthController {
	return &AuthController{
		store:   store,
		issuer:  issuer,
		limiter: limiter,
	}
}

func RegisterAuthRoutes(router *gin.Engine, controller *AuthController) {
	v1 := router.Group("/api/v1/auth")
	{
		v1.POST("/login", controller.HandleLogin)
		v1.GET("/roles", controller.HandleListRoles)
	}
}

// HandleLogin godoc
// @Summary      Authenticate a user
// @Description  Verifies credentials against the user store and returns a session token valid for eight hours. Failed attempts count towards the automatic block and suspicious-IP escalation.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body dto.LoginRequest true "Credentials"
// @Success      200 {object} dto.LoginResponse "Authenticated"
// @Failure      400 {object} model.Response "Invalid request body"
// @Failure      401 {object} model.Response "Bad credentials or inactive account"
// @Failure      429 {object} model.Response "Too many attempts, user blocked or IP flagged"
// @Router       /api/v1/auth/login [post]
func (c *AuthController) HandleLogin(ctx *gin.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("Invalid request body: "+err.Error(), nil))
		return
	}

	ip := ctx.ClientIP()
	if dec := c.limiter.Allow(req.Username, "login", ip); !dec.Allowed {
		ctx.Header("Retry-After", strconv.Itoa(dec.RetryAfter))
		ctx.JSON(http.StatusTooManyRequests, model.NewResponse("Too many login attempts", gin.H{
			"reason":      dec.Reason,
			"retry_after": dec.RetryAfter,
		}))
		return
	}

	user, err := c.store.Authenticate(req.Username, req.Password)
	if err != nil {
		c.limiter.RecordFailure(req.Username, "login", ip)
		log.Warn().Str("user", req.Username).Str("ip", ip).Msg("Login failed")
		message := "Invalid credentials"
		if errors.Is(err, auth.ErrUserInactive) {
			message = "Account disabled"
		}
		ctx.JSON(http.StatusUnauthorized, model.NewResponse(message, nil))
		return
	}
	c.limiter.RecordSuccess(req.Username)

	token, err := c.issuer.Issue(req.Username, user.Role)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign token")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Internal server error", nil))
		return
	}

	ctx.JSON(http.StatusOK, dto.LoginResponse{
		Token:        token,
		Username:     req.Username,
		Name:         user.Name,
		Role:         user.Role,
		Organization: user.Organization,
	})
}

// HandleListRoles godoc
// @Summary      List system roles
// @Description  Returns every role with its capabilities, dataset whitelist and focus areas.
// @Tags         auth
// @Produce      json
// @Success      200 {array} dto.RoleInfo
// @Router       /api/v1/auth/roles [get]
func (c *AuthController) HandleListRoles(ctx *gin.Context) {
	out := make([]dto.RoleInfo, 0, len(roles.Keys()))
	for _, key := range roles.Keys() {
		role := roles.GetOrGuest(key)
		caps := make([]string, 0, len(role.Capabilities))
		for capability := range role.Capabilities {
			caps = append(caps, capability)
		}
		sort.Strings(caps)
		out = append(out, dto.RoleInfo{
			Key:          role.Key,
			Name:         role.Name,
			Capabilities: caps,
			Datasets:     role.DatasetWhitelist,
			FocusAreas:   role.FocusAreas,
		})
	}
	ctx.JSON(http.StatusOK, out)
}
