package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/response"
)

var errAlreadyInitialized = appErrors.New("ALREADY_INITIALIZED", "Workspace already initialized", http.StatusConflict)

// SetupHandler bootstraps the first account and its owner on an empty install.
type SetupHandler struct {
	accounts store.Accounts
	agents   *services.AgentService
}

func NewSetupHandler(accounts store.Accounts, agents *services.AgentService) *SetupHandler {
	return &SetupHandler{accounts: accounts, agents: agents}
}

// GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	count, err := h.accounts.Count(requestContext(c), store.AccountFilter{})
	if err != nil {
		response.Success(c, http.StatusOK, gin.H{"initialized": false})
		return
	}
	response.Success(c, http.StatusOK, gin.H{"initialized": count > 0})
}

type initializeRequest struct {
	AccountName string `json:"account_name" validate:"required,max=120"`
	TenantID    string `json:"tenant_id" validate:"omitempty,uuid"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"required,max=120"`
}

// POST /api/setup/initialize
func (h *SetupHandler) Initialize(c *gin.Context) {
	var req initializeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ctx := requestContext(c)

	count, err := h.accounts.Count(ctx, store.AccountFilter{})
	if err != nil {
		response.Error(c, err)
		return
	}
	if count > 0 {
		response.Error(c, errAlreadyInitialized)
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = uuid.NewString()
	}
	account := &models.Account{TenantID: tenantID, Name: strings.TrimSpace(req.AccountName)}
	if err := h.accounts.Create(ctx, account); err != nil {
		response.Error(c, err)
		return
	}

	owner, err := h.agents.CreateDirect(ctx, account.ID, services.CreateAgentInput{
		Email:       req.Email,
		Secret:      req.Password,
		DisplayName: req.DisplayName,
		Role:        models.AgentRoleOwner,
	})
	if err != nil {
		logger.WithModule("setup").Error("create owner failed", zap.String("account_id", account.ID), zap.Error(err))
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"account": account, "owner": owner})
}
