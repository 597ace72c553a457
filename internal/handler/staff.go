package handler

import (
	"net/http"
	"strconv"

	"github.com/Payphone-Digital/marketplace-auth/internal/constants"
	"github.com/Payphone-Digital/marketplace-auth/internal/dto"
	apperrors "github.com/Payphone-Digital/marketplace-auth/internal/errors"
	"github.com/Payphone-Digital/marketplace-auth/internal/middleware"
	"github.com/Payphone-Digital/marketplace-auth/internal/service"
	ctxutil "github.com/Payphone-Digital/marketplace-auth/pkg/context"
	"github.com/gin-gonic/gin"
)

// StaffHandler serves the back-office endpoints. Permissions are enforced by
// the access middleware before any of these run.
type StaffHandler struct {
	roleService  *service.RoleService
	staffService *service.StaffService
}

func NewStaffHandler(roleService *service.RoleService, staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{roleService: roleService, staffService: staffService}
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(middleware.RouteParam(c, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrValidation, "id must be a positive integer")
	}
	return uint(id), nil
}

func (h *StaffHandler) ListRoles(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ListRoles")

	pagination := constants.ParsePaginationParams(c)
	roles, total, err := h.roleService.List(ctx, pagination.Limit, pagination.Offset)
	if err != nil {
		respondError(c, ctx, "Failed to list roles", err)
		return
	}

	out := make([]dto.RoleResponse, 0, len(roles))
	for i := range roles {
		out = append(out, dto.NewRoleResponse(&roles[i]))
	}
	c.JSON(http.StatusOK, constants.BuildListResponse(total, pagination.Page, out))
}

func (h *StaffHandler) GetRole(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "GetRole")

	id, err := idParam(c)
	if err != nil {
		respondError(c, ctx, "Invalid role id", err)
		return
	}

	role, err := h.roleService.Get(ctx, id)
	if err != nil {
		respondError(c, ctx, "Failed to fetch role", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgSuccess, dto.NewRoleResponse(role)))
}

func (h *StaffHandler) CreateRole(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "CreateRole")

	var req dto.CreateRoleRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	role, err := h.roleService.Create(ctx, req.Name, req.Description, req.Permissions)
	if err != nil {
		respondError(c, ctx, "Failed to create role", err)
		return
	}

	c.JSON(http.StatusCreated, constants.BuildDataResponse(constants.MsgCreated, dto.NewRoleResponse(role)))
}

func (h *StaffHandler) SuspendAccount(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "SuspendAccount")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to suspend account", err)
		return
	}

	id, err := idParam(c)
	if err != nil {
		respondError(c, ctx, "Invalid account id", err)
		return
	}

	var req dto.SuspendAccountRequest
	if !bindJSON(c, ctx, &req) {
		return
	}

	account, err := h.staffService.SuspendAccount(ctx, auth, id, req.Reason)
	if err != nil {
		respondError(c, ctx, "Failed to suspend account", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgUpdated, dto.NewAccountResponse(account)))
}

func (h *StaffHandler) UnsuspendAccount(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "UnsuspendAccount")

	auth, err := middleware.MustAuthData(c)
	if err != nil {
		respondError(c, ctx, "Failed to unsuspend account", err)
		return
	}

	id, err := idParam(c)
	if err != nil {
		respondError(c, ctx, "Invalid account id", err)
		return
	}

	account, err := h.staffService.UnsuspendAccount(ctx, auth, id)
	if err != nil {
		respondError(c, ctx, "Failed to unsuspend account", err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(constants.MsgUpdated, dto.NewAccountResponse(account)))
}
