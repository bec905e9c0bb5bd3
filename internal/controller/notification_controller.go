package controller

import (
	"college_orbit_backend/internal/service"
	"college_orbit_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	ReminderService *service.ReminderService
}

func NewNotificationController(reminderService *service.ReminderService) *NotificationController {
	return &NotificationController{ReminderService: reminderService}
}

type RegisterDeviceRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
}

// RegisterDevice godoc
// @Summary 登记推送设备
// @Tags 通知
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body RegisterDeviceRequest true "设备 token，platform 为 ios | android | web"
// @Success 201 {object} util.Response{data=model.DeviceToken}
// @Failure 400 {object} util.Response
// @Router /devices [post]
func (c *NotificationController) RegisterDevice(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RegisterDeviceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	device, err := c.ReminderService.RegisterDevice(ctx.Request.Context(), claims.UserID, req.Token, req.Platform)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, device)
}

// UnregisterDevice godoc
// @Summary 注销推送设备
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Param   token query string true "设备 token"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /devices [delete]
func (c *NotificationController) UnregisterDevice(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	token := ctx.Query("token")
	if token == "" {
		util.BadRequest(ctx, "token is required")
		return
	}

	if err := c.ReminderService.UnregisterDevice(ctx.Request.Context(), claims.UserID, token); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"token": token})
}
