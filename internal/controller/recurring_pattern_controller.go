package controller

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/service"
	"college_orbit_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RecurringPatternController struct {
	PatternService *service.RecurringPatternService
}

func NewRecurringPatternController(patternService *service.RecurringPatternService) *RecurringPatternController {
	return &RecurringPatternController{PatternService: patternService}
}

// CreatePattern godoc
// @Summary 创建重复规则
// @Description 创建规则并立即生成滚动窗口内的实例
// @Tags 重复规则
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.PatternRequest true "规则"
// @Success 201 {object} util.Response{data=model.RecurringPattern}
// @Failure 400 {object} util.Response
// @Router /recurring-patterns [post]
func (c *RecurringPatternController) CreatePattern(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.PatternRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pattern, err := c.PatternService.CreatePattern(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Created(ctx, pattern)
}

// ListPatterns godoc
// @Summary 列出重复规则
// @Tags 重复规则
// @Produce  json
// @Security ApiKeyAuth
// @Param   itemType query string false "task | deadline | exam | calendar_event"
// @Success 200 {object} util.Response{data=[]model.RecurringPattern}
// @Router /recurring-patterns [get]
func (c *RecurringPatternController) ListPatterns(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	patterns, err := c.PatternService.ListPatterns(ctx.Request.Context(), claims.UserID, model.ItemType(ctx.Query("itemType")))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, patterns)
}

// GetPattern godoc
// @Summary 获取重复规则
// @Tags 重复规则
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "规则ID"
// @Success 200 {object} util.Response{data=model.RecurringPattern}
// @Failure 404 {object} util.Response
// @Router /recurring-patterns/{id} [get]
func (c *RecurringPatternController) GetPattern(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	pattern, err := c.PatternService.GetPattern(ctx.Request.Context(), claims.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, pattern)
}

// UpdatePattern godoc
// @Summary 修改重复规则
// @Description 已完成的实例保留；本地今天及以后的未完成实例按新规则重新生成
// @Tags 重复规则
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "规则ID"
// @Param   body body service.PatternUpdateRequest true "修改内容"
// @Success 200 {object} util.Response{data=model.RecurringPattern}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /recurring-patterns/{id} [patch]
func (c *RecurringPatternController) UpdatePattern(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.PatternUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	pattern, err := c.PatternService.UpdatePattern(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, pattern)
}

// DeletePattern godoc
// @Summary 删除重复规则
// @Description deleteInstances=true 时同时删除所有实例，否则实例保留并解除关联
// @Tags 重复规则
// @Produce  json
// @Security ApiKeyAuth
// @Param   id query string true "规则ID"
// @Param   deleteInstances query bool false "是否删除实例"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /recurring-patterns [delete]
func (c *RecurringPatternController) DeletePattern(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	id := ctx.Query("id")
	if id == "" {
		util.BadRequest(ctx, "id is required")
		return
	}
	deleteInstances := util.ParseBool(ctx.Query("deleteInstances"))

	affected, err := c.PatternService.DeletePattern(ctx.Request.Context(), claims.UserID, id, deleteInstances)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"id":              id,
		"deleteInstances": deleteInstances,
		"instances":       affected,
	})
}
