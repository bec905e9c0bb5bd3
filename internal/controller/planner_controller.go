package controller

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/service"
	"college_orbit_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PlannerController struct {
	PlannerService      *service.PlannerService
	GamificationService *service.GamificationService
	CalendarService     *service.CalendarExportService
}

func NewPlannerController(
	plannerService *service.PlannerService,
	gamificationService *service.GamificationService,
	calendarService *service.CalendarExportService,
) *PlannerController {
	return &PlannerController{
		PlannerService:      plannerService,
		GamificationService: gamificationService,
		CalendarService:     calendarService,
	}
}

// ListColleges godoc
// @Summary 学院列表
// @Tags 课程
// @Produce  json
// @Success 200 {object} util.Response{data=[]model.College}
// @Router /colleges [get]
func (c *PlannerController) ListColleges(ctx *gin.Context) {
	colleges, err := c.PlannerService.ListColleges(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, colleges)
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CourseRequest true "课程"
// @Success 201 {object} util.Response{data=model.Course}
// @Failure 400 {object} util.Response
// @Router /courses [post]
func (c *PlannerController) CreateCourse(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	course, err := c.PlannerService.CreateCourse(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// ListCourses godoc
// @Summary 我的课程
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /courses [get]
func (c *PlannerController) ListCourses(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	courses, err := c.PlannerService.ListCourses(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// CreateWorkItem godoc
// @Summary 创建作业条目
// @Tags 课程
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.WorkItemRequest true "作业"
// @Success 201 {object} util.Response{data=model.WorkItem}
// @Failure 400 {object} util.Response
// @Router /work-items [post]
func (c *PlannerController) CreateWorkItem(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.WorkItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	item, err := c.PlannerService.CreateWorkItem(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, item)
}

// ListWorkItems godoc
// @Summary 我的作业条目
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.WorkItem}
// @Router /work-items [get]
func (c *PlannerController) ListWorkItems(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	items, err := c.PlannerService.ListWorkItems(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// CompleteItem godoc
// @Summary 完成条目
// @Description 标记条目为已完成并记入经验
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   itemType path string true "task | deadline | exam | work_item"
// @Param   id path string true "条目ID"
// @Param   tz query int false "时区偏移（分钟）"
// @Success 200 {object} util.Response{data=service.CompletionResult}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /items/{itemType}/{id}/complete [patch]
func (c *PlannerController) CompleteItem(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tz, err := util.ParseTimezoneOffset(ctx.Query("tz"), c.GamificationService.DefaultOffset(ctx.Request.Context(), claims.UserID))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	result, err := c.GamificationService.CompleteItem(ctx.Request.Context(), claims.UserID, tz, model.ItemType(ctx.Param("itemType")), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ExportCalendar godoc
// @Summary 导出日历
// @Description 将未来六个月的条目导出为 iCalendar 文件并返回下载地址
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.CalendarExport}
// @Router /calendar/export [post]
func (c *PlannerController) ExportCalendar(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	export, err := c.CalendarService.ExportCalendar(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, export)
}
