package controller

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/service"
	"college_orbit_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type GamificationController struct {
	GamificationService *service.GamificationService
	ChallengeService    *service.DailyChallengeService
	LeaderboardService  *service.LeaderboardService
}

func NewGamificationController(
	gamificationService *service.GamificationService,
	challengeService *service.DailyChallengeService,
	leaderboardService *service.LeaderboardService,
) *GamificationController {
	return &GamificationController{
		GamificationService: gamificationService,
		ChallengeService:    challengeService,
		LeaderboardService:  leaderboardService,
	}
}

// offset 读取 tz 查询参数，缺省为用户保存的时区
func (c *GamificationController) offset(ctx *gin.Context, userID uint) (int, error) {
	raw := ctx.Query("tz")
	if raw == "" {
		return c.GamificationService.DefaultOffset(ctx.Request.Context(), userID), nil
	}
	return util.ParseTimezoneOffset(raw, 0)
}

type RecordCompletionRequest struct {
	ItemType       model.ItemType `json:"itemType" binding:"required"`
	ItemID         string         `json:"itemId" binding:"required"`
	TimezoneOffset *int           `json:"timezoneOffset"`
}

// RecordCompletion godoc
// @Summary 记录完成事件
// @Description 为已标记完成的条目记入经验；同一条目重复提交不会重复计分。未完成的条目返回 400，应使用 PATCH /items/{itemType}/{id}/complete
// @Tags 游戏化
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body RecordCompletionRequest true "完成事件"
// @Success 200 {object} util.Response{data=service.CompletionResult}
// @Failure 400 {object} util.Response "参数错误或条目未完成"
// @Failure 404 {object} util.Response "条目不存在"
// @Router /gamification/record [post]
func (c *GamificationController) RecordCompletion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req RecordCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	var tz int
	if req.TimezoneOffset != nil {
		if *req.TimezoneOffset < util.MinTimezoneOffset || *req.TimezoneOffset > util.MaxTimezoneOffset {
			util.BadRequest(ctx, "timezoneOffset out of range")
			return
		}
		tz = *req.TimezoneOffset
	} else {
		tz = c.GamificationService.DefaultOffset(ctx.Request.Context(), claims.UserID)
	}

	result, err := c.GamificationService.ProcessTaskCompletion(ctx.Request.Context(), claims.UserID, tz, req.ItemType, req.ItemID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// GetSummary godoc
// @Summary 获取游戏化概览
// @Description 经验、等级、连续天数、今日活动和今日挑战
// @Tags 游戏化
// @Produce  json
// @Security ApiKeyAuth
// @Param   tz query int false "时区偏移（分钟）"
// @Success 200 {object} util.Response{data=service.Summary}
// @Router /gamification [get]
func (c *GamificationController) GetSummary(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tz, err := c.offset(ctx, claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	summary, err := c.GamificationService.GetSummary(ctx.Request.Context(), claims.UserID, tz)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, summary)
}

type UpdateGamificationRequest struct {
	VacationMode *bool `json:"vacationMode" binding:"required"`
}

// UpdateSettings godoc
// @Summary 切换休假模式
// @Description 休假期间中断的天数不会清零连续天数
// @Tags 游戏化
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body UpdateGamificationRequest true "设置"
// @Success 200 {object} util.Response{data=model.UserStreak}
// @Router /gamification [patch]
func (c *GamificationController) UpdateSettings(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req UpdateGamificationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	streak, err := c.GamificationService.ToggleVacationMode(ctx.Request.Context(), claims.UserID, *req.VacationMode)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, streak)
}

// GetDailyChallenges godoc
// @Summary 今日挑战进度
// @Tags 游戏化
// @Produce  json
// @Security ApiKeyAuth
// @Param   tz query int false "时区偏移（分钟）"
// @Param   date query string false "日期 YYYY-MM-DD，缺省为本地今天"
// @Success 200 {object} util.Response{data=service.ChallengeProgress}
// @Router /gamification/daily-challenges [get]
func (c *GamificationController) GetDailyChallenges(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tz, err := c.offset(ctx, claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	progress, err := c.ChallengeService.ComputeChallengeProgress(ctx.Request.Context(), claims.UserID, ctx.Query("date"), tz)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, progress)
}

// ClaimDailyChallenges godoc
// @Summary 领取已完成的挑战奖励
// @Description 已领取的挑战不会重复发放；全部领取后额外发放一次 sweep 奖励
// @Tags 游戏化
// @Produce  json
// @Security ApiKeyAuth
// @Param   tz query int false "时区偏移（分钟）"
// @Param   date query string false "日期 YYYY-MM-DD，缺省为本地今天"
// @Success 200 {object} util.Response{data=service.ClaimResult}
// @Router /gamification/daily-challenges [post]
func (c *GamificationController) ClaimDailyChallenges(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	tz, err := c.offset(ctx, claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	result, err := c.ChallengeService.ClaimCompletedChallenges(ctx.Request.Context(), claims.UserID, ctx.Query("date"), tz)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// GetLeaderboard godoc
// @Summary 学院月度排行榜
// @Tags 游戏化
// @Produce  json
// @Security ApiKeyAuth
// @Param   month query string false "月份 YYYY-MM，缺省为当前月"
// @Param   limit query int false "条数，默认 20，最多 100"
// @Success 200 {object} util.Response{data=service.CollegeLeaderboard}
// @Router /gamification/leaderboard [get]
func (c *GamificationController) GetLeaderboard(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	board, err := c.LeaderboardService.CollegeLeaderboard(ctx.Request.Context(), ctx.Query("month"), limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, board)
}

// GetCollegeLeaderboard godoc
// @Summary 学院内用户月度排行
// @Tags 游戏化
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "学院ID"
// @Param   month query string false "月份 YYYY-MM"
// @Param   limit query int false "条数"
// @Success 200 {object} util.Response{data=service.CollegeUserLeaderboard}
// @Failure 400 {object} util.Response
// @Router /gamification/leaderboard/colleges/{id} [get]
func (c *GamificationController) GetCollegeLeaderboard(ctx *gin.Context) {
	collegeID := util.MustParseUint(ctx.Param("id"))
	if collegeID == 0 {
		util.BadRequest(ctx, "invalid college id")
		return
	}
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	board, err := c.LeaderboardService.CollegeUserLeaderboard(ctx.Request.Context(), collegeID, ctx.Query("month"), limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	util.Success(ctx, board)
}
