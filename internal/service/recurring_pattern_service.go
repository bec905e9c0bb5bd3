package service

import (
	"college_orbit_backend/internal/config"
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"college_orbit_backend/pkg/monitoring"
	"college_orbit_backend/pkg/tracing"
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultDueTime   = "23:59"
	defaultStartTime = "09:00"
	defaultDuration  = 60
	topUpBatchSize   = 1000
)

// PatternRequest 创建规则的请求体
type PatternRequest struct {
	ItemType        model.ItemType        `json:"itemType" validate:"required,oneof=task deadline exam calendar_event"`
	RecurrenceType  model.RecurrenceType  `json:"recurrenceType" validate:"required,oneof=daily weekly monthly custom"`
	IntervalDays    int                   `json:"intervalDays" validate:"omitempty,min=1,max=365"`
	DaysOfWeek      []int                 `json:"daysOfWeek" validate:"omitempty,max=7,dive,min=0,max=6"`
	DaysOfMonth     []int                 `json:"daysOfMonth" validate:"omitempty,max=31,dive,min=1,max=31"`
	StartDate       string                `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate         *string               `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	OccurrenceCount *int                  `json:"occurrenceCount" validate:"omitempty,min=1,max=366"`
	TimezoneOffset  *int                  `json:"timezoneOffset" validate:"omitempty,min=-840,max=720"`
	Template        model.PatternTemplate `json:"template"`
}

// PatternUpdateRequest 部分更新；itemType 不可修改。endDate/occurrenceCount 传空串或 0 表示清除
type PatternUpdateRequest struct {
	RecurrenceType  *model.RecurrenceType  `json:"recurrenceType" validate:"omitempty,oneof=daily weekly monthly custom"`
	IntervalDays    *int                   `json:"intervalDays" validate:"omitempty,min=0,max=365"`
	DaysOfWeek      []int                  `json:"daysOfWeek" validate:"omitempty,max=7,dive,min=0,max=6"`
	DaysOfMonth     []int                  `json:"daysOfMonth" validate:"omitempty,max=31,dive,min=1,max=31"`
	StartDate       *string                `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate         *string                `json:"endDate"`
	OccurrenceCount *int                   `json:"occurrenceCount" validate:"omitempty,min=0,max=366"`
	TimezoneOffset  *int                   `json:"timezoneOffset" validate:"omitempty,min=-840,max=720"`
	Template        *model.PatternTemplate `json:"template"`
	IsActive        *bool                  `json:"isActive"`
}

// GenerationResult 一次生成的统计
type GenerationResult struct {
	Created       int `json:"created"`
	Deleted       int `json:"deleted"`
	InstanceCount int `json:"instanceCount"`
}

// TopUpResult 定时补齐的统计
type TopUpResult struct {
	Patterns int `json:"patterns"`
	Created  int `json:"created"`
	Failed   int `json:"failed"`
}

type RecurringPatternService struct {
	DB           *gorm.DB
	PatternRepo  *repository.RecurringPatternRepository
	InstanceRepo *repository.InstanceRepository
	UserRepo     *repository.UserRepository
	CourseRepo   *repository.CourseRepository
	Config       *config.RecurrenceConfig
	Now          func() time.Time
}

func NewRecurringPatternService(
	db *gorm.DB,
	patternRepo *repository.RecurringPatternRepository,
	instanceRepo *repository.InstanceRepository,
	userRepo *repository.UserRepository,
	courseRepo *repository.CourseRepository,
	cfg *config.RecurrenceConfig,
) *RecurringPatternService {
	return &RecurringPatternService{
		DB:           db,
		PatternRepo:  patternRepo,
		InstanceRepo: instanceRepo,
		UserRepo:     userRepo,
		CourseRepo:   courseRepo,
		Config:       cfg,
		Now:          time.Now,
	}
}

func (s *RecurringPatternService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *RecurringPatternService) horizonMonths() int {
	if s.Config.HorizonMonths <= 0 {
		return 6
	}
	return s.Config.HorizonMonths
}

func (s *RecurringPatternService) maxPerCall() int {
	if s.Config.MaxInstancesPerCall <= 0 || s.Config.MaxInstancesPerCall > MaxOccurrencesPerExpansion {
		return MaxOccurrencesPerExpansion
	}
	return s.Config.MaxInstancesPerCall
}

// CreatePattern 校验并保存规则，同一事务内生成初始实例
func (s *RecurringPatternService) CreatePattern(ctx context.Context, userID uint, req PatternRequest) (*model.RecurringPattern, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}

	offset, err := s.resolveOffset(ctx, userID, req.TimezoneOffset)
	if err != nil {
		return nil, err
	}

	start, _ := util.ParseDateKey(req.StartDate)
	p := &model.RecurringPattern{
		UserID:          userID,
		ItemType:        req.ItemType,
		RecurrenceType:  req.RecurrenceType,
		IntervalDays:    req.IntervalDays,
		DaysOfWeek:      datatypes.NewJSONSlice(uniqueInts(req.DaysOfWeek)),
		DaysOfMonth:     datatypes.NewJSONSlice(uniqueInts(req.DaysOfMonth)),
		StartDate:       start,
		OccurrenceCount: req.OccurrenceCount,
		TimezoneOffset:  offset,
		IsActive:        true,
	}
	if req.EndDate != nil && *req.EndDate != "" {
		end, _ := util.ParseDateKey(*req.EndDate)
		p.EndDate = &end
	}

	tmpl, err := s.normalizeTemplate(ctx, userID, p.ItemType, req.Template)
	if err != nil {
		return nil, err
	}
	p.Template = datatypes.NewJSONType(tmpl)

	if err := validateRule(p); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.PatternRepo.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}
		_, err := s.generate(ctx, tx, p, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Recurring pattern created",
		zap.String("patternID", p.ID),
		zap.Uint("userID", userID),
		zap.String("itemType", string(p.ItemType)),
		zap.Int("instances", p.InstanceCount),
	)
	return p, nil
}

// UpdatePattern 保存修改后重新生成今天及以后的未完成实例。
// 默认重新生成失败只记录日志；recurrence.strict_regeneration 开启时修改与重新生成在同一事务中。
func (s *RecurringPatternService) UpdatePattern(ctx context.Context, userID uint, id string, req PatternUpdateRequest) (*model.RecurringPattern, error) {
	if err := util.ValidateStruct(req); err != nil {
		return nil, err
	}

	p, err := s.GetPattern(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.applyUpdate(ctx, userID, p, req); err != nil {
		return nil, err
	}

	now := s.now()
	if s.Config.StrictRegeneration {
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.PatternRepo.WithTx(tx).Save(ctx, p); err != nil {
				return err
			}
			_, err := s.regenerate(ctx, tx, p, now)
			return err
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	if err := s.PatternRepo.Save(ctx, p); err != nil {
		return nil, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.regenerate(ctx, tx, p, now)
		return err
	})
	if err != nil {
		monitoring.RegenerationFailures.Inc()
		logger.Log.Error("Failed to regenerate instances after pattern edit",
			zap.String("patternID", p.ID),
			zap.Uint("userID", userID),
			zap.Error(err),
		)
	}
	return p, nil
}

func (s *RecurringPatternService) applyUpdate(ctx context.Context, userID uint, p *model.RecurringPattern, req PatternUpdateRequest) error {
	if req.RecurrenceType != nil {
		p.RecurrenceType = *req.RecurrenceType
	}
	if req.IntervalDays != nil {
		p.IntervalDays = *req.IntervalDays
	}
	if req.DaysOfWeek != nil {
		p.DaysOfWeek = datatypes.NewJSONSlice(uniqueInts(req.DaysOfWeek))
	}
	if req.DaysOfMonth != nil {
		p.DaysOfMonth = datatypes.NewJSONSlice(uniqueInts(req.DaysOfMonth))
	}
	if req.StartDate != nil {
		start, _ := util.ParseDateKey(*req.StartDate)
		p.StartDate = start
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			p.EndDate = nil
		} else {
			end, err := util.ParseDateKey(*req.EndDate)
			if err != nil {
				return err
			}
			p.EndDate = &end
		}
	}
	if req.OccurrenceCount != nil {
		if *req.OccurrenceCount == 0 {
			p.OccurrenceCount = nil
		} else {
			n := *req.OccurrenceCount
			p.OccurrenceCount = &n
		}
	}
	if req.TimezoneOffset != nil {
		p.TimezoneOffset = *req.TimezoneOffset
	}
	if req.Template != nil {
		tmpl, err := s.normalizeTemplate(ctx, userID, p.ItemType, *req.Template)
		if err != nil {
			return err
		}
		p.Template = datatypes.NewJSONType(tmpl)
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	return validateRule(p)
}

// DeletePattern 删除规则；deleteInstances 为 true 时级联删除实例，否则解除实例与规则的关联
func (s *RecurringPatternService) DeletePattern(ctx context.Context, userID uint, id string, deleteInstances bool) (int64, error) {
	p, err := s.GetPattern(ctx, userID, id)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instances := s.InstanceRepo.WithTx(tx)
		var err error
		if deleteInstances {
			affected, err = instances.DeleteByPattern(ctx, p.ItemType, p.ID)
		} else {
			affected, err = instances.DetachByPattern(ctx, p.ItemType, p.ID)
		}
		if err != nil {
			return err
		}
		return s.PatternRepo.WithTx(tx).Delete(ctx, p.ID)
	})
	if err != nil {
		return 0, err
	}

	logger.Log.Info("Recurring pattern deleted",
		zap.String("patternID", p.ID),
		zap.Uint("userID", userID),
		zap.Bool("deleteInstances", deleteInstances),
		zap.Int64("instances", affected),
	)
	return affected, nil
}

func (s *RecurringPatternService) GetPattern(ctx context.Context, userID uint, id string) (*model.RecurringPattern, error) {
	p, err := s.PatternRepo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *RecurringPatternService) ListPatterns(ctx context.Context, userID uint, itemType model.ItemType) ([]model.RecurringPattern, error) {
	if itemType != "" && !itemType.Generatable() {
		return nil, util.Invalid("unknown item type %q", itemType)
	}
	return s.PatternRepo.FindByUserID(ctx, userID, itemType)
}

// GenerateInstances 补齐规则在滚动窗口内缺失的实例，可重复调用
func (s *RecurringPatternService) GenerateInstances(ctx context.Context, p *model.RecurringPattern, now time.Time) (*GenerationResult, error) {
	var res *GenerationResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = s.generate(ctx, tx, p, now)
		return err
	})
	return res, err
}

// TopUpActivePatterns 为超过一天未生成的启用规则补齐窗口；单条失败不影响其它规则
func (s *RecurringPatternService) TopUpActivePatterns(ctx context.Context, now time.Time) (_ *TopUpResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "recurring.top_up")
	defer func() { tracing.EndSpan(span, err) }()

	now = now.UTC()
	patterns, err := s.PatternRepo.FindStale(ctx, now.Add(-24*time.Hour), topUpBatchSize)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("patterns.stale", len(patterns)))

	out := &TopUpResult{}
	for i := range patterns {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		p := &patterns[i]
		res, err := s.GenerateInstances(ctx, p, now)
		out.Patterns++
		if err != nil {
			out.Failed++
			logger.Log.Error("Top-up failed for pattern",
				zap.String("patternID", p.ID),
				zap.Uint("userID", p.UserID),
				zap.Error(err),
			)
			continue
		}
		out.Created += res.Created
	}

	logger.Log.Info("Recurring top-up finished",
		zap.Int("patterns", out.Patterns),
		zap.Int("created", out.Created),
		zap.Int("failed", out.Failed),
	)
	return out, nil
}

// regenerate 删除规则所有者本地今天及以后的未完成实例，再按新规则生成，跳过仍被占用的日期
func (s *RecurringPatternService) regenerate(ctx context.Context, tx *gorm.DB, p *model.RecurringPattern, now time.Time) (*GenerationResult, error) {
	today := util.LocalDay(now, p.TimezoneOffset)
	deleted, err := s.InstanceRepo.WithTx(tx).DeleteOpenFrom(ctx, p.ItemType, p.ID, today)
	if err != nil {
		return nil, err
	}
	res, err := s.generate(ctx, tx, p, now)
	if err != nil {
		return nil, err
	}
	res.Deleted = int(deleted)
	return res, nil
}

func (s *RecurringPatternService) generate(ctx context.Context, tx *gorm.DB, p *model.RecurringPattern, now time.Time) (*GenerationResult, error) {
	instances := s.InstanceRepo.WithTx(tx)
	res := &GenerationResult{}

	if p.IsActive {
		today := util.LocalDay(now, p.TimezoneOffset)
		windowEnd := util.AddMonths(today, s.horizonMonths())
		dates, err := ExpandOccurrences(RuleFromPattern(p), today, windowEnd)
		if err != nil {
			return nil, err
		}

		existing, err := instances.ExistingDates(ctx, p.ItemType, p.ID)
		if err != nil {
			return nil, err
		}
		fresh := make([]time.Time, 0, len(dates))
		for _, d := range dates {
			if existing[util.DateKey(d)] {
				continue
			}
			fresh = append(fresh, d)
			if len(fresh) >= s.maxPerCall() {
				break
			}
		}

		if len(fresh) > 0 {
			rows, err := BuildInstances(p, fresh)
			if err != nil {
				return nil, err
			}
			if err := instances.Create(ctx, rows); err != nil {
				return nil, err
			}
			res.Created = len(fresh)
			monitoring.InstancesGenerated.WithLabelValues(string(p.ItemType)).Add(float64(len(fresh)))
		}
	}

	count, err := instances.CountByPattern(ctx, p.ItemType, p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.PatternRepo.WithTx(tx).UpdateGenerationStats(ctx, p.ID, now, int(count)); err != nil {
		return nil, err
	}
	generated := now.UTC()
	p.LastGenerated = &generated
	p.InstanceCount = int(count)
	res.InstanceCount = int(count)
	return res, nil
}

// BuildInstances 按模板为每个日期构造对应类型的实例切片
func BuildInstances(p *model.RecurringPattern, dates []time.Time) (interface{}, error) {
	tmpl := p.Template.Data()
	patternID := p.ID

	clock := tmpl.DueTime
	if clock == "" {
		clock = defaultClockFor(p.ItemType)
	}
	duration := tmpl.DurationMinutes
	if duration <= 0 {
		duration = defaultDuration
	}

	base := func(d time.Time) model.InstanceFields {
		day := d
		return model.InstanceFields{
			UserID:             p.UserID,
			RecurringPatternID: &patternID,
			InstanceDate:       &day,
			Title:              tmpl.Title,
			Description:        tmpl.Description,
			CourseID:           tmpl.CourseID,
			Status:             model.StatusOpen,
		}
	}

	switch p.ItemType {
	case model.ItemTask:
		rows := make([]model.Task, 0, len(dates))
		for _, d := range dates {
			at, err := util.LocalToUTC(d, clock, p.TimezoneOffset)
			if err != nil {
				return nil, err
			}
			rows = append(rows, model.Task{
				InstanceFields: base(d),
				DueAt:          &at,
				Priority:       tmpl.Priority,
				Checklist:      datatypes.NewJSONSlice(append([]string{}, tmpl.Checklist...)),
			})
		}
		return &rows, nil
	case model.ItemDeadline:
		rows := make([]model.Deadline, 0, len(dates))
		for _, d := range dates {
			at, err := util.LocalToUTC(d, clock, p.TimezoneOffset)
			if err != nil {
				return nil, err
			}
			rows = append(rows, model.Deadline{InstanceFields: base(d), DueAt: at, Priority: tmpl.Priority})
		}
		return &rows, nil
	case model.ItemExam:
		rows := make([]model.Exam, 0, len(dates))
		for _, d := range dates {
			at, err := util.LocalToUTC(d, clock, p.TimezoneOffset)
			if err != nil {
				return nil, err
			}
			rows = append(rows, model.Exam{
				InstanceFields:  base(d),
				StartAt:         at,
				DurationMinutes: duration,
				Location:        tmpl.Location,
			})
		}
		return &rows, nil
	case model.ItemCalendarEvent:
		rows := make([]model.CalendarEvent, 0, len(dates))
		for _, d := range dates {
			at, err := util.LocalToUTC(d, clock, p.TimezoneOffset)
			if err != nil {
				return nil, err
			}
			rows = append(rows, model.CalendarEvent{
				InstanceFields: base(d),
				StartAt:        at,
				EndAt:          at.Add(time.Duration(duration) * time.Minute),
				Location:       tmpl.Location,
			})
		}
		return &rows, nil
	}
	return nil, util.Invalid("item type %q cannot be generated", p.ItemType)
}

func defaultClockFor(t model.ItemType) string {
	if t == model.ItemExam || t == model.ItemCalendarEvent {
		return defaultStartTime
	}
	return defaultDueTime
}

func (s *RecurringPatternService) resolveOffset(ctx context.Context, userID uint, offset *int) (int, error) {
	if offset != nil {
		if err := s.UserRepo.UpdateTimezoneOffset(ctx, userID, *offset); err != nil {
			return 0, err
		}
		return *offset, nil
	}
	user, err := s.UserRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrUnauthorized
		}
		return 0, err
	}
	return user.TimezoneOffset, nil
}

// normalizeTemplate 校验模板并按条目类型补默认值、清理不适用的字段
func (s *RecurringPatternService) normalizeTemplate(ctx context.Context, userID uint, itemType model.ItemType, t model.PatternTemplate) (model.PatternTemplate, error) {
	t.Title = strings.TrimSpace(t.Title)
	if err := util.ValidateStruct(t); err != nil {
		return t, err
	}

	if t.DueTime == "" {
		t.DueTime = defaultClockFor(itemType)
	}

	switch itemType {
	case model.ItemTask:
		t.Location = ""
		t.DurationMinutes = 0
	case model.ItemDeadline:
		t.Checklist = nil
		t.Location = ""
		t.DurationMinutes = 0
	case model.ItemExam, model.ItemCalendarEvent:
		if len(t.Checklist) > 0 {
			return t, util.Invalid("checklist is only supported for tasks")
		}
		if t.DurationMinutes == 0 {
			t.DurationMinutes = defaultDuration
		}
	}

	if t.CourseID != nil && *t.CourseID != "" {
		if _, err := s.CourseRepo.FindByID(ctx, userID, *t.CourseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return t, util.Invalid("course %s not found", *t.CourseID)
			}
			return t, err
		}
	} else {
		t.CourseID = nil
	}
	return t, nil
}

// validateRule 规则级约束
func validateRule(p *model.RecurringPattern) error {
	switch p.RecurrenceType {
	case model.RecurrenceDaily:
		if p.IntervalDays <= 0 {
			p.IntervalDays = 1
		}
	case model.RecurrenceCustom:
		if p.IntervalDays < 1 {
			return util.Invalid("intervalDays is required for custom recurrence")
		}
	case model.RecurrenceWeekly:
		if len(p.DaysOfWeek) == 0 {
			return util.Invalid("daysOfWeek is required for weekly recurrence")
		}
	case model.RecurrenceMonthly:
		if len(p.DaysOfMonth) == 0 {
			return util.Invalid("daysOfMonth is required for monthly recurrence")
		}
	default:
		return util.Invalid("unknown recurrence type %q", p.RecurrenceType)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return util.Invalid("endDate must not be before startDate")
	}
	if p.TimezoneOffset < util.MinTimezoneOffset || p.TimezoneOffset > util.MaxTimezoneOffset {
		return util.Invalid("timezoneOffset out of range")
	}
	return nil
}

func uniqueInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
