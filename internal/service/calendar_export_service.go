package service

import (
	"college_orbit_backend/internal/model"
	"college_orbit_backend/internal/repository"
	"college_orbit_backend/internal/util"
	"college_orbit_backend/pkg/logger"
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
)

// 导出窗口（月）
const calendarExportMonths = 6

type CalendarExport struct {
	URL         string    `json:"url"`
	EventCount  int       `json:"eventCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}

type CalendarExportService struct {
	InstanceRepo *repository.InstanceRepository
	Storage      *StorageService
	Now          func() time.Time
}

func NewCalendarExportService(instanceRepo *repository.InstanceRepository, storage *StorageService) *CalendarExportService {
	return &CalendarExportService{
		InstanceRepo: instanceRepo,
		Storage:      storage,
		Now:          time.Now,
	}
}

func (s *CalendarExportService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// RenderCalendar 把 [from, to) 内的条目渲染为 iCalendar 文本
func (s *CalendarExportService) RenderCalendar(ctx context.Context, userID uint, from, to time.Time) (string, int, error) {
	upcoming, err := s.InstanceRepo.FindUpcoming(ctx, userID, from, to)
	if err != nil {
		return "", 0, err
	}

	cal := ics.NewCalendarFor("College Orbit")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName("College Orbit")
	stamp := s.now()
	count := 0

	addEvent := func(kind model.ItemType, id string, f model.InstanceFields, start, end time.Time, location string) {
		ev := cal.AddEvent(fmt.Sprintf("%s-%s@collegeorbit", kind, id))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start.UTC())
		ev.SetEndAt(end.UTC())
		ev.SetSummary(f.Title)
		if f.Description != "" {
			ev.SetDescription(f.Description)
		}
		if location != "" {
			ev.SetLocation(location)
		}
		if f.IsOpen() {
			ev.SetStatus(ics.ObjectStatusConfirmed)
		} else {
			ev.SetStatus(ics.ObjectStatusCompleted)
		}
		count++
	}

	for _, t := range upcoming.Tasks {
		if t.DueAt == nil {
			continue
		}
		addEvent(model.ItemTask, t.ID, t.InstanceFields, *t.DueAt, t.DueAt.Add(30*time.Minute), "")
	}
	for _, d := range upcoming.Deadlines {
		addEvent(model.ItemDeadline, d.ID, d.InstanceFields, d.DueAt, d.DueAt.Add(30*time.Minute), "")
	}
	for _, e := range upcoming.Exams {
		minutes := e.DurationMinutes
		if minutes <= 0 {
			minutes = 60
		}
		addEvent(model.ItemExam, e.ID, e.InstanceFields, e.StartAt, e.StartAt.Add(time.Duration(minutes)*time.Minute), e.Location)
	}
	for _, c := range upcoming.CalendarEvents {
		end := c.EndAt
		if !end.After(c.StartAt) {
			end = c.StartAt.Add(time.Hour)
		}
		addEvent(model.ItemCalendarEvent, c.ID, c.InstanceFields, c.StartAt, end, c.Location)
	}

	return cal.Serialize(), count, nil
}

// ExportCalendar 渲染未来六个月的条目并上传到对象存储
func (s *CalendarExportService) ExportCalendar(ctx context.Context, userID uint) (*CalendarExport, error) {
	now := s.now()
	body, count, err := s.RenderCalendar(ctx, userID, now, util.AddMonths(now, calendarExportMonths))
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("exports/%d/calendar.ics", userID)
	url, err := s.Storage.PutBytes(ctx, key, []byte(body), util.MimeCalendar)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Calendar exported",
		zap.Uint("userID", userID),
		zap.Int("events", count),
		zap.String("key", key))

	return &CalendarExport{URL: url, EventCount: count, GeneratedAt: now}, nil
}
