package service

import (
	"context"
	"time"

	"github.com/lok-dashboard/internal/logging"
	"github.com/lok-dashboard/internal/models"
)

// VisitorStore is the persistence surface for visitor analytics.
type VisitorStore interface {
	FindByIP(ctx context.Context, ipAddress string) (*models.VisitorLog, error)
	SaveVisitor(ctx context.Context, visitor *models.VisitorLog) error
	UpdateVisitor(ctx context.Context, visitor *models.VisitorLog) error
	SaveActivity(ctx context.Context, activity *models.ActivityLog) error
	TotalVisitorCount(ctx context.Context) (int, error)
	TodayVisitorCount(ctx context.Context) (int, error)
	TotalActivityCount(ctx context.Context) (int, error)
	TodayActivityCount(ctx context.Context) (int, error)
	ActivityCountByEndpoint(ctx context.Context) (map[string]int, error)
}

// VisitorSummary aggregates visitor and request counts for the analytics
// endpoint.
type VisitorSummary struct {
	TotalVisitors      int            `json:"totalVisitors"`
	TodayVisitors      int            `json:"todayVisitors"`
	TotalRequests      int            `json:"totalRequests"`
	TodayRequests      int            `json:"todayRequests"`
	RequestsByEndpoint map[string]int `json:"requestsByEndpoint"`
}

// VisitorService records visits and serves analytics summaries.
type VisitorService struct {
	store  VisitorStore
	now    func() time.Time
	logger *logging.Logger
}

// NewVisitorService creates a new visitor service
func NewVisitorService(store VisitorStore, logger *logging.Logger) *VisitorService {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &VisitorService{
		store:  store,
		now:    time.Now,
		logger: logger.WithField("component", "visitor_service"),
	}
}

// RecordVisit upserts the visitor for an IP address and appends one activity
// record for the request.
func (s *VisitorService) RecordVisit(ctx context.Context, ipAddress, userAgent, endpoint, method string, statusCode int) error {
	now := s.now().UTC()

	visitor, err := s.store.FindByIP(ctx, ipAddress)
	if err != nil {
		return err
	}

	if visitor == nil {
		visitor = &models.VisitorLog{
			IPAddress:      ipAddress,
			UserAgent:      userAgent,
			FirstVisitTime: now,
			LastVisitTime:  now,
			VisitCount:     1,
		}
		if err := s.store.SaveVisitor(ctx, visitor); err != nil {
			return err
		}
	} else {
		visitor.LastVisitTime = now
		visitor.VisitCount++
		if err := s.store.UpdateVisitor(ctx, visitor); err != nil {
			return err
		}
	}

	return s.store.SaveActivity(ctx, &models.ActivityLog{
		VisitorID:  visitor.ID,
		Endpoint:   endpoint,
		Method:     method,
		Timestamp:  now,
		StatusCode: statusCode,
	})
}

// Summary returns visitor and request totals plus per-endpoint counts.
func (s *VisitorService) Summary(ctx context.Context) (*VisitorSummary, error) {
	totalVisitors, err := s.store.TotalVisitorCount(ctx)
	if err != nil {
		return nil, err
	}
	todayVisitors, err := s.store.TodayVisitorCount(ctx)
	if err != nil {
		return nil, err
	}
	totalRequests, err := s.store.TotalActivityCount(ctx)
	if err != nil {
		return nil, err
	}
	todayRequests, err := s.store.TodayActivityCount(ctx)
	if err != nil {
		return nil, err
	}
	byEndpoint, err := s.store.ActivityCountByEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	return &VisitorSummary{
		TotalVisitors:      totalVisitors,
		TodayVisitors:      todayVisitors,
		TotalRequests:      totalRequests,
		TodayRequests:      todayRequests,
		RequestsByEndpoint: byEndpoint,
	}, nil
}
