package models

import "time"

// VisitorLog tracks a unique visitor by IP address.
type VisitorLog struct {
	ID             int64     `json:"id" db:"id"`
	IPAddress      string    `json:"ipAddress" db:"ip_address"`
	UserAgent      string    `json:"userAgent" db:"user_agent"`
	FirstVisitTime time.Time `json:"firstVisitTime" db:"first_visit_time"`
	LastVisitTime  time.Time `json:"lastVisitTime" db:"last_visit_time"`
	VisitCount     int       `json:"visitCount" db:"visit_count"`
}

// ActivityLog records a single request made by a visitor.
type ActivityLog struct {
	ID         int64     `json:"id" db:"id"`
	VisitorID  int64     `json:"visitorId" db:"visitor_id"`
	Endpoint   string    `json:"endpoint" db:"endpoint"`
	Method     string    `json:"method" db:"method"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	StatusCode int       `json:"statusCode" db:"status_code"`
}
