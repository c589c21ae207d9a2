package audit

import (
	"context"
	"time"

	"github.com/driplo/twofa/services/logging"
	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Event struct {
	UserID    uint
	Type      EventType
	Metadata  map[string]any
	IPAddress string
	UserAgent string
}

type Service struct {
	db     *gorm.DB
	logger *logging.Service
	now    func() time.Time
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Record stores the event. Failures are logged and never reported to the caller.
func (s *Service) Record(ctx context.Context, event Event) {
	device := DescribeUserAgent(event.UserAgent)

	record := AuthEvent{
		ID:        uuid.New().String(),
		UserID:    event.UserID,
		Type:      event.Type,
		Metadata:  event.Metadata,
		IPAddress: event.IPAddress,
		UserAgent: truncate(event.UserAgent, 512),
		Browser:   device.Browser,
		OS:        device.OS,
		Device:    device.Type,
		CreatedAt: s.now(),
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to record auth event",
				zap.Uint("user_id", event.UserID),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
		return
	}

	if s.logger != nil {
		s.logger.Debug("auth event recorded",
			zap.String("event_id", record.ID),
			zap.Uint("user_id", event.UserID),
			zap.String("type", string(event.Type)))
	}
}

func (s *Service) ListForUser(ctx context.Context, userID uint, limit int) ([]AuthEvent, error) {
	var events []AuthEvent
	query := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

type Device struct {
	Browser string
	OS      string
	Type    string
}

func DescribeUserAgent(userAgent string) Device {
	if userAgent == "" {
		return Device{Browser: "Unknown Browser", OS: "Unknown OS", Type: "Unknown"}
	}

	ua := useragent.Parse(userAgent)

	device := Device{Browser: "Unknown Browser", OS: "Unknown OS", Type: "Desktop"}
	switch {
	case ua.Bot:
		device.Type = "Bot"
	case ua.Tablet:
		device.Type = "Tablet"
	case ua.Mobile:
		device.Type = "Mobile"
	}

	if ua.Name != "" {
		device.Browser = joinVersion(ua.Name, ua.Version)
	}
	if ua.OS != "" {
		device.OS = joinVersion(ua.OS, ua.OSVersion)
	}

	return device
}

func joinVersion(name, version string) string {
	if version == "" {
		return name
	}
	return name + " " + version
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
