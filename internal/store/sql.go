package store

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type chatRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Room      string `gorm:"size:128;index:idx_room_ts,priority:1"`
	Sender    string `gorm:"size:128"`
	Body      string
	Session   string    `gorm:"size:64"`
	Timestamp time.Time `gorm:"column:sent_at;index:idx_room_ts,priority:2"`
}

func (chatRecord) TableName() string { return "chat_messages" }

type meetingRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	User        string    `gorm:"column:user_id;size:128;index"`
	MeetingCode string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"index"`
}

func (meetingRecord) TableName() string { return "meetings" }

// SQL stores chat and meetings in relational tables through gorm.
type SQL struct {
	db *gorm.DB
}

// OpenSQL opens a sqlite or postgres database and migrates the schema.
func OpenSQL(driver, dsn string) (*SQL, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&chatRecord{}, &meetingRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQL{db: db}, nil
}

func (s *SQL) AppendMessage(ctx context.Context, room string, msg Message) error {
	rec := chatRecord{
		Room:      room,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Session:   msg.Session,
		Timestamp: msg.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *SQL) Messages(ctx context.Context, room string) ([]Message, error) {
	var recs []chatRecord
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("sent_at asc, id asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]Message, len(recs))
	for i, r := range recs {
		out[i] = Message{Room: r.Room, Sender: r.Sender, Body: r.Body, Session: r.Session, Timestamp: r.Timestamp}
	}
	return out, nil
}

func (s *SQL) AppendMeeting(ctx context.Context, m Meeting) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	rec := meetingRecord{ID: m.ID, User: m.User, MeetingCode: m.MeetingCode, CreatedAt: m.CreatedAt}
	return s.db.WithContext(ctx).Create(&rec).Error
}

func (s *SQL) Meetings(ctx context.Context, user string) ([]Meeting, error) {
	var recs []meetingRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", user).
		Order("created_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]Meeting, len(recs))
	for i, r := range recs {
		out[i] = Meeting{ID: r.ID, User: r.User, MeetingCode: r.MeetingCode, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
