package models

import (
	"time"
)

// StatsSnapshot is one observation of the guild's headline numbers.
type StatsSnapshot struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	GuildID     string    `json:"guild_id" gorm:"index;not null"`
	MemberCount int       `json:"member_count"`
	OnlineCount int       `json:"online_count"`
	BanCount    int       `json:"ban_count"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}

type MemberEventType string

const (
	MemberEventJoin  MemberEventType = "join"
	MemberEventLeave MemberEventType = "leave"
	MemberEventBan   MemberEventType = "ban"
	MemberEventUnban MemberEventType = "unban"
)

// MemberEventRecord is one member join/leave/ban/unban occurrence, kept for
// the daily report.
type MemberEventRecord struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	GuildID   string          `json:"guild_id" gorm:"index;not null"`
	EventType MemberEventType `json:"event_type" gorm:"not null"`
	MemberID  string          `json:"member_id"`
	Username  string          `json:"username"`
	CreatedAt time.Time       `json:"created_at" gorm:"autoCreateTime;index"`
}

// DailyReport aggregates one UTC day of activity.
type DailyReport struct {
	Date        time.Time `json:"date"`
	Joins       int64     `json:"joins"`
	Leaves      int64     `json:"leaves"`
	Bans        int64     `json:"bans"`
	Unbans      int64     `json:"unbans"`
	MemberCount int       `json:"member_count"`
	OnlineCount int       `json:"online_count"`
	BanCount    int       `json:"ban_count"`
}
