package stores

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/malwarebo/statsbot/models"
)

type StatsStore struct {
	BaseStore
}

func CreateStatsStore(db *gorm.DB) *StatsStore {
	return &StatsStore{BaseStore: BaseStore{db: db}}
}

func (s *StatsStore) Migrate() error {
	return s.db.AutoMigrate(&models.StatsSnapshot{}, &models.MemberEventRecord{})
}

func (s *StatsStore) SaveSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error {
	return s.GetDB(ctx).Create(snapshot).Error
}

func (s *StatsStore) LatestSnapshot(ctx context.Context, guildID string) (*models.StatsSnapshot, error) {
	var snapshot models.StatsSnapshot
	err := s.GetDB(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *StatsStore) RecordMemberEvent(ctx context.Context, record *models.MemberEventRecord) error {
	return s.GetDB(ctx).Create(record).Error
}

// DailyReport aggregates member events and the latest counts for the UTC day
// containing the given time. The four counts and the snapshot read run in one
// transaction so events recorded mid-report cannot skew the totals.
func (s *StatsStore) DailyReport(ctx context.Context, guildID string, day time.Time) (*models.DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	report := &models.DailyReport{Date: start}

	counts := []struct {
		eventType models.MemberEventType
		dest      *int64
	}{
		{models.MemberEventJoin, &report.Joins},
		{models.MemberEventLeave, &report.Leaves},
		{models.MemberEventBan, &report.Bans},
		{models.MemberEventUnban, &report.Unbans},
	}

	err := s.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, c := range counts {
			err := s.GetDB(txCtx).
				Model(&models.MemberEventRecord{}).
				Where("guild_id = ? AND event_type = ? AND created_at >= ? AND created_at < ?",
					guildID, c.eventType, start, end).
				Count(c.dest).Error
			if err != nil {
				return err
			}
		}

		snapshot, err := s.LatestSnapshot(txCtx, guildID)
		if err == nil {
			report.MemberCount = snapshot.MemberCount
			report.OnlineCount = snapshot.OnlineCount
			report.BanCount = snapshot.BanCount
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
