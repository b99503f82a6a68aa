package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/malwarebo/statsbot/config"
	"github.com/malwarebo/statsbot/discord"
	"github.com/malwarebo/statsbot/models"
	"github.com/malwarebo/statsbot/utils"
	"github.com/malwarebo/statsbot/webhooks"
)

// DiscordAPI is the slice of the Discord REST surface the stats service
// needs; the gateway side of Discord stays outside this repository.
type DiscordAPI interface {
	FetchGuildCounts(ctx context.Context, guildID string) (*discord.GuildCounts, error)
	RenameChannel(ctx context.Context, channelID, name string) error
}

type StatsStore interface {
	SaveSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error
	LatestSnapshot(ctx context.Context, guildID string) (*models.StatsSnapshot, error)
	RecordMemberEvent(ctx context.Context, record *models.MemberEventRecord) error
	DailyReport(ctx context.Context, guildID string, day time.Time) (*models.DailyReport, error)
}

type SnapshotCache interface {
	SetSnapshot(ctx context.Context, snapshot *models.StatsSnapshot) error
}

// Telemetry is the webhook pipeline as seen from the services.
type Telemetry interface {
	SendLog(level webhooks.LogLevel, message string, context map[string]interface{})
	SendError(err error, context map[string]interface{})
	SendMemberEvent(eventType, memberID, username string, context map[string]interface{})
}

// StatsService keeps the counter channels and the statistics store in sync
// with the guild, emits the daily report and heartbeats through the webhook
// pipeline.
type StatsService struct {
	cfg     config.BotConfig
	discord DiscordAPI
	store   StatsStore
	cache   SnapshotCache
	hooks   Telemetry
	logger  *utils.Logger
	retry   *utils.RetryConfig

	mu         sync.Mutex
	lastMember int
	lastOnline int
	lastBan    int
	startedAt  time.Time
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

func NewStatsService(cfg config.BotConfig, api DiscordAPI, store StatsStore, cache SnapshotCache, hooks Telemetry) *StatsService {
	return &StatsService{
		cfg:        cfg,
		discord:    api,
		store:      store,
		cache:      cache,
		hooks:      hooks,
		logger:     utils.NewLogger("stats"),
		retry:      utils.DefaultRetryConfig(),
		lastMember: -1,
		lastOnline: -1,
		lastBan:    -1,
	}
}

func (s *StatsService) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.startedAt = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(3)
	go s.updateLoop(ctx)
	go s.heartbeatLoop(ctx)
	go s.dailyReportLoop(ctx)
}

func (s *StatsService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *StatsService) updateLoop(ctx context.Context) {
	defer s.wg.Done()

	// First update immediately, then on the interval.
	s.UpdateOnce(ctx)

	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.UpdateOnce(ctx)
		}
	}
}

// UpdateOnce fetches current counts, persists a snapshot and updates the
// counter channel names that changed.
func (s *StatsService) UpdateOnce(ctx context.Context) {
	var counts *discord.GuildCounts
	err := utils.Retry(ctx, s.retry, func() error {
		var err error
		counts, err = s.discord.FetchGuildCounts(ctx, s.cfg.GuildID)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "Failed to fetch guild counts", map[string]interface{}{
			"guild_id": s.cfg.GuildID,
			"error":    err.Error(),
		})
		s.hooks.SendError(err, map[string]interface{}{
			"component": "stats",
			"operation": "fetch_guild_counts",
		})
		return
	}

	snapshot := &models.StatsSnapshot{
		GuildID:     s.cfg.GuildID,
		MemberCount: counts.MemberCount,
		OnlineCount: counts.OnlineCount,
		BanCount:    counts.BanCount,
	}

	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		s.logger.Error(ctx, "Failed to save stats snapshot", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if s.cache != nil {
		if err := s.cache.SetSnapshot(ctx, snapshot); err != nil {
			s.logger.Warn(ctx, "Failed to cache stats snapshot", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	s.updateChannels(ctx, counts)
}

func (s *StatsService) updateChannels(ctx context.Context, counts *discord.GuildCounts) {
	s.mu.Lock()
	changes := []struct {
		channelID string
		name      string
		current   int
		last      *int
	}{
		{s.cfg.MemberCountChannelID, fmt.Sprintf("Members: %d", counts.MemberCount), counts.MemberCount, &s.lastMember},
		{s.cfg.OnlineCountChannelID, fmt.Sprintf("Online: %d", counts.OnlineCount), counts.OnlineCount, &s.lastOnline},
		{s.cfg.BanCountChannelID, fmt.Sprintf("Bans: %d", counts.BanCount), counts.BanCount, &s.lastBan},
	}

	type rename struct {
		channelID string
		name      string
	}
	var renames []rename
	for _, change := range changes {
		if change.channelID == "" || change.current == *change.last {
			continue
		}
		*change.last = change.current
		renames = append(renames, rename{change.channelID, change.name})
	}
	s.mu.Unlock()

	for _, r := range renames {
		if err := s.discord.RenameChannel(ctx, r.channelID, r.name); err != nil {
			s.logger.Warn(ctx, "Failed to rename channel", map[string]interface{}{
				"channel_id": r.channelID,
				"name":       r.name,
				"error":      err.Error(),
			})
		}
	}
}

func (s *StatsService) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.heartbeat()
		}
	}
}

func (s *StatsService) heartbeat() {
	s.mu.Lock()
	uptime := time.Since(s.startedAt)
	member, online, ban := s.lastMember, s.lastOnline, s.lastBan
	s.mu.Unlock()

	fields := map[string]interface{}{
		"component":    "stats",
		"uptime":       uptime.Round(time.Second).String(),
		"member_count": member,
		"online_count": online,
		"ban_count":    ban,
	}

	// The webhook manager reports its own delivery health.
	if reporter, ok := s.hooks.(interface{ Status() []webhooks.DestinationStatus }); ok {
		var queued int
		openCircuits := 0
		for _, status := range reporter.Status() {
			queued += status.QueueDepth
			if status.Circuit != "closed" {
				openCircuits++
			}
		}
		fields["queued_deliveries"] = queued
		fields["open_circuits"] = openCircuits
	}

	s.hooks.SendLog(webhooks.LevelInfo, "Heartbeat", fields)
}

func (s *StatsService) dailyReportLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := time.Now().UTC()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.sendDailyReport(ctx, next.Add(-time.Hour))
		}
	}
}

// sendDailyReport emits the aggregate for the UTC day containing day.
func (s *StatsService) sendDailyReport(ctx context.Context, day time.Time) {
	report, err := s.store.DailyReport(ctx, s.cfg.GuildID, day)
	if err != nil {
		s.logger.Error(ctx, "Failed to build daily report", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.hooks.SendLog(webhooks.LevelInfo, fmt.Sprintf("Daily Report - %s", report.Date.Format("2006-01-02")), map[string]interface{}{
		"component":    "stats",
		"joins":        report.Joins,
		"leaves":       report.Leaves,
		"bans":         report.Bans,
		"unbans":       report.Unbans,
		"member_count": report.MemberCount,
		"online_count": report.OnlineCount,
		"ban_count":    report.BanCount,
	})
}

// HandleMemberEvent records a member event and forwards it to the webhook
// pipeline. Called by whatever gateway integration feeds this bot.
func (s *StatsService) HandleMemberEvent(ctx context.Context, eventType models.MemberEventType, memberID, username string) {
	record := &models.MemberEventRecord{
		GuildID:   s.cfg.GuildID,
		EventType: eventType,
		MemberID:  memberID,
		Username:  username,
	}
	if err := s.store.RecordMemberEvent(ctx, record); err != nil {
		s.logger.Error(ctx, "Failed to record member event", map[string]interface{}{
			"event_type": string(eventType),
			"error":      err.Error(),
		})
	}

	s.hooks.SendMemberEvent(string(eventType), memberID, username, map[string]interface{}{
		"guild_id": s.cfg.GuildID,
	})
}
