package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/pkg/util"
)

const historyCap = 1000

// RedisReminderLedger keeps live reminder markers as Redis keys so several
// scheduler processes share one dedup view. History is a capped list.
type RedisReminderLedger struct {
	rdb        *redis.Client
	live       *util.Deduper
	historyKey string
	seqKey     string
	logger     *zap.Logger
}

func NewRedisReminderLedger(rdb *redis.Client, namespace string, logger *zap.Logger) *RedisReminderLedger {
	return &RedisReminderLedger{
		rdb:        rdb,
		live:       util.NewDeduper(rdb, namespace+":reminder:live", 0, logger),
		historyKey: namespace + ":reminder:history",
		seqKey:     namespace + ":reminder:seq",
		logger:     logger,
	}
}

func liveID(kind model.EntityKind, id int64, threshold int) string {
	return model.ReminderKey(kind, id, threshold)
}

func (l *RedisReminderLedger) HasLive(ctx context.Context, kind model.EntityKind, id int64, threshold int) (bool, error) {
	return l.live.Seen(ctx, liveID(kind, id, threshold))
}

func (l *RedisReminderLedger) Record(ctx context.Context, r model.ReminderRecord) (model.ReminderRecord, error) {
	seq, err := l.rdb.Incr(ctx, l.seqKey).Result()
	if err != nil {
		return r, fmt.Errorf("allocating reminder id: %w", err)
	}
	r.ID = seq
	if err := l.live.Mark(ctx, r.Key()); err != nil {
		return r, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return r, fmt.Errorf("encoding reminder %s: %w", r.Key(), err)
	}
	pipe := l.rdb.TxPipeline()
	pipe.LPush(ctx, l.historyKey, raw)
	pipe.LTrim(ctx, l.historyKey, 0, historyCap-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return r, fmt.Errorf("appending reminder history: %w", err)
	}
	return r, nil
}

// ResetLive drops every live marker and stamps unreset history entries.
func (l *RedisReminderLedger) ResetLive(ctx context.Context, at time.Time) (int, error) {
	removed, err := l.live.ForgetAll(ctx)
	if err != nil {
		return removed, err
	}
	records, err := l.load(ctx)
	if err != nil {
		return removed, err
	}
	stamped := false
	for i := range records {
		if records[i].ResetAt == nil {
			stamp := at
			records[i].ResetAt = &stamp
			stamped = true
		}
	}
	if !stamped {
		return removed, nil
	}

	values := make([]any, 0, len(records))
	for _, r := range records {
		raw, err := json.Marshal(r)
		if err != nil {
			return removed, fmt.Errorf("encoding reminder %s: %w", r.Key(), err)
		}
		values = append(values, raw)
	}
	pipe := l.rdb.TxPipeline()
	pipe.Del(ctx, l.historyKey)
	pipe.RPush(ctx, l.historyKey, values...)
	if _, err := pipe.Exec(ctx); err != nil {
		return removed, fmt.Errorf("rewriting reminder history: %w", err)
	}
	l.logger.Info("Reset redis reminder ledger", zap.Int("live_removed", removed))
	return removed, nil
}

func (l *RedisReminderLedger) History(ctx context.Context, f HistoryFilter) ([]model.ReminderRecord, error) {
	records, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []model.ReminderRecord{}
	for _, r := range records {
		if len(out) == f.limit() {
			break
		}
		if f.match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// load returns the history newest first.
func (l *RedisReminderLedger) load(ctx context.Context) ([]model.ReminderRecord, error) {
	raw, err := l.rdb.LRange(ctx, l.historyKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading reminder history: %w", err)
	}
	records := make([]model.ReminderRecord, 0, len(raw))
	for i, item := range raw {
		var r model.ReminderRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			l.logger.Warn("Skipping malformed reminder history entry",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		records = append(records, r)
	}
	return records, nil
}
