package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/accountflow"
)

// ErrRedisUnavailable wraps every backend failure of the ledger.
var ErrRedisUnavailable = errors.New("redis unavailable")

// OrphanEntry is one pending orphaned identity as stored in the ledger.
type OrphanEntry struct {
	IdentityID accountflow.IdentityID
	Email      string
	CauseCode  string
	DetectedAt time.Time
}

// OrphanLedger implements accountflow.OrphanRecorder. Entries live in a hash
// per identity plus a sorted set ordered by detection time. Recording the
// same identity twice keeps the latest cause.
type OrphanLedger struct {
	redis  redis.UniversalClient
	prefix string
}

func NewOrphanLedger(client redis.UniversalClient, prefix string) *OrphanLedger {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &OrphanLedger{redis: client, prefix: prefix}
}

func (l *OrphanLedger) indexKey() string {
	return l.prefix + ":orphans"
}

func (l *OrphanLedger) entryKey(id accountflow.IdentityID) string {
	return l.prefix + ":orphan:" + id.String()
}

func (l *OrphanLedger) RecordOrphan(ctx context.Context, o accountflow.OrphanedIdentity) error {
	if !o.IdentityID.Valid() {
		return accountflow.ErrInvalidIdentityID
	}
	detected := o.DetectedAt
	if detected.IsZero() {
		detected = time.Now()
	}

	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, l.entryKey(o.IdentityID),
			"email", o.User.Email,
			"cause", accountflow.ErrorCode(o.Cause),
			"detected_at", strconv.FormatInt(detected.UnixMilli(), 10),
		)
		pipe.ZAdd(ctx, l.indexKey(), redis.Z{
			Score:  float64(detected.UnixMilli()),
			Member: o.IdentityID.String(),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Pending returns up to limit entries, oldest first. limit <= 0 returns all.
func (l *OrphanLedger) Pending(ctx context.Context, limit int) ([]OrphanEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := l.redis.ZRange(ctx, l.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds, err := l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.HGetAll(ctx, l.entryKey(accountflow.IdentityID(id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]OrphanEntry, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.(*redis.MapStringStringCmd).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(fields) == 0 {
			continue
		}
		ms, _ := strconv.ParseInt(fields["detected_at"], 10, 64)
		out = append(out, OrphanEntry{
			IdentityID: accountflow.IdentityID(ids[i]),
			Email:      fields["email"],
			CauseCode:  fields["cause"],
			DetectedAt: time.UnixMilli(ms).UTC(),
		})
	}
	return out, nil
}

// Resolve removes id from the ledger once it has been reconciled out of band.
// It reports whether an entry existed.
func (l *OrphanLedger) Resolve(ctx context.Context, id accountflow.IdentityID) (bool, error) {
	var removed *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, l.indexKey(), id.String())
		pipe.Del(ctx, l.entryKey(id))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return removed.Val() > 0, nil
}

func (l *OrphanLedger) Count(ctx context.Context) (int64, error) {
	n, err := l.redis.ZCard(ctx, l.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n, nil
}
