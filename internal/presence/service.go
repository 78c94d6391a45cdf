// Package presence tracks which agents currently hold a realtime connection.
// Presence lives in Redis with a TTL, so a crashed server or dropped
// connection ages out on its own.
package presence

import (
	"context"
	"strings"
	"time"

	"funnelboard/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TTL is how long a presence mark survives without a refresh. The SSE
// keepalive refreshes well inside this window.
const TTL = 90 * time.Second

const keyPrefix = "presence:"

// Service marks and lists agent presence per tenant.
type Service struct {
	rdb *redis.Client
	log *logger.Logger
}

func New(rdb *redis.Client, log *logger.Logger) *Service {
	return &Service{rdb: rdb, log: log}
}

func key(tenantID, userID uuid.UUID) string {
	return keyPrefix + tenantID.String() + ":" + userID.String()
}

// Connected marks the agent online, refreshing the TTL if already marked.
func (s *Service) Connected(ctx context.Context, tenantID, userID uuid.UUID) {
	if err := s.rdb.Set(ctx, key(tenantID, userID), time.Now().UTC().Format(time.RFC3339), TTL).Err(); err != nil {
		s.log.Warn("presence mark failed", "userId", userID, "error", err)
	}
}

// Disconnected removes the agent's presence mark.
func (s *Service) Disconnected(ctx context.Context, tenantID, userID uuid.UUID) {
	if err := s.rdb.Del(ctx, key(tenantID, userID)).Err(); err != nil {
		s.log.Warn("presence clear failed", "userId", userID, "error", err)
	}
}

// Online lists the user ids currently present for a tenant.
func (s *Service) Online(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	prefix := keyPrefix + tenantID.String() + ":"

	var online []uuid.UUID
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), prefix)
		userID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		online = append(online, userID)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if online == nil {
		online = []uuid.UUID{}
	}
	return online, nil
}
