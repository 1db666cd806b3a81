package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanBatch = 100

// PermissionCache keeps permission decisions and role permission sets in
// redis. A nil *PermissionCache is valid and caches nothing.
type PermissionCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewPermissionCache returns nil when client is nil.
func NewPermissionCache(client *redis.Client, prefix string, ttl time.Duration, log *zap.SugaredLogger) *PermissionCache {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &PermissionCache{client: client, prefix: prefix, ttl: ttl, log: log}
}

// Decision and role-set keys embed the generation read before the store
// query. Invalidation bumps the generation, so a write from a query that
// started before it lands under a key nobody reads.
func (c *PermissionCache) globalGenKey() string {
	return c.prefix + "gen"
}

func (c *PermissionCache) userGenKey(userID string) string {
	return fmt.Sprintf("%sgen:%s", c.prefix, userID)
}

func (c *PermissionCache) decisionKey(userID, gen, permission string) string {
	return fmt.Sprintf("%sperm:%s:%s:%s", c.prefix, userID, gen, permission)
}

func (c *PermissionCache) rolePermissionsKey(gen string, role Role) string {
	return fmt.Sprintf("%srole:%s:%s:permissions", c.prefix, gen, role)
}

// Generation returns the cache generation for userID, or the global one
// when userID is empty. ok is false when the cache is disabled or
// unreachable; nothing should be read or written then.
func (c *PermissionCache) Generation(ctx context.Context, userID string) (gen string, ok bool) {
	if c == nil {
		return "", false
	}
	keys := []string{c.globalGenKey()}
	if userID != "" {
		keys = append(keys, c.userGenKey(userID))
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warnw("permission cache generation read failed", "user_id", userID, "error", err)
		return "", false
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		s, _ := v.(string)
		if s == "" {
			s = "0"
		}
		parts[i] = s
	}
	return strings.Join(parts, "."), true
}

// Decision returns a cached decision; found is false on a miss or error.
func (c *PermissionCache) Decision(ctx context.Context, userID, gen, permission string) (allowed, found bool) {
	if c == nil {
		return false, false
	}
	val, err := c.client.Get(ctx, c.decisionKey(userID, gen, permission)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnw("permission cache read failed", "user_id", userID, "permission", permission, "error", err)
		}
		return false, false
	}
	return val == "1", true
}

func (c *PermissionCache) SetDecision(ctx context.Context, userID, gen, permission string, allowed bool) {
	if c == nil {
		return
	}
	val := "0"
	if allowed {
		val = "1"
	}
	if err := c.client.Set(ctx, c.decisionKey(userID, gen, permission), val, c.ttl).Err(); err != nil {
		c.log.Warnw("permission cache write failed", "user_id", userID, "permission", permission, "error", err)
	}
}

func (c *PermissionCache) RolePermissions(ctx context.Context, gen string, role Role) ([]Permission, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.rolePermissionsKey(gen, role)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warnw("role permission cache read failed", "role", role, "error", err)
		}
		return nil, false
	}
	var perms []Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		c.log.Warnw("role permission cache entry corrupt", "role", role, "error", err)
		return nil, false
	}
	return perms, true
}

func (c *PermissionCache) SetRolePermissions(ctx context.Context, gen string, role Role, perms []Permission) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		c.log.Warnw("failed to encode role permissions", "role", role, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.rolePermissionsKey(gen, role), raw, c.ttl).Err(); err != nil {
		c.log.Warnw("role permission cache write failed", "role", role, "error", err)
	}
}

// InvalidateUser retires every cached decision for userID by bumping its
// generation, then deletes the retired entries.
func (c *PermissionCache) InvalidateUser(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	if err := c.client.Incr(ctx, c.userGenKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	return c.deleteMatching(ctx, fmt.Sprintf("%sperm:%s:*", c.prefix, userID))
}

// Clear retires every cached entry by bumping the global generation, then
// deletes decisions and role sets. Generation keys are kept.
func (c *PermissionCache) Clear(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Incr(ctx, c.globalGenKey()).Err(); err != nil {
		return fmt.Errorf("failed to bump cache generation: %w", err)
	}
	if err := c.deleteMatching(ctx, c.prefix+"perm:*"); err != nil {
		return err
	}
	return c.deleteMatching(ctx, c.prefix+"role:*")
}

func (c *PermissionCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}
