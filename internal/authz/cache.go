package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a ResolverStore with a Redis read-through cache for
// the read-mostly role/module/entry tables. Bindings are never cached:
// a role reassignment must take effect on the next request. Admin
// writes call Invalidate, and the TTL bounds staleness if one is
// missed. Resolve stays deterministic against the cached snapshot.
type CachedStore struct {
	store  ResolverStore
	client *redis.Client
	ttl    time.Duration
}

// NewCachedStore constructs a CachedStore.
func NewCachedStore(store ResolverStore, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{store: store, client: client, ttl: ttl}
}

var _ ResolverStore = (*CachedStore)(nil)

// GetBinding always reads through to the store.
func (c *CachedStore) GetBinding(ctx context.Context, userID int64) (UserRoleBinding, error) {
	return c.store.GetBinding(ctx, userID)
}

// GetRole reads the role through the cache.
func (c *CachedStore) GetRole(ctx context.Context, id int64) (Role, error) {
	key := fmt.Sprintf("authz:role:%d", id)
	var role Role
	if ok, err := c.get(ctx, key, &role); err == nil && ok {
		return role, nil
	}
	role, err := c.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	c.put(ctx, key, role)
	return role, nil
}

// GetModuleByKey reads the module through the cache.
func (c *CachedStore) GetModuleByKey(ctx context.Context, moduleKey string) (Module, error) {
	key := "authz:module:" + moduleKey
	var module Module
	if ok, err := c.get(ctx, key, &module); err == nil && ok {
		return module, nil
	}
	module, err := c.store.GetModuleByKey(ctx, moduleKey)
	if err != nil {
		return Module{}, err
	}
	c.put(ctx, key, module)
	return module, nil
}

// GetEntry reads the permission entry through the cache. Absence is
// not cached; the miss path is a primary-key lookup anyway.
func (c *CachedStore) GetEntry(ctx context.Context, roleID, moduleID int64) (PermissionEntry, error) {
	key := fmt.Sprintf("authz:entry:%d:%d", roleID, moduleID)
	var entry PermissionEntry
	if ok, err := c.get(ctx, key, &entry); err == nil && ok {
		return entry, nil
	}
	entry, err := c.store.GetEntry(ctx, roleID, moduleID)
	if err != nil {
		return PermissionEntry{}, err
	}
	c.put(ctx, key, entry)
	return entry, nil
}

// Invalidate drops every cached authz key. Called after admin writes
// to roles, modules or entries.
func (c *CachedStore) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "authz:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CachedStore) get(ctx context.Context, key string, target any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return false, err
	}
	return true, nil
}

func (c *CachedStore) put(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, data, c.ttl).Err()
}
