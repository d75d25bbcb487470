package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Snapshots caches resolved permission sets in Redis behind a per-user
// version number. Bumping the version orphans every cached set for that
// user without touching the entries themselves; short TTLs reap them.
//
// The cache is a read-through optimisation, never an authority: mutating
// routes re-check against the store-backed service regardless of what a
// cached snapshot says.
type Snapshots struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewSnapshots builds the snapshot cache. A nil client disables caching
// and Fetch degrades to calling the loader directly.
func NewSnapshots(client *redis.Client, ttl time.Duration) *Snapshots {
	return &Snapshots{client: client, ttl: ttl}
}

type snapshotPayload struct {
	All    bool    `json:"all"`
	Tuples []Tuple `json:"tuples"`
}

// Fetch returns the cached set for (user, account), populating it through
// the loader on a miss. Concurrent misses for the same key share a single
// loader call.
func (c *Snapshots) Fetch(ctx context.Context, userID, accountID uuid.UUID, loader func(context.Context) (Set, error)) (Set, error) {
	if loader == nil {
		return Set{}, errors.New("authz: snapshot loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	key, err := c.key(ctx, userID, accountID)
	if err != nil {
		return Set{}, err
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return decodeSnapshot(raw)
	}
	if !errors.Is(err, redis.Nil) {
		return Set{}, err
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		set, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		payload := snapshotPayload{All: set.Universal(), Tuples: set.Tuples()}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			return nil, err
		}
		return set, nil
	})
	if err != nil {
		return Set{}, err
	}
	return v.(Set), nil
}

// Invalidate bumps the user's version, orphaning all cached sets for them.
func (c *Snapshots) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(userID)).Err()
}

func (c *Snapshots) key(ctx context.Context, userID, accountID uuid.UUID) (string, error) {
	ver, err := c.version(ctx, userID)
	if err != nil {
		return "", err
	}
	acct := "-"
	if accountID != uuid.Nil {
		acct = accountID.String()
	}
	return fmt.Sprintf("authz:snap:%s:%s:%d", userID, acct, ver), nil
}

func (c *Snapshots) version(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := versionKey(userID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func versionKey(userID uuid.UUID) string {
	return "authz:ver:" + userID.String()
}

func decodeSnapshot(raw []byte) (Set, error) {
	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Set{}, err
	}
	if payload.All {
		return UniversalSet(), nil
	}
	return NewSet(payload.Tuples...), nil
}
