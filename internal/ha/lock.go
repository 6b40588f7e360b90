// Package ha implements the distributed arbiter the engine (C11) uses to
// decide which process instance is Active versus Standby for a given
// session identity across a cluster (spec §4.10 "HA active/standby").
// Exactly one process holds the lease for a session identity at a time;
// every other process configured for that identity stays Standby until
// the lease expires or is released.
//
// Grounded on the teacher's internal/infra/redis_adapter.go (GoRedisAdapter:
// a thin wrapper constructing a *redis.Client with explicit
// Dial/Read/WriteTimeout and a startup Ping) — the lock itself is the
// classic Redlock-single-node pattern (SET key value NX PX ttl to
// acquire, a Lua compare-and-delete to release only if still owner).
package ha

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still holds this holder's
// token, so a lease that already expired and was re-acquired by another
// process is never deleted out from under it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// renewScript extends the TTL only if this holder still owns the key.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`

// Arbiter arbitrates Active/Standby ownership of session identities across
// a cluster of engine processes via a shared Redis instance.
type Arbiter struct {
	rdb   *redis.Client
	lease time.Duration
}

// NewArbiter connects to addr and verifies connectivity with a startup
// Ping, following the teacher's GoRedisAdapter constructor shape.
func NewArbiter(addr string, leaseSeconds int) (*Arbiter, error) {
	if leaseSeconds <= 0 {
		leaseSeconds = 10
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ha: redis ping failed (%s): %w", addr, err)
	}

	return &Arbiter{rdb: rdb, lease: time.Duration(leaseSeconds) * time.Second}, nil
}

// Close releases the underlying redis client.
func (a *Arbiter) Close() error { return a.rdb.Close() }

// Lease represents this process's claim to be Active for one session
// identity. Hold onto it to Renew or Release.
type Lease struct {
	key   string
	token string
}

func lockKey(sessionIdentity string) string {
	return "omnibridge:ha:active:" + sessionIdentity
}

// TryAcquire attempts to become Active for sessionIdentity. ok=false means
// another process currently holds the lease; the caller should remain
// Standby and retry later (spec §4.10 "Active <-> Standby").
func (a *Arbiter) TryAcquire(ctx context.Context, sessionIdentity string) (lease *Lease, ok bool, err error) {
	token := uuid.NewString()
	key := lockKey(sessionIdentity)
	set, err := a.rdb.SetNX(ctx, key, token, a.lease).Result()
	if err != nil {
		return nil, false, fmt.Errorf("ha: acquire %s: %w", sessionIdentity, err)
	}
	if !set {
		return nil, false, nil
	}
	return &Lease{key: key, token: token}, true, nil
}

// Renew extends the lease's TTL if this process still owns it. ok=false
// means the lease was lost (another process may now be Active) and the
// caller must transition itself to Standby.
func (a *Arbiter) Renew(ctx context.Context, l *Lease) (ok bool, err error) {
	res, err := a.rdb.Eval(ctx, renewScript, []string{l.key}, l.token, a.lease.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("ha: renew %s: %w", l.key, err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}

// Release gives up the lease, allowing another process to become Active
// immediately rather than waiting for expiry (spec §4.10 clean shutdown).
func (a *Arbiter) Release(ctx context.Context, l *Lease) error {
	_, err := a.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("ha: release %s: %w", l.key, err)
	}
	return nil
}
