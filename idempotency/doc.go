// Package idempotency provides at-most-once execution of operations keyed
// by client-supplied idempotency keys.
//
// A Manager records the result of each successful operation under its key
// and serves duplicates from the record for a configurable TTL. Concurrent
// calls with the same key share a single in-flight execution.
//
// # Basic Usage
//
//	mgr := idempotency.NewManager(idempotency.ManagerConfig{
//	    TTL: time.Hour,
//	})
//
//	result, err := mgr.Execute(ctx, key, func(ctx context.Context) ([]byte, error) {
//	    return chargeCard(ctx, payment)
//	})
//	if result.Cached {
//	    log.Printf("duplicate request %s, served recorded result", key)
//	}
//
// Keys must be UUID v4 strings; anything else fails with a ValidationError
// before the store is touched.
//
// # Stores
//
// Results live in a pluggable Store. The default MemoryStore is
// process-local; RedisStore shares the record across replicas:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	mgr := idempotency.NewManager(idempotency.ManagerConfig{
//	    Store: idempotency.NewRedisStore(client),
//	})
package idempotency
