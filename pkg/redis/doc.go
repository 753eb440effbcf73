// Package redis connects the control plane to an optional Redis server.
//
// Connect retries the initial ping using the supplied Config. Healthcheck
// plugs Redis into the readiness probe, and Downstream exposes a bounded
// ping that the circuit breaker demo route calls as its protected
// dependency.
//
// Configuration is read from the environment:
//
//	REDIS_URL               redis://localhost:6379/0 (empty disables Redis)
//	REDIS_RETRY_ATTEMPTS    3
//	REDIS_RETRY_INTERVAL    2s
//	REDIS_CONNECT_TIMEOUT   30s
//	REDIS_PING_TIMEOUT      500ms
//
// # Usage
//
//	cfg := config.MustLoad[redis.Config]()
//	if cfg.Enabled() {
//		client, err := redis.Connect(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		defer client.Close()
//	}
package redis
