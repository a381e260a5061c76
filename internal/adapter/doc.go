/*
Package adapter assembles the gateway from its parts and owns its lifecycle.

	┌─────────────────────────────────────────────┐
	│            HTTP clients (curl, UI)          │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│          pkg/api (routes, middleware)       │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              ADAPTER LAYER                  │ ← This Package
	│  • Construction from configuration          │
	│  • Bucket provisioning                      │
	│  • Start / Stop / Run                       │
	└─────────────────────────────────────────────┘
	        │            │            │           │
	┌───────┴────┐ ┌─────┴────┐ ┌─────┴────┐ ┌────┴─────┐
	│ S3 backend │ │ Metrics  │ │  Health  │ │  Notify  │
	│ (storage)  │ │(prom)    │ │ (probe)  │ │ (events) │
	└────────────┘ └──────────┘ └──────────┘ └──────────┘

# Lifecycle

New validates the configuration and builds every component without
touching the network beyond what the S3 SDK does while loading its
credential chain. Start optionally creates the fixed namespace buckets,
binds the listener and launches three background tasks: the HTTP server,
the periodic storage probe and the notification workers. Stop shuts the
server down within server.shutdown_timeout, drains queued events and waits
for every task. Run combines the two and returns when its context is
cancelled or the server fails.

The storage probe uses the store's HealthCheck when it has one and falls
back to ListBuckets otherwise. Its outcome feeds the same tracker as the
request handlers, so /health/ready reflects both.

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	gw, err := adapter.New(ctx, cfg)
	if err != nil {
		return err
	}
	return gw.Run(ctx)

Tests inject an in-memory store with WithStore and bind to 127.0.0.1:0;
Addr reports the port that was chosen.
*/
package adapter
