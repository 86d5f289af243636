/*
Package config loads the settings of a process that hosts rxgraph graphs.

# Overview

Config wraps a decoded YAML or JSON document and extracts typed values,
returning a default when a key is missing or has the wrong type:

	cfg, err := config.FromFile("rxgraph.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	workers := cfg.Int("workers", 4)
	store := cfg.Sub("store")
	backend := store.String("backend", "memory")

# Runtime

Runtime is the typed configuration a host needs: scheduler workers, log
level, telemetry switches and the checkpoint store. LoadRuntime layers
defaults, an optional file, and RXGRAPH_* environment variables:

	RXGRAPH_WORKERS=8
	RXGRAPH_LOG_LEVEL=debug
	RXGRAPH_METRICS_ENABLED=true
	RXGRAPH_TRACING_ENABLED=true
	RXGRAPH_STORE_BACKEND=badger
	RXGRAPH_STORE_PATH=/var/lib/rxgraph
	RXGRAPH_STORE_CODEC=msgpack

and then builds the pieces from it:

	rt, err := config.LoadRuntime(os.Getenv("RXGRAPH_CONFIG"))
	logger := rt.Logger()
	pool := rt.NewScheduler(logger)
	store, err := rt.OpenStore()
	opts, err := rt.GraphOptions(logger)
	g := rxgraph.NewGraph(pool.NewLogical(), opts...)

# Thread Safety

Config and Runtime are values; they are safe for concurrent reads.
*/
package config
