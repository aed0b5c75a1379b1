// Package flowpipe provides a small runtime for building directed dataflow
// graphs out of independent processing stages connected by unbounded queues.
//
// # Architecture
//
// Three layers compose the runtime:
//
//	┌─────────────────────────────────────┐
//	│             Graph                   │  Declarative wiring,
//	│ (resolve, start, stop, sink/source) │  lifecycle over all stages
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌─────────────────────────────────────┐
//	│             Stages                  │  One worker per stage,
//	│     (poll, transform, forward)      │  injected transform function
//	└─────────────────────────────────────┘
//	           ↓ communicate via
//	┌─────────────────────────────────────┐
//	│             Queues                  │  Unbounded FIFO hand-off,
//	│      (single consumer by wiring)    │  multi-producer safe
//	└─────────────────────────────────────┘
//
// A graph is declared as a map from stage name to the stage instance and its
// list of downstream names. A downstream name that matches another declared
// stage resolves to that stage's inbound queue; any other name creates a named
// external output queue reachable through Graph.Source. Wiring may be cyclic:
// a downstream stage feeding an upstream stage's inbound queue is the supported
// mechanism for feedback control (for example a sink re-arming a source with a
// control item per unit of data consumed).
//
// # Packages
//
//   - queue: generic unbounded FIFO queues with bounded-wait reads
//   - stage: the worker loop, transform contract and transform middleware
//   - graph: eager wiring resolution and whole-graph lifecycle
//   - config: YAML graph definitions and transform factory registry
//   - bridge/natsbridge: NATS adapters for graph boundaries
//   - errors: classified error handling shared by all packages
//   - metric: Prometheus registry, core metrics and the metrics server
//
// Queues are deliberately unbounded: a producer never blocks on hand-off, and
// a stalled consumer causes memory growth rather than upstream back-pressure.
// Drivers observing Graph.Running can tear the graph down when a sentinel
// stage halts.
package flowpipe
