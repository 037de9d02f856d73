// Package sim provides the discrete-event engine that moves passengers through an
// airport terminal: generation, check-in, security check and boarding, with random
// side events (toilet, dinner, shopping) spliced between stages.
//
// # Reading Guide
//
// Start with these files to understand a run:
//   - stage.go: the fixed pipeline graph (which stage follows which)
//   - process_stage.go: the per-instance server loop (Idle → Serving → Routing)
//   - coordinator.go: wiring, hand-off between stages, start/stop and snapshots
//
// # Architecture
//
// Virtual time is owned by sim/kernel: processes yield Hold, Passivate or Done and
// the kernel resumes them in wake-time order. One tick is one microsecond; sampled
// delays are in milliseconds. Sub-packages:
//   - sim/kernel/: virtual-time scheduler
//   - sim/sampling/: delay distributions
//   - sim/trace/: decision trace recording
//   - sim/bus/: domain events on a watermill publisher
//
// # Key Types
//
//   - StageQueue and ServerPool: per-instance FIFO queues and the two-tier Dispatch
//     policy (first idle server, else shortest queue)
//   - RandomEventInjector: Direct or Detour routing decisions
//   - FlightRegistry: open and departed flights behind the admission gate
//   - SimulationConfig: validated knobs, overlaid from YAML scenario files
package sim
