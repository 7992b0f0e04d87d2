// Package devicebuffer implements the synchronization and data-flow core of
// an audio device abstraction layer. It bridges platform capture and playout
// callbacks with an application-level audio transport while accumulating
// runtime statistics and periodic diagnostics without locking the hot audio
// path.
//
// # Execution Roles
//
// A Buffer is shared between four logically distinct execution roles:
//
//   - Control: configures sample rates and channels, registers the transport,
//     and starts/stops media. Typically the application main goroutine.
//   - Capture: the platform recording callback. Calls SetRecordedData followed
//     by DeliverRecordedData for every captured buffer.
//   - Render: the platform playout callback. Calls RequestPlayoutData followed
//     by GetPlayoutData for every playout period.
//   - Aggregation: a serialized task queue owned by the Buffer. All statistics
//     mutation and the periodic stats logger run here.
//
// No two roles ever touch the same plain memory. State read across roles
// (activity flags, configuration, microphone level, the silence flag) is held
// in atomics; everything else is owned by exactly one role. The capture and
// render sample buffers are single-owner and reused between callbacks, so the
// data paths allocate nothing in steady state.
//
// # Statistics
//
// The data paths post small update tasks to the aggregation queue instead of
// taking a lock. A periodic logger task reads and re-baselines the counters
// every ten seconds, emits one diagnostic line per active direction, and
// reposts itself until the last media direction stops.
package devicebuffer
