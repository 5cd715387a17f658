// Package trace records what a bridge session does with its interpreter.
//
// Events are grouped into spans. A session operation (eval, put, get) opens a
// span at ScopeSession; each round trip it performs opens a child span at
// ScopeExchange; wire traffic is reported as ScopeIO points.
//
// # Levels
//
//   - LevelOff: nothing is recorded
//   - LevelError: only ring dumps after a failure
//   - LevelPhase: session operations
//   - LevelDetail: plus exchanges (sentinel, byte counts)
//   - LevelDebug: plus raw wire lines
//
// # Usage
//
//	octbridge eval --trace=- --trace-level=detail -e 'x = 1'
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeSession, "eval", 0)
//	defer span.End("")
package trace
