// Package trace records what the delta engine does while it computes a
// generation.
//
// Spans nest through the context: a session span holds generation spans,
// which hold one span per stage and, at LevelDetail, one per method. Events
// inherit the generation ordinal and method key of their enclosing span.
// LevelDebug adds a point per local slot decision. Rejections are recorded
// at every level above LevelOff.
//
// In ring mode events stay in memory and the driver's caller can dump the
// trail of a single generation with RingTracer.Generation.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.StartGeneration(ctx, 1)
//	defer span.End("")
package trace
