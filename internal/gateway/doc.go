// Package gateway fronts the three provider capabilities a conversation
// needs: transcription, synthesis and chat completion.
//
// Each gateway owns the provider selection made at session start, applies
// the bounded fallback policy of package resilience, and records a span and
// a latency sample per call. Gateways are safe for concurrent use but a
// session only ever has one call in flight.
package gateway
