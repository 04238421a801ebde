// Package domain defines the core business entities for Agora.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: A source PDF with its resolved citation metadata
//   - Chunk: A retrievable unit of text, figure or equation content
//   - MemoryRecord: An agent insight stored in a tiered memory collection
//   - ContributionPlan: An agent's plan for a single symposium round
//   - ValidationOutcome: The verdict on a drafted agent utterance
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
