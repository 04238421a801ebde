// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - EmbeddingService: Generates vector embeddings (the offline hash embedder is the default)
//   - VectorStore: Collection persistence and nearest-neighbour search (SQLite)
//   - PDFOpener: Opens source PDFs for text, metadata and image extraction
//   - PostProcessorPipeline: Splits document text into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Completion with tools. Without it, insight extraction and planning use fallbacks.
//   - VisionService: Image description. Without it, figures and equation regions are skipped.
//   - BibliographicRegistry: DOI lookup. Without it, citations fall back to the title heuristic.
//   - PageRenderer / ImageCodec: Rasterisation and cropping for region detection.
//   - PromptStore: Customisable prompt templates.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
