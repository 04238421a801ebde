// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services import no adapters. The third-party packages used here are
// go-retry for embedding backoff, x/sync for fan-out retrieval and uuid for
// memory record ids.
package services
