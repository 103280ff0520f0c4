// Package app composes the dashboard from its components and runs it.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	└── system/             # Ordered service start and stop
//
// # Wiring
//
// New builds, in order: the network registry and chain context, the local
// signer and submitter (when SIGNER_PRIVATE_KEY is set), the metadata
// fetcher with its optional Redis tier, the subgraph project index, the
// project aggregator and the pay/launch action service. The web server is
// built lazily by Handler.
//
// # Lifecycle
//
// Run registers the services with a system.Manager, starts them, and blocks
// until the context is cancelled or the HTTP server fails. Services stop in
// reverse order: HTTP first, then the index refresh schedule, the submitter
// watchers, the metadata cache and finally the RPC clients.
//
// Commands that never call Run release resources with Close.
package app
