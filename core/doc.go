// Package core contains the deployer domain: credentials, the OAuth
// authorization state machine, batch grouping, bundle staging and the
// sequential deploy orchestrator. Provider, storage and transport adapters
// depend on this package; core must not depend on them.
package core
