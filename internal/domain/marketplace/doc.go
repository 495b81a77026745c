// Package marketplace contains the Marketplace Integration bounded context.
// It models seller accounts connected to the marketplace over OAuth2 and the
// normalized records the gateway exchanges with the marketplace's two API
// generations.
//
// Key concepts:
//   - ConnectedAccount: one authorization grant, with its token lifecycle
//   - AuthorizationRequest: an in-flight OAuth handshake bound to an account
//   - Item, Order, Return, Inquiry, MemberMessage: normalized records
//   - FulfillmentAction: the outcome of one orchestrated business operation
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package marketplace
