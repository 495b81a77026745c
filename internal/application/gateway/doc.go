// Package gateway is the account integration gateway's application layer.
//
// TokenManager keeps every connected account's OAuth credentials valid and is
// the only source of access tokens for the marketplace clients. Chain composes
// capability lookups across the two API generations, moving to the next source
// only on not-found. Orchestrator builds the seller operations (shipping,
// buyer messages, returns, inquiries, cancellation checks) on top of both.
package gateway
