// Package ebay implements the marketplace ports against eBay's two API
// generations: the REST family (Sell Inventory, Sell Fulfillment, Post-Order,
// Commerce Identity) and the legacy XML Trading API. Every client obtains
// credentials from a marketplace.TokenSource and normalizes responses and
// failures into domain records and DomainError kinds.
package ebay
