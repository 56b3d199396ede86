// Package sources holds the single-source resolvers: one adapter per
// external bibliographic service, each translating that service's HTML,
// JSON or citation text into a domain.PartialRecord.
//
// Adapters embed [BaseAdapter] for transport and error mapping. External
// payload types stay unexported here; nothing outside this package sees them.
//
// Error translation ([MapHTTPError]):
//   - 404/410 → [domain.NotFoundError]
//   - other 4xx, 5xx, transport errors → [domain.UnavailableError]
//   - [clients.ErrCircuitOpen], [clients.ErrMaxRetriesExceeded] → [domain.UnavailableError]
//
// A page that loads but carries no usable record is also a NotFoundError.
package sources
