// Package wire defines the JSON payloads exchanged with the config service,
// the notification endpoint, and the meta server, together with the codec
// helpers used to encode them into query parameters.
//
// All types in this package are plain data carriers. They are decoded once at
// the transport boundary and converted into immutable core types before being
// handed to the rest of the library.
package wire
