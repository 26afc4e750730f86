// Package proto groups the southbound wire codecs.
//
// Every codec is a pair of pure functions over byte slices: Decode turns one
// complete frame into a header and a typed message, Encode does the reverse.
// Nothing here performs I/O or knows about the runtime registry; connection
// handling lives in package southbound.
package proto
