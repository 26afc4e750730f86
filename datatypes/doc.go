// Package datatypes holds the identifier value types shared by the codecs, the
// runtime registry and the northbound API. Every type has a canonical string
// form, implements encoding.TextMarshaler so it can key JSON objects, and has
// a raw-byte form where one travels on the wire.
package datatypes
