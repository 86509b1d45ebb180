// Package json is an indirection for the serialization collaborator. Every
// package in this module encodes and decodes through these symbols, so the
// codec can be swapped without touching call sites.
package json

import "encoding/json"

var (
	Marshal   = json.Marshal
	Unmarshal = json.Unmarshal
)

type (
	RawMessage  = json.RawMessage
	Marshaler   = json.Marshaler
	Unmarshaler = json.Unmarshaler
)
