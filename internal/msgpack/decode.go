// Package msgpack provides MessagePack encoding/decoding for Flight
// parameters. Used by host/flightsql to encode and decode opaque Flight
// ticket bytes.
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Decode deserializes MessagePack data into a Go value.
// The v parameter should be a pointer to the target structure.
//
// Example:
//
//	type ticketData struct {
//	    Sql     string `msgpack:"sql"`
//	    QueryID string `msgpack:"query_id"`
//	}
//
//	var ticket ticketData
//	err := msgpack.Decode(data, &ticket)
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("empty MessagePack data")
	}

	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode MessagePack: %w", err)
	}

	return nil
}

// Encode serializes a Go value into MessagePack format.
// Returns the serialized bytes or error.
//
// Example:
//
//	ticket := ticketData{
//	    Sql:     "SELECT 1",
//	    QueryID: uuid.NewString(),
//	}
//	data, err := msgpack.Encode(ticket)
func Encode(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode MessagePack: %w", err)
	}

	return data, nil
}
