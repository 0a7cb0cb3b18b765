package flightsql

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arrowdb/arrowdb/internal/msgpack"
)

// ticketData is the decoded content of a Flight ticket. Unlike the
// teacher's schema/table-name ticket (flight.TicketData), ArrowDB has no
// catalog hierarchy to route through: GetFlightInfo's command field already
// is the whole query, so the ticket only needs to carry it back to DoGet.
// It is MessagePack-encoded rather than JSON per spec.md §2.1's assignment
// of msgpack to opaque Flight ticket encoding.
//
// QueryID is a random identifier minted in GetFlightInfo and carried
// through to DoGet purely for log correlation (spec.md §2.1 assigns
// google/uuid to Flight endpoint/ticket identifiers); it plays no role in
// query execution.
type ticketData struct {
	Sql     string `msgpack:"sql"`
	QueryID string `msgpack:"query_id"`
}

// encodeTicket builds an opaque ticket carrying sqlText, stamped with a
// fresh query ID.
func encodeTicket(sqlText string) ([]byte, error) {
	if sqlText == "" {
		return nil, fmt.Errorf("flightsql: sql text cannot be empty")
	}
	return msgpack.Encode(ticketData{Sql: sqlText, QueryID: uuid.NewString()})
}

// decodeTicket recovers the SQL text and query ID carried by an opaque
// ticket produced by encodeTicket.
func decodeTicket(ticketBytes []byte) (sqlText, queryID string, err error) {
	if len(ticketBytes) == 0 {
		return "", "", fmt.Errorf("flightsql: ticket cannot be empty")
	}
	var data ticketData
	if err := msgpack.Decode(ticketBytes, &data); err != nil {
		return "", "", fmt.Errorf("flightsql: decode ticket: %w", err)
	}
	if data.Sql == "" {
		return "", "", fmt.Errorf("flightsql: decoded ticket has empty sql text")
	}
	return data.Sql, data.QueryID, nil
}
