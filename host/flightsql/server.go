// Package flightsql implements the Flight SQL server binding for ArrowDB
// (spec.md §4.11): the multithreaded host shape, exposing a Database's
// tables for query over Arrow Flight. It is deliberately thin compared to
// the teacher's catalog-backed Flight server (flight.Server): one command
// format, one ticket format, one streaming DoGet loop, no authentication,
// no DML actions, no time travel.
package flightsql

import (
	"context"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/arrowdb/arrowdb"
	"github.com/arrowdb/arrowdb/database"
	"github.com/arrowdb/arrowdb/host"
	"github.com/arrowdb/arrowdb/internal/recovery"
	"github.com/arrowdb/arrowdb/internal/serialize"
	"github.com/arrowdb/arrowdb/query"
)

// Server implements flight.FlightServer over a single database.Database and
// the query.Adapter that keeps it queryable. It embeds flight.BaseFlightServer
// the way the teacher's flight.Server does, so every RPC this repository
// does not need (DoPut, DoAction, DoExchange, ...) returns Unimplemented
// without this package naming it explicitly.
type Server struct {
	flight.BaseFlightServer

	db      *database.Database
	adapter *query.Adapter
	alloc   memory.Allocator
	logger  *slog.Logger
}

// NewServer builds a Server over db, sharing adapter with any other caller
// of the same Database (spec.md §5.1: the Query Engine Adapter is safe for
// concurrent callers). alloc defaults to memory.DefaultAllocator and logger
// to slog.Default() if nil, matching the teacher's NewServer convention.
func NewServer(db *database.Database, adapter *query.Adapter, alloc memory.Allocator, logger *slog.Logger) *Server {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{db: db, adapter: adapter, alloc: alloc, logger: logger}
}

// Register registers the Flight service on grpcServer, the teacher's
// RegisterFlightServer pattern.
func Register(grpcServer *grpc.Server, flightServer *Server) {
	flight.RegisterFlightServiceServer(grpcServer, flightServer)
}

// GetFlightInfo plans sqlText, taken verbatim from the descriptor's command
// field (spec.md §4.11: "GetFlightInfo accepts a UTF-8 SQL string in the
// command field"), and returns its result schema plus a single endpoint
// whose ticket carries sqlText back for DoGet to re-execute. There is no
// separate plan/execute split in the underlying query.Adapter, so planning
// here means running the query once to learn its schema and discarding the
// result; DoGet pays the cost of running it again to stream rows.
func (s *Server) GetFlightInfo(ctx context.Context, desc *flight.FlightDescriptor) (*flight.FlightInfo, error) {
	return recovery.RecoverToValue(s.logger, "GetFlightInfo", func() (*flight.FlightInfo, error) {
		if desc.GetType() != flight.DescriptorCMD {
			return nil, status.Error(codes.InvalidArgument, "descriptor must be CMD type carrying a SQL string")
		}

		sqlText := string(desc.GetCmd())
		s.logger.Debug("GetFlightInfo called", "sql", sqlText)

		tbl, err := s.adapter.Execute(ctx, sqlText)
		if err != nil {
			return nil, toStatus(err)
		}
		defer tbl.Release()

		ticket, err := encodeTicket(sqlText)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode ticket: %v", err)
		}

		return &flight.FlightInfo{
			Schema:           flight.SerializeSchema(tbl.Schema(), s.alloc),
			FlightDescriptor: desc,
			Endpoint: []*flight.FlightEndpoint{
				{Ticket: &flight.Ticket{Ticket: ticket}},
			},
			TotalRecords: -1,
			TotalBytes:   -1,
		}, nil
	})
}

// GetSchema answers a schema-only request the same way GetFlightInfo
// determines a result schema, without producing a ticket.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (*flight.SchemaResult, error) {
	return recovery.RecoverToValue(s.logger, "GetSchema", func() (*flight.SchemaResult, error) {
		if desc.GetType() != flight.DescriptorCMD {
			return nil, status.Error(codes.InvalidArgument, "descriptor must be CMD type carrying a SQL string")
		}

		sqlText := string(desc.GetCmd())
		tbl, err := s.adapter.Execute(ctx, sqlText)
		if err != nil {
			return nil, toStatus(err)
		}
		defer tbl.Release()

		return &flight.SchemaResult{Schema: flight.SerializeSchema(tbl.Schema(), s.alloc)}, nil
	})
}

// DoGet decodes ticket, re-executes the SQL text it carries, and streams
// the result as Arrow IPC record batches (spec.md §4.11's single streaming
// loop), the same writer pattern as the teacher's flight.Server.DoGet.
func (s *Server) DoGet(ticket *flight.Ticket, stream flight.FlightService_DoGetServer) error {
	return recovery.RecoverToError(s.logger, "DoGet", func() error {
		ctx := stream.Context()

		sqlText, queryID, err := decodeTicket(ticket.GetTicket())
		if err != nil {
			return status.Errorf(codes.InvalidArgument, "invalid ticket: %v", err)
		}

		s.logger.Debug("DoGet called", "sql", sqlText, "query_id", queryID)

		tbl, err := s.adapter.Execute(ctx, sqlText)
		if err != nil {
			return toStatus(err)
		}
		defer tbl.Release()

		writer := flight.NewRecordWriter(stream, ipc.WithSchema(tbl.Schema()))
		defer writer.Close()

		batchSize := tbl.NumRows()
		if batchSize == 0 {
			batchSize = 1
		}
		tr := array.NewTableReader(tbl, batchSize)
		defer tr.Release()

		for tr.Next() {
			record := tr.Record()
			if err := writer.Write(record); err != nil {
				return status.Errorf(codes.Internal, "failed to write batch: %v", err)
			}
		}
		if err := tr.Err(); err != nil {
			return status.Errorf(codes.Internal, "scan error: %v", err)
		}

		return nil
	})
}

// ListFlights returns a single FlightInfo describing the database's catalog:
// its ticket carries a zstd-compressed Arrow IPC stream of the
// (catalog_name, db_schema_name, table_name, table_type) snapshot produced
// by internal/serialize.SerializeCatalog, the same shape and compression the
// teacher's flight/listflights.go produces from its catalog.Catalog. criteria
// is accepted but ignored, matching the teacher: ArrowDB has no catalog
// hierarchy to filter by, only a flat table namespace.
func (s *Server) ListFlights(criteria *flight.Criteria, stream flight.FlightService_ListFlightsServer) error {
	return recovery.RecoverToError(s.logger, "ListFlights", func() error {
		s.logger.Debug("ListFlights called")

		tableNames := s.db.ListTables()

		catalogData, err := serialize.SerializeCatalog(tableNames, s.alloc)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to serialize catalog: %v", err)
		}

		compressed, err := serialize.CompressCatalog(catalogData)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to compress catalog: %v", err)
		}

		flightInfo := &flight.FlightInfo{
			FlightDescriptor: &flight.FlightDescriptor{
				Type: flight.DescriptorCMD,
				Cmd:  []byte("ListFlights"),
			},
			Endpoint: []*flight.FlightEndpoint{
				{Ticket: &flight.Ticket{Ticket: compressed}},
			},
			TotalRecords: int64(len(tableNames)),
			TotalBytes:   int64(len(compressed)),
		}

		if err := stream.Send(flightInfo); err != nil {
			return status.Errorf(codes.Internal, "failed to send flight info: %v", err)
		}
		return nil
	})
}

// toStatus translates a query.Adapter error to the module-root taxonomy
// (host.TranslateError) and classifies it into the matching gRPC status
// code (spec.md §7's error taxonomy), mirroring the teacher's status.Errorf
// call sites in flight/doget.go and flight/getflightinfo.go.
func toStatus(err error) error {
	err = host.TranslateError(err)

	switch {
	case err == arrowdb.ErrNotFound:
		return status.Errorf(codes.NotFound, "%v", err)
	case err == arrowdb.ErrInvalidArgument:
		return status.Errorf(codes.InvalidArgument, "%v", err)
	}
	if sqlErr, ok := err.(*arrowdb.SqlError); ok {
		return status.Errorf(codes.InvalidArgument, "%v", sqlErr)
	}
	if execErr, ok := err.(*arrowdb.ExecutionError); ok {
		return status.Errorf(codes.Internal, "%v", execErr)
	}
	return status.Errorf(codes.Internal, "%v", err)
}
