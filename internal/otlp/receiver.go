package otlp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/tinytelemetry/logwatch/internal/ingest"
	"github.com/tinytelemetry/logwatch/internal/logstore"
	"github.com/tinytelemetry/logwatch/internal/tenant"
)

// Header and metadata keys naming the target tenant.
const (
	AppIDKey  = "x-app-id"
	APIKeyKey = "x-api-key"
)

// Submitter is the ingestion entry point.
type Submitter interface {
	Submit(tenant string, raw any) ingest.Result
}

// TenantResolver picks a tenant from an app ID or API key.
type TenantResolver interface {
	TenantFor(appID, apiKey string) (string, error)
}

// Receiver implements the OTLP LogsService.
type Receiver struct {
	collogspb.UnimplementedLogsServiceServer

	ingest  Submitter
	tenants TenantResolver
	now     func() time.Time
}

// NewReceiver creates a receiver submitting through svc.
func NewReceiver(svc Submitter, tenants TenantResolver) *Receiver {
	return &Receiver{ingest: svc, tenants: tenants, now: time.Now}
}

// Export handles a gRPC export. The tenant comes from the x-api-key or
// x-app-id metadata.
func (r *Receiver) Export(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (*collogspb.ExportLogsServiceResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	t, err := r.tenants.TenantFor(first(md, AppIDKey), first(md, APIKeyKey))
	if err != nil {
		return nil, StatusError(err)
	}
	return r.Ingest(t, req), nil
}

// Ingest submits every record of req for tenant. Records failing
// validation are reported as a partial success.
func (r *Receiver) Ingest(tenantID string, req *collogspb.ExportLogsServiceRequest) *collogspb.ExportLogsServiceResponse {
	candidates := Convert(req, r.now())
	resp := &collogspb.ExportLogsServiceResponse{}
	if len(candidates) == 0 {
		return resp
	}

	res := r.ingest.Submit(tenantID, candidates)
	if res.Rejected > 0 {
		resp.PartialSuccess = &collogspb.ExportLogsPartialSuccess{
			RejectedLogRecords: int64(res.Rejected),
			ErrorMessage:       fmt.Sprintf("%d of %d log records failed validation", res.Rejected, len(candidates)),
		}
	}
	log.Debug().Str("tenant", tenantID).Int("accepted", res.Accepted).Int("rejected", res.Rejected).Msg("otlp: export")
	return resp
}

// StatusError maps tenant resolution errors to gRPC status codes.
func StatusError(err error) error {
	switch {
	case errors.Is(err, tenant.ErrUnknownKey):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, logstore.ErrInvalidTenant):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func first(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}
