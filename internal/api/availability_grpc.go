package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sportclub/internal/models"
	"sportclub/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	availabilityServiceName = "sportclub.availability.v1.AvailabilityService"
	checkAvailabilityMethod = "/" + availabilityServiceName + "/CheckAvailability"
	getDayLayoutMethod      = "/" + availabilityServiceName + "/GetDayLayout"
)

// AvailabilityServer is the gRPC surface. Requests and responses are
// google.protobuf.Struct values with the same field names as the HTTP JSON.
type AvailabilityServer interface {
	CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDayLayout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var AvailabilityServiceDesc = grpc.ServiceDesc{
	ServiceName: availabilityServiceName,
	HandlerType: (*AvailabilityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CheckAvailability", Handler: unaryHandler(checkAvailabilityMethod, AvailabilityServer.CheckAvailability)},
		{MethodName: "GetDayLayout", Handler: unaryHandler(getDayLayoutMethod, AvailabilityServer.GetDayLayout)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sportclub/availability/v1/availability.proto",
}

type structMethod func(AvailabilityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AvailabilityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AvailabilityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AvailabilityClient calls AvailabilityService over an existing connection.
type AvailabilityClient struct {
	cc grpc.ClientConnInterface
}

func NewAvailabilityClient(cc grpc.ClientConnInterface) *AvailabilityClient {
	return &AvailabilityClient{cc: cc}
}

func (c *AvailabilityClient) CheckAvailability(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, checkAvailabilityMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AvailabilityClient) GetDayLayout(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getDayLayoutMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type availabilityGRPC struct {
	availability *service.AvailabilityService
	calendar     *service.CalendarService
	clubs        *service.ClubService
}

func (s *availabilityGRPC) CheckAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var q models.AvailabilityQuery
	if err := fromStruct(req, &q); err != nil {
		return nil, err
	}
	res, err := s.availability.Check(ctx, q)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(res)
}

type dayLayoutRequest struct {
	ClubID     int64  `json:"clubId"`
	Date       string `json:"date"`
	FacilityID *int64 `json:"facilityId,omitempty"`
}

func (s *availabilityGRPC) GetDayLayout(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in dayLayoutRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}
	club, err := s.clubs.GetClub(ctx, in.ClubID)
	if err != nil {
		return nil, grpcError(err)
	}
	day, err := parseDay(in.Date, club.Location())
	if err != nil {
		return nil, grpcError(err)
	}
	layout, err := s.calendar.DayLayout(ctx, in.ClubID, day, in.FacilityID)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(layout)
}

// fromStruct decodes a Struct into a typed request through its JSON form.
func fromStruct(in *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, "malformed request")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// parseDay reads a civil date (YYYY-MM-DD) or an RFC 3339 instant. A civil date
// is taken as midnight in loc.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", service.ErrValidation)
	}
	if d, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return d, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, invalidParam("date", value)
	}
	return t, nil
}
