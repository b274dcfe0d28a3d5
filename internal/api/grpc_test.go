package api

import (
	"context"
	"net"
	"testing"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type grpcFixture struct {
	client *AvailabilityClient
	conn   *grpc.ClientConn
	svc    *Services
}

func newGRPCFixture(t *testing.T, cfg config.APIConfig) *grpcFixture {
	t.Helper()
	db := newTestDB(t)
	svc := newTestServices(t, db, false)

	lis := bufconn.Listen(1 << 20)
	srv, err := NewGRPCServerWithListener(&cfg, svc, lis, &nopLogger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &grpcFixture{client: NewAvailabilityClient(conn), conn: conn, svc: svc}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_CheckAvailability(t *testing.T) {
	fx := newGRPCFixture(t, config.APIConfig{})
	ctx := context.Background()

	court := &models.Facility{ClubID: 2, Name: "Court A", MaxConcurrentBookings: 1}
	require.NoError(t, fx.svc.Facilities.Create(ctx, court))

	req := mustStruct(t, map[string]any{
		"facilityId": float64(court.ID),
		"startTime":  "2024-05-10T10:00:00Z",
		"endTime":    "2024-05-10T11:00:00Z",
	})
	resp, err := fx.client.CheckAvailability(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["available"].GetBoolValue())
	assert.Equal(t, float64(1), resp.GetFields()["maxConcurrent"].GetNumberValue())

	require.NoError(t, fx.svc.Bookings.Create(ctx, &models.Booking{
		ClubID: 2, FacilityID: &court.ID, Title: "Match", Type: models.TypeMatch,
		StartTime: time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC),
	}))

	resp, err = fx.client.CheckAvailability(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.GetFields()["available"].GetBoolValue())
	assert.Equal(t, float64(1), resp.GetFields()["currentBookings"].GetNumberValue())
}

func TestGRPC_ErrorCodes(t *testing.T) {
	fx := newGRPCFixture(t, config.APIConfig{})
	ctx := context.Background()

	_, err := fx.client.CheckAvailability(ctx, mustStruct(t, map[string]any{
		"facilityId": float64(404), "startTime": "2024-05-10T10:00:00Z", "endTime": "2024-05-10T11:00:00Z",
	}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = fx.client.CheckAvailability(ctx, mustStruct(t, map[string]any{"facilityId": float64(1)}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = fx.client.CheckAvailability(ctx, mustStruct(t, map[string]any{"facilityId": "one"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = fx.client.GetDayLayout(ctx, mustStruct(t, map[string]any{"clubId": float64(9), "date": "2024-05-10"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPC_GetDayLayout(t *testing.T) {
	fx := newGRPCFixture(t, config.APIConfig{})
	ctx := context.Background()

	hall := &models.Facility{ClubID: 1, Name: "Hall", MaxConcurrentBookings: 2}
	require.NoError(t, fx.svc.Facilities.Create(ctx, hall))
	for _, h := range []int{8, 9} {
		require.NoError(t, fx.svc.Bookings.Create(ctx, &models.Booking{
			ClubID: 1, FacilityID: &hall.ID, Title: "Session", Type: models.TypeTraining,
			StartTime: time.Date(2024, 5, 10, h, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2024, 5, 10, h+2, 0, 0, 0, time.UTC),
		}))
	}

	resp, err := fx.client.GetDayLayout(ctx, mustStruct(t, map[string]any{"clubId": float64(1), "date": "2024-05-10"}))
	require.NoError(t, err)
	assert.Equal(t, "2024-05-10", resp.GetFields()["date"].GetStringValue())
	assert.Equal(t, "Europe/Berlin", resp.GetFields()["timezone"].GetStringValue())

	items := resp.GetFields()["items"].GetListValue().GetValues()
	require.Len(t, items, 2)
	for _, it := range items {
		assert.Equal(t, float64(50), it.GetStructValue().GetFields()["width"].GetNumberValue())
	}
	first := items[0].GetStructValue().GetFields()
	assert.Equal(t, float64(10), first["startHour"].GetNumberValue())
}

func TestGRPC_Auth(t *testing.T) {
	fx := newGRPCFixture(t, config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{{Key: "k", Extra: "e", Permissions: []string{permReadCalendar}}},
		},
	})
	req := mustStruct(t, map[string]any{"clubId": float64(2), "date": "2024-05-10"})

	_, err := fx.client.GetDayLayout(context.Background(), req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "k", "x-api-extra", "e")
	_, err = fx.client.GetDayLayout(ctx, req)
	assert.NoError(t, err)

	_, err = fx.client.CheckAvailability(ctx, mustStruct(t, map[string]any{"facilityId": float64(1)}))
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestGRPC_HealthSkipsAuth(t *testing.T) {
	fx := newGRPCFixture(t, config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: true},
	})

	resp, err := healthpb.NewHealthClient(fx.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: availabilityServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
