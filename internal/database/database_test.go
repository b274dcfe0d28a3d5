package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sportclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClubID int64 = 1

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.UpsertClub(context.Background(), &models.Club{ID: testClubID, Name: "FC Test", Timezone: "Europe/Berlin"}))
	return db
}

func createTestFacility(t *testing.T, db *DB, maxConcurrent int) *models.Facility {
	t.Helper()
	f := &models.Facility{
		ClubID:                testClubID,
		Name:                  "Main Pitch",
		Type:                  "field",
		Capacity:              22,
		MaxConcurrentBookings: maxConcurrent,
		Status:                models.FacilityAvailable,
	}
	require.NoError(t, db.CreateFacility(context.Background(), f))
	return f
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 10, hour, minute, 0, 0, time.UTC)
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "club.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "club.db")

	db, err := NewDB(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, db.UpsertClub(context.Background(), &models.Club{ID: 7, Name: "Seven"}))
	require.NoError(t, db.Close())

	// schema creation is idempotent
	db, err = NewDB(dbPath, nil)
	require.NoError(t, err)
	defer db.Close()

	club, err := db.GetClub(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Seven", club.Name)
	assert.Equal(t, models.DefaultTimezone, club.Timezone)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestTimeFormatRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	in := time.Date(2024, 1, 2, 9, 30, 15, 123_000_000, loc)
	s := formatTime(in)
	assert.Equal(t, "2024-01-02T00:30:15.123Z", s)

	out, err := parseTime(s)
	require.NoError(t, err)
	assert.True(t, in.Equal(out))

	// fixed width keeps lexical order chronological
	assert.Less(t, formatTime(at(9, 0)), formatTime(at(10, 0)))
	assert.Less(t, formatTime(at(9, 59).Add(999*time.Millisecond)), formatTime(at(10, 0)))
}

func TestClubsTeamsMembers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	clubs, err := db.ListClubs(ctx)
	require.NoError(t, err)
	require.Len(t, clubs, 1)
	assert.Equal(t, "Europe/Berlin", clubs[0].Timezone)

	_, err = db.GetClub(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	team := &models.Team{ClubID: testClubID, Name: "U17"}
	require.NoError(t, db.CreateTeam(ctx, team))
	assert.NotZero(t, team.ID)

	gotTeam, err := db.GetTeam(ctx, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "U17", gotTeam.Name)

	birth := time.Date(2008, 3, 14, 0, 0, 0, 0, time.UTC)
	member := &models.Member{ClubID: testClubID, TeamID: &team.ID, FirstName: "Anna", LastName: "Schmidt", BirthDate: &birth}
	require.NoError(t, db.CreateMember(ctx, member))
	require.NoError(t, db.CreateMember(ctx, &models.Member{ClubID: testClubID, FirstName: "Ben"}))

	members, err := db.ListMembers(ctx, testClubID)
	require.NoError(t, err)
	require.Len(t, members, 2)

	got, err := db.GetMember(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BirthDate)
	assert.Equal(t, "2008-03-14", got.BirthDate.Format(dateLayout))
	require.NotNil(t, got.TeamID)
	assert.Equal(t, team.ID, *got.TeamID)

	teams, err := db.ListTeams(ctx, testClubID)
	require.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestFacilitiesCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := createTestFacility(t, db, 2)

	got, err := db.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.MaxConcurrentBookings)
	assert.Equal(t, "field", got.Type)

	got.Name = "Pitch A"
	got.Status = models.FacilityUnavailable
	require.NoError(t, db.UpdateFacility(ctx, got))

	got, err = db.GetFacility(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pitch A", got.Name)
	assert.False(t, got.Bookable())

	_, err = db.GetFacility(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.UpdateFacility(ctx, &models.Facility{ID: 404, MaxConcurrentBookings: 1}), ErrNotFound)

	// capacity floor is enforced by the schema as well
	bad := &models.Facility{ClubID: testClubID, Name: "Broken", MaxConcurrentBookings: 0, Status: models.FacilityAvailable}
	assert.Error(t, db.CreateFacility(ctx, bad))
}

func TestSyncFacilities(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	seed := []*models.Facility{
		{ID: 10, ClubID: testClubID, Name: "Court 1", Type: "court", MaxConcurrentBookings: 1, Status: models.FacilityAvailable},
		{ID: 11, ClubID: testClubID, Name: "Gym", Type: "gym", MaxConcurrentBookings: 3, Status: models.FacilityAvailable},
	}
	require.NoError(t, db.SyncFacilities(ctx, seed))

	seed[1].MaxConcurrentBookings = 4
	require.NoError(t, db.SyncFacilities(ctx, seed))

	list, err := db.ListFacilities(ctx, testClubID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Court 1", list[0].Name)
	assert.Equal(t, 4, list[1].MaxConcurrentBookings)
}
