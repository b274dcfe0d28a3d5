package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sportclub/internal/models"
)

// UpsertClub inserts or refreshes a club keyed by its id.
func (db *DB) UpsertClub(ctx context.Context, club *models.Club) error {
	query := `INSERT INTO clubs (id, name, timezone, created_at) VALUES (?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                timezone = excluded.timezone`
	tz := club.Timezone
	if tz == "" {
		tz = models.DefaultTimezone
	}
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, query, club.ID, club.Name, tz, formatTime(now)); err != nil {
		return fmt.Errorf("failed to upsert club: %w", err)
	}
	club.Timezone = tz
	if club.CreatedAt.IsZero() {
		club.CreatedAt = now.Truncate(time.Millisecond)
	}
	return nil
}

func (db *DB) GetClub(ctx context.Context, id int64) (*models.Club, error) {
	var (
		club    models.Club
		created string
	)
	err := db.QueryRowContext(ctx, `SELECT id, name, timezone, created_at FROM clubs WHERE id = ?`, id).
		Scan(&club.ID, &club.Name, &club.Timezone, &created)
	if err != nil {
		return nil, notFound(err, "club", id)
	}
	if club.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &club, nil
}

func (db *DB) ListClubs(ctx context.Context) ([]*models.Club, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, timezone, created_at FROM clubs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	defer rows.Close()

	var clubs []*models.Club
	for rows.Next() {
		var (
			c       models.Club
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Timezone, &created); err != nil {
			return nil, fmt.Errorf("failed to scan club: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		clubs = append(clubs, &c)
	}
	return clubs, rows.Err()
}

func (db *DB) CreateTeam(ctx context.Context, team *models.Team) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, `INSERT INTO teams (club_id, name, created_at) VALUES (?, ?, ?)`,
		team.ClubID, team.Name, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	if team.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	team.CreatedAt = now.Truncate(time.Millisecond)
	return nil
}

func (db *DB) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	row := db.QueryRowContext(ctx, `SELECT id, club_id, name, created_at FROM teams WHERE id = ?`, id)
	team, err := scanTeam(row)
	if err != nil {
		return nil, notFound(err, "team", id)
	}
	return team, nil
}

func (db *DB) ListTeams(ctx context.Context, clubID int64) ([]*models.Team, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, club_id, name, created_at FROM teams WHERE club_id = ? ORDER BY name, id`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		team, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}
	return teams, rows.Err()
}

func (db *DB) CreateMember(ctx context.Context, m *models.Member) error {
	var birth sql.NullString
	if m.BirthDate != nil {
		birth = sql.NullString{String: m.BirthDate.Format(dateLayout), Valid: true}
	}
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO members (club_id, team_id, first_name, last_name, birth_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ClubID, nullableID(m.TeamID), m.FirstName, m.LastName, birth, formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	if m.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	m.CreatedAt = now.Truncate(time.Millisecond)
	return nil
}

func (db *DB) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, club_id, team_id, first_name, last_name, birth_date, created_at FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err != nil {
		return nil, notFound(err, "member", id)
	}
	return m, nil
}

func (db *DB) ListMembers(ctx context.Context, clubID int64) ([]*models.Member, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, club_id, team_id, first_name, last_name, birth_date, created_at
         FROM members WHERE club_id = ? ORDER BY last_name, first_name, id`, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var (
		t       models.Team
		created string
	)
	if err := row.Scan(&t.ID, &t.ClubID, &t.Name, &created); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanMember(row rowScanner) (*models.Member, error) {
	var (
		m       models.Member
		teamID  sql.NullInt64
		birth   sql.NullString
		created string
	)
	if err := row.Scan(&m.ID, &m.ClubID, &teamID, &m.FirstName, &m.LastName, &birth, &created); err != nil {
		return nil, err
	}
	m.TeamID = idPtr(teamID)
	if birth.Valid {
		d, err := time.Parse(dateLayout, birth.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse birth date %q: %w", birth.String, err)
		}
		m.BirthDate = &d
	}
	var err error
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &m, nil
}
