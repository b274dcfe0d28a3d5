package service

import (
	"context"
	"fmt"
	"strings"

	"sportclub/internal/domain"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
)

// ClubService manages the teams and members that bookings may reference.
type ClubService struct {
	repo   domain.Repository
	logger *zerolog.Logger
}

func NewClubService(repo domain.Repository, logger *zerolog.Logger) *ClubService {
	return &ClubService{repo: repo, logger: logger}
}

func (s *ClubService) GetClub(ctx context.Context, id int64) (*models.Club, error) {
	club, err := s.repo.GetClub(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrClubNotFound, "load club")
	}
	return club, nil
}

func (s *ClubService) ListClubs(ctx context.Context) ([]*models.Club, error) {
	return s.repo.ListClubs(ctx)
}

func (s *ClubService) CreateTeam(ctx context.Context, team *models.Team) error {
	if _, err := s.GetClub(ctx, team.ClubID); err != nil {
		return err
	}
	team.Name = strings.TrimSpace(team.Name)
	if team.Name == "" {
		return invalid("team name is required")
	}
	if err := s.repo.CreateTeam(ctx, team); err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	s.logger.Info().Int64("team_id", team.ID).Int64("club_id", team.ClubID).Msg("Team created")
	return nil
}

func (s *ClubService) ListTeams(ctx context.Context, clubID int64) ([]*models.Team, error) {
	if _, err := s.GetClub(ctx, clubID); err != nil {
		return nil, err
	}
	return s.repo.ListTeams(ctx, clubID)
}

func (s *ClubService) CreateMember(ctx context.Context, m *models.Member) error {
	if _, err := s.GetClub(ctx, m.ClubID); err != nil {
		return err
	}
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	if m.FirstName == "" {
		return invalid("firstName is required")
	}
	if m.TeamID != nil {
		team, err := s.repo.GetTeam(ctx, *m.TeamID)
		if err != nil {
			return notFoundAs(err, ErrTeamNotFound, "load team")
		}
		if team.ClubID != m.ClubID {
			return invalid("team %d belongs to another club", team.ID)
		}
	}
	if err := s.repo.CreateMember(ctx, m); err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	s.logger.Info().Int64("member_id", m.ID).Int64("club_id", m.ClubID).Msg("Member created")
	return nil
}

func (s *ClubService) GetMember(ctx context.Context, id int64) (*models.Member, error) {
	m, err := s.repo.GetMember(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, ErrMemberNotFound, "load member")
	}
	return m, nil
}

func (s *ClubService) ListMembers(ctx context.Context, clubID int64) ([]*models.Member, error) {
	if _, err := s.GetClub(ctx, clubID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, clubID)
}
