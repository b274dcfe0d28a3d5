package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/domain"
	"sportclub/internal/models"
	"sportclub/internal/repository"
	"sportclub/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SeedFile lists clubs and their facilities. Facilities are matched by id, or
// by name within the club when no id is given.
type SeedFile struct {
	Clubs      []models.Club      `yaml:"clubs"`
	Facilities []*models.Facility `yaml:"facilities"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath  = flag.String("facilities", "configs/facilities.yaml", "path to facilities.yaml")
		dbPath    = flag.String("db", "./data/sportclub.db", "path to sqlite db")
		redisAddr = flag.String("redis", os.Getenv("REDIS_ADDRESS"), "redis address of the facility cache to invalidate")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed SeedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Facilities) == 0 {
		return fmt.Errorf("no facilities in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range seed.Clubs {
		if err := db.UpsertClub(ctx, &seed.Clubs[i]); err != nil {
			return fmt.Errorf("upsert club %d: %w", seed.Clubs[i].ID, err)
		}
	}

	cache, err := facilityCache(ctx, *redisAddr)
	if err != nil {
		return err
	}
	facilities := service.NewFacilityService(db, cache, &logger)

	existing := make(map[int64][]*models.Facility)
	created, updated := 0, 0
	for _, f := range seed.Facilities {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" || f.ClubID <= 0 {
			continue
		}

		if _, ok := existing[f.ClubID]; !ok {
			list, err := db.ListFacilities(ctx, f.ClubID)
			if err != nil {
				return fmt.Errorf("list facilities of club %d: %w", f.ClubID, err)
			}
			existing[f.ClubID] = list
		}

		if match := findFacility(existing[f.ClubID], f); match != nil {
			if _, err := facilities.Update(ctx, match.ID, f); err != nil {
				return fmt.Errorf("update %s: %w", f.Name, err)
			}
			updated++
			continue
		}
		if err := facilities.Create(ctx, f); err != nil {
			return fmt.Errorf("create %s: %w", f.Name, err)
		}
		existing[f.ClubID] = append(existing[f.ClubID], f)
		created++
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}

// facilityCache connects to the running service's Redis cache. Updates through it
// drop the cached limits; without Redis there is nothing shared to invalidate.
func facilityCache(ctx context.Context, addr string) (domain.FacilityCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := repository.NewRedisClient(config.RedisConfig{Address: addr})
	if err := repository.Ping(ctx, client); err != nil {
		_ = repository.Close(client)
		return nil, fmt.Errorf("redis %s unreachable, cached facility limits would go stale: %w", addr, err)
	}
	return repository.NewRedisFacilityCache(client, time.Duration(models.FacilityCacheTTL)*time.Second), nil
}

func findFacility(list []*models.Facility, f *models.Facility) *models.Facility {
	for _, e := range list {
		if f.ID > 0 && e.ID == f.ID {
			return e
		}
		if f.ID == 0 && strings.EqualFold(e.Name, f.Name) {
			return e
		}
	}
	return nil
}
