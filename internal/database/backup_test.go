package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sportclub/internal/config"
	"sportclub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "source.db")
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.UpsertClub(context.Background(), &models.Club{ID: 1, Name: "Backup FC"}))

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	s := NewBackupService(db, dbPath, cfg, &logger)

	var snapshot string
	t.Run("PerformBackup", func(t *testing.T) {
		snapshot, err = s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, snapshot)

		restored, err := NewDB(snapshot, &logger)
		require.NoError(t, err)
		defer restored.Close()
		club, err := restored.GetClub(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Backup FC", club.Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
		assert.FileExists(t, snapshot)
	})
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, "any", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}

func TestBackupService_Interval(t *testing.T) {
	logger := zerolog.Nop()
	assert.Equal(t, 24*time.Hour, NewBackupService(nil, "", config.BackupConfig{}, &logger).interval())
	assert.Equal(t, time.Hour, NewBackupService(nil, "", config.BackupConfig{Schedule: "1h"}, &logger).interval())
	assert.Equal(t, 24*time.Hour, NewBackupService(nil, "", config.BackupConfig{Schedule: "daily"}, &logger).interval())
}
