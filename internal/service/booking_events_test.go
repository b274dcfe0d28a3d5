package service

import (
	"context"
	"testing"
	"time"

	"sportclub/internal/events"
	"sportclub/internal/models"
	"sportclub/internal/notify"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stalledSender struct {
	release chan struct{}
}

func (s *stalledSender) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	return tgbotapi.Message{}, nil
}

func TestBookingService_CreateDoesNotWaitForTelegram(t *testing.T) {
	db := setupDB(t)
	bus := events.NewEventBus()

	sender := &stalledSender{release: make(chan struct{})}
	defer close(sender.release)
	notifier := notify.NewTelegramNotifier(sender, map[int64]int64{1: 555}, nil, &nopLogger)
	notifier.Subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go notifier.Start(ctx)

	facilities := NewFacilityService(db, nil, &nopLogger)
	bookings := NewBookingService(db, facilities, bus, nil, false, &nopLogger)

	started := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, bookings.Create(context.Background(), &models.Booking{
			ClubID:    1,
			Title:     "Training",
			Type:      models.TypeTraining,
			StartTime: utc(10+i, 0),
			EndTime:   utc(11+i, 0),
		}))
	}
	assert.Less(t, time.Since(started), time.Second)
}
