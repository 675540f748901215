package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
)

func testHub(bufferSize int) *Hub {
	return NewHub(bufferSize, common.GetLogger())
}

func event(jobID, stage string, percent int) models.ProgressEvent {
	return models.ProgressEvent{
		Type:    models.ProgressTypeProgress,
		JobID:   jobID,
		Stage:   stage,
		Percent: percent,
		Message: stage,
	}
}

func drain(ch <-chan models.ProgressEvent) []models.ProgressEvent {
	var events []models.ProgressEvent
	for {
		select {
		case e := <-ch:
			events = append(events, e)
		case <-time.After(50 * time.Millisecond):
			return events
		}
	}
}

func TestPublishAndReceive(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	sub := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", sub.ID)

	hub.Publish(event("job_1", "parse", 45))
	hub.Publish(event("job_2", "parse", 10)) // different job, not delivered

	events := drain(sub.Events)
	require.Len(t, events, 1)
	assert.Equal(t, "job_1", events[0].JobID)
	assert.Equal(t, 45, events[0].Percent)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestReplayOnSubscribe(t *testing.T) {
	hub := testHub(DefaultBufferSize)

	// Published before anyone subscribes; only the latest event per stage is
	// retained, in first-seen stage order.
	hub.Publish(event("job_1", "parse", 20))
	hub.Publish(event("job_1", "parse", 45))
	hub.Publish(event("job_1", "embed", 95))

	sub := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", sub.ID)

	events := drain(sub.Events)
	require.Len(t, events, 2)
	assert.Equal(t, "parse", events[0].Stage)
	assert.Equal(t, 45, events[0].Percent)
	assert.Equal(t, "embed", events[1].Stage)
}

func TestMonotonicPercentPerStage(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	sub := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", sub.ID)

	hub.Publish(event("job_1", "parse", 60))
	hub.Publish(event("job_1", "parse", 40)) // clamped to 60
	hub.Publish(event("job_1", "embed", 10)) // separate stage, not clamped

	events := drain(sub.Events)
	require.Len(t, events, 3)
	assert.Equal(t, 60, events[0].Percent)
	assert.Equal(t, 60, events[1].Percent)
	assert.Equal(t, 10, events[2].Percent)
}

func TestSlowSubscriberLags(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	sub := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", sub.ID)

	// Nobody reads; overfill the buffer so the oldest events get dropped.
	for i := 0; i <= DefaultBufferSize+5; i++ {
		hub.Publish(event("job_1", "parse", i))
	}

	events := drain(sub.Events)
	require.Len(t, events, DefaultBufferSize)

	// The first retained events were displaced, so at least one delivered
	// event carries the lag marker, and the newest event survived.
	lagged := false
	for _, e := range events {
		if e.Lagged {
			lagged = true
		}
	}
	assert.True(t, lagged)
	assert.Equal(t, DefaultBufferSize+5, events[len(events)-1].Percent)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	sub := hub.Subscribe("job_1")

	hub.Unsubscribe("job_1", sub.ID)

	_, open := <-sub.Events
	assert.False(t, open)
	assert.Zero(t, hub.SubscriberCount("job_1"))

	// Publishing after detach must not panic or block.
	hub.Publish(event("job_1", "parse", 50))
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	hub := testHub(DefaultBufferSize)

	subs := make([]*interfaces.ProgressSubscription, 0, 200)
	for i := 0; i < 200; i++ {
		subs = append(subs, hub.Subscribe("job_1"))
	}

	// Publish continuously while every subscriber detaches; a detached
	// subscriber's channel is closed, so a late delivery must notice and
	// skip it rather than send.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			hub.Publish(event("job_1", "parse", i%100))
		}
	}()

	for i := len(subs) - 1; i >= 0; i-- {
		hub.Unsubscribe("job_1", subs[i].ID)
	}
	<-done

	assert.Zero(t, hub.SubscriberCount("job_1"))
}

func TestMultipleSubscribers(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	first := hub.Subscribe("job_1")
	second := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", first.ID)
	defer hub.Unsubscribe("job_1", second.ID)

	assert.Equal(t, 2, hub.SubscriberCount("job_1"))

	hub.Publish(event("job_1", "parse", 45))

	assert.Len(t, drain(first.Events), 1)
	assert.Len(t, drain(second.Events), 1)
}

func TestForgetDropsReplayState(t *testing.T) {
	hub := testHub(DefaultBufferSize)
	hub.Publish(event("job_1", "parse", 45))

	hub.Forget("job_1")

	sub := hub.Subscribe("job_1")
	defer hub.Unsubscribe("job_1", sub.ID)
	assert.Empty(t, drain(sub.Events))
}
