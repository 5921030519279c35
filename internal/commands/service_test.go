package commands

import (
	"context"
	"iotd/internal/models"
	"iotd/internal/testutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	accept bool
	sent   []models.Command
}

func (p *stubPublisher) PublishCommand(cmd *models.Command) bool {
	p.sent = append(p.sent, *cmd)
	return p.accept
}

func newTestService(t *testing.T, accept bool) (*Service, *stubPublisher) {
	t.Helper()
	store := testutil.OpenStore(t)
	testutil.RegisterDevice(t, store, 7, "valve")
	pub := &stubPublisher{accept: accept}
	svc := NewService(store, pub, &testutil.MockLogger{}).(*Service)
	svc.now = testutil.NewClock(time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)).Now
	return svc, pub
}

func TestService_SendAccepted(t *testing.T) {
	svc, pub := newTestService(t, true)
	ctx := context.Background()

	cmd, err := svc.Send(ctx, 7, "reboot", []byte(`{"delay":5}`))
	require.NoError(t, err)
	assert.Equal(t, models.CommandSent, cmd.Status)
	require.NotNil(t, cmd.SentAt)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, cmd.ID, pub.sent[0].ID)
	assert.Equal(t, models.CommandPending, pub.sent[0].Status)

	stored, err := svc.Get(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CommandSent, stored.Status)
	assert.JSONEq(t, `{"delay":5}`, string(stored.CommandData))
}

func TestService_SendRejected(t *testing.T) {
	svc, _ := newTestService(t, false)

	cmd, err := svc.Send(context.Background(), 7, "reboot", nil)
	require.NoError(t, err)
	assert.Equal(t, models.CommandFailed, cmd.Status)
	assert.Nil(t, cmd.SentAt)
}

func TestService_SendValidation(t *testing.T) {
	svc, pub := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.Send(ctx, 8, "reboot", nil)
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = svc.Send(ctx, 7, "  ", nil)
	assert.ErrorIs(t, err, ErrInvalidCommand)

	_, err = svc.Send(ctx, 7, "set", []byte(`{broken`))
	assert.ErrorIs(t, err, ErrInvalidCommand)

	assert.Empty(t, pub.sent)
}

func TestService_UpdateResultAndList(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	first, err := svc.Send(ctx, 7, "open", nil)
	require.NoError(t, err)
	second, err := svc.Send(ctx, 7, "close", nil)
	require.NoError(t, err)

	done, err := svc.UpdateResult(ctx, first.ID, "ok", true)
	require.NoError(t, err)
	assert.Equal(t, models.CommandExecuted, done.Status)
	require.NotNil(t, done.ExecutedAt)

	failed, err := svc.UpdateResult(ctx, second.ID, "jammed", false)
	require.NoError(t, err)
	assert.Equal(t, models.CommandFailed, failed.Status)
	assert.Equal(t, "jammed", failed.Result)

	_, err = svc.UpdateResult(ctx, 999, "", true)
	assert.ErrorIs(t, err, ErrCommandNotFound)

	list, err := svc.ListByDevice(ctx, 7)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}
