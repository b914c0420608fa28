package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/whatspy/whatspy/core/database"
	"github.com/whatspy/whatspy/messaging/domain"
	"gorm.io/gorm"
)

func setupMessageRepo(t *testing.T) *MessageGormRepository {
	t.Helper()
	db, err := database.NewInMemoryDatabase()
	require.NoError(t, err)
	repo := NewMessageGormRepository(db)
	require.NoError(t, repo.InitSchema())
	return repo
}

func incoming(tenant, messageID, phone, text string) *domain.Message {
	return &domain.Message{
		TenantID:    tenant,
		MessageID:   messageID,
		Phone:       phone,
		Text:        text,
		MessageType: "text",
		Direction:   domain.DirectionIncoming,
		Status:      domain.StatusReceived,
	}
}

func TestSave_IdempotentByMessageID(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	first, created, err := repo.Save(ctx, incoming("t1", "wamid.ABC", "+51999", "hola"))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.Save(ctx, incoming("t1", "wamid.ABC", "+51999", "hola otra vez"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "hola", second.Text, "existing row returned unchanged")

	_, total, err := repo.List(ctx, "t1", domain.MessageFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSave_SameMessageIDDifferentTenants(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	_, created, err := repo.Save(ctx, incoming("t1", "wamid.ABC", "+51999", "a"))
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = repo.Save(ctx, incoming("t2", "wamid.ABC", "+51999", "b"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSave_EmptyMessageIDNeverDeduplicates(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		msg := incoming("t1", "", "+51999", "out")
		msg.Direction = domain.DirectionOutgoing
		msg.Status = domain.StatusSent
		_, created, err := repo.Save(ctx, msg)
		require.NoError(t, err)
		assert.True(t, created)
	}

	_, total, err := repo.List(ctx, "t1", domain.MessageFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}

func TestSave_ConcurrentInsertReturnsWinner(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	// Otro nodo inserta el mismo message_id justo después del lookup inicial.
	fired := false
	err := repo.db.Callback().Query().After("gorm:query").Register("test:competing_insert", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "messages" {
			return
		}
		fired = true
		id := "wamid.RACE"
		now := time.Now().UTC()
		require.NoError(t, repo.db.Session(&gorm.Session{NewDB: true}).Create(&messageModel{
			ID:          "winner",
			TenantID:    "t1",
			MessageID:   &id,
			Phone:       "+51999",
			Text:        "first delivery",
			MessageType: "text",
			Direction:   string(domain.DirectionIncoming),
			Status:      string(domain.StatusReceived),
			Metadata:    "{}",
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error)
	})
	require.NoError(t, err)

	got, created, err := repo.Save(ctx, incoming("t1", "wamid.RACE", "+51999", "second delivery"))
	require.NoError(t, err)
	require.True(t, fired)
	assert.False(t, created)
	assert.Equal(t, "winner", got.ID)
	assert.Equal(t, "first delivery", got.Text)

	_, total, err := repo.List(ctx, "t1", domain.MessageFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestSave_MetadataRoundTrip(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	msg := incoming("t1", "wamid.IMG", "+51999", "(image)")
	msg.MessageType = "image"
	msg.Metadata = map[string]any{"media_id": "MEDIA1"}
	_, _, err := repo.Save(ctx, msg)
	require.NoError(t, err)

	got, err := repo.GetByMessageID(ctx, "t1", "wamid.IMG")
	require.NoError(t, err)
	assert.Equal(t, "MEDIA1", got.Metadata["media_id"])
}

func TestUpdateStatus(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	out := incoming("t1", "wamid.OUT", "+51999", "hi")
	out.Direction = domain.DirectionOutgoing
	out.Status = domain.StatusSent
	_, _, err := repo.Save(ctx, out)
	require.NoError(t, err)

	msg, prev, found, err := repo.UpdateStatus(ctx, "t1", "wamid.OUT", domain.StatusRead)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusSent, prev)
	assert.Equal(t, domain.StatusRead, msg.Status)

	// Regression is still applied: last writer wins.
	msg, prev, found, err = repo.UpdateStatus(ctx, "t1", "wamid.OUT", domain.StatusDelivered)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.StatusRead, prev)
	assert.Equal(t, domain.StatusDelivered, msg.Status)

	stored, err := repo.GetByMessageID(ctx, "t1", "wamid.OUT")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDelivered, stored.Status)
}

func TestUpdateStatus_UnknownMessage(t *testing.T) {
	repo := setupMessageRepo(t)

	msg, _, found, err := repo.UpdateStatus(context.Background(), "t1", "wamid.NOPE", domain.StatusRead)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, msg)
}

func TestConversationsAndStats(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	seed := []struct {
		id, phone, text string
		dir             domain.Direction
		at              time.Time
	}{
		{"w1", "+1", "a1", domain.DirectionIncoming, base},
		{"w2", "+1", "a2", domain.DirectionOutgoing, base.Add(time.Minute)},
		{"w3", "+2", "b1", domain.DirectionIncoming, base.Add(2 * time.Minute)},
		{"w4", "+1", "old", domain.DirectionIncoming, base.Add(-10 * 24 * time.Hour)},
	}
	for _, s := range seed {
		m := incoming("t1", s.id, s.phone, s.text)
		m.Direction = s.dir
		m.CreatedAt = s.at
		_, _, err := repo.Save(ctx, m)
		require.NoError(t, err)
	}
	_, _, err := repo.Save(ctx, incoming("other", "w9", "+1", "not mine"))
	require.NoError(t, err)

	convs, err := repo.ListConversations(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "+2", convs[0].Phone)
	assert.Equal(t, "+1", convs[1].Phone)
	assert.Equal(t, "a2", convs[1].LastMessage)
	assert.Equal(t, int64(3), convs[1].MessageCount)

	history, err := repo.ListByPhone(ctx, "t1", "+1", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "old", history[0].Text)
	assert.Equal(t, "a2", history[2].Text)

	stats, err := repo.Stats(ctx, "t1", time.Now().UTC().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalMessages)
	assert.Equal(t, int64(2), stats.UniqueContacts)
	assert.Equal(t, int64(3), stats.Last7Days)
	assert.Equal(t, int64(3), stats.ByDirection[domain.DirectionIncoming])
	assert.Equal(t, int64(4), stats.ByType["text"])

	deleted, err := repo.DeleteByPhone(ctx, "t1", "+1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestList_FiltersAndPagination(t *testing.T) {
	repo := setupMessageRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m := incoming("t1", "", "+1", "x")
		m.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		_, _, err := repo.Save(ctx, m)
		require.NoError(t, err)
	}
	out := incoming("t1", "", "+2", "y")
	out.Direction = domain.DirectionOutgoing
	_, _, err := repo.Save(ctx, out)
	require.NoError(t, err)

	msgs, total, err := repo.List(ctx, "t1", domain.MessageFilter{Phone: "+1", Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, msgs, 2)
	assert.True(t, msgs[0].CreatedAt.After(msgs[1].CreatedAt))

	_, total, err = repo.List(ctx, "t1", domain.MessageFilter{Direction: domain.DirectionOutgoing})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}
