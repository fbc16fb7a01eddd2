package service

import (
	"context"
	"errors"
	"testing"

	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"
	"dgsync/internal/port/outbound"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func spaceAt(url string) entity.Record {
	return entity.Record{"url": url, "name": url, "platform": "Obsidian"}
}

func rowFor(id int64, url string) *entity.Row {
	return &entity.Row{Kind: "Space", IDColumn: "id", ID: id, Values: entity.Record{"url": url, "name": url, "platform": "Obsidian"}}
}

func TestResolveBatch_EmptyBatchIsInvalid(t *testing.T) {
	r := newTestResolver(new(MockEntityStore), &recordingPublisher{})
	_, err := r.ResolveBatch(context.Background(), "Space", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalid)
	assert.Contains(t, err.Error(), "non-empty array")
}

func TestResolveBatch_UnknownKind(t *testing.T) {
	r := newTestResolver(new(MockEntityStore), &recordingPublisher{})
	_, err := r.ResolveBatch(context.Background(), "Nope", []entity.Record{spaceAt("a")}, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownKind)
}

func TestResolveBatch_StatusFromOutcomes(t *testing.T) {
	store := new(MockEntityStore)
	store.On("UpsertBatch", mock.Anything, mock.Anything, []string{"url"}, mock.Anything).
		Return([]outbound.BatchRowResult{
			{Row: rowFor(1, "a"), Created: true},
			{Row: rowFor(2, "b")},
		}, nil)
	publisher := &recordingPublisher{}

	result, err := newTestResolver(store, publisher).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), spaceAt("b")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchResolved, result.Status)
	assert.Equal(t, entity.OutcomeCreated, result.Items[0].Outcome)
	assert.Equal(t, entity.OutcomeFound, result.Items[1].Outcome)
	assert.Equal(t, []string{outbound.EventEntityCreated}, publisher.Types())
}

func TestResolveBatch_InvalidItemsAreNotSubmitted(t *testing.T) {
	store := new(MockEntityStore)
	store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(records []entity.Record) bool {
		return len(records) == 2
	})).Return([]outbound.BatchRowResult{
		{Row: rowFor(1, "a"), Created: true},
		{Row: rowFor(2, "c"), Created: true},
	}, nil)

	result, err := newTestResolver(store, &recordingPublisher{}).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), {"url": "b"}, spaceAt("c")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchPartial, result.Status)
	assert.Equal(t, entity.OutcomeCreated, result.Items[0].Outcome)
	assert.Equal(t, entity.OutcomeInvalid, result.Items[1].Outcome)
	assert.ErrorIs(t, result.Items[1].Err, domain.ErrInvalid)
	assert.Equal(t, int64(2), result.Items[2].Row.ID)
	assert.Equal(t, 2, result.Items[2].Index)

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
	assert.True(t, result.ClientFault())
}

func TestResolveBatch_DuplicatesShareFirstResult(t *testing.T) {
	store := new(MockEntityStore)
	store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(records []entity.Record) bool {
		return len(records) == 1
	})).Return([]outbound.BatchRowResult{{Row: rowFor(5, "a"), Created: true}}, nil)

	result, err := newTestResolver(store, &recordingPublisher{}).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), spaceAt("a"), spaceAt("a")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchResolved, result.Status)
	assert.Equal(t, entity.OutcomeCreated, result.Items[0].Outcome)
	for _, item := range result.Items[1:] {
		assert.Equal(t, entity.OutcomeFound, item.Outcome)
		assert.Equal(t, int64(5), item.Row.ID)
	}
}

func TestResolveBatch_DuplicateOfFailedItemFails(t *testing.T) {
	store := new(MockEntityStore)
	refErr := &domain.ReferenceError{Field: "author_id", Value: "1"}
	store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]outbound.BatchRowResult{{Err: refErr}}, nil)

	result, err := newTestResolver(store, &recordingPublisher{}).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), spaceAt("a")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchFailed, result.Status)
	assert.Equal(t, entity.OutcomeFailed, result.Items[1].Outcome)
	assert.ErrorIs(t, result.Items[1].Err, domain.ErrInvalidReference)
	assert.True(t, result.ClientFault())
}

func TestResolveBatch_StoreErrorFailsSubmittedItems(t *testing.T) {
	store := new(MockEntityStore)
	store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.NewInternalError("upsert entities", errors.New("disk I/O error")))

	result, err := newTestResolver(store, &recordingPublisher{}).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), spaceAt("b")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchFailed, result.Status)
	for _, item := range result.Items {
		assert.Equal(t, entity.OutcomeFailed, item.Outcome)
		assert.ErrorIs(t, item.Err, domain.ErrInternal)
	}
	assert.False(t, result.ClientFault())
}

func TestResolveBatch_ShortStoreResultIsInternal(t *testing.T) {
	store := new(MockEntityStore)
	store.On("UpsertBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]outbound.BatchRowResult{{Row: rowFor(1, "a"), Created: true}}, nil)

	result, err := newTestResolver(store, &recordingPublisher{}).ResolveBatch(context.Background(), "Space",
		[]entity.Record{spaceAt("a"), spaceAt("b")}, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.BatchPartial, result.Status)
	assert.ErrorIs(t, result.Items[1].Err, domain.ErrInternal)
}
