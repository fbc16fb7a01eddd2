package service

import (
	"context"
	"errors"
	"testing"

	"dgsync/internal/application/common"
	"dgsync/internal/application/dto"
	"dgsync/internal/domain/entity"
	"dgsync/internal/domain/errors/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func spaceRow(id int64, url string) *entity.Row {
	return &entity.Row{Kind: "Space", IDColumn: "id", ID: id, Values: entity.Record{"url": url, "platform": "Roam"}}
}

func TestResolveEntity_MapsResolution(t *testing.T) {
	resolver := &mockResolver{}
	adapter := NewEntityServiceAdapter(resolver)
	candidate := map[string]any{"url": "u", "platform": "Roam"}
	resolver.On("Resolve", mock.Anything, "Space", entity.Record(candidate), []string{"url"}).
		Return(&entity.Resolution{Row: spaceRow(5, "u"), Created: true}, nil)

	resp, err := adapter.ResolveEntity(context.Background(), "Space",
		dto.ResolveEntityRequest{Candidate: candidate, UniqueOn: []string{"url"}})

	require.NoError(t, err)
	assert.True(t, resp.Created)
	assert.Equal(t, map[string]any{"id": int64(5), "url": "u", "platform": "Roam"}, resp.Data)
	resolver.AssertExpectations(t)
}

func TestResolveEntity_WrapsErrors(t *testing.T) {
	resolver := &mockResolver{}
	adapter := NewEntityServiceAdapter(resolver)
	cause := &domain.ReferenceError{Field: "space_id", Value: "3"}
	resolver.On("Resolve", mock.Anything, "Document", mock.Anything, mock.Anything).Return(nil, cause)

	_, err := adapter.ResolveEntity(context.Background(), "Document", dto.ResolveEntityRequest{Candidate: map[string]any{"a": 1}})

	op, ok := common.OperationOf(err)
	require.True(t, ok)
	assert.Equal(t, common.OpResolveEntity, op)
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestResolveEntityBatch_MapsItems(t *testing.T) {
	resolver := &mockResolver{}
	adapter := NewEntityServiceAdapter(resolver)
	refErr := &domain.ReferenceError{Field: "space_id", Value: "9"}
	items := []entity.BatchItem{
		{Index: 0, Outcome: entity.OutcomeCreated, Row: spaceRow(1, "a")},
		{Index: 1, Outcome: entity.OutcomeFailed, Err: refErr},
		{Index: 2, Outcome: entity.OutcomeFound, Row: spaceRow(2, "c")},
	}
	resolver.On("ResolveBatch", mock.Anything, "Space", mock.MatchedBy(func(c []entity.Record) bool { return len(c) == 3 }), []string(nil)).
		Return(&entity.BatchResult{Items: items, Status: entity.Summarize(items)}, nil)

	resp, err := adapter.ResolveEntityBatch(context.Background(), "Space", dto.ResolveBatchRequest{
		Candidates: []map[string]any{{"url": "a"}, {"url": "b"}, {"url": "c"}},
	})

	require.NoError(t, err)
	assert.Equal(t, dto.BatchStatusPartial, resp.Status)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "created", resp.Data[0].Outcome)
	assert.Equal(t, int64(1), resp.Data[0].Data["id"])
	assert.Nil(t, resp.Data[1].Data)
	assert.Equal(t, refErr.Error(), resp.Data[1].Error)
	assert.Equal(t, []dto.PartialError{{Index: 1, Error: refErr.Error()}}, resp.PartialErrors)
	assert.False(t, resp.ClientFault, "only a failed batch reports fault")
}

func TestResolveEntityBatch_FailedClientFault(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantFault bool
	}{
		{"all client errors", []error{domain.NewValidationError("url", "is required"), &domain.ReferenceError{}}, true},
		{"one internal error", []error{domain.NewValidationError("url", "is required"), domain.NewInternalError("insert", errors.New("x"))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &mockResolver{}
			items := make([]entity.BatchItem, len(tt.errs))
			for i, e := range tt.errs {
				items[i] = entity.BatchItem{Index: i, Outcome: entity.OutcomeFailed, Err: e}
			}
			resolver.On("ResolveBatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return(&entity.BatchResult{Items: items, Status: entity.BatchFailed}, nil)

			resp, err := NewEntityServiceAdapter(resolver).ResolveEntityBatch(context.Background(), "Space",
				dto.ResolveBatchRequest{Candidates: []map[string]any{{}, {}}})

			require.NoError(t, err)
			assert.Equal(t, dto.BatchStatusFailed, resp.Status)
			assert.Equal(t, tt.wantFault, resp.ClientFault)
		})
	}
}
