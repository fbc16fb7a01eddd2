package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"dgsync/internal/adapter/inbound/api/testutil"
	"dgsync/internal/application/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSimilarContent(t *testing.T) {
	ts := newTestServer(t)
	ts.lookup.FindSimilarContentFunc = func(_ context.Context, req dto.SimilarContentRequest) (*dto.SimilarContentResponse, error) {
		return &dto.SimilarContentResponse{Results: []dto.SimilarContentResult{
			{ContentID: 3, Text: "close", Similarity: 0.93},
			{ContentID: 8, Text: "further", Similarity: 0.71},
		}}, nil
	}

	rec := ts.do(testutil.CreateRawRequest(http.MethodPost, "/lookups/similar-content",
		`{"space_id":12,"text":"hello","limit":2,"threshold":0.5,"subset_source_local_ids":[]}`))

	require.Equal(t, http.StatusOK, rec.Code)
	body := testutil.DecodeResponse[dto.SimilarContentResponse](t, rec)
	require.Len(t, body.Results, 2)
	assert.Equal(t, int64(3), body.Results[0].ContentID)

	call := ts.lookup.FindCalls[0]
	assert.Equal(t, int64(12), call.SpaceID)
	assert.Equal(t, 2, call.Limit)
	require.NotNil(t, call.Threshold)
	assert.InDelta(t, 0.5, *call.Threshold, 1e-9)
	assert.NotNil(t, call.SubsetSourceLocalIDs, "an explicit empty subset is kept")
	assert.Empty(t, call.SubsetSourceLocalIDs)
}

func TestFindSimilarContent_BadSpaceID(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(testutil.CreateRawRequest(http.MethodPost, "/lookups/similar-content", `{"space_id":"twelve","text":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.lookup.FindCalls)
}

func TestClearSimilarContentCache(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(testutil.CreateJSONRequest(http.MethodDelete, "/lookups/similar-content", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, 1, ts.lookup.ClearCalls)

	ts.lookup.ClearErr = errors.New("redis down")
	rec = ts.do(testutil.CreateJSONRequest(http.MethodDelete, "/lookups/similar-content", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
