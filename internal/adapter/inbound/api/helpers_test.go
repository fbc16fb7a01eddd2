package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"dgsync/internal/adapter/inbound/api/testutil"
	"dgsync/internal/config"

	"github.com/stretchr/testify/require"
)

type testServer struct {
	server   *Server
	entity   *testutil.MockEntityService
	syncTask *testutil.MockSyncTaskService
	lookup   *testutil.MockLookupService
	health   *testutil.MockHealthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		entity:   &testutil.MockEntityService{},
		syncTask: &testutil.MockSyncTaskService{},
		lookup:   &testutil.MockLookupService{},
		health:   &testutil.MockHealthService{},
	}
	disabled := false
	server, err := NewServerBuilder(config.APIConfig{Host: "127.0.0.1", Port: "0", EnableLogging: &disabled}).
		WithHealthService(ts.health).
		WithEntityService(ts.entity).
		WithSyncTaskService(ts.syncTask).
		WithLookupService(ts.lookup).
		WithErrorHandler(NewDefaultErrorHandler()).
		WithDefaultMiddleware().
		Build()
	require.NoError(t, err)
	ts.server = server
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}
