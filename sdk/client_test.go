package sdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/api"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/config"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/dbtest"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/db/seed"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/logging"
	"github.com/CSARotterdam/TC1819-1B-Groep-5-API-sub000/sdk"
)

func startServer(t *testing.T) *api.Server {
	t.Helper()
	cfg := config.Default()
	cfg.DatabaseSettings.DSN = dbtest.DSN(t)
	cfg.ConnectionSettings.Address = "127.0.0.1:0"
	cfg.ConnectionSettings.AdminAddress = "localhost:0"
	cfg.PerformanceSettings.WorkerThreadCount = 3
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	srv, err := api.NewServer(ctx, cfg, logging.NewTestLogger())
	require.NoError(t, err)
	_, err = seed.InitDB(ctx, srv.DB(), seed.Options{AdminPassword: "hunter2"}, logging.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, srv.Stop(stopCtx))
	})
	return srv
}

func TestAccountLifecycle(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c := sdk.NewClient("http://" + srv.PublicAddr())

	password := sdk.HashPassword("correct horse")
	require.NoError(t, c.Register(ctx, "alice", password))
	assert.Equal(t, 1, c.Session().PermissionLevel)

	resp, err := c.Do(ctx, "checkToken", nil)
	require.NoError(t, err)
	assert.True(t, resp.Success(), resp.ReasonString())

	require.NoError(t, c.Logout(ctx))
	err = c.Login(ctx, "alice", sdk.HashPassword("wrong"))
	assert.ErrorContains(t, err, "InvalidLogin")

	require.NoError(t, c.Login(ctx, "alice", password))
	resp, err = c.Do(ctx, "getUsers", nil)
	require.NoError(t, err)
	assert.Equal(t, "AccessDenied", resp.ReasonString())
}

func TestSeededAdmin(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	c := sdk.NewClient("http://" + srv.PublicAddr())
	require.NoError(t, c.Login(ctx, "admin", sdk.HashPassword("hunter2")))
	assert.Equal(t, 3, c.Session().PermissionLevel)

	resp, err := c.Do(ctx, "getUsers", nil)
	require.NoError(t, err)
	require.True(t, resp.Success(), resp.ReasonString())
	var users []map[string]any
	require.NoError(t, resp.Decode(&users))
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0]["username"])

	resp, err = c.Do(ctx, "getProductCategories", map[string]any{"language": []string{"en"}})
	require.NoError(t, err)
	assert.True(t, resp.Success(), resp.ReasonString())
}

func TestUnknownRequestType(t *testing.T) {
	srv := startServer(t)
	c := sdk.NewClient("http://" + srv.PublicAddr())
	resp, err := c.Do(context.Background(), "frobnicate", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "InvalidRequestType", resp.ReasonString())
}

func TestConcurrentClients(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()
	owner := sdk.NewClient("http://" + srv.PublicAddr())
	require.NoError(t, owner.Register(ctx, "bob", sdk.HashPassword("pw")))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := owner.Do(ctx, "checkToken", nil)
			if err == nil && !resp.Success() {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestAdminRouter(t *testing.T) {
	srv := startServer(t)
	require.NotEmpty(t, srv.AdminAddr())

	res, err := http.Get("http://" + srv.AdminAddr() + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	var health map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.EqualValues(t, 3, health["aliveWorkers"])
}
