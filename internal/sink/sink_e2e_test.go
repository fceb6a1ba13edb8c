//go:build e2e
// +build e2e

package sink

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/meilisearch/meilisearch-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port string) (string, func()) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start %s container", req.Image)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), cleanup
}

func TestNATSPublisher_Write(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr, cleanup := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		Cmd:          []string{"-js"},
		WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(60 * time.Second),
	}, "4222")
	defer cleanup()

	p, err := NewNATSPublisher("nats://" + addr)
	require.NoError(t, err)
	defer p.Close()
	p.BatchSize = 1

	require.NoError(t, p.Write(ctx, sampleReport(), sampleRecords()))

	stream, err := p.js.Stream(ctx, StreamEquityListings)
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	// two record batches plus the run report
	assert.Equal(t, uint64(3), info.State.Msgs)
}

func TestMongoRunRepo_SaveAndLast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr, cleanup := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(60 * time.Second),
	}, "27017")
	defer cleanup()

	repo, err := NewMongoRunRepo("mongodb://"+addr, "equities_test")
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.LastByRegion(ctx, "BR")
	assert.ErrorIs(t, err, ErrRunNotFound)

	older := sampleReport()
	older.RunID = "run-old"
	older.FinishedAt = older.FinishedAt.Add(-time.Hour)
	require.NoError(t, repo.Save(ctx, older))

	newer := sampleReport()
	require.NoError(t, repo.Write(ctx, newer, nil))

	newer.Records = 42
	require.NoError(t, repo.Save(ctx, newer))

	got, err := repo.LastByRegion(ctx, "BR")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, 42, got.Records)
}

func TestMeiliIndexer_Write(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	addr, cleanup := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "getmeili/meilisearch:v1.12",
		ExposedPorts: []string{"7700/tcp"},
		Env: map[string]string{
			"MEILI_MASTER_KEY": "testMasterKey",
			"MEILI_ENV":        "development",
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("7700/tcp").WithStartupTimeout(60 * time.Second),
	}, "7700")
	defer cleanup()

	m, err := NewMeiliIndexer("http://"+addr, "testMasterKey")
	require.NoError(t, err)

	require.NoError(t, m.Write(ctx, sampleReport(), sampleRecords()))

	assert.Eventually(t, func() bool {
		resp, err := m.client.Index(EquitiesIndex).Search("Petrobras", &meilisearch.SearchRequest{})
		return err == nil && len(resp.Hits) == 1
	}, 10*time.Second, 200*time.Millisecond)
}
