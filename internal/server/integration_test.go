package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/soulscribe/soulscribe/internal/server/endpoints"
	"github.com/soulscribe/soulscribe/internal/storedb"
	"github.com/soulscribe/soulscribe/internal/story"
	"github.com/soulscribe/soulscribe/internal/testutil"
)

// TestServer_CleansUpOrphanedContainer tests that the server removes any existing
// container before starting, ensuring a clean slate even after crashes.
func TestServer_CleansUpOrphanedContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	// Register cleanup for test containers
	_ = testutil.DockerClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataPath := t.TempDir()
	port := "18083"
	containerName := testutil.UniqueContainerName(t, "orphan")
	storePort := "19284"
	labels := testutil.ContainerLabels(t)

	// First, create an "orphaned" container (simulating a crash)
	mgr, err := storedb.NewDockerManager(storedb.DockerConfig{
		ContainerName: containerName,
		DataPath:      dataPath,
		HostPort:      storePort,
		Labels:        labels,
	})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Start the container (this simulates an orphan from a previous crash)
	if err := mgr.Start(ctx); err != nil {
		mgr.Close()
		t.Fatalf("failed to start orphan container: %v", err)
	}

	// Verify it's running
	status, err := mgr.Status(ctx)
	if err != nil || status != storedb.StatusRunning {
		mgr.Close()
		t.Fatalf("orphan container not running: status=%s, err=%v", status, err)
	}
	mgr.Close()

	// Now start the server - it should clean up the orphan and start fresh
	srv, err := New(Config{
		Host:          "127.0.0.1",
		Port:          port,
		StoreDataPath: dataPath,
		StoreConfig: storedb.DockerConfig{
			ContainerName: containerName,
			HostPort:      storePort,
			Labels:        labels,
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := waitForServer(ctx, baseURL, 30*time.Second); err != nil {
		serverCancel()
		t.Fatalf("server did not start after cleaning orphan: %v", err)
	}

	// Verify server is healthy
	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		serverCancel()
		t.Fatalf("ready check failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		serverCancel()
		t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Clean shutdown
	serverCancel()
	<-serverErr
}

// TestServer_StoryCRUD exercises story creation, listing, and deletion over
// HTTP against a real server and store container.
func TestServer_StoryCRUD(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cfg := testutil.NewServerConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	srv, err := New(Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		StoreDataPath: cfg.StoreDataPath,
		StoreConfig: storedb.DockerConfig{
			ContainerName: cfg.StoreConfig.ContainerName,
			HostPort:      cfg.StoreConfig.HostPort,
			Labels:        cfg.StoreConfig.Labels,
		},
		Logger: cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()
	t.Cleanup(func() {
		serverCancel()
		_ = testutil.WaitForShutdown(serverErr, 30*time.Second)
	})

	if err := testutil.WaitForServer(cfg.URL(), 60*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	httpClient := testutil.HTTPClient()

	createReq := endpoints.CreateStoryRequest{
		Title:   "The Glass Lighthouse",
		Premise: "A keeper discovers the lamp bends time.",
		Outline: story.Outline{
			Chapters: []story.ChapterPlan{
				{Number: 1, Title: "Arrival"},
				{Number: 2, Title: "The First Night", DependsOn: []int{1}},
			},
		},
	}
	body, _ := json.Marshal(createReq)

	resp, err := httpClient.Post(cfg.URL()+"/api/stories", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create story failed: %v", err)
	}
	var created endpoints.CreateStoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if created.ID == "" {
		t.Fatal("create returned empty story ID")
	}
	if created.Chapters != 2 {
		t.Errorf("created.Chapters = %d, want 2", created.Chapters)
	}

	resp, err = httpClient.Get(cfg.URL() + "/api/stories")
	if err != nil {
		t.Fatalf("list stories failed: %v", err)
	}
	var listed endpoints.ListStoriesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	resp.Body.Close()
	if len(listed.Stories) != 1 {
		t.Fatalf("len(Stories) = %d, want 1", len(listed.Stories))
	}
	if listed.Stories[0].Title != createReq.Title {
		t.Errorf("Title = %q, want %q", listed.Stories[0].Title, createReq.Title)
	}

	req, _ := http.NewRequestWithContext(ctx, "DELETE", cfg.URL()+"/api/stories/"+created.ID, nil)
	resp, err = httpClient.Do(req)
	if err != nil {
		t.Fatalf("delete story failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}
