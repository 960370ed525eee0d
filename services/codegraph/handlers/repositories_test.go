// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Tests for the repository administration handlers

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codegraph/services/codegraph/datatypes"
	"github.com/AleutianAI/codegraph/services/codegraph/graph"
	"github.com/AleutianAI/codegraph/services/codegraph/weaviate"
)

type fakeRepoStore struct {
	repos     map[string]*graph.NodeRef
	stats     map[string]*datatypes.RepositoryStats
	deleted   []string
	findErr   error
	deleteErr error
}

func newFakeRepoStore() *fakeRepoStore {
	return &fakeRepoStore{
		repos: make(map[string]*graph.NodeRef),
		stats: make(map[string]*datatypes.RepositoryStats),
	}
}

func (f *fakeRepoStore) FindRepository(_ context.Context, name string) (*graph.NodeRef, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.repos[name], nil
}

func (f *fakeRepoStore) ListRepositories(_ context.Context) ([]weaviate.RepositoryInfo, error) {
	var out []weaviate.RepositoryInfo
	for name, ref := range f.repos {
		out = append(out, weaviate.RepositoryInfo{ID: ref.ID, Name: name})
	}
	return out, nil
}

func (f *fakeRepoStore) RepositoryStats(_ context.Context, repository string) (*datatypes.RepositoryStats, error) {
	s, ok := f.stats[repository]
	if !ok {
		return &datatypes.RepositoryStats{Repository: repository}, nil
	}
	return s, nil
}

func (f *fakeRepoStore) DeleteRepository(_ context.Context, repository string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, repository)
	delete(f.repos, repository)
	return nil
}

func TestListRepositories(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}

	router := gin.New()
	router.GET("/v1/repositories", ListRepositories(store))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Repositories []weaviate.RepositoryInfo `json:"repositories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Repositories, 1)
	assert.Equal(t, "proj", resp.Repositories[0].Name)
}

func TestGetRepositoryStatus_FromHub(t *testing.T) {
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{
		Repository: "proj",
		Stage:      datatypes.StatusSummarizing,
		Progress:   80,
	})

	router := gin.New()
	router.GET("/v1/repositories/:name/status", GetRepositoryStatus(hub, newFakeRepoStore()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories/proj/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status datatypes.RepositoryStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, datatypes.StatusSummarizing, status.Stage)
	assert.Equal(t, 80, status.Progress)
}

func TestGetRepositoryStatus_ExistingRepositoryIsReady(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}

	router := gin.New()
	router.GET("/v1/repositories/:name/status", GetRepositoryStatus(NewStatusHub(), store))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories/proj/status", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status datatypes.RepositoryStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, datatypes.StatusReady, status.Stage)
	assert.Equal(t, 100, status.Progress)
}

func TestGetRepositoryStatus_UnknownRepository(t *testing.T) {
	router := gin.New()
	router.GET("/v1/repositories/:name/status", GetRepositoryStatus(NewStatusHub(), newFakeRepoStore()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories/ghost/status", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetRepositoryStats(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}
	store.stats["proj"] = &datatypes.RepositoryStats{
		Repository: "proj", Files: 3, Classes: 2, Functions: 10, Total: 15,
	}

	router := gin.New()
	router.GET("/v1/repositories/:name/stats", GetRepositoryStats(store))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories/proj/stats", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats datatypes.RepositoryStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 15, stats.Total)
	assert.Equal(t, 10, stats.Functions)
}

func TestGetRepositoryStats_UnknownRepository(t *testing.T) {
	router := gin.New()
	router.GET("/v1/repositories/:name/stats", GetRepositoryStats(newFakeRepoStore()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/repositories/ghost/stats", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRepository(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}
	cache := newFakeCache()
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{Repository: "proj", Stage: datatypes.StatusReady})

	router := gin.New()
	router.DELETE("/v1/repositories/:name", DeleteRepository(store, cache, hub))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/repositories/proj", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"proj"}, store.deleted)
	assert.Equal(t, []string{"proj"}, cache.invalidated)
	_, ok := hub.Get("proj")
	assert.False(t, ok)
}

func TestDeleteRepository_UnknownRepository(t *testing.T) {
	router := gin.New()
	router.DELETE("/v1/repositories/:name", DeleteRepository(newFakeRepoStore(), nil, NewStatusHub()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/repositories/ghost", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteRepository_ConflictsWithRunningIngestion(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}
	hub := NewStatusHub()
	hub.Set(datatypes.RepositoryStatus{Repository: "proj", Stage: datatypes.StatusIngesting})

	router := gin.New()
	router.DELETE("/v1/repositories/:name", DeleteRepository(store, nil, hub))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/repositories/proj", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, store.deleted)
}

func TestDeleteRepository_StoreError(t *testing.T) {
	store := newFakeRepoStore()
	store.repos["proj"] = &graph.NodeRef{ID: "root-1", Kind: datatypes.KindRepository}
	store.deleteErr = errors.New("batch delete failed")

	router := gin.New()
	router.DELETE("/v1/repositories/:name", DeleteRepository(store, nil, NewStatusHub()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/v1/repositories/proj", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
