package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLobbySnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/projects/P1/lobby", r.URL.Path)
		require.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"project_id": "P1",
			"status": "waiting",
			"students": [{"user_id": "u1", "first_name": "Ada"}],
			"student_count": 1,
			"max_students": 30
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	snap, err := c.LobbySnapshot(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, "P1", snap.ProjectID)
	require.Equal(t, "waiting", snap.Status)
	require.Len(t, snap.Students, 1)
	require.Equal(t, 30, snap.MaxStudents)
}

func TestLobbySnapshotErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "project not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	_, err := c.LobbySnapshot(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "project not found")
}

func TestLobbySnapshotNoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`{"project_id": "P1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken(""))
	snap, err := c.LobbySnapshot(context.Background(), "P1")
	require.NoError(t, err)
	require.Equal(t, "P1", snap.ProjectID)
}
