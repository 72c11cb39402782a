package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"audioconv/internal/config"
	"audioconv/internal/logging"
	"audioconv/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustRegisterUser inserts a user with a random token.
func MustRegisterUser(t testing.TB, store *queue.Store, name string) *queue.User {
	t.Helper()

	user, err := store.CreateUser(context.Background(), name, uuid.NewString())
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// MustCreateJob inserts a pending job for userID whose blob ref equals its id.
func MustCreateJob(t testing.TB, store *queue.Store, userID int64) *queue.Job {
	t.Helper()

	id := uuid.NewString()
	job := &queue.Job{JobID: id, UserID: userID, BlobRef: id, SourceFormat: "wav"}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
