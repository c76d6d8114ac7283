package CronJobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskatlas/Models"
	"taskatlas/Store"
	"taskatlas/Sync"
)

func newTestStore(t *testing.T) *Store.Store {
	t.Helper()
	db, err := Models.Connect(filepath.Join(t.TempDir(), "recon.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	store, err := Store.New(db)
	if err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	return store
}

func insertUser(t *testing.T, store *Store.Store, user Models.User) Models.User {
	t.Helper()
	id, err := store.Insert(context.Background(), Models.UsersCollection, &user)
	if err != nil {
		t.Fatalf("inserting user: %v", err)
	}
	user.ID = id
	return user
}

func insertTask(t *testing.T, store *Store.Store, task Models.Task) Models.Task {
	t.Helper()
	if task.Deadline.IsZero() {
		task.Deadline = time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	}
	id, err := store.Insert(context.Background(), Models.TasksCollection, &task)
	if err != nil {
		t.Fatalf("inserting task: %v", err)
	}
	task.ID = id
	return task
}

func rewriteUser(t *testing.T, store *Store.Store, user Models.User) {
	t.Helper()
	if err := store.Update(context.Background(), Models.UsersCollection, user.ID, &user); err != nil {
		t.Fatalf("rewriting user: %v", err)
	}
}

// The scenarios below plant the exact inconsistencies a crash between two
// writes of one mutation leaves behind, then verify a sweep repairs them.

func TestRunOnceDropsStalePendingIDs(t *testing.T) {
	store := newTestStore(t)
	alice := insertUser(t, store, Models.User{Name: "Alice", Email: "a@x.com", PendingTasks: []string{}})
	task := insertTask(t, store, Models.Task{
		Name: "gone", AssignedUser: alice.ID, AssignedUserName: "Alice",
	})

	// as if DeleteTask crashed after the task delete, before the user write
	alice.PendingTasks = []string{task.ID, "fully-dangling"}
	rewriteUser(t, store, alice)
	if err := store.Delete(context.Background(), Models.TasksCollection, task.ID); err != nil {
		t.Fatalf("deleting task: %v", err)
	}

	report, err := NewReconciler(store, "@every 1h").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.UsersRepaired != 1 {
		t.Errorf("usersRepaired = %d, want 1", report.UsersRepaired)
	}

	var repaired Models.User
	if err := store.Get(context.Background(), Models.UsersCollection, alice.ID, &repaired); err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if len(repaired.PendingTasks) != 0 {
		t.Errorf("pendingTasks = %v, want empty after repair", repaired.PendingTasks)
	}
}

func TestRunOnceRestoresMissingPendingID(t *testing.T) {
	store := newTestStore(t)
	alice := insertUser(t, store, Models.User{Name: "Alice", Email: "a@x.com", PendingTasks: []string{}})
	// as if CreateTask crashed after the insert, before the pending append
	task := insertTask(t, store, Models.Task{
		Name: "unlinked", AssignedUser: alice.ID, AssignedUserName: "Alice",
	})

	report, err := NewReconciler(store, "@every 1h").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.UsersRepaired != 1 {
		t.Errorf("usersRepaired = %d, want 1", report.UsersRepaired)
	}

	var repaired Models.User
	if err := store.Get(context.Background(), Models.UsersCollection, alice.ID, &repaired); err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if len(repaired.PendingTasks) != 1 || repaired.PendingTasks[0] != task.ID {
		t.Errorf("pendingTasks = %v, want [%s]", repaired.PendingTasks, task.ID)
	}
}

func TestRunOnceRefreshesStaleNames(t *testing.T) {
	store := newTestStore(t)
	alice := insertUser(t, store, Models.User{Name: "Alice Cooper", Email: "a@x.com", PendingTasks: []string{}})
	task := insertTask(t, store, Models.Task{
		Name: "renamed owner", AssignedUser: alice.ID, AssignedUserName: "Alice",
	})
	dangling := insertTask(t, store, Models.Task{
		Name: "dangling owner", AssignedUser: "no-such-user", AssignedUserName: "Ghost",
	})

	report, err := NewReconciler(store, "@every 1h").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.TasksRepaired != 2 {
		t.Errorf("tasksRepaired = %d, want 2", report.TasksRepaired)
	}

	var got Models.Task
	if err := store.Get(context.Background(), Models.TasksCollection, task.ID, &got); err != nil {
		t.Fatalf("loading task: %v", err)
	}
	if got.AssignedUserName != "Alice Cooper" {
		t.Errorf("assignedUserName = %q, want refreshed name", got.AssignedUserName)
	}

	if err := store.Get(context.Background(), Models.TasksCollection, dangling.ID, &got); err != nil {
		t.Fatalf("loading task: %v", err)
	}
	// soft reference: raw id stays, display name normalizes
	if got.AssignedUser != "no-such-user" {
		t.Errorf("assignedUser = %q, want soft reference preserved", got.AssignedUser)
	}
	if got.AssignedUserName != Sync.UnassignedName {
		t.Errorf("assignedUserName = %q, want %q", got.AssignedUserName, Sync.UnassignedName)
	}
}

func TestRunOnceIsQuietWhenConsistent(t *testing.T) {
	store := newTestStore(t)
	alice := insertUser(t, store, Models.User{Name: "Alice", Email: "a@x.com", PendingTasks: []string{}})
	task := insertTask(t, store, Models.Task{
		Name: "fine", AssignedUser: alice.ID, AssignedUserName: "Alice",
	})
	alice.PendingTasks = []string{task.ID}
	rewriteUser(t, store, alice)

	report, err := NewReconciler(store, "@every 1h").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.UsersRepaired != 0 || report.TasksRepaired != 0 {
		t.Errorf("consistent state repaired anyway: %+v", report)
	}
	if report.UsersScanned != 1 || report.TasksScanned != 1 {
		t.Errorf("scan counts = %+v, want 1 user and 1 task", report)
	}
}
