package FiberConfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskatlas/CronJobs"
	"taskatlas/Models"
	"taskatlas/Store"
	"taskatlas/Sync"
)

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) (*fiber.App, *Store.Store) {
	t.Helper()
	db, err := Models.Connect(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	store, err := Store.New(db)
	if err != nil {
		t.Fatalf("initializing store: %v", err)
	}
	engine := Sync.NewEngine(store)
	reconciler := CronJobs.NewReconciler(store, "@every 1h")
	return NewApp(store, engine, reconciler), store
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("%s %s: decoding envelope: %v", method, path, err)
	}
	return resp.StatusCode, env
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := do(t, app, "POST", "/api/users", fiber.Map{"name": "Alice", "email": "A@X.com"})
	if status != http.StatusCreated {
		t.Fatalf("create: status %d, message %q", status, env.Message)
	}
	var alice Models.User
	if err := json.Unmarshal(env.Data, &alice); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if alice.Email != "a@x.com" {
		t.Errorf("email = %q, want normalized a@x.com", alice.Email)
	}
	if alice.ID == "" {
		t.Fatal("created user has no id")
	}

	status, _ = do(t, app, "POST", "/api/users", fiber.Map{"name": "Alicia", "email": "a@X.COM"})
	if status != http.StatusConflict {
		t.Errorf("duplicate email: status %d, want 409", status)
	}

	status, _ = do(t, app, "GET", "/api/users/"+alice.ID, nil)
	if status != http.StatusOK {
		t.Errorf("get: status %d, want 200", status)
	}

	status, env = do(t, app, "DELETE", "/api/users/"+alice.ID, nil)
	if status != http.StatusOK {
		t.Errorf("delete: status %d, want 200", status)
	}
	if string(env.Data) != "null" {
		t.Errorf("delete data = %s, want null", env.Data)
	}

	status, _ = do(t, app, "GET", "/api/users/"+alice.ID, nil)
	if status != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", status)
	}
}

func TestTaskValidationOverHTTP(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := do(t, app, "POST", "/api/tasks", fiber.Map{"description": "no name or deadline"})
	if status != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", status)
	}
	if env.Message == "" {
		t.Error("validation failure carries no detail message")
	}
	if string(env.Data) != "null" {
		t.Errorf("data = %s, want null", env.Data)
	}
}

func TestTaskAssignmentSyncOverHTTP(t *testing.T) {
	app, store := newTestApp(t)

	_, env := do(t, app, "POST", "/api/users", fiber.Map{"name": "Alice", "email": "a@x.com"})
	var alice Models.User
	if err := json.Unmarshal(env.Data, &alice); err != nil {
		t.Fatalf("decoding user: %v", err)
	}

	deadline := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	status, env := do(t, app, "POST", "/api/tasks", fiber.Map{
		"name": "T1", "deadline": deadline, "assignedUser": alice.ID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create task: status %d, message %q", status, env.Message)
	}
	var task Models.Task
	if err := json.Unmarshal(env.Data, &task); err != nil {
		t.Fatalf("decoding task: %v", err)
	}
	if task.AssignedUserName != "Alice" {
		t.Errorf("assignedUserName = %q, want Alice", task.AssignedUserName)
	}

	var stored Models.User
	if err := store.Get(context.Background(), Models.UsersCollection, alice.ID, &stored); err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if len(stored.PendingTasks) != 1 || stored.PendingTasks[0] != task.ID {
		t.Errorf("pendingTasks = %v, want [%s]", stored.PendingTasks, task.ID)
	}

	// completing through the API empties the pending list
	status, _ = do(t, app, "PUT", "/api/tasks/"+task.ID, fiber.Map{
		"name": "T1", "deadline": deadline, "completed": true, "assignedUser": alice.ID,
	})
	if status != http.StatusOK {
		t.Fatalf("update task: status %d", status)
	}
	if err := store.Get(context.Background(), Models.UsersCollection, alice.ID, &stored); err != nil {
		t.Fatalf("loading user: %v", err)
	}
	if len(stored.PendingTasks) != 0 {
		t.Errorf("pendingTasks = %v, want empty after completion", stored.PendingTasks)
	}
}

func TestTaskListDefaultCapAndCount(t *testing.T) {
	app, store := newTestApp(t)
	engine := Sync.NewEngine(store)

	deadline := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 105; i++ {
		_, err := engine.CreateTask(context.Background(), Models.TaskPayload{
			Name: fmt.Sprintf("task-%03d", i), Deadline: &deadline,
		})
		if err != nil {
			t.Fatalf("seeding task %d: %v", i, err)
		}
	}

	status, env := do(t, app, "GET", "/api/tasks", nil)
	if status != http.StatusOK {
		t.Fatalf("list: status %d", status)
	}
	var docs []map[string]any
	if err := json.Unmarshal(env.Data, &docs); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(docs) != 100 {
		t.Errorf("uncapped list returned %d docs, want the default cap of 100", len(docs))
	}

	_, env = do(t, app, "GET", "/api/tasks?count=true", nil)
	var n int64
	if err := json.Unmarshal(env.Data, &n); err != nil {
		t.Fatalf("decoding count: %v", err)
	}
	if n != 105 {
		t.Errorf("count = %d, want 105", n)
	}

	_, env = do(t, app, "GET", "/api/tasks?limit=3&sort=name", nil)
	if err := json.Unmarshal(env.Data, &docs); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if len(docs) != 3 || docs[0]["name"] != "task-000" {
		t.Errorf("limited sorted list = %d docs, first %v", len(docs), docs[0]["name"])
	}
}

func TestReconcileEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := do(t, app, "POST", "/api/admin/reconcile", nil)
	if status != http.StatusOK {
		t.Fatalf("status %d, message %q", status, env.Message)
	}
	var report CronJobs.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decoding report: %v", err)
	}
}
