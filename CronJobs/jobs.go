package CronJobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/robfig/cron/v3"

	"taskatlas/Models"
	"taskatlas/Store"
	"taskatlas/Sync"
)

// Reconciler is the scheduled repair sweep for the assignment invariant.
// There are no cross-document transactions, so a crash between the writes
// of a single mutation can leave a user's pendingTasks and a task's
// assignedUser briefly disagreeing; the sweep re-derives the user side from
// the task side and refreshes stale denormalized names.
type Reconciler struct {
	store         *Store.Store
	cronScheduler *cron.Cron
	schedule      string
	jobID         cron.EntryID
}

// Report summarizes one sweep.
type Report struct {
	UsersScanned  int `json:"usersScanned"`
	TasksScanned  int `json:"tasksScanned"`
	UsersRepaired int `json:"usersRepaired"`
	TasksRepaired int `json:"tasksRepaired"`
}

// NewReconciler creates a reconciler with the given cron schedule
// (six-field spec, seconds first).
func NewReconciler(store *Store.Store, schedule string) *Reconciler {
	return &Reconciler{
		store:         store,
		cronScheduler: cron.New(cron.WithSeconds()),
		schedule:      schedule,
	}
}

// Start registers the sweep with the scheduler and starts it.
func (r *Reconciler) Start() error {
	var err error
	r.jobID, err = r.cronScheduler.AddFunc(r.schedule, func() {
		report, err := r.RunOnce(context.Background())
		if err != nil {
			log.Printf("Reconcile sweep failed: %v", err)
			return
		}
		if report.UsersRepaired > 0 || report.TasksRepaired > 0 {
			log.Printf("Reconcile sweep repaired %d users, %d tasks",
				report.UsersRepaired, report.TasksRepaired)
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling reconcile job: %w", err)
	}
	r.cronScheduler.Start()
	log.Printf("Reconcile scheduler started (%s)", r.schedule)
	return nil
}

// Stop terminates the scheduler.
func (r *Reconciler) Stop() {
	if r.cronScheduler != nil {
		r.cronScheduler.Stop()
		log.Println("Reconcile scheduler stopped")
	}
}

// RunOnce performs one full sweep. For every user the pendingTasks list is
// rebuilt from the tasks that actually reference it: existing order is
// kept, ids whose task is gone, reassigned or completed are dropped, and
// assigned-but-missing ids are appended. For every task the denormalized
// assignedUserName is recomputed. Dangling assignedUser ids are deliberate
// soft references and stay in place; only their display name is normalized.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	tasks := map[string]Models.Task{}
	err := r.store.ForEach(ctx, Models.TasksCollection, func(id string, doc json.RawMessage) error {
		var task Models.Task
		if err := json.Unmarshal(doc, &task); err != nil {
			return fmt.Errorf("decoding task %s: %w", id, err)
		}
		tasks[id] = task
		return nil
	})
	if err != nil {
		return report, err
	}
	report.TasksScanned = len(tasks)

	users := map[string]Models.User{}
	err = r.store.ForEach(ctx, Models.UsersCollection, func(id string, doc json.RawMessage) error {
		var user Models.User
		if err := json.Unmarshal(doc, &user); err != nil {
			return fmt.Errorf("decoding user %s: %w", id, err)
		}
		users[id] = user
		return nil
	})
	if err != nil {
		return report, err
	}
	report.UsersScanned = len(users)

	for _, user := range sortedUsers(users) {
		want := pendingFor(user, tasks)
		if sameList(user.PendingTasks, want) {
			continue
		}
		user.PendingTasks = want
		if err := r.store.Update(ctx, Models.UsersCollection, user.ID, &user); err != nil {
			return report, fmt.Errorf("repairing user %s: %w", user.ID, err)
		}
		report.UsersRepaired++
	}

	for _, task := range sortedTasks(tasks) {
		wantName := Sync.UnassignedName
		if owner, ok := users[task.AssignedUser]; ok && task.AssignedUser != "" {
			wantName = owner.Name
		}
		if task.AssignedUserName == wantName {
			continue
		}
		task.AssignedUserName = wantName
		if err := r.store.Update(ctx, Models.TasksCollection, task.ID, &task); err != nil {
			return report, fmt.Errorf("repairing task %s: %w", task.ID, err)
		}
		report.TasksRepaired++
	}

	return report, nil
}

// pendingFor derives the pendingTasks a user should hold: every incomplete
// task assigned to it, keeping the order of ids already present and
// appending newly discovered ones in sorted order.
func pendingFor(user Models.User, tasks map[string]Models.Task) []string {
	want := []string{}
	have := map[string]bool{}
	for _, id := range user.PendingTasks {
		task, ok := tasks[id]
		if !ok || task.AssignedUser != user.ID || task.Completed || have[id] {
			continue
		}
		want = append(want, id)
		have[id] = true
	}
	var missing []string
	for id, task := range tasks {
		if task.AssignedUser == user.ID && !task.Completed && !have[id] {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return append(want, missing...)
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sortedUsers(users map[string]Models.User) []Models.User {
	out := make([]Models.User, 0, len(users))
	for _, u := range users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedTasks(tasks map[string]Models.Task) []Models.Task {
	out := make([]Models.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
