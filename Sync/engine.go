// Package Sync keeps Task.assignedUser and User.pendingTasks mutually
// coherent. Users and tasks live in independent collections with no
// cross-document transactions, so every mutation here is a short sequence
// of single-document writes in a fixed order; the order decides which side
// wins if a failure lands between two writes.
//
// The contract upheld after each completed call: an incomplete task
// assigned to a user appears exactly once in that user's pendingTasks, a
// completed or unassigned task appears in nobody's pendingTasks, and
// assignedUserName always mirrors the current name of the assigned user
// (or "unassigned").
package Sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"taskatlas/Models"
	"taskatlas/Store"
)

// Engine runs the coordinated multi-document mutations for both resource
// collections.
type Engine struct {
	store    *Store.Store
	resolver *Resolver
}

func NewEngine(store *Store.Store) *Engine {
	return &Engine{store: store, resolver: NewResolver(store)}
}

// Resolver exposes the engine's name resolver, mainly for handlers that
// need display names without a mutation.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// --- tasks ---

// CreateTask persists a new task and, when it arrives assigned and
// incomplete, appends its id to the assignee's pendingTasks. An assignee id
// that matches no user is kept as-is (a soft reference); only the display
// name falls back to "unassigned".
func (e *Engine) CreateTask(ctx context.Context, p Models.TaskPayload) (*Models.Task, error) {
	if err := requireTaskFields(p); err != nil {
		return nil, err
	}
	task := Models.Task{
		Name:             p.Name,
		Description:      p.Description,
		Deadline:         *p.Deadline,
		Completed:        p.Completed,
		AssignedUser:     p.AssignedUser,
		AssignedUserName: e.resolver.Resolve(ctx, p.AssignedUser),
		DateCreated:      time.Now().UTC(),
	}
	id, err := e.store.Insert(ctx, Models.TasksCollection, &task)
	if err != nil {
		return nil, &StoreError{Op: "create task", Err: err}
	}
	task.ID = id
	if task.AssignedUser != "" && !task.Completed {
		if err := e.addPending(ctx, task.AssignedUser, id); err != nil {
			return nil, err
		}
	}
	return &task, nil
}

// GetTask loads one task.
func (e *Engine) GetTask(ctx context.Context, id string) (*Models.Task, error) {
	return e.loadTask(ctx, id)
}

// UpdateTask writes a full replacement of the task, then reconciles
// pendingTasks membership on up to two users. The three reconciliation
// steps run in a fixed order so that "assigned and completed at once" ends
// not-pending:
//
//  1. assignee changed: drop the id from the previous user's list
//  2. assigned and incomplete: add the id to the new user's list
//  3. assigned and completed: drop the id from the new user's list
func (e *Engine) UpdateTask(ctx context.Context, id string, p Models.TaskPayload) (*Models.Task, error) {
	if err := requireTaskFields(p); err != nil {
		return nil, err
	}
	prev, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	next := Models.Task{
		ID:               id,
		Name:             p.Name,
		Description:      p.Description,
		Deadline:         *p.Deadline,
		Completed:        p.Completed,
		AssignedUser:     p.AssignedUser,
		AssignedUserName: e.resolver.Resolve(ctx, p.AssignedUser),
		DateCreated:      prev.DateCreated,
	}
	if err := e.store.Update(ctx, Models.TasksCollection, id, &next); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "task", ID: id}
		}
		return nil, &StoreError{Op: "update task", Err: err}
	}

	if prev.AssignedUser != "" && prev.AssignedUser != next.AssignedUser {
		if err := e.removePending(ctx, prev.AssignedUser, id); err != nil {
			return nil, err
		}
	}
	if next.AssignedUser != "" && !next.Completed {
		if err := e.addPending(ctx, next.AssignedUser, id); err != nil {
			return nil, err
		}
	}
	if next.AssignedUser != "" && next.Completed {
		if err := e.removePending(ctx, next.AssignedUser, id); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// DeleteTask removes the task and scrubs its id from the assignee's
// pendingTasks, if it had one.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	prev, err := e.loadTask(ctx, id)
	if err != nil {
		return err
	}
	if err := e.store.Delete(ctx, Models.TasksCollection, id); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return &NotFoundError{Resource: "task", ID: id}
		}
		return &StoreError{Op: "delete task", Err: err}
	}
	if prev.AssignedUser != "" {
		return e.removePending(ctx, prev.AssignedUser, id)
	}
	return nil
}

// --- users ---

// CreateUser stores a new user with a normalized, unique email. A supplied
// pendingTasks list claims those tasks for the new user the same way an
// update would.
func (e *Engine) CreateUser(ctx context.Context, p Models.UserPayload) (*Models.User, error) {
	if err := requireUserFields(p); err != nil {
		return nil, err
	}
	email := Models.NormalizeEmail(p.Email)
	if err := e.checkEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	user := Models.User{
		Name:         p.Name,
		Email:        email,
		PendingTasks: []string{},
		DateCreated:  time.Now().UTC(),
	}
	if p.PendingTasks != nil {
		user.PendingTasks = dedupe(*p.PendingTasks)
	}
	id, err := e.store.Insert(ctx, Models.UsersCollection, &user)
	if err != nil {
		return nil, &StoreError{Op: "create user", Err: err}
	}
	user.ID = id
	if len(user.PendingTasks) > 0 {
		if err := e.claimTasks(ctx, &user, user.PendingTasks); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// GetUser loads one user.
func (e *Engine) GetUser(ctx context.Context, id string) (*Models.User, error) {
	return e.loadUser(ctx, id)
}

// UpdateUser writes a full replacement of the user, then diffs the old and
// new pendingTasks sets and reconciles only the symmetric difference on the
// task side. Removed ids release their task back to unassigned, but only if
// the task still points at this user; added ids claim their task
// unconditionally. Ids present in both sets leave their task untouched.
func (e *Engine) UpdateUser(ctx context.Context, id string, p Models.UserPayload) (*Models.User, error) {
	if err := requireUserFields(p); err != nil {
		return nil, err
	}
	prev, err := e.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	email := Models.NormalizeEmail(p.Email)
	if email != prev.Email {
		if err := e.checkEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
	}
	next := Models.User{
		ID:           id,
		Name:         p.Name,
		Email:        email,
		PendingTasks: prev.PendingTasks,
		DateCreated:  prev.DateCreated,
	}
	if p.PendingTasks != nil {
		next.PendingTasks = dedupe(*p.PendingTasks)
	}
	if next.PendingTasks == nil {
		next.PendingTasks = []string{}
	}
	if err := e.store.Update(ctx, Models.UsersCollection, id, &next); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "user", ID: id}
		}
		return nil, &StoreError{Op: "update user", Err: err}
	}

	removed, added := diff(prev.PendingTasks, next.PendingTasks)
	for _, taskID := range removed {
		if err := e.releaseTask(ctx, id, taskID); err != nil {
			return nil, err
		}
	}
	if len(added) > 0 {
		if err := e.claimTasks(ctx, &next, added); err != nil {
			return nil, err
		}
	}
	return &next, nil
}

// DeleteUser removes the user and unassigns every task referencing it, as a
// bulk conditional pass over the tasks collection rather than the user's
// last-known pendingTasks. Tasks that referenced the user without being
// mirrored in pendingTasks are cleaned up too.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	if _, err := e.loadUser(ctx, id); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, Models.UsersCollection, id); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return &NotFoundError{Resource: "user", ID: id}
		}
		return &StoreError{Op: "delete user", Err: err}
	}
	_, err := e.store.UpdateWhere(ctx, Models.TasksCollection,
		map[string]any{"assignedUser": id},
		func(doc map[string]any) bool {
			doc["assignedUser"] = ""
			doc["assignedUserName"] = UnassignedName
			return true
		})
	if err != nil {
		return &StoreError{Op: "unassign tasks of deleted user", Err: err}
	}
	return nil
}

// --- internals ---

func (e *Engine) loadTask(ctx context.Context, id string) (*Models.Task, error) {
	var task Models.Task
	if err := e.store.Get(ctx, Models.TasksCollection, id, &task); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "task", ID: id}
		}
		return nil, &StoreError{Op: "load task", Err: err}
	}
	return &task, nil
}

func (e *Engine) loadUser(ctx context.Context, id string) (*Models.User, error) {
	var user Models.User
	if err := e.store.Get(ctx, Models.UsersCollection, id, &user); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "user", ID: id}
		}
		return nil, &StoreError{Op: "load user", Err: err}
	}
	return &user, nil
}

// addPending appends taskID to the user's pendingTasks if absent. A missing
// user is a soft reference and a silent no-op.
func (e *Engine) addPending(ctx context.Context, userID, taskID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	for _, id := range user.PendingTasks {
		if id == taskID {
			return nil
		}
	}
	user.PendingTasks = append(user.PendingTasks, taskID)
	if err := e.store.Update(ctx, Models.UsersCollection, userID, user); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "add pending task", Err: err}
	}
	return nil
}

// removePending drops taskID from the user's pendingTasks. Missing user or
// absent id are no-ops.
func (e *Engine) removePending(ctx context.Context, userID, taskID string) error {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil
		}
		return err
	}
	kept := user.PendingTasks[:0]
	found := false
	for _, id := range user.PendingTasks {
		if id == taskID {
			found = true
			continue
		}
		kept = append(kept, id)
	}
	if !found {
		return nil
	}
	user.PendingTasks = kept
	if err := e.store.Update(ctx, Models.UsersCollection, userID, user); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "remove pending task", Err: err}
	}
	return nil
}

// releaseTask clears a task back to unassigned, guarded: the clear only
// happens while the task still points at ownerID, so a task that was
// concurrently reassigned elsewhere is never clobbered.
func (e *Engine) releaseTask(ctx context.Context, ownerID, taskID string) error {
	_, err := e.store.UpdateWhere(ctx, Models.TasksCollection,
		map[string]any{"id": taskID, "assignedUser": ownerID},
		func(doc map[string]any) bool {
			doc["assignedUser"] = ""
			doc["assignedUserName"] = UnassignedName
			return true
		})
	if err != nil {
		return &StoreError{Op: "release task", Err: err}
	}
	return nil
}

// claimTasks points each existing task in taskIDs at the user,
// unconditionally. Ids with no task behind them are left in pendingTasks as
// soft references. A claimed task that is already completed must not stay
// pending, so those ids are stripped from the user's list afterwards.
func (e *Engine) claimTasks(ctx context.Context, user *Models.User, taskIDs []string) error {
	ordered := append([]string(nil), taskIDs...)
	sort.Strings(ordered)
	var completed []string
	for _, taskID := range ordered {
		task, err := e.loadTask(ctx, taskID)
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return err
		}
		// a task poached from another user leaves that user's list too
		if task.AssignedUser != "" && task.AssignedUser != user.ID {
			if err := e.removePending(ctx, task.AssignedUser, taskID); err != nil {
				return err
			}
		}
		task.AssignedUser = user.ID
		task.AssignedUserName = user.Name
		if err := e.store.Update(ctx, Models.TasksCollection, taskID, task); err != nil {
			if errors.Is(err, Store.ErrNotFound) {
				continue
			}
			return &StoreError{Op: "claim task", Err: err}
		}
		if task.Completed {
			completed = append(completed, taskID)
		}
	}
	if len(completed) == 0 {
		return nil
	}
	kept := make([]string, 0, len(user.PendingTasks))
	for _, id := range user.PendingTasks {
		if !contains(completed, id) {
			kept = append(kept, id)
		}
	}
	user.PendingTasks = kept
	if err := e.store.Update(ctx, Models.UsersCollection, user.ID, user); err != nil {
		if errors.Is(err, Store.ErrNotFound) {
			return nil
		}
		return &StoreError{Op: "drop completed pending tasks", Err: err}
	}
	return nil
}

// checkEmailFree rejects an email already held by a different user. The
// check and the following insert are separate store operations; the race
// between them is accepted like every other multi-document window here.
func (e *Engine) checkEmailFree(ctx context.Context, email, selfID string) error {
	var users []Models.User
	q := Store.Query{Filter: map[string]any{"email": email}}
	if err := e.store.Find(ctx, Models.UsersCollection, q, &users); err != nil {
		return &StoreError{Op: "check email uniqueness", Err: err}
	}
	for _, u := range users {
		if u.ID != selfID {
			return &ConflictError{Message: fmt.Sprintf("email %s is already in use", email)}
		}
	}
	return nil
}

func requireTaskFields(p Models.TaskPayload) error {
	if p.Name == "" {
		return &ValidationError{Message: "task name is required"}
	}
	if p.Deadline == nil || p.Deadline.IsZero() {
		return &ValidationError{Message: "task deadline is required"}
	}
	return nil
}

func requireUserFields(p Models.UserPayload) error {
	if p.Name == "" {
		return &ValidationError{Message: "user name is required"}
	}
	if Models.NormalizeEmail(p.Email) == "" {
		return &ValidationError{Message: "user email is required"}
	}
	return nil
}

// diff returns the ids only in prev (removed) and only in next (added),
// each sorted for deterministic reconciliation order.
func diff(prev, next []string) (removed, added []string) {
	prevSet := toSet(prev)
	nextSet := toSet(next)
	for id := range prevSet {
		if !nextSet[id] {
			removed = append(removed, id)
		}
	}
	for id := range nextSet {
		if !prevSet[id] {
			added = append(added, id)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
