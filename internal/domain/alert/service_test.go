package alert

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ers/dispatch/internal/domain/responder"
	"github.com/ers/dispatch/internal/platform/events"
)

// -- Mocks --

type mockRepo struct {
	items  map[int64]*Alert
	nextID int64
	calls  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[int64]*Alert)}
}

func (m *mockRepo) Create(_ context.Context, a *Alert) error {
	m.calls++
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*Alert, error) {
	m.calls++
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]*Alert, error) {
	m.calls++
	var out []*Alert
	for _, a := range m.items {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.ResponderID > 0 && (a.ResponderID == nil || *a.ResponderID != f.ResponderID) {
			continue
		}
		if f.Unassigned && a.ResponderID != nil {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *mockRepo) Apply(_ context.Context, c Change) (bool, error) {
	m.calls++
	a, ok := m.items[c.AlertID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range c.From {
		if a.Status == s {
			matched = true
		}
	}
	if !matched {
		return false, nil
	}
	if c.Holder > 0 && a.ResponderID != nil && *a.ResponderID != c.Holder {
		return false, nil
	}

	now := time.Now()
	a.Status = c.To
	if c.Release {
		a.ResponderID, a.AssignedBy, a.AssignedAt, a.AcceptedAt = nil, nil, nil, nil
	} else {
		if c.Responder != nil {
			id := *c.Responder
			a.ResponderID = &id
		}
		if c.AssignedBy != nil {
			by := *c.AssignedBy
			a.AssignedBy = &by
		}
	}
	switch c.To {
	case StatusAssigned:
		a.AssignedAt = &now
	case StatusAccepted:
		a.AcceptedAt = &now
		if a.AssignedAt == nil {
			a.AssignedAt = &now
		}
	case StatusCompleted:
		a.CompletedAt = &now
	}
	a.UpdatedAt = now
	return true, nil
}

func (m *mockRepo) ListStale(_ context.Context, before time.Time) ([]*Alert, error) {
	var out []*Alert
	for _, a := range m.items {
		if a.Status == StatusAssigned && a.AssignedAt != nil && a.AssignedAt.Before(before) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockResponders struct {
	items map[int64]*responder.Responder
}

func newMockResponders() *mockResponders {
	return &mockResponders{items: map[int64]*responder.Responder{
		1: {ID: 1, Username: "rico", Name: "Rico Santos", Status: responder.StatusAvailable},
		2: {ID: 2, Username: "mara", Name: "Mara Cruz", Status: responder.StatusAvailable},
	}}
}

func (m *mockResponders) GetByID(_ context.Context, id int64) (*responder.Responder, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, responder.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockResponders) SetStatus(_ context.Context, id int64, status string) error {
	r, ok := m.items[id]
	if !ok {
		return responder.ErrNotFound
	}
	r.Status = status
	return nil
}

// directTx runs fn without a database transaction.
type directTx struct{}

func (directTx) InTx(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }

type capturePublisher struct{ events []events.Event }

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

type countingRecorder struct {
	transitions map[string]int
	released    int
}

func (r *countingRecorder) AlertTransition(action string) {
	if r.transitions == nil {
		r.transitions = make(map[string]int)
	}
	r.transitions[action]++
}

func (r *countingRecorder) StaleAssignmentsReleased(n int) { r.released += n }

type fixture struct {
	svc        *Service
	repo       *mockRepo
	responders *mockResponders
	pub        *capturePublisher
	rec        *countingRecorder
}

func newFixture() *fixture {
	f := &fixture{
		repo:       newMockRepo(),
		responders: newMockResponders(),
		pub:        &capturePublisher{},
		rec:        &countingRecorder{},
	}
	f.svc = NewService(f.repo, f.responders, directTx{}, f.pub, zerolog.Nop())
	f.svc.SetMetrics(f.rec)
	return f
}

func (f *fixture) alert(t *testing.T) *Alert {
	t.Helper()
	a := &Alert{Type: "Fire", Location: "Brgy. San Roque", Description: "kitchen fire", Severity: "High"}
	if err := f.svc.Create(context.Background(), a); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return a
}

// -- Tests --

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"Pending", StatusPending, true},
		{"completed", StatusCompleted, true},
		{"COMPLETED", StatusCompleted, true},
		{" accepted ", StatusAccepted, true},
		{"unassigned", StatusUnassigned, true},
		{"done", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusCompleted, false},
		{StatusAssigned, StatusCompleted, false},
		{StatusAssigned, StatusUnassigned, true},
		{StatusAccepted, StatusCompleted, true},
		{StatusAccepted, StatusAssigned, false},
		{StatusCompleted, StatusUnassigned, false},
		{StatusUnassigned, StatusAccepted, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if got := Sources(StatusCompleted); len(got) != 1 || got[0] != StatusAccepted {
		t.Errorf("Sources(Completed) = %v", got)
	}
	if got := Sources(StatusPending); len(got) != 0 {
		t.Errorf("nothing should lead back to Pending, got %v", got)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture()
	a := f.alert(t)

	if a.ID == 0 || a.Status != StatusPending {
		t.Fatalf("expected pending alert with id, got %+v", a)
	}
	if len(f.pub.events) != 2 {
		t.Fatalf("expected events on alerts and alert/<id>, got %d", len(f.pub.events))
	}
	if f.pub.events[0].Topic != events.AlertsTopic || f.pub.events[1].Topic != events.AlertTopic(a.ID) {
		t.Errorf("unexpected topics %q, %q", f.pub.events[0].Topic, f.pub.events[1].Topic)
	}
	if f.pub.events[0].Type != "alert.created" {
		t.Errorf("unexpected type %q", f.pub.events[0].Type)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture()
	err := f.svc.Create(context.Background(), &Alert{Type: "Flood"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(f.repo.items) != 0 {
		t.Error("nothing should be stored")
	}
}

func TestAssign(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	by := int64(7)

	got, err := f.svc.Assign(context.Background(), a.ID, 1, &by)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAssigned || got.ResponderID == nil || *got.ResponderID != 1 {
		t.Fatalf("expected assigned to responder 1, got %+v", got)
	}
	if got.AssignedBy == nil || *got.AssignedBy != 7 || got.AssignedAt == nil {
		t.Error("expected assigned_by and assigned_at to be set")
	}
	if f.rec.transitions[ActionAssign] != 1 {
		t.Errorf("expected one assign transition recorded, got %v", f.rec.transitions)
	}
}

func TestAssign_ReassignUntilAccepted(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	ctx := context.Background()

	if _, err := f.svc.Assign(ctx, a.ID, 1, nil); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Assign(ctx, a.ID, 2, nil)
	if err != nil {
		t.Fatalf("re-assign should succeed: %v", err)
	}
	if *got.ResponderID != 2 {
		t.Errorf("expected responder 2, got %d", *got.ResponderID)
	}

	if _, err := f.svc.Accept(ctx, a.ID, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Assign(ctx, a.ID, 1, nil); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition after accept, got %v", err)
	}
}

func TestAssign_UnknownAlertOrResponder(t *testing.T) {
	f := newFixture()
	a := f.alert(t)

	if _, err := f.svc.Assign(context.Background(), 999, 1, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Assign(context.Background(), a.ID, 42, nil); !errors.Is(err, responder.ErrNotFound) {
		t.Errorf("expected responder.ErrNotFound, got %v", err)
	}
	if stored := f.repo.items[a.ID]; stored.Status != StatusPending {
		t.Errorf("alert must stay Pending, got %s", stored.Status)
	}
}

func TestAccept_SetsResponderOnDuty(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	ctx := context.Background()
	f.svc.Assign(ctx, a.ID, 1, nil)

	got, err := f.svc.Accept(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAccepted || got.AcceptedAt == nil {
		t.Errorf("expected Accepted, got %+v", got)
	}
	if f.responders.items[1].Status != responder.StatusOnDuty {
		t.Errorf("expected responder On Duty, got %q", f.responders.items[1].Status)
	}
}

func TestAccept_OtherResponderConflicts(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	ctx := context.Background()
	f.svc.Assign(ctx, a.ID, 1, nil)

	if _, err := f.svc.Accept(ctx, a.ID, 2); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if f.responders.items[2].Status != responder.StatusAvailable {
		t.Error("losing responder must stay Available")
	}
	if *f.repo.items[a.ID].ResponderID != 1 {
		t.Error("assignment must be untouched")
	}
}

func TestAccept_SelfClaimPending(t *testing.T) {
	f := newFixture()
	a := f.alert(t)

	got, err := f.svc.Accept(context.Background(), a.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAccepted || *got.ResponderID != 2 {
		t.Errorf("expected claimed by responder 2, got %+v", got)
	}
}

func TestComplete_RequiresAccepted(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	ctx := context.Background()
	f.svc.Assign(ctx, a.ID, 1, nil)

	if _, err := f.svc.Complete(ctx, a.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition before accept, got %v", err)
	}

	f.svc.Accept(ctx, a.ID, 1)
	got, err := f.svc.Complete(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted || got.CompletedAt == nil {
		t.Errorf("expected Completed, got %+v", got)
	}
	if f.responders.items[1].Status != responder.StatusAvailable {
		t.Errorf("expected responder Available after completion, got %q", f.responders.items[1].Status)
	}

	if _, err := f.svc.Unassign(ctx, a.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completed alerts are final, got %v", err)
	}
}

func TestRejectAndUnassign(t *testing.T) {
	for _, name := range []string{"reject", "unassign"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture()
			a := f.alert(t)
			ctx := context.Background()
			f.svc.Assign(ctx, a.ID, 1, nil)
			f.svc.Accept(ctx, a.ID, 1)

			op := f.svc.Reject
			if name == "unassign" {
				op = f.svc.Unassign
			}

			if _, err := op(ctx, a.ID, 2); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("another responder must not release the alert, got %v", err)
			}
			got, err := op(ctx, a.ID, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != StatusUnassigned || got.ResponderID != nil {
				t.Errorf("expected Unassigned without responder, got %+v", got)
			}
			if f.responders.items[1].Status != responder.StatusAvailable {
				t.Error("expected responder Available")
			}
		})
	}
}

func TestRelease_KeepsResponderOnDutyWhileHoldingAcceptedAlert(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	working := f.alert(t)
	offered := f.alert(t)

	f.svc.Assign(ctx, working.ID, 1, nil)
	if _, err := f.svc.Accept(ctx, working.ID, 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.svc.Assign(ctx, offered.ID, 1, nil)

	if _, err := f.svc.Reject(ctx, offered.ID, 1); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := f.responders.items[1].Status; got != responder.StatusOnDuty {
		t.Errorf("rejecting a second offer must not free the responder, got %q", got)
	}

	f.svc.Assign(ctx, offered.ID, 1, nil)
	if _, err := f.svc.Accept(ctx, offered.ID, 1); err != nil {
		t.Fatalf("accept second: %v", err)
	}
	if _, err := f.svc.Complete(ctx, working.ID, 1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := f.responders.items[1].Status; got != responder.StatusOnDuty {
		t.Errorf("responder still holds an accepted alert, got %q", got)
	}

	if _, err := f.svc.Unassign(ctx, offered.ID, 1); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got := f.responders.items[1].Status; got != responder.StatusAvailable {
		t.Errorf("expected Available once nothing is held, got %q", got)
	}
}

func TestTransition_PublishesResponderStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	a := f.alert(t)

	responderEvents := func() []events.Event {
		var out []events.Event
		for _, ev := range f.pub.events {
			if ev.Topic == responder.ResponderTopic {
				out = append(out, ev)
			}
		}
		return out
	}

	f.svc.Assign(ctx, a.ID, 1, nil)
	if n := len(responderEvents()); n != 0 {
		t.Fatalf("assignment leaves availability alone, got %d responder events", n)
	}

	f.svc.Accept(ctx, a.ID, 1)
	got := responderEvents()
	if len(got) != 1 {
		t.Fatalf("expected one responder event after accept, got %d", len(got))
	}
	if got[0].Type != "responder.status" || got[0].ResourceID != "1" {
		t.Errorf("unexpected event %+v", got[0])
	}
	var body responder.Responder
	if err := json.Unmarshal(got[0].Data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != responder.StatusOnDuty {
		t.Errorf("expected On Duty in the payload, got %q", body.Status)
	}

	f.svc.Complete(ctx, a.ID, 1)
	got = responderEvents()
	if len(got) != 2 {
		t.Fatalf("expected a second responder event after completion, got %d", len(got))
	}
	if err := json.Unmarshal(got[1].Data, &body); err != nil || body.Status != responder.StatusAvailable {
		t.Errorf("expected Available in the payload, got %q (%v)", body.Status, err)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture()
	a := f.alert(t)
	ctx := context.Background()

	if _, err := f.svc.UpdateStatus(ctx, 999, StatusCompleted, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusCompleted, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Pending cannot complete, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusAssigned, 0); !errors.Is(err, ErrResponderRequired) {
		t.Errorf("expected ErrResponderRequired, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusPending, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("nothing returns to Pending, got %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, a.ID, StatusAccepted, 1); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.UpdateStatus(ctx, a.ID, StatusCompleted, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("expected Completed, got %s", got.Status)
	}
	if f.responders.items[1].Status != responder.StatusAvailable {
		t.Error("expected holder released to Available")
	}
	if len(f.repo.items) != 1 {
		t.Error("no rows may be created by status updates")
	}
}

func TestReleaseStale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	old := f.alert(t)
	fresh := f.alert(t)
	f.svc.Assign(ctx, old.ID, 1, nil)
	f.svc.Assign(ctx, fresh.ID, 2, nil)

	past := time.Now().Add(-10 * time.Minute)
	f.repo.items[old.ID].AssignedAt = &past

	n, err := f.svc.ReleaseStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 released, got %d", n)
	}
	if f.repo.items[old.ID].Status != StatusUnassigned || f.repo.items[old.ID].ResponderID != nil {
		t.Errorf("expected stale alert back in the pool, got %+v", f.repo.items[old.ID])
	}
	if f.repo.items[fresh.ID].Status != StatusAssigned {
		t.Error("fresh assignment must be kept")
	}
	if f.rec.released != 1 || f.rec.transitions[ActionExpire] != 1 {
		t.Errorf("unexpected metrics %+v", f.rec)
	}
}
