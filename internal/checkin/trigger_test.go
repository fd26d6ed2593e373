package checkin

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/multierr"

	"github.com/solsticehq/solstice/internal/store"
)

type fakeProcessor struct {
	mu     sync.Mutex
	failOn map[string]error
	seen   []string
}

func (f *fakeProcessor) Process(ctx context.Context, id string) (*Outcome, error) {
	f.mu.Lock()
	f.seen = append(f.seen, id)
	f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return nil, err
	}
	return &Outcome{}, nil
}

func TestTriggerRun(t *testing.T) {
	db := testDB(t)
	subs := store.NewSubscriptionStore(db)
	kc := testKeychain(t)

	var ids []string
	for range 3 {
		ids = append(ids, createDueSubscription(t, db, subs, kc).ID)
	}

	proc := &fakeProcessor{failOn: map[string]error{ids[1]: errors.New("upstream down")}}
	trigger := NewTrigger(subs, proc, testLogger())

	summary, err := trigger.Run(context.Background())
	if summary.Total != 3 || summary.Succeeded != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 3/2/1", summary)
	}
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if errs := multierr.Errors(err); len(errs) != 1 {
		t.Errorf("aggregate errors = %d, want 1", len(errs))
	}
	if !strings.Contains(err.Error(), ids[1]) {
		t.Errorf("error %q does not name the failed subscription", err)
	}
	if len(proc.seen) != 3 {
		t.Errorf("processed %d subscriptions, want all 3", len(proc.seen))
	}
}

func TestTriggerRunNothingDue(t *testing.T) {
	db := testDB(t)
	subs := store.NewSubscriptionStore(db)

	proc := &fakeProcessor{}
	summary, err := NewTrigger(subs, proc, testLogger()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Total != 0 || summary.Succeeded != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want zeros", summary)
	}
	if len(proc.seen) != 0 {
		t.Error("processor invoked with nothing due")
	}
}

func TestTriggerRunAllFail(t *testing.T) {
	db := testDB(t)
	subs := store.NewSubscriptionStore(db)
	kc := testKeychain(t)

	failOn := map[string]error{}
	for range 2 {
		failOn[createDueSubscription(t, db, subs, kc).ID] = errors.New("boom")
	}

	trigger := NewTrigger(subs, &fakeProcessor{failOn: failOn}, testLogger())
	summary, err := trigger.Run(context.Background())
	if summary.Failed != 2 || summary.Succeeded != 0 {
		t.Errorf("summary = %+v, want 2 failures", summary)
	}
	if len(multierr.Errors(err)) != 2 {
		t.Errorf("aggregate errors = %d, want 2", len(multierr.Errors(err)))
	}
}
