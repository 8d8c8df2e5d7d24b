package data

import (
	"reflect"
	"sort"
	"testing"

	"github.com/hanifsetyadi/cv-analyzer/internal/core"
)

var (
	_ core.QueueRepository      = (*QueueRepo)(nil)
	_ core.RetentionRepository  = (*RetentionRepo)(nil)
	_ core.ResultRepository     = (*ResultRepo)(nil)
	_ core.ResultRepository     = (*CachedResultRepo)(nil)
	_ core.RubricRepository     = (*RubricRepo)(nil)
	_ core.EnqueueErrorRecorder = (*EnqueueErrorLog)(nil)
)

// The queue's exported surface is its protocol; new methods need a deliberate decision.
func TestQueueRepoExportedMethodsMatchAllowlist(t *testing.T) {
	allowed := []string{
		"ClaimNext",
		"Complete",
		"Enqueue",
		"Fail",
		"GetByID",
		"Heartbeat",
		"List",
		"PromoteDelayed",
		"RequeueExpiredLeases",
		"Stats",
		"WaitForNotification",
	}

	typ := reflect.TypeOf(&QueueRepo{})
	var got []string
	for i := range typ.NumMethod() {
		if m := typ.Method(i); m.IsExported() {
			got = append(got, m.Name)
		}
	}
	sort.Strings(got)

	if !reflect.DeepEqual(got, allowed) {
		t.Fatalf("QueueRepo exported methods = %v, want %v", got, allowed)
	}
}
