package domain

import "testing"

func TestTriggerDef_MatchesPush(t *testing.T) {
	def := TriggerDef{Push: []string{"main", "release"}}

	cases := []struct {
		ref  string
		want bool
	}{
		{"refs/heads/main", true},
		{"main", true},
		{"refs/heads/release", true},
		{"refs/heads/feature/x", false},
		{"", false},
	}

	for _, tc := range cases {
		event := TriggerEvent{Kind: EventPush, Ref: tc.ref}
		if got := def.Matches(event); got != tc.want {
			t.Errorf("Matches(push %q) = %v, want %v", tc.ref, got, tc.want)
		}
	}
}

func TestTriggerDef_MatchesPullRequest(t *testing.T) {
	def := TriggerDef{PullRequest: true}

	// Целевая ветка pull request не ограничивается
	event := TriggerEvent{Kind: EventPullRequest, Ref: "refs/heads/anything"}
	if !def.Matches(event) {
		t.Error("pull_request trigger should match any branch")
	}

	def.PullRequest = false
	if def.Matches(event) {
		t.Error("disabled pull_request trigger must not match")
	}
}

func TestTriggerDef_IgnoresScheduleAndManual(t *testing.T) {
	def := TriggerDef{Push: []string{"main"}, PullRequest: true}

	if def.Matches(TriggerEvent{Kind: EventSchedule, Ref: "main"}) {
		t.Error("schedule events are not filtered by triggers")
	}
	if def.Matches(TriggerEvent{Kind: EventManual, Ref: "main"}) {
		t.Error("manual events are not filtered by triggers")
	}
}

func TestMatrixDef_Cardinality(t *testing.T) {
	m := MatrixDef{Axes: []Axis{
		{Name: "python", Values: []string{"3.11", "3.12"}},
		{Name: "toxenv", Values: []string{"django42", "django52", "quality"}},
	}}

	if got := m.Cardinality(); got != 6 {
		t.Errorf("expected cardinality 6, got %d", got)
	}

	empty := MatrixDef{}
	if got := empty.Cardinality(); got != 0 {
		t.Errorf("expected cardinality 0 for empty matrix, got %d", got)
	}
}
