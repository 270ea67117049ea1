package toolargs

import (
	"reflect"
	"strings"
	"testing"
)

var testParams = []Param{
	{Name: "title", Required: true, Kind: KindString},
	{Name: "status", Kind: KindString, Enum: []string{"pending", "completed"}},
	{Name: "limit", Kind: KindInteger},
	{Name: "ratio", Kind: KindNumber},
	{Name: "done", Kind: KindBoolean},
	{Name: "tags", Kind: KindStringArray},
	{Name: "ids", Kind: KindIntArray},
	{Name: "meta", Kind: KindJSON},
}

func TestParseSet_Typed(t *testing.T) {
	tests := []struct {
		entry string
		key   string
		want  any
	}{
		{"title=Write docs", "title", "Write docs"},
		{"title=42", "title", "42"},
		{"title=a=b", "title", "a=b"},
		{"title=", "title", ""},
		{"status=completed", "status", "completed"},
		{"limit=10", "limit", int64(10)},
		{"ratio=0.5", "ratio", 0.5},
		{"done=true", "done", true},
		{"tags=a, b,,c", "tags", []string{"a", "b", "c"}},
		{`tags=["x","y"]`, "tags", []string{"x", "y"}},
		{"ids=1,2", "ids", []int64{1, 2}},
		{"ids=[3]", "ids", []int64{3}},
		{`meta={"k":1}`, "meta", map[string]any{"k": float64(1)}},
		{"other=plain", "other", "plain"},
		{"other=7", "other", float64(7)},
	}
	for _, tc := range tests {
		t.Run(tc.entry, func(t *testing.T) {
			args, err := ParseSet([]string{tc.entry}, testParams)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := args[tc.key]; !reflect.DeepEqual(got, tc.want) {
				t.Errorf("args[%q] = %#v, want %#v", tc.key, got, tc.want)
			}
		})
	}
}

func TestParseSet_Errors(t *testing.T) {
	tests := []struct {
		entry   string
		wantErr string
	}{
		{"title", "expected key=value"},
		{"=value", "empty key"},
		{"status=archived", "not one of pending, completed"},
		{"limit=ten", "not an integer"},
		{"ratio=half", "not a number"},
		{"done=maybe", "not a boolean"},
		{"ids=1,x", "not an integer"},
		{`tags=["a",1]`, "not a string array"},
	}
	for _, tc := range tests {
		t.Run(tc.entry, func(t *testing.T) {
			_, err := ParseSet([]string{tc.entry}, testParams)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseSet_LastWins(t *testing.T) {
	args, err := ParseSet([]string{"limit=1", "limit=2"}, testParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := args["limit"]; got != int64(2) {
		t.Errorf("limit = %v, want 2", got)
	}
}
