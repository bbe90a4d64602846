package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"bilancio-cli"}, args...))
	return out.String(), err
}

func TestPeriodCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"calendar month", []string{"period", "--today", "2026-01-20"}, "2026-01-01..2026-01-31"},
		{"before start day", []string{"period", "--start-day", "20", "--today", "2026-01-19"}, "2025-12-20..2026-01-19"},
		{"on start day", []string{"period", "--start-day", "20", "--today", "2026-01-20"}, "2026-01-20..2026-02-19"},
		{"explicit month", []string{"period", "--start-day", "31", "--year", "2026", "--month", "3"}, "2026-02-28..2026-03-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPeriodCommandRejectsBadInput(t *testing.T) {
	for _, args := range [][]string{
		{"period", "--start-day", "0"},
		{"period", "--year", "2026", "--month", "13"},
		{"period", "--today", "20/01/2026"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}

func TestExpandCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "monthly clamps to month end",
			args: []string{"expand", "--start", "2026-01-31", "--end", "2026-04-30"},
			want: []string{"2026-01-31 (template)", "2026-02-28", "2026-03-31", "2026-04-30"},
		},
		{
			name: "weekly with weekdays",
			args: []string{"expand", "--start", "2026-01-01", "--frequency", "weekly", "--weekday", "1", "--weekday", "5", "--end", "2026-01-12"},
			want: []string{"2026-01-02 (template)", "2026-01-05", "2026-01-09", "2026-01-12"},
		},
		{
			name: "limit",
			args: []string{"expand", "--start", "2026-01-01", "--frequency", "daily", "--limit", "2"},
			want: []string{"2026-01-01 (template)", "2026-01-02", "2026-01-03"},
		},
		{
			name: "end before start",
			args: []string{"expand", "--start", "2026-03-01", "--end", "2026-02-01"},
			want: []string{"2026-03-01 (template)"},
		},
		{
			name: "zero horizon",
			args: []string{"expand", "--start", "2026-01-01", "--horizon", "0"},
			want: []string{"2026-01-01 (template)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := strings.Split(strings.TrimSpace(out), "\n")
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpandCommandRejectsInvalidRules(t *testing.T) {
	for _, args := range [][]string{
		{"expand", "--start", "2026-01-01", "--weekday", "1"},
		{"expand", "--start", "2026-01-01", "--frequency", "hourly"},
		{"expand", "--start", "2026-01-01", "--frequency", "weekly", "--weekday", "8"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected an error", args)
		}
	}
}
