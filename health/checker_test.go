package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResultConstructors(t *testing.T) {
	testErr := errors.New("disk gone")

	tests := []struct {
		name   string
		result Result
		status Status
		err    error
	}{
		{"healthy", Healthy("ok"), StatusHealthy, nil},
		{"degraded", Degraded("slow"), StatusDegraded, nil},
		{"unhealthy", Unhealthy("down", testErr), StatusUnhealthy, testErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.result.Status != tt.status {
				t.Errorf("Status = %v, want %v", tt.result.Status, tt.status)
			}
			if tt.result.Err != tt.err {
				t.Errorf("Err = %v, want %v", tt.result.Err, tt.err)
			}
			if tt.result.CheckedAt.IsZero() {
				t.Error("CheckedAt should not be zero")
			}
		})
	}
}

func TestStatus_Worst(t *testing.T) {
	tests := []struct {
		a, b Status
		want Status
	}{
		{StatusHealthy, StatusHealthy, StatusHealthy},
		{StatusHealthy, StatusDegraded, StatusDegraded},
		{StatusUnhealthy, StatusDegraded, StatusUnhealthy},
	}

	for _, tt := range tests {
		if got := tt.a.Worst(tt.b); got != tt.want {
			t.Errorf("%v.Worst(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestResult_StoreFields(t *testing.T) {
	result := Healthy("indexed").ForDir("/var/cache/app").WithEntries(3)
	if result.Dir != "/var/cache/app" || result.Entries != 3 {
		t.Errorf("Dir, Entries = %q, %d, want /var/cache/app, 3", result.Dir, result.Entries)
	}
	if result.Status != StatusHealthy {
		t.Errorf("Status = %v, want StatusHealthy", result.Status)
	}
}

func TestResult_WithSkipped(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		files  []string
		want   Status
	}{
		{"none skipped", Healthy("ok"), nil, StatusHealthy},
		{"skipped degrades", Healthy("ok"), []string{"a_1.bin"}, StatusDegraded},
		{"unhealthy stays", Unhealthy("down", nil), []string{"a_1.bin"}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.result.WithSkipped(tt.files)
			if got.Status != tt.want {
				t.Errorf("Status = %v, want %v", got.Status, tt.want)
			}
			if len(got.Skipped) != len(tt.files) {
				t.Errorf("Skipped = %v, want %v", got.Skipped, tt.files)
			}
		})
	}
}

func TestResult_Summary(t *testing.T) {
	tests := []struct {
		result Result
		want   string
	}{
		{Healthy("directory writable"), "directory writable"},
		{Unhealthy("not a directory", ErrNotDirectory), "not a directory: " + ErrNotDirectory.Error()},
		{Unhealthy("", ErrCheckTimeout), ErrCheckTimeout.Error()},
	}

	for _, tt := range tests {
		if got := tt.result.Summary(); got != tt.want {
			t.Errorf("Summary() = %q, want %q", got, tt.want)
		}
	}
}

func TestFunc(t *testing.T) {
	checker := Func("file_store", func(ctx context.Context) Result {
		select {
		case <-ctx.Done():
			return Unhealthy("cancelled", ctx.Err())
		default:
			return Healthy("from func")
		}
	})

	if checker.Name() != "file_store" {
		t.Errorf("Name() = %v, want 'file_store'", checker.Name())
	}
	if got := checker.Check(context.Background()); got.Status != StatusHealthy {
		t.Errorf("Check() Status = %v, want StatusHealthy", got.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := checker.Check(ctx); got.Status != StatusUnhealthy {
		t.Errorf("Check() after cancel Status = %v, want StatusUnhealthy", got.Status)
	}
}
