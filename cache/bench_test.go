package cache

import (
	"context"
	"fmt"
	"testing"
)

// BenchmarkBuildKey measures canonical key construction.
func BenchmarkBuildKey(b *testing.B) {
	policy := Policy{Exclude: []int{2}}
	args := []any{"query", map[string]any{"limit": 10, "tags": []any{"a", "b"}}, 99}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildKey(policy, "Search", args)
	}
}

// BenchmarkProxy_MemoryHit measures the non-locking read path.
func BenchmarkProxy_MemoryHit(b *testing.B) {
	p, err := Wrap(Operations{"Op": returns("v")}, b.TempDir(), WithPolicy("Op", Policy{}))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	_, _ = p.Invoke(ctx, "Op", 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Invoke(ctx, "Op", 1)
	}
}

// BenchmarkProxy_MemoryHit_Parallel measures concurrent hits on one key.
func BenchmarkProxy_MemoryHit_Parallel(b *testing.B) {
	p, err := Wrap(Operations{"Op": returns("v")}, b.TempDir(), WithPolicy("Op", Policy{}))
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	_, _ = p.Invoke(ctx, "Op", 1)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = p.Invoke(ctx, "Op", 1)
		}
	})
}

// BenchmarkProxy_Uncached measures forwarding without a policy.
func BenchmarkProxy_Uncached(b *testing.B) {
	p, err := Wrap(Operations{"Op": returns("v")}, b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Invoke(ctx, "Op", 1)
	}
}

// BenchmarkFileStore_Put measures entry file writes.
func BenchmarkFileStore_Put(b *testing.B) {
	for _, compress := range []bool{false, true} {
		b.Run(fmt.Sprintf("compress=%v", compress), func(b *testing.B) {
			s, err := NewFileStore(b.TempDir())
			if err != nil {
				b.Fatal(err)
			}
			value := make([]int, 256)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				k := mustKey(b, "Op", i)
				if err := s.Put(k, value, compress); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkFileStore_Get measures decoding an indexed entry.
func BenchmarkFileStore_Get(b *testing.B) {
	s, err := NewFileStore(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	k := mustKey(b, "Op")
	if err := s.Put(k, make([]int, 256), false); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(k); err != nil {
			b.Fatal(err)
		}
	}
}
