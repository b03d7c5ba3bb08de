package testing

import (
	"fmt"
	"testing"
)

// RunBTreeBenchmarks runs the benchmark suite against a tree factory.
func RunBTreeBenchmarks(b *testing.B, name string, factory TreeFactory) {
	b.Run(name+"/Insert", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tree.Insert(int64(i), "benchmark-value")
		}
	})

	b.Run(name+"/InsertExisting", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		tree.Insert(1, "benchmark-value")

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tree.Insert(1, "benchmark-value")
		}
	})

	b.Run(name+"/Get", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		const keySpace = 10000
		for i := int64(0); i < keySpace; i++ {
			tree.Insert(i, fmt.Sprintf("value-%d", i))
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tree.Get(int64(i % keySpace))
		}
	})

	b.Run(name+"/Exist", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		const keySpace = 10000
		for i := int64(0); i < keySpace; i++ {
			tree.Insert(i, "v")
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tree.Exist(int64(i % (2 * keySpace)))
		}
	})

	b.Run(name+"/Browse", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		for i := int64(0); i < 10000; i++ {
			tree.Insert(i, "v")
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			cursor, _ := tree.Browse()
			for cursor.HasNext() {
				cursor.Next()
			}
			cursor.Close()
		}
	})

	b.Run(name+"/Delete", func(b *testing.B) {
		tree := factory()
		defer tree.Close()

		for i := int64(0); i < int64(b.N); i++ {
			tree.Insert(i, "v")
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			tree.Delete(int64(i))
		}
	})
}
