package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMPSCSingleProducer(t *testing.T) {
	q := NewMPSC[int]()

	const count = 1000
	go func() {
		for i := 0; i < count; i++ {
			v := i
			require.True(t, q.Push(&v))
		}
		q.Close()
	}()

	// A single producer observes strict FIFO order
	expected := 0
	for v := range q.Recv() {
		require.Equal(t, expected, *v)
		expected++
	}
	require.Equal(t, count, expected)
}

func TestMPSCManyProducers(t *testing.T) {
	q := NewMPSC[int]()

	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := i
				q.Push(&v)
			}
		}()
	}

	go func() {
		wg.Wait()
		q.Close()
	}()

	received := 0
	for range q.Recv() {
		received++
	}
	require.Equal(t, producers*perProducer, received)
}

func TestMPSCClose(t *testing.T) {
	q := NewMPSC[string]()

	v := "pending"
	require.True(t, q.Push(&v))

	q.Close()

	// Push after close is rejected
	w := "rejected"
	require.False(t, q.Push(&w))
	require.True(t, q.IsClosed())

	// Items accepted before close are still delivered
	got, ok := <-q.Recv()
	require.True(t, ok)
	require.Equal(t, "pending", *got)

	_, ok = <-q.Recv()
	require.False(t, ok)
}

func TestMPSCNilPush(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	require.False(t, q.Push(nil))
}
