package daemon

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconciler_ReconcileNow(t *testing.T) {
	var calls atomic.Int32
	r := NewReconciler(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0, nil)

	r.Start(context.Background())
	defer r.Stop()

	r.ReconcileNow()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return r.Passes() == 1 }, time.Second, 5*time.Millisecond)
}

func TestReconciler_Periodic(t *testing.T) {
	var calls atomic.Int32
	r := NewReconciler(func(context.Context) error {
		calls.Add(1)
		return errors.New("enumeration failed")
	}, 10*time.Millisecond, nil)

	r.Start(context.Background())
	defer r.Stop()

	// Failed passes keep the loop running.
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestReconciler_SetInterval(t *testing.T) {
	var calls atomic.Int32
	r := NewReconciler(func(context.Context) error {
		calls.Add(1)
		return nil
	}, 0, nil)

	r.Start(context.Background())
	defer r.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, calls.Load())

	r.SetInterval(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	r.SetInterval(0)
	time.Sleep(30 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestReconciler_RecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	r := NewReconciler(func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("window factory exploded")
		}
		return nil
	}, 0, nil)

	r.Start(context.Background())
	defer r.Stop()

	r.ReconcileNow()
	assert.Eventually(t, func() bool { return r.Passes() == 1 }, time.Second, 5*time.Millisecond)

	r.ReconcileNow()
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestReconciler_StopIsIdempotent(t *testing.T) {
	r := NewReconciler(func(context.Context) error { return nil }, time.Second, nil)
	r.Stop()

	r.Start(context.Background())
	r.Start(context.Background())
	r.Stop()
	r.Stop()
}
