package worker

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPool(t *testing.T) {
	Convey("While using the worker pool", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		vm := shWorker("parked", handshakeScript+"cat >/dev/null\nexit 0\n")
		launcher := NewLauncher(vm, testLauncherConfig())

		Convey("with reuse enabled", func() {
			pool, err := NewPool([]Launcher{launcher}, PoolConfig{SpawnAttempts: 1})
			So(err, ShouldBeNil)
			defer pool.DrainAndStop()

			Convey("a released worker is parked and handed out again", func() {
				first, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)

				pool.Release(first)
				So(pool.IdleCount("parked"), ShouldEqual, 1)

				second, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)
				So(second, ShouldEqual, first)
				So(pool.IdleCount("parked"), ShouldEqual, 0)

				pool.Release(second)
			})

			Convey("releasing twice is a no-op", func() {
				handle, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)

				pool.Release(handle)
				pool.Release(handle)
				So(pool.IdleCount("parked"), ShouldEqual, 1)
			})

			Convey("a discarded worker is killed and never parked", func() {
				handle, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)

				pool.Discard(handle)
				So(pool.IdleCount("parked"), ShouldEqual, 0)
				So(handle.Status(), ShouldEqual, TERMINATED)

				Convey("and releasing it afterwards is a no-op", func() {
					pool.Release(handle)
					So(pool.IdleCount("parked"), ShouldEqual, 0)
				})
			})

			Convey("a worker that died while parked is not handed out", func() {
				handle, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)
				pool.Release(handle)

				// Kill it behind the pool's back.
				So(handle.Terminate(), ShouldBeNil)

				fresh, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)
				So(fresh, ShouldNotEqual, handle)
				pool.Release(fresh)
			})

			Convey("unknown flavors are rejected", func() {
				_, err := pool.Acquire(ctx, "never-configured")
				So(err, ShouldNotBeNil)
			})

			Convey("drained pools refuse further acquires", func() {
				handle, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)
				pool.Release(handle)

				So(pool.DrainAndStop(), ShouldBeNil)
				So(pool.IdleCount("parked"), ShouldEqual, 0)
				So(handle.Status(), ShouldEqual, TERMINATED)

				_, err = pool.Acquire(ctx, "parked")
				So(err, ShouldNotBeNil)
			})
		})

		Convey("with fresh workers per trial", func() {
			pool, err := NewPool([]Launcher{launcher}, PoolConfig{
				FreshWorkerPerTrial: true,
				SpawnAttempts:       1,
			})
			So(err, ShouldBeNil)
			defer pool.DrainAndStop()

			Convey("a released worker is destroyed instead of parked", func() {
				handle, err := pool.Acquire(ctx, "parked")
				So(err, ShouldBeNil)

				pool.Release(handle)
				So(pool.IdleCount("parked"), ShouldEqual, 0)
				So(handle.Wait(time.Second), ShouldBeTrue)

				exitCode, err := handle.ExitCode()
				So(err, ShouldBeNil)
				So(exitCode, ShouldEqual, 0)
			})
		})

		Convey("spawning is retried once before giving up", func() {
			failing := NewLauncher(shWorker("failing", "exit 3\n"), testLauncherConfig())
			pool, err := NewPool([]Launcher{failing}, PoolConfig{
				SpawnAttempts: 2,
				SpawnBackoff:  50 * time.Millisecond,
			})
			So(err, ShouldBeNil)

			before := time.Now()
			_, err = pool.Acquire(ctx, "failing")
			So(errors.Cause(err), ShouldEqual, ErrStartup)
			So(time.Since(before), ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
		})

		Convey("duplicate flavor names are rejected at construction", func() {
			_, err := NewPool([]Launcher{launcher, launcher}, PoolConfig{})
			So(err, ShouldNotBeNil)
		})
	})
}
