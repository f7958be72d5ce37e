package inflight_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/vctrank/internal/domain/inflight"
)

func TestTracker(t *testing.T) {
	Convey("Given a new Tracker", t, func() {
		ctx := context.Background()
		at := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
		tr := inflight.New(inflight.WithClock(func() time.Time { return at }))

		Convey("When a key is recorded", func() {
			since, seen := tr.SeenAndRecord(ctx, "2024")

			Convey("Then it is new and remembers when", func() {
				So(seen, ShouldBeFalse)
				So(since, ShouldEqual, at)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("And recorded again", func() {
				again, seen := tr.SeenAndRecord(ctx, "2024")
				So(seen, ShouldBeTrue)
				So(again, ShouldEqual, at)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("And released", func() {
				tr.Unrecord(ctx, "2024")
				tr.Unrecord(ctx, "2024")

				Convey("Then it can be recorded again", func() {
					So(tr.Size(), ShouldEqual, 0)
					_, seen := tr.SeenAndRecord(ctx, "2024")
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When a limit is set", func() {
			tr := inflight.New(inflight.WithLimit(2))
			_, seen := tr.SeenAndRecord(ctx, "all")
			So(seen, ShouldBeFalse)
			_, seen = tr.SeenAndRecord(ctx, "2023")
			So(seen, ShouldBeFalse)

			Convey("Then new keys are refused once full", func() {
				since, seen := tr.SeenAndRecord(ctx, "2024")
				So(seen, ShouldBeTrue)
				So(since.IsZero(), ShouldBeTrue)
			})

			Convey("Then keys already in flight still report their time", func() {
				since, seen := tr.SeenAndRecord(ctx, "all")
				So(seen, ShouldBeTrue)
				So(since.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When many goroutines race on the same keys", func() {
			var (
				wg    sync.WaitGroup
				mu    sync.Mutex
				fresh int
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, seen := tr.SeenAndRecord(ctx, fmt.Sprintf("key-%d", i%5)); !seen {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}(i)
			}
			wg.Wait()

			Convey("Then each key is recorded exactly once", func() {
				So(fresh, ShouldEqual, 5)
				So(tr.Size(), ShouldEqual, 5)
			})
		})

		Convey("When a key is released while others record it", func() {
			var (
				wg     sync.WaitGroup
				mu     sync.Mutex
				zeroed int
			)
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 200; j++ {
						since, seen := tr.SeenAndRecord(ctx, "all")
						if seen && since.IsZero() {
							mu.Lock()
							zeroed++
							mu.Unlock()
						}
						if !seen {
							tr.Unrecord(ctx, "all")
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then a duplicate always carries the recorded time", func() {
				So(zeroed, ShouldEqual, 0)
				So(tr.Size(), ShouldEqual, 0)
			})
		})
	})
}
