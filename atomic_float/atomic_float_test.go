package atomic_float

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAtomicAdd(t *testing.T) {
	Convey("When AtomicAdd is called", t, func() {
		Convey("When multiple writers add to the float value concurrently", func() {
			af := NewAtomicFloat64(0.0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters)
			adder := func() {
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(1.0) {
					}
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go adder()
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(numOps*numWriters))
		})

		Convey("When multiple writers increment and decrement the float value concurrently", func() {
			af := NewAtomicFloat64(0.0)
			numOps := 3000
			numWriters := 200

			start := make(chan struct{})
			wg := sync.WaitGroup{}
			wg.Add(numWriters * 2)
			incrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(1.0) {
					}
				}
				wg.Done()
			}
			decrementer := func() {
				<-start
				for i := 0; i < numOps; i++ {
					for succeeded := false; !succeeded; _, succeeded = af.AtomicAdd(-1.0) {
					}
				}
				wg.Done()
			}

			for i := 0; i < numWriters; i++ {
				go incrementer()
				go decrementer()
			}

			time.Sleep(time.Millisecond * 10)
			close(start)
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, float64(0.0))
		})
	})
}

func TestAtomicSet(t *testing.T) {
	Convey("Given a fresh AtomicFloat64", t, func() {
		af := NewAtomicFloat64(1.5)

		Convey("AtomicSet overwrites the value and reports success", func() {
			ok := af.AtomicSet(9.5)
			So(ok, ShouldBeTrue)
			So(af.AtomicRead(), ShouldEqual, 9.5)
		})
	})
}

func TestAtomicMax(t *testing.T) {
	Convey("Given an AtomicFloat64 starting at 0.5", t, func() {
		af := NewAtomicFloat64(0.5)

		Convey("AtomicMax raises the value when candidate is larger", func() {
			af.AtomicMax(0.9)
			So(af.AtomicRead(), ShouldEqual, 0.9)
		})

		Convey("AtomicMax leaves the value untouched when candidate is smaller", func() {
			af.AtomicMax(0.9)
			af.AtomicMax(0.3)
			So(af.AtomicRead(), ShouldEqual, 0.9)
		})

		Convey("concurrent writers racing to report their coverage converge on the true max", func() {
			candidates := []float64{0.1, 0.77, 0.42, 0.95, 0.6, 0.88}
			wg := sync.WaitGroup{}
			wg.Add(len(candidates))
			for _, c := range candidates {
				c := c
				go func() {
					defer wg.Done()
					af.AtomicMax(c)
				}()
			}
			wg.Wait()
			So(af.AtomicRead(), ShouldEqual, 0.95)
		})
	})
}
