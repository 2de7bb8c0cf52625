package scheduler

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"reconsim/engine"
	"reconsim/policy"
	"reconsim/worldmap"
)

func template() engine.Config {
	return engine.Config{
		Width: 16, Height: 16, MapType: worldmap.Random, Complexity: 0.15,
		NumDrones: 1, NumTargets: 1, PolicyName: "frontier",
	}
}

func waitForJob(j *Job, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s := j.StatusValue(); s == Completed || s == Failed {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmitBenchmark(t *testing.T) {
	Convey("Given a benchmark request over 6 runs", t, func() {
		reg := NewRegistry()
		polReg := policy.NewRegistry()

		job := reg.SubmitBenchmark(context.Background(), polReg, BenchmarkRequest{
			Template: template(), NumRuns: 6, BaseSeed: 100,
		})
		waitForJob(job, 5*time.Second)

		Convey("the job completes and its progress reaches the total", func() {
			So(job.StatusValue(), ShouldEqual, Completed)
			done, total := job.Progress()
			So(done, ShouldEqual, 6)
			So(total, ShouldEqual, 6)
		})

		Convey("the aggregate reports one run per seed", func() {
			result, err := job.Result()
			So(err, ShouldBeNil)
			agg, ok := result.(*Aggregate)
			So(ok, ShouldBeTrue)
			So(agg.NumRuns, ShouldEqual, 6)
			So(len(agg.Runs), ShouldEqual, 6)
		})
	})
}

func TestSubmitCompareSharesSeeds(t *testing.T) {
	Convey("Given a compare request over two policies", t, func() {
		reg := NewRegistry()
		polReg := policy.NewRegistry()

		job := reg.SubmitCompare(context.Background(), polReg, CompareRequest{
			Template: template(), PolicyNames: []string{"frontier", "random"}, NumRuns: 3, BaseSeed: 5,
		})
		waitForJob(job, 5*time.Second)

		Convey("both policies get their own aggregate with matching seed sets", func() {
			result, err := job.Result()
			So(err, ShouldBeNil)
			cmp, ok := result.(CompareResult)
			So(ok, ShouldBeTrue)
			So(cmp, ShouldContainKey, "frontier")
			So(cmp, ShouldContainKey, "random")

			frontierSeeds := map[int64]bool{}
			for _, r := range cmp["frontier"].Runs {
				frontierSeeds[r.Seed] = true
			}
			for _, r := range cmp["random"].Runs {
				So(frontierSeeds, ShouldContainKey, r.Seed)
			}
		})
	})
}

func TestRegistryGetUnknown(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		reg := NewRegistry()

		Convey("Get reports false for any ID", func() {
			_, ok := reg.Get("nope")
			So(ok, ShouldBeFalse)
		})
	})
}
