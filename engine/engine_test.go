package engine

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"reconsim/policy"
	"reconsim/worldmap"
)

func baseConfig() Config {
	return Config{
		Width: 20, Height: 20, MapType: worldmap.Random, Complexity: 0.2,
		NumDrones: 1, NumTargets: 1, PolicyName: "frontier", Seed: 42,
	}
}

func TestRunDeterministic(t *testing.T) {
	Convey("Given the same config run twice", t, func() {
		reg := policy.NewRegistry()
		cfg := baseConfig()

		r1, err1 := Run(cfg, reg)
		r2, err2 := Run(cfg, reg)

		Convey("both runs succeed identically", func() {
			So(err1, ShouldBeNil)
			So(err2, ShouldBeNil)
			So(r1.Metrics.Steps, ShouldEqual, r2.Metrics.Steps)
			So(r1.Metrics.Success, ShouldEqual, r2.Metrics.Success)
			So(r1.Metrics.TotalDistance, ShouldEqual, r2.Metrics.TotalDistance)
		})
	})
}

func TestRunTerminatesWithValidOutcome(t *testing.T) {
	Convey("Given a small map with frontier exploration", t, func() {
		reg := policy.NewRegistry()
		cfg := baseConfig()
		cfg.Seed = 7

		result, err := Run(cfg, reg)

		Convey("the simulation terminates within max steps with a valid outcome", func() {
			So(err, ShouldBeNil)
			So(result.Metrics.Steps, ShouldBeLessThanOrEqualTo, cfg.maxSteps())
			So(result.Metrics.Outcome, ShouldBeIn, []Outcome{Success, MaxStepsReached, AllAgentsDead, NoFrontiersLeft})
		})

		Convey("coverage and connectivity ratios are valid fractions", func() {
			So(result.Metrics.Coverage, ShouldBeBetween, 0, 1.0001)
			So(result.Metrics.ConnectivityRatio, ShouldBeBetween, 0, 1.0001)
		})
	})
}

func TestRunUnknownPolicy(t *testing.T) {
	Convey("Given a policy name that isn't registered", t, func() {
		reg := policy.NewRegistry()
		cfg := baseConfig()
		cfg.PolicyName = "not_a_policy"

		_, err := Run(cfg, reg)

		Convey("Run reports ErrUnknownPolicy", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestMaxStepsScaling(t *testing.T) {
	Convey("Given an increasing drone count", t, func() {
		Convey("max steps scales linearly up to the hard cap", func() {
			c1 := Config{NumDrones: 1}
			c6 := Config{NumDrones: 6}
			c20 := Config{NumDrones: 20}
			So(c1.maxSteps(), ShouldEqual, 500)
			So(c6.maxSteps(), ShouldEqual, 3000)
			So(c20.maxSteps(), ShouldEqual, hardMaxStepsCap)
		})
	})
}

func TestSwarmMultiDroneRuns(t *testing.T) {
	Convey("Given three swarm drones on a larger map", t, func() {
		reg := policy.NewRegistry()
		cfg := baseConfig()
		cfg.Width, cfg.Height = 30, 30
		cfg.NumDrones = 3
		cfg.PolicyName = "swarm"
		cfg.Seed = 99

		result, err := Run(cfg, reg)

		Convey("the run completes without error", func() {
			So(err, ShouldBeNil)
			So(result.Metrics.Steps, ShouldBeGreaterThan, 0)
		})
	})
}
