package config

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultConfig(t *testing.T) {
	Convey("Given the built-in defaults", t, func() {
		cfg := DefaultConfig()

		Convey("they match the documented simulation defaults", func() {
			So(cfg.Defaults.Width, ShouldEqual, 100)
			So(cfg.Defaults.Height, ShouldEqual, 100)
			So(cfg.Defaults.Complexity, ShouldEqual, 0.67)
			So(cfg.Defaults.NumDrones, ShouldEqual, 1)
			So(cfg.Defaults.SensorRange, ShouldEqual, 3)
			So(cfg.Defaults.CommRange, ShouldEqual, 20)
			So(cfg.Defaults.MaxSteps, ShouldEqual, 500)
		})
	})
}

func TestFromYamlOverridesDefaults(t *testing.T) {
	Convey("Given a YAML file overriding num_drones and map_type", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		contents := "kind: reconsim\ndef:\n  defaults:\n    num_drones: 4\n    map_type: floorplan\n  server:\n    addr: \":9090\"\n"
		err := os.WriteFile(path, []byte(contents), 0o644)
		So(err, ShouldBeNil)

		cfg, loadErr := FromYaml(path)

		Convey("the override values are applied and other defaults survive", func() {
			So(loadErr, ShouldBeNil)
			So(cfg.Defaults.NumDrones, ShouldEqual, 4)
			So(cfg.Defaults.MapType, ShouldEqual, "floorplan")
			So(cfg.Server.Addr, ShouldEqual, ":9090")
			So(cfg.Defaults.Width, ShouldEqual, 100)
		})
	})
}
