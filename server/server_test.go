package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"reconsim/config"
)

func testServer() *Server {
	return New(":0", config.DefaultConfig().Defaults, NewMemoryStore())
}

func TestHandlePolicies(t *testing.T) {
	Convey("Given a fresh server", t, func() {
		s := testServer()
		req := httptest.NewRequest(http.MethodGet, "/api/policies", nil)
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		Convey("it lists the four standard policies", func() {
			So(rec.Code, ShouldEqual, http.StatusOK)
			var body map[string][]string
			So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
			So(body["policies"], ShouldContain, "frontier")
			So(body["policies"], ShouldContain, "swarm")
		})
	})
}

func TestHandleSimulate(t *testing.T) {
	Convey("Given a simulate request for a small random map", t, func() {
		s := testServer()
		payload := map[string]interface{}{
			"width": 16, "height": 16, "complexity": 0.15,
			"num_drones": 1, "num_targets": 1, "policy": "frontier", "seed": 1,
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		Convey("it runs the simulation and returns a folder name", func() {
			So(rec.Code, ShouldEqual, http.StatusOK)
			var out map[string]interface{}
			So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
			So(out["folder"], ShouldNotBeEmpty)
		})

		Convey("the run is retrievable from history", func() {
			listReq := httptest.NewRequest(http.MethodGet, "/api/history", nil)
			listRec := httptest.NewRecorder()
			s.router.ServeHTTP(listRec, listReq)

			var list map[string][]string
			So(json.Unmarshal(listRec.Body.Bytes(), &list), ShouldBeNil)
			So(len(list["runs"]), ShouldEqual, 1)
		})
	})
}

func TestHandleSimulateUnknownPolicy(t *testing.T) {
	Convey("Given a simulate request naming an unregistered policy", t, func() {
		s := testServer()
		payload := map[string]interface{}{"width": 10, "height": 10, "policy": "nope"}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		Convey("the server rejects it as a bad request instead of creating a job", func() {
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleSimulateOutOfRangeCounts(t *testing.T) {
	Convey("Given a simulate request with num_drones over the allowed bound", t, func() {
		s := testServer()
		payload := map[string]interface{}{
			"width": 20, "height": 20, "num_drones": 11, "policy": "frontier",
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		Convey("the server rejects it as a bad request", func() {
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHandleBenchmarkAndPoll(t *testing.T) {
	Convey("Given a benchmark request", t, func() {
		s := testServer()
		payload := map[string]interface{}{
			"width": 14, "height": 14, "complexity": 0.1,
			"policy": "random", "num_runs": 2, "base_seed": 3,
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/benchmark", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		s.router.ServeHTTP(rec, req)

		Convey("a job is accepted and eventually completes", func() {
			So(rec.Code, ShouldEqual, http.StatusAccepted)
			var out map[string]string
			So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
			jobID := out["job_id"]
			So(jobID, ShouldNotBeEmpty)

			deadline := time.Now().Add(5 * time.Second)
			var status string
			for time.Now().Before(deadline) {
				pollReq := httptest.NewRequest(http.MethodGet, "/api/job/"+jobID, nil)
				pollRec := httptest.NewRecorder()
				s.router.ServeHTTP(pollRec, pollReq)

				var snap map[string]interface{}
				json.Unmarshal(pollRec.Body.Bytes(), &snap)
				status = snap["status"].(string)
				if status == "completed" || status == "failed" {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(status, ShouldEqual, "completed")
		})
	})
}
