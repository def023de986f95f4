package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/zonegraph/models"
	"github.com/golang/geo/r3"
	"github.com/segmentio/encoding/json"
)

const debugTimeout = time.Second * 5

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func HandleReadyCheck(readinessCheck func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !readinessCheck() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func HandleVersion(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(version))
	}
}

func HandleWithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// HandleDebugZones writes a JSON dump of the scene grid and zone registry.
func HandleDebugZones(scene *models.Scene) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), debugTimeout)
		defer cancel()

		var info models.SceneDebugInfo
		err := scene.Do(ctx, func() error {
			info = scene.DebugInfo()
			return nil
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeJSON(w, info)
	}
}

// HandleDebugRender writes the render passes seen from the camera given by
// the x, y and z query parameters.
func HandleDebugRender(scene *models.Scene, visibleDistance float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera, err := parseVector(r, "x", "y", "z")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		distance := visibleDistance
		if v := r.URL.Query().Get("distance"); v != "" {
			if distance, err = strconv.ParseFloat(v, 64); err != nil || distance <= 0 {
				writeError(w, http.StatusBadRequest, errors.New("invalid distance").
					WithTag("distance", v))
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), debugTimeout)
		defer cancel()

		var passes []models.RenderPass
		err = scene.Do(ctx, func() error {
			var err error
			passes, err = scene.RenderPlan(camera, distance)
			return err
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, passes)
	}
}

func parseVector(r *http.Request, keys ...string) (r3.Vector, error) {
	var values [3]float64
	for i, k := range keys {
		v, err := strconv.ParseFloat(r.URL.Query().Get(k), 64)
		if err != nil {
			return r3.Vector{}, errors.New("invalid coordinate").
				WithTag("key", k).
				Wrap(err)
		}
		values[i] = v
	}
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logs.Warn(errors.New("writing debug response failed").Wrap(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{
		Error: err.Error(),
	})
}
