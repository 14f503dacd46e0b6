package hostsim

import (
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/touchlink/internal/adapter"
	"github.com/banshee-data/touchlink/internal/httputil"
	"github.com/banshee-data/touchlink/internal/joints"
	"github.com/banshee-data/touchlink/internal/settings"
	"github.com/banshee-data/touchlink/internal/version"
)

type jointsResponse struct {
	SnapshotID string        `json:"snapshot_id"`
	Generation uint64        `json:"generation"`
	Joints     []joints.View `json:"joints"`
}

type statusResponse struct {
	Version         string            `json:"version"`
	Loaded          bool              `json:"loaded"`
	Initialized     bool              `json:"initialized"`
	StatusCode      int32             `json:"status_code"`
	State           string            `json:"state"`
	StatusText      string            `json:"status_text"`
	SettingsEnabled bool              `json:"settings_enabled"`
	Settings        settings.Settings `json:"settings"`
	Stats           adapter.Stats     `json:"stats"`
	StatusRefreshes uint64            `json:"status_refreshes"`
}

// AttachAdminRoutes registers the device debug routes on mux.
func (l *Loop) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("joints", "current joint snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap := l.device.TrackedJoints().Snapshot()
		httputil.WriteJSONOK(w, jointsResponse{
			SnapshotID: snap.ID,
			Generation: snap.Generation,
			Joints:     snap.Views(),
		})
	})

	debug.HandleFunc("joints-chart", "top-down chart of the joints", l.handleJointChart)

	debug.HandleFunc("joints-trace.png", "joint height over recent frames", l.handleTrace)

	debug.HandleFunc("status", "device status and counters", func(w http.ResponseWriter, r *http.Request) {
		st := l.device.Status()
		httputil.WriteJSONOK(w, statusResponse{
			Version:         version.String(),
			Loaded:          l.device.Loaded(),
			Initialized:     l.device.IsInitialized(),
			StatusCode:      l.device.DeviceStatus(),
			State:           st.State.String(),
			StatusText:      l.device.DeviceStatusString(),
			SettingsEnabled: l.device.IsSettingsDaemonSupported(),
			Settings:        l.device.Settings(),
			Stats:           l.device.Stats(),
			StatusRefreshes: l.host.Refreshes(),
		})
	})

	debug.HandleSilentFunc("resync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		l.RequestResync()
		w.WriteHeader(http.StatusAccepted)
	})

	// Form fields prediction_ms, keep_alive and reduce_resolution; any
	// subset may be given.
	debug.HandleSilentFunc("settings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "invalid form")
			return
		}

		if v := r.PostForm.Get("prediction_ms"); v != "" {
			ms, err := strconv.ParseFloat(v, 64)
			if err != nil {
				httputil.BadRequest(w, "invalid prediction_ms")
				return
			}
			l.device.SetPredictionMs(ms)
		}
		for _, f := range []struct {
			key string
			set func(bool)
		}{
			{"keep_alive", l.device.SetKeepAlive},
			{"reduce_resolution", l.device.SetReduceResolution},
		} {
			v := r.PostForm.Get(f.key)
			if v == "" {
				continue
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				httputil.BadRequest(w, "invalid "+f.key)
				return
			}
			f.set(b)
		}
		httputil.WriteJSONOK(w, l.device.Settings())
	})
}
