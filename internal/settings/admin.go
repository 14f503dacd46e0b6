package settings

import (
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/touchlink/internal/httputil"
)

// AttachAdminRoutes mounts a tailsql console over the settings database and
// a JSON dump of the stored values.
func (s *SQLiteStore) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+s.path, s.db, &tailsql.DBOptions{
		Label: "TouchLink settings",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("settings-db", "persisted plugin settings", func(w http.ResponseWriter, r *http.Request) {
		all, err := s.All()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to read settings: %v", err))
			return
		}
		httputil.WriteJSONOK(w, all)
	})
	return nil
}
