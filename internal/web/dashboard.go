package web

import (
	"log/slog"
	"net/http"

	"github.com/maraudr/console/internal/chart"
	"github.com/maraudr/console/internal/console"
	"github.com/maraudr/console/internal/model"
)

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	ov, err := sess.Overview(r.Context())
	data := s.page(r, "Dashboard")
	if err != nil {
		slog.Error("failed to load dashboard", "session", sess.ID, "error", err)
		data.Error = notice(err).Message
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Overview console.Overview
	}{
		PageData: data,
		Overview: ov,
	})
}

// ChartModeSubmit handles POST /chart/mode.
func (s *Server) ChartModeSubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	if err := sess.SetChartMode(r.Context(), chart.ParseMode(r.FormValue("mode"))); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ChartCategorySubmit handles POST /chart/category. An empty or unknown
// value selects all categories.
func (s *Server) ChartCategorySubmit(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())

	var only *model.Category
	if c, ok := model.ParseCategory(r.FormValue("category")); ok && c.Known() && c != model.CategoryUnknown {
		only = &c
	}
	sess.SetChartCategory(only)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ChartItemToggle handles POST /chart/items/{id}.
func (s *Server) ChartItemToggle(w http.ResponseWriter, r *http.Request) {
	sess := console.FromContext(r.Context())
	if err := sess.ToggleChartItem(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
