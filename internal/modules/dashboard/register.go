package dashboard

import (
	"net/http"

	"riverdash/internal/modules/dashboard/controller"
)

// Deps is everything the dashboard routes read from or act on.
type Deps = controller.Deps

func RegisterFeature(mux *http.ServeMux, deps Deps) {
	dashboardController := controller.NewDashboardController(deps)
	dashboardController.RegisterRoutes(mux)
}
