package api

import "github.com/neurotunes/neurotunes-server/internal/service"

// Services groups the services used by handlers.
type Services struct {
	Patients        *service.PatientService
	Recommendations *service.RecommendationService
	Catalog         *service.CatalogService
	Activity        *service.ActivityService
}
