package api

type configRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
	Ext      string `json:"ext"      validate:"max=1024"`
}

type locationRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lon *float64 `json:"lon" validate:"required"`
}

type scheduleRequest struct {
	Interval string `json:"interval" validate:"required"`
}

type statusResponse struct {
	Endpoint          string `json:"endpoint"`
	Ext               string `json:"ext"`
	Scheduled         bool   `json:"scheduled"`
	Interval          string `json:"interval,omitempty"`
	LocationAvailable bool   `json:"location_available"`
	PendingRequests   int    `json:"pending_requests"`
}

type acceptedResponse struct {
	Message string `json:"message"`
}
