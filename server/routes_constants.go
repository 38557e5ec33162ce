package server

// Route path constants
const (
	// Companion app API, bearer JWT
	RouteGetLoginToken = "/get-login-token/"
	RouteRender        = "/render/"

	// Browser pages, login token or session
	RouteLogin        = "/login/"
	RouteSettings     = "/settings/"
	RouteSettingsSave = "/settings/save/"
	RouteLogout       = "/logout/"

	RouteHealth = "/healthz"
)

// Query and form parameters
const (
	ParamDeviceID    = "device-id"
	ParamDeviceType  = "device-type"
	ParamOrientation = "orientation"

	OrientationVertical   = "vertical"
	OrientationHorizontal = "horizontal"
)
