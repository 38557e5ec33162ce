package auth

// Strategy names one way of identifying the caller
type Strategy string

const (
	Bearer     Strategy = "bearer"
	LoginToken Strategy = "login_token"
	Session    Strategy = "session"
)

// Identity is the caller resolved by one of the strategies. AuthorizedDevices
// is the capability set the device claim check runs against, whichever
// credential it came from.
type Identity struct {
	UserID            string
	DeviceID          string
	AuthorizedDevices []string
	Source            Strategy
}

// ResolveDeviceID picks the device a request is about: the explicitly
// requested id, else the identity's own device, else the only authorized one.
func (i *Identity) ResolveDeviceID(requested string) string {
	if requested != "" {
		return requested
	}
	if i.DeviceID != "" {
		return i.DeviceID
	}
	if len(i.AuthorizedDevices) == 1 {
		return i.AuthorizedDevices[0]
	}
	return ""
}
