package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-device-link/auth"
	"github.com/jrsteele09/go-device-link/devices"
	devicefakerepo "github.com/jrsteele09/go-device-link/devices/repofake"
	"github.com/jrsteele09/go-device-link/identity"
	"github.com/jrsteele09/go-device-link/identity/keys"
	"github.com/jrsteele09/go-device-link/internal/config"
	"github.com/jrsteele09/go-device-link/logintoken"
	tokenfakerepo "github.com/jrsteele09/go-device-link/logintoken/repofake"
	"github.com/jrsteele09/go-device-link/render"
	"github.com/jrsteele09/go-device-link/server"
	"github.com/jrsteele09/go-device-link/sessions"
	"github.com/stretchr/testify/require"
)

const (
	testDeveloperID = "dev-1234"
	userA           = "6f1c2d9e-4a57-4f0e-9f5e-1b2c3d4e5f60"
	userB           = "1d2c3b4a-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
	deviceA         = "0b7e8a52-9d4c-4c1f-8a6e-2f3d4c5b6a70"
	deviceB         = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"

	typeLarge = string(devices.DeviceTypeBlackAndWhite880x528)
)

type testFixture struct {
	server          *server.Server
	signer          *keys.KeyPairSigner
	placeholderHits atomic.Int32
	upstreamStatus  atomic.Int32
}

func setup(t *testing.T) *testFixture {
	t.Helper()
	t.Setenv("ENV", "DEV")
	t.Setenv("RATE_LIMITING", "off")

	f := &testFixture{}
	f.upstreamStatus.Store(http.StatusOK)

	placeholder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.placeholderHits.Add(1)
		w.WriteHeader(int(f.upstreamStatus.Load()))
		_, _ = w.Write([]byte("image:" + r.URL.Path))
	}))
	t.Cleanup(placeholder.Close)

	kp, err := keys.GenerateRSAKeyPair("app", 2048)
	require.NoError(t, err)
	f.signer = keys.NewKeyPairSigner(kp)
	verifier, err := identity.NewVerifier(kp.PublicKey, testDeveloperID)
	require.NoError(t, err)

	cfg := config.New()
	tokens := logintoken.NewManager(tokenfakerepo.NewFakeLoginTokenRepo(), cfg)
	authService, err := auth.NewService(verifier, tokens, sessions.NewInMemoryRepo(), cfg)
	require.NoError(t, err)

	f.server, err = server.New(cfg, server.Services{
		Auth:    authService,
		Tokens:  tokens,
		Devices: devices.NewAuthorizer(devicefakerepo.NewFakeDeviceRepo()),
		Renders: render.NewService(render.NewMemoryCache(), render.NewPlaceholderClient(placeholder.URL, time.Second), 30*time.Minute),
	})
	require.NoError(t, err)
	return f
}

func (f *testFixture) jwt(t *testing.T, userID string, deviceIDs ...string) string {
	t.Helper()
	raw, err := f.signer.Sign(jwtlib.MapClaims{
		"user_id":         userID,
		"user_device_ids": deviceIDs,
		"developer_id":    testDeveloperID,
		"exp":             time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	return "Bearer " + raw
}

func (f *testFixture) do(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

func (f *testFixture) loginToken(t *testing.T, bearer string) string {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, server.RouteGetLoginToken, nil)
	r.Header.Set("Authorization", bearer)
	rec := f.do(r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		LoginToken string `json:"login_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.LoginToken, 50)
	return body.LoginToken
}

func (f *testFixture) render(bearer, deviceID, deviceType string) *httptest.ResponseRecorder {
	q := url.Values{server.ParamDeviceID: {deviceID}, server.ParamDeviceType: {deviceType}}
	r := httptest.NewRequest(http.MethodGet, server.RouteRender+"?"+q.Encode(), nil)
	r.Header.Set("Authorization", bearer)
	return f.do(r)
}

// login runs the browser hand-off and returns the session cookie
func (f *testFixture) login(t *testing.T, token, deviceID string) *http.Cookie {
	t.Helper()
	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceID: {deviceID}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(t, server.RouteSettings, rec.Header().Get("Location"))

	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (f *testFixture) saveOrientation(cookie *http.Cookie, orientation string) *httptest.ResponseRecorder {
	form := url.Values{server.ParamOrientation: {orientation}}
	r := httptest.NewRequest(http.MethodPost, server.RouteSettingsSave, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return f.do(r)
}

func (f *testFixture) settings(cookie *http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, server.RouteSettings, nil)
	if cookie != nil {
		r.AddCookie(cookie)
	}
	return f.do(r)
}

func TestHealth(t *testing.T) {
	f := setup(t)
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteHealth, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetLoginToken_RequiresBearer(t *testing.T) {
	f := setup(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGetLoginToken, nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unauthorized", body["error"])
	require.Equal(t, "no authorization header: no credentials", body["error_description"])
}

func TestGetLoginToken_WrongDeveloper(t *testing.T) {
	f := setup(t)
	raw, err := f.signer.Sign(jwtlib.MapClaims{
		"user_id":      userA,
		"developer_id": "someone-else",
		"exp":          time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, server.RouteGetLoginToken, nil)
	r.Header.Set("Authorization", raw)
	require.Equal(t, http.StatusUnauthorized, f.do(r).Code)
}

func TestLoginFlow(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))
	cookie := f.login(t, token, deviceA)

	rec := f.settings(cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), deviceA)
	require.Contains(t, rec.Body.String(), `value="horizontal" checked`)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = f.saveOrientation(cookie, server.OrientationVertical)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = f.settings(cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `value="vertical" checked`)
}

func TestLogin_TokenIsSingleUse(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))
	f.login(t, token, deviceA)

	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceID: {deviceA}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_NewTokenInvalidatesOld(t *testing.T) {
	f := setup(t)
	bearer := f.jwt(t, userA, deviceA)
	first := f.loginToken(t, bearer)
	second := f.loginToken(t, bearer)

	q := url.Values{auth.LoginTokenParam: {first}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	f.login(t, second, deviceA)
}

func TestLogin_UnauthorizedDevice(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))

	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceID: {deviceB}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, rec.Result().Cookies())

	// the rejected claim did not spend the token
	f.login(t, token, deviceA)
}

func TestLogin_BadDeviceTypeKeepsToken(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))

	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceID: {deviceA}, server.ParamDeviceType: {"TYPO"}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, rec.Result().Cookies())

	cookie := f.login(t, token, deviceA)
	require.Equal(t, http.StatusOK, f.settings(cookie).Code)
}

func TestSettings_BadDeviceTypeKeepsToken(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))

	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceID: {deviceA}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteSettings+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.login(t, token, deviceA)
}

func TestLogout_RevokesPendingLoginToken(t *testing.T) {
	f := setup(t)
	bearer := f.jwt(t, userA, deviceA)
	cookie := f.login(t, f.loginToken(t, bearer), deviceA)
	pending := f.loginToken(t, bearer)

	r := httptest.NewRequest(http.MethodPost, server.RouteLogout, nil)
	r.AddCookie(cookie)
	require.Equal(t, http.StatusOK, f.do(r).Code)

	q := url.Values{auth.LoginTokenParam: {pending}, server.ParamDeviceID: {deviceA}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteLogin+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "token not found")
}

func TestSettings_LoginTokenStartsSession(t *testing.T) {
	f := setup(t)
	token := f.loginToken(t, f.jwt(t, userA, deviceA))

	q := url.Values{auth.LoginTokenParam: {token}, server.ParamDeviceType: {typeLarge}}
	rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteSettings+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, server.RouteSettings, rec.Header().Get("Location"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, http.StatusOK, f.settings(cookies[0]).Code)
}

func TestSettings_RequiresAuthentication(t *testing.T) {
	f := setup(t)

	require.Equal(t, http.StatusUnauthorized, f.settings(nil).Code)
	require.Equal(t, http.StatusUnauthorized, f.saveOrientation(nil, server.OrientationVertical).Code)
	require.Equal(t, http.StatusUnauthorized, f.settings(&http.Cookie{Name: auth.SessionCookieName, Value: "forged"}).Code)
}

func TestSettingsSave_InvalidOrientation(t *testing.T) {
	f := setup(t)
	cookie := f.login(t, f.loginToken(t, f.jwt(t, userA, deviceA)), deviceA)

	require.Equal(t, http.StatusBadRequest, f.saveOrientation(cookie, "diagonal").Code)
}

func TestLogout(t *testing.T) {
	f := setup(t)
	cookie := f.login(t, f.loginToken(t, f.jwt(t, userA, deviceA)), deviceA)

	r := httptest.NewRequest(http.MethodPost, server.RouteLogout, nil)
	r.AddCookie(cookie)
	rec := f.do(r)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Equal(t, http.StatusUnauthorized, f.settings(cookie).Code)
}

func TestRender_CachesAndFollowsOrientation(t *testing.T) {
	f := setup(t)
	bearer := f.jwt(t, userA, deviceA)

	rec := f.render(bearer, deviceA, typeLarge)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "image:/880/528/", rec.Body.String())

	rec = f.render(bearer, deviceA, typeLarge)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, f.placeholderHits.Load())

	cookie := f.login(t, f.loginToken(t, bearer), deviceA)
	require.Equal(t, http.StatusSeeOther, f.saveOrientation(cookie, server.OrientationVertical).Code)

	rec = f.render(bearer, deviceA, typeLarge)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image:/528/880/", rec.Body.String())
	require.EqualValues(t, 2, f.placeholderHits.Load())
}

func TestRender_UnsupportedDeviceType(t *testing.T) {
	f := setup(t)

	rec := f.render(f.jwt(t, userA, deviceA), deviceA, "COLOUR_SCREEN_1024X768")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.EqualValues(t, 0, f.placeholderHits.Load())
}

func TestRender_UpstreamFailure(t *testing.T) {
	f := setup(t)
	f.upstreamStatus.Store(http.StatusInternalServerError)

	rec := f.render(f.jwt(t, userA, deviceA), deviceA, typeLarge)
	require.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRender_DeviceNotInClaims(t *testing.T) {
	f := setup(t)

	rec := f.render(f.jwt(t, userA, deviceA), deviceB, typeLarge)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRender_DeviceOwnedByAnotherUser(t *testing.T) {
	f := setup(t)
	require.Equal(t, http.StatusOK, f.render(f.jwt(t, userA, deviceA), deviceA, typeLarge).Code)

	rec := f.render(f.jwt(t, userB, deviceA), deviceA, typeLarge)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRender_MethodNotAllowed(t *testing.T) {
	f := setup(t)
	rec := f.do(httptest.NewRequest(http.MethodPost, server.RouteRender, nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := setup(t)
	t.Setenv("RATE_LIMITING", "on")

	limited := false
	for i := 0; i < 50 && !limited; i++ {
		rec := f.do(httptest.NewRequest(http.MethodGet, server.RouteGetLoginToken, nil))
		limited = rec.Code == http.StatusTooManyRequests
	}
	require.True(t, limited)
}

func TestCors(t *testing.T) {
	f := setup(t)
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	r := httptest.NewRequest(http.MethodOptions, server.RouteRender, nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := f.do(r)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, server.RouteRender, nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec = f.do(r)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
