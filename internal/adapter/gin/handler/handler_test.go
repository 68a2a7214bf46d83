package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"newspaper/internal/adapter/gin/middleware"
	"newspaper/internal/adapter/gin/templates"
	"newspaper/internal/adapter/gin/urls"
	domain "newspaper/internal/domain/user"
	"newspaper/internal/metrics"
	"newspaper/internal/usecase/auth"
	"newspaper/internal/usecase/user"
	apperrors "newspaper/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockUserUsecase struct {
	mock.Mock
}

func (m *MockUserUsecase) CreateUser(ctx context.Context, in user.CreateUserRequest) (*user.CreateUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.CreateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) CreateSuperuser(ctx context.Context, in user.CreateUserRequest) (*user.CreateUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.CreateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) Register(ctx context.Context, in user.RegisterRequest) (*user.CreateUserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.CreateUserResponse), args.Error(1)
}

func (m *MockUserUsecase) GetUser(ctx context.Context, in user.GetUserRequest) (*user.UserResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.UserResponse), args.Error(1)
}

func (m *MockUserUsecase) GetUserByUsername(ctx context.Context, username string) (*user.UserResponse, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.UserResponse), args.Error(1)
}

func (m *MockUserUsecase) ListUsers(ctx context.Context, in user.ListUsersRequest) (*user.ListUsersResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.ListUsersResponse), args.Error(1)
}

func (m *MockUserUsecase) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuthUsecase struct {
	mock.Mock
}

func (m *MockAuthUsecase) Login(ctx context.Context, in auth.LoginRequest) (*auth.LoginResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginResponse), args.Error(1)
}

func (m *MockAuthUsecase) Authenticate(ctx context.Context, key string) (*domain.User, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthUsecase) Logout(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockAuthUsecase) ChangePassword(ctx context.Context, in auth.ChangePasswordRequest) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockAuthUsecase) RequestPasswordReset(ctx context.Context, in auth.PasswordResetRequest) error {
	return m.Called(ctx, in).Error(0)
}

func (m *MockAuthUsecase) CheckResetToken(ctx context.Context, uidb64, token string) (*domain.User, error) {
	args := m.Called(ctx, uidb64, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockAuthUsecase) ConfirmPasswordReset(ctx context.Context, in auth.ConfirmPasswordResetRequest) error {
	return m.Called(ctx, in).Error(0)
}

var testCookie = middleware.SessionCookie{Name: "sessionid", MaxAge: 3600}

type testServer struct {
	engine    *gin.Engine
	users     *MockUserUsecase
	auth      *MockAuthUsecase
	templates []string
}

func newTestServer(t *testing.T) *testServer {
	renderer, err := templates.New()
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	ts := &testServer{users: new(MockUserUsecase), auth: new(MockAuthUsecase)}
	renderer.Subscribe(func(name string, _ any) { ts.templates = append(ts.templates, name) })

	signup := NewSignupHandler(ts.users, metrics.Nop{}, log)
	authH := NewAuthHandler(ts.auth, testCookie, "/", "https://news.example", metrics.Nop{}, log)
	admin := NewAdminHandler(ts.users, log)

	r := gin.New()
	r.HTMLRender = renderer
	r.Use(middleware.Session(ts.auth, testCookie, log))
	r.GET("/", Home)
	r.GET("/users/signup/", signup.Show)
	r.POST("/users/signup/", signup.Submit)
	r.GET("/users/login/", authH.LoginPage)
	r.POST("/users/login/", authH.Login)
	r.POST("/users/logout/", authH.Logout)
	r.POST("/users/password_change/", authH.PasswordChange)
	r.POST("/users/password_reset/", authH.PasswordReset)
	r.GET("/users/reset/:uidb64/:token/", authH.PasswordResetConfirmPage)
	r.POST("/users/reset/:uidb64/:token/", authH.PasswordResetConfirm)
	r.GET("/admin/", admin.Index)
	r.GET("/admin/login/", authH.AdminLoginPage)
	r.POST("/admin/login/", authH.AdminLogin)
	r.POST("/admin/logout/", authH.AdminLogout)
	r.GET("/admin/users/", admin.Users)
	r.GET("/admin/users/:id/", admin.UserDetail)
	ts.engine = r
	return ts
}

func (ts *testServer) do(method, path string, form url.Values, sessionKey string) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sessionKey != "" {
		req.AddCookie(&http.Cookie{Name: testCookie.Name, Value: sessionKey})
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func TestHome(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"home.html"}, ts.templates)
}

func TestSignup_Show(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, urls.MustReverse(urls.Signup), nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"signup.html"}, ts.templates)
}

func TestSignup_Submit(t *testing.T) {
	ts := newTestServer(t)
	want := user.RegisterRequest{Username: "new_user", Email: "newuser@email.com", Password1: "correct-horse-42", Password2: "correct-horse-42"}
	ts.users.On("Register", mock.Anything, want).Return(&user.CreateUserResponse{ID: 1}, nil)

	w := ts.do(http.MethodPost, "/users/signup/", url.Values{
		"username": {"new_user"}, "email": {"newuser@email.com"},
		"password1": {"correct-horse-42"}, "password2": {"correct-horse-42"},
	}, "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/login/", w.Header().Get("Location"))
	ts.users.AssertExpectations(t)
}

func TestSignup_SubmitInvalid(t *testing.T) {
	ts := newTestServer(t)
	fe := apperrors.FieldErrors{}
	fe.Add("password2", "The two password fields didn't match.")
	ts.users.On("Register", mock.Anything, mock.Anything).Return(nil, fe)

	w := ts.do(http.MethodPost, "/users/signup/", url.Values{"username": {"new_user"}}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"signup.html"}, ts.templates)
	assert.Contains(t, w.Body.String(), "The two password fields didn&#39;t match.")
	assert.Contains(t, w.Body.String(), `value="new_user"`)
}

func TestSignup_SubmitInternalError(t *testing.T) {
	ts := newTestServer(t)
	ts.users.On("Register", mock.Anything, mock.Anything).Return(nil, apperrors.NewInternalError("boom", errors.New("db")))

	w := ts.do(http.MethodPost, "/users/signup/", url.Values{"username": {"new_user"}}, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		next     string
		location string
	}{
		{"default", "", "/"},
		{"local next", "/users/password_change/", "/users/password_change/"},
		{"external next", "https://evil.example/", "/"},
		{"protocol relative next", "//evil.example/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.auth.On("Login", mock.Anything, auth.LoginRequest{Username: "new_user", Password: "pw"}).
				Return(&auth.LoginResponse{SessionKey: "key-1", UserID: 1}, nil)

			w := ts.do(http.MethodPost, "/users/login/", url.Values{
				"username": {"new_user"}, "password": {"pw"}, "next": {tt.next},
			}, "")

			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "key-1", cookies[0].Value)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Login", mock.Anything, mock.Anything).Return(nil, apperrors.ErrInvalidCredentials)

	w := ts.do(http.MethodPost, "/users/login/", url.Values{"username": {"new_user"}, "password": {"bad"}}, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"registration/login.html"}, ts.templates)
	assert.Contains(t, w.Body.String(), "Please enter a correct username and password.")
	assert.Empty(t, w.Result().Cookies())
}

func TestLoginPage_KeepsNext(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/users/login/?next=/users/password_change/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="next" value="/users/password_change/"`)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Authenticate", mock.Anything, "key-1").Return(&domain.User{ID: 1, Username: "new_user", IsActive: true}, nil)
	ts.auth.On("Logout", mock.Anything, "key-1").Return(nil)

	w := ts.do(http.MethodPost, "/users/logout/", url.Values{}, "key-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"registration/logged_out.html"}, ts.templates)
	assert.NotContains(t, w.Body.String(), "Hi new_user!")
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, -1, w.Result().Cookies()[0].MaxAge)
	ts.auth.AssertExpectations(t)
}

func TestPasswordChange(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Authenticate", mock.Anything, "key-1").Return(&domain.User{ID: 1, IsActive: true}, nil)
	ts.auth.On("ChangePassword", mock.Anything, auth.ChangePasswordRequest{
		SessionKey: "key-1", OldPassword: "old", NewPassword1: "new-pass-123", NewPassword2: "new-pass-123",
	}).Return(nil)

	w := ts.do(http.MethodPost, "/users/password_change/", url.Values{
		"old_password": {"old"}, "new_password1": {"new-pass-123"}, "new_password2": {"new-pass-123"},
	}, "key-1")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/password_change/done/", w.Header().Get("Location"))
}

func TestPasswordReset_BuildsAbsoluteLink(t *testing.T) {
	ts := newTestServer(t)
	var link string
	ts.auth.On("RequestPasswordReset", mock.Anything, mock.MatchedBy(func(in auth.PasswordResetRequest) bool {
		link = in.LinkFor("NDI", "tok")
		return in.Email == "newuser@email.com"
	})).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/users/password_reset/", strings.NewReader("email=newuser%40email.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", "http")
	req.Host = "attacker.example"
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/password_reset/done/", w.Header().Get("Location"))
	assert.Equal(t, "https://news.example/users/reset/NDI/tok/", link)
}

func TestPasswordResetConfirm(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("CheckResetToken", mock.Anything, "NDI", "good").Return(&domain.User{ID: 42}, nil)
	ts.auth.On("CheckResetToken", mock.Anything, "NDI", "bad").Return(nil, auth.ErrInvalidResetLink)
	ts.auth.On("ConfirmPasswordReset", mock.Anything, mock.MatchedBy(func(in auth.ConfirmPasswordResetRequest) bool {
		return in.Token == "good"
	})).Return(nil)
	ts.auth.On("ConfirmPasswordReset", mock.Anything, mock.MatchedBy(func(in auth.ConfirmPasswordResetRequest) bool {
		return in.Token == "bad"
	})).Return(auth.ErrInvalidResetLink)

	w := ts.do(http.MethodGet, "/users/reset/NDI/good/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Enter new password")

	w = ts.do(http.MethodGet, "/users/reset/NDI/bad/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password reset unsuccessful")

	form := url.Values{"new_password1": {"battery-staple-77"}, "new_password2": {"battery-staple-77"}}
	w = ts.do(http.MethodPost, "/users/reset/NDI/good/", form, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/users/reset/done/", w.Header().Get("Location"))

	w = ts.do(http.MethodPost, "/users/reset/NDI/bad/", form, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password reset unsuccessful")
}

func TestAdminLogin_RejectsNonStaff(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Authenticate", mock.Anything, "key-1").Return(&domain.User{ID: 2, Username: "reader", IsActive: true}, nil)
	ts.auth.On("Login", mock.Anything, auth.LoginRequest{
		Username: "reader", Password: "pw", PreviousSession: "key-1", StaffOnly: true,
	}).Return(nil, apperrors.ErrInvalidCredentials)

	w := ts.do(http.MethodPost, "/admin/login/", url.Values{"username": {"reader"}, "password": {"pw"}}, "key-1")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"admin/login.html"}, ts.templates)
	assert.Contains(t, w.Body.String(), "staff account")
	assert.Empty(t, w.Result().Cookies())
	ts.auth.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	ts.auth.AssertExpectations(t)
}

func TestAdminLogin_Staff(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Login", mock.Anything, auth.LoginRequest{
		Username: "superadmin", Password: "pw", StaffOnly: true,
	}).Return(&auth.LoginResponse{SessionKey: "key-3", UserID: 1}, nil)

	w := ts.do(http.MethodPost, "/admin/login/", url.Values{
		"username": {"superadmin"}, "password": {"pw"}, "next": {"/admin/"},
	}, "")

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/", w.Header().Get("Location"))
	ts.auth.AssertExpectations(t)
}

func TestAdminLogout(t *testing.T) {
	ts := newTestServer(t)
	ts.auth.On("Logout", mock.Anything, "").Return(nil)

	w := ts.do(http.MethodPost, "/admin/logout/", url.Values{}, "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/admin/login/", w.Header().Get("Location"))
}

func TestAdminIndexAndUsers(t *testing.T) {
	ts := newTestServer(t)
	ts.users.On("CountUsers", mock.Anything).Return(int64(2), nil)
	ts.users.On("ListUsers", mock.Anything, user.ListUsersRequest{Query: "new", Page: 2}).Return(&user.ListUsersResponse{
		Users:      []user.UserResponse{{ID: 1, Username: "new_user", Email: "newuser@email.com", IsActive: true}},
		Pagination: &user.Pagination{Total: 26, Page: 2, Limit: 25, TotalPages: 2},
	}, nil)
	ts.users.On("ListUsers", mock.Anything, user.ListUsersRequest{Query: "drop table", Page: 1}).
		Return(nil, apperrors.NewValidationError("q", "search query contains invalid characters or patterns"))

	w := ts.do(http.MethodGet, "/admin/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<td>2</td>")

	w = ts.do(http.MethodGet, "/admin/users/?q=new&page=2", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "newuser@email.com")
	assert.Contains(t, w.Body.String(), "Page 2 of 2")
	assert.Contains(t, w.Body.String(), ">previous</a>")
	assert.NotContains(t, w.Body.String(), ">next</a>")

	w = ts.do(http.MethodGet, "/admin/users/?q=drop+table", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalid characters")

	assert.Equal(t, []string{"admin/index.html", "admin/user_list.html", "admin/user_list.html"}, ts.templates)
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/a/", safeRedirect("/a/", "/"))
	assert.Equal(t, "/", safeRedirect("", "/"))
	assert.Equal(t, "/", safeRedirect("//evil.example", "/"))
	assert.Equal(t, "/", safeRedirect("/\\evil.example", "/"))
	assert.Equal(t, "/", safeRedirect("http://evil.example/", "/"))
	assert.Equal(t, "/", safeRedirect("relative", "/"))
}

func TestHealth(t *testing.T) {
	r := gin.New()
	ok := NewHealthHandler("newspaper", map[string]HealthCheck{"db": func(context.Context) error { return nil }})
	bad := NewHealthHandler("newspaper", map[string]HealthCheck{"redis": func(context.Context) error { return errors.New("down") }})
	r.GET("/ok", ok.Health)
	r.GET("/bad", bad.Health)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"newspaper","dependencies":{"db":"ok"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"down"`)
}

func TestAdminUserDetail(t *testing.T) {
	ts := newTestServer(t)
	joined := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ts.users.On("GetUser", mock.Anything, user.GetUserRequest{ID: 7}).Return(&user.UserResponse{
		ID: 7, Username: "new_user", Email: "newuser@email.com", IsActive: true, DateJoined: joined,
	}, nil)
	ts.users.On("GetUser", mock.Anything, user.GetUserRequest{ID: 8}).
		Return(nil, apperrors.NewNotFoundError("user", "user not found"))

	w := ts.do(http.MethodGet, "/admin/users/7/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"admin/user_detail.html"}, ts.templates)
	assert.Contains(t, w.Body.String(), "newuser@email.com")
	assert.Contains(t, w.Body.String(), "2024-05-01 12:00")
	assert.Contains(t, w.Body.String(), "never")

	w = ts.do(http.MethodGet, "/admin/users/8/", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/admin/users/abc/", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	ts.users.AssertNumberOfCalls(t, "GetUser", 2)
}
