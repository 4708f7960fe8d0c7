package pages_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/steinfletcher/apitest"

	"github.com/cdore/clubhouse/internal/app"
	"github.com/cdore/clubhouse/internal/apperror"
	"github.com/cdore/clubhouse/internal/auth"
	"github.com/cdore/clubhouse/internal/config"
	"github.com/cdore/clubhouse/internal/pages"
)

const (
	sessionCookie = "clubhouse_session"
	sessionTTL    = time.Hour
)

// --- In-Memory Repository ---

// memUserRepo is an in-memory auth.UserRepository so route tests can run
// real signup/login flows without a database.
type memUserRepo struct {
	mu    sync.Mutex
	users map[string]auth.User // keyed by email
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]auth.User)}
}

func (r *memUserRepo) Create(ctx context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.Email]; ok {
		return apperror.NewConflict("an account with this email already exists")
	}
	r.users[user.Email] = *user
	return nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[email]
	if !ok {
		return nil, apperror.NewNotFound("user not found")
	}
	return &user, nil
}

func (r *memUserRepo) FindByName(ctx context.Context, name string) ([]auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var found []auth.User
	for _, user := range r.users {
		if user.Name == name {
			found = append(found, user)
		}
	}
	return found, nil
}

func (r *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[email]
	return ok, nil
}

func (r *memUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	return nil
}

// --- Test Environment ---

// testEnv is a fully wired application over in-memory infrastructure:
// the real Echo instance with renderer, middleware and error handler, the
// real auth service over miniredis, and a temp directory of GIFs.
type testEnv struct {
	handler http.Handler
	service auth.AuthService
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{Env: "test"}
	a, err := app.New(cfg, nil, rdb)
	if err != nil {
		t.Fatalf("creating app: %v", err)
	}

	service := auth.NewAuthService(newMemUserRepo(), rdb, sessionTTL)
	authHandler := auth.NewHandler(service, sessionTTL)
	auth.RegisterRoutes(a.Echo, authHandler)

	gifDir := t.TempDir()
	for i := 1; i <= 3; i++ {
		name := filepath.Join(gifDir, fmt.Sprintf("%d.gif", i))
		if err := os.WriteFile(name, []byte("GIF89a"), 0o644); err != nil {
			t.Fatalf("writing test gif: %v", err)
		}
	}
	pageHandler := pages.NewHandler(gifDir)
	pages.RegisterRoutes(a.Echo, pageHandler,
		auth.ResolveSession(service), auth.RequireAuth(service))

	return &testEnv{handler: a.Echo, service: service, redis: mr}
}

// register creates an account directly through the service and returns its
// session token, for tests that need an authenticated request without going
// through the signup form.
func (env *testEnv) register(t *testing.T, name, email, password string) string {
	t.Helper()
	token, _, err := env.service.Register(context.Background(), auth.SignupInput{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		t.Fatalf("registering test user: %v", err)
	}
	return token
}

// bodyContains returns an apitest assertion that the response body contains
// the given substring.
func bodyContains(substr string) func(*http.Response, *http.Request) error {
	return func(res *http.Response, _ *http.Request) error {
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		if !strings.Contains(string(body), substr) {
			return fmt.Errorf("body does not contain %q:\n%s", substr, body)
		}
		return nil
	}
}

// sessionToken extracts the session cookie value from a completed request.
func sessionToken(t *testing.T, result apitest.Result) string {
	t.Helper()
	for _, c := range result.Response.Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c.Value
		}
	}
	t.Fatal("expected a session cookie in the response")
	return ""
}

// --- Landing Page ---

func TestHome_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains(`href="/signup"`)).
		Assert(bodyContains(`href="/login"`)).
		End()
}

func TestHome_Authenticated(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Get("/").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Hello, alice!")).
		Assert(bodyContains(`href="/members"`)).
		End()
}

// --- Signup ---

func TestSignup_FullFlow(t *testing.T) {
	env := newTestEnv(t)

	result := apitest.New().
		Handler(env.handler).
		Post("/createUser").
		FormData("name", "alice").
		FormData("email", "a@x.com").
		FormData("password", "p1").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/members").
		CookiePresent(sessionCookie).
		End()

	// The issued session grants access to the members area.
	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, sessionToken(t, result)).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Members Area")).
		Assert(bodyContains("Hello, alice.")).
		End()
}

func TestSignup_MissingFieldRerendersForm(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/createUser").
		FormData("name", "").
		FormData("email", "a@x.com").
		FormData("password", "p1").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Please provide a name.")).
		Assert(bodyContains(`value="a@x.com"`)).
		End()
}

func TestSignup_DuplicateEmailRerendersForm(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Post("/createUser").
		FormData("name", "bob").
		FormData("email", "a@x.com").
		FormData("password", "p2").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("already exists")).
		End()
}

func TestSignupForm_RedirectsWhenAlreadyLoggedIn(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Get("/signup").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/members").
		End()
}

// --- Login ---

func TestLogin_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "p1")

	result := apitest.New().
		Handler(env.handler).
		Post("/loggingin").
		FormData("email", "a@x.com").
		FormData("password", "p1").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/members").
		CookiePresent(sessionCookie).
		End()

	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, sessionToken(t, result)).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Hello, alice.")).
		End()
}

func TestLogin_WrongPasswordRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Post("/loggingin").
		FormData("email", "a@x.com").
		FormData("password", "wrong").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login?failed=1").
		End()
}

func TestLogin_UnknownEmailTakesSamePath(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Post("/loggingin").
		FormData("email", "nobody@x.com").
		FormData("password", "whatever").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login?failed=1").
		End()
}

func TestLogin_FailedBanner(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/login").
		Query("failed", "1").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Invalid email or password.")).
		End()
}

// --- Members Area Access Control ---

func TestMembers_AnonymousIsRedirectedHome(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/members").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()
}

func TestMembers_ForgedTokenIsRedirectedHome(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, "not-a-real-token").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()
}

func TestMembers_ExpiredSessionIsRedirectedHome(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "a@x.com", "p1")

	env.redis.FastForward(sessionTTL + time.Minute)

	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()
}

func TestMembers_ShowsGif(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains(`src="/gif/`)).
		End()
}

// --- Logout ---

func TestLogout_InvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Get("/logout").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()

	// The old token no longer opens the members area.
	apitest.New().
		Handler(env.handler).
		Get("/members").
		Cookie(sessionCookie, token).
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()
}

func TestLogout_WithoutSessionIsANoOp(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/logout").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/").
		End()
}

// --- Injection Probe ---

func TestInjectionProbe_Hint(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/nosql-injection").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("try /nosql-injection?user=name")).
		End()
}

func TestInjectionProbe_OperatorKeyDetected(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/nosql-injection").
		Query("user[$ne]", "x").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("A NoSQL injection attack was detected!")).
		End()
}

func TestInjectionProbe_OperatorValueDetected(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/nosql-injection").
		Query("user", `{"$gt": ""}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("A NoSQL injection attack was detected!")).
		End()
}

func TestInjectionProbe_ValidNameLooksUpUsers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "p1")

	apitest.New().
		Handler(env.handler).
		Get("/nosql-injection").
		Query("user", "alice").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("Hello, alice (a@x.com)")).
		End()
}

func TestInjectionProbe_NoMatch(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/nosql-injection").
		Query("user", "nobody").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("No users matched that name.")).
		End()
}

// --- GIFs ---

func TestGif_Serves(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/gif/2").
		Expect(t).
		Status(http.StatusOK).
		Assert(bodyContains("GIF89a")).
		End()
}

func TestGif_OutOfRangeIs404(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"0", "4", "abc", "..%2F..%2Fetc%2Fpasswd"} {
		apitest.New().
			Handler(env.handler).
			Get("/gif/" + id).
			Expect(t).
			Status(http.StatusNotFound).
			End()
	}
}

// --- Catch-All ---

func TestUnknownRoute_Renders404(t *testing.T) {
	env := newTestEnv(t)

	apitest.New().
		Handler(env.handler).
		Get("/does-not-exist").
		Expect(t).
		Status(http.StatusNotFound).
		Assert(bodyContains("Sorry! We could not find that page.")).
		End()
}
