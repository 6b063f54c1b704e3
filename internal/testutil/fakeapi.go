package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/todoproduction/todo-client/internal/domain/auth"
	"github.com/todoproduction/todo-client/internal/domain/model"
)

// Default credentials seeded into every FakeAPI.
const (
	FakeEmail    = "a@b.com"
	FakePassword = "x"
)

// RecordedRequest is one request observed by FakeAPI.
type RecordedRequest struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
	UserAgent     string
	Body          string
}

type fakeAccount struct {
	password string
	user     domainauth.User
	agencies []domainauth.Agency
	current  int64
}

// FakeAPI is an in-process stand-in for the Todo Production REST API.
// Tokens are issued as A1, A2, ... (access) and R1, R2, ... (refresh).
type FakeAPI struct {
	Server *httptest.Server

	mu               sync.Mutex
	rotateRefresh    bool
	failRefresh      bool
	refreshDelay     time.Duration
	paginateProjects bool
	unhealthy        bool
	accounts         map[string]*fakeAccount
	access           map[string]string // token -> email
	refresh          map[string]string // token -> email
	blacklist        map[string]bool
	accessSeq        int
	refreshSeq       int
	projects         []model.Project
	team             []model.TeamMember
	requests         []RecordedRequest

	refreshHits atomic.Int64
	logoutHits  atomic.Int64
}

// NewFakeAPI starts a FakeAPI seeded with one account (FakeEmail / FakePassword)
// and registers its shutdown with t.
func NewFakeAPI(t interface {
	TestingTB
	Cleanup(func())
}) *FakeAPI {
	t.Helper()

	f := &FakeAPI{
		accounts:  make(map[string]*fakeAccount),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		blacklist: make(map[string]bool),
	}
	f.AddAccount(FakeEmail, FakePassword,
		domainauth.User{ID: 1, Email: FakeEmail, FirstName: "Ada", LastName: "Byron", FullName: "Ada Byron", RoleName: "Owner", IsActive: true},
		domainauth.Agency{ID: 10, Name: "Studio One", Slug: "studio-one", Role: "Owner", IsOwner: true},
		domainauth.Agency{ID: 11, Name: "Second Unit", Slug: "second-unit", Role: "Producer"},
	)
	f.projects = []model.Project{
		{ID: 1, Title: "Launch Film", Status: "shooting", Priority: "high", ClientName: "Acme"},
		{ID: 2, Title: "Archive Reel", Status: "completed", Priority: "low"},
	}
	f.team = []model.TeamMember{
		{ID: 1, Name: "Ada Byron", Email: FakeEmail, Role: "Owner", IsOwner: true},
	}

	f.Server = httptest.NewServer(f.routes())
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the API root clients should be configured with.
func (f *FakeAPI) BaseURL() string {
	return f.Server.URL + "/api"
}

// SetRotateRefresh makes /auth/refresh/ also return a new refresh token
// and revoke the one it was called with.
func (f *FakeAPI) SetRotateRefresh(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateRefresh = v
}

// SetFailRefresh makes /auth/refresh/ answer 401 regardless of the token.
func (f *FakeAPI) SetFailRefresh(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = v
}

// SetRefreshDelay makes /auth/refresh/ wait before answering.
func (f *FakeAPI) SetRefreshDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshDelay = d
}

// SetPaginateProjects wraps project lists in a {"results": [...]} envelope.
func (f *FakeAPI) SetPaginateProjects(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paginateProjects = v
}

// SetUnhealthy makes /health/ answer 503.
func (f *FakeAPI) SetUnhealthy(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhealthy = v
}

// AddAccount registers a user that can log in. The first agency becomes current.
func (f *FakeAPI) AddAccount(email, password string, user domainauth.User, agencies ...domainauth.Agency) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acct := &fakeAccount{password: password, user: user, agencies: agencies}
	if len(agencies) > 0 {
		acct.current = agencies[0].ID
	}
	f.accounts[strings.ToLower(email)] = acct
}

// IssueTokens mints a token pair for email without going through /auth/login/.
func (f *FakeAPI) IssueTokens(email string) domainauth.Credentials {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domainauth.Credentials{
		AccessToken:  f.mintAccessLocked(email),
		RefreshToken: f.mintRefreshLocked(email),
	}
}

// ExpireAccess makes an access token answer 401 from now on.
func (f *FakeAPI) ExpireAccess(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.access, token)
}

// ExpireRefresh makes a refresh token unusable.
func (f *FakeAPI) ExpireRefresh(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, token)
}

// Blacklisted reports whether a refresh token was revoked through /auth/logout/.
func (f *FakeAPI) Blacklisted(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[token]
}

// RefreshCalls returns how many times /auth/refresh/ was hit.
func (f *FakeAPI) RefreshCalls() int {
	return int(f.refreshHits.Load())
}

// LogoutCalls returns how many times /auth/logout/ was hit.
func (f *FakeAPI) LogoutCalls() int {
	return int(f.logoutHits.Load())
}

// Requests returns a copy of every request received, in arrival order.
func (f *FakeAPI) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// RequestsTo returns the recorded requests whose path equals path (relative to BaseURL).
func (f *FakeAPI) RequestsTo(path string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range f.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeAPI) mintAccessLocked(email string) string {
	f.accessSeq++
	tok := fmt.Sprintf("A%d", f.accessSeq)
	f.access[tok] = email
	return tok
}

func (f *FakeAPI) mintRefreshLocked(email string) string {
	f.refreshSeq++
	tok := fmt.Sprintf("R%d", f.refreshSeq)
	f.refresh[tok] = email
	return tok
}

func (f *FakeAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login/", f.handleLogin)
	mux.HandleFunc("POST /api/auth/register/", f.handleRegister)
	mux.HandleFunc("POST /api/auth/refresh/", f.handleRefresh)
	mux.HandleFunc("POST /api/auth/logout/", f.authed(f.handleLogout))
	mux.HandleFunc("POST /api/auth/switch-agency/", f.authed(f.handleSwitchAgency))
	mux.HandleFunc("GET /api/auth/my-agencies/", f.authed(f.handleMyAgencies))
	mux.HandleFunc("GET /api/dashboard/stats/", f.authed(f.handleStats))
	mux.HandleFunc("GET /api/projects/", f.authed(f.handleProjectList))
	mux.HandleFunc("POST /api/projects/", f.authed(f.handleProjectCreate))
	mux.HandleFunc("GET /api/projects/active/", f.authed(f.handleProjectActive))
	mux.HandleFunc("GET /api/projects/{id}/", f.authed(f.handleProjectGet))
	mux.HandleFunc("GET /api/users/me/", f.authed(f.handleMe))
	mux.HandleFunc("GET /api/users/team/", f.authed(f.handleTeam))
	mux.HandleFunc("POST /api/users/invite/", f.authed(f.handleInvite))
	mux.HandleFunc("GET /api/health/", f.handleHealth)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		mux.ServeHTTP(w, r)
	})
}

func (f *FakeAPI) record(r *http.Request) {
	var body string
	if r.Body != nil {
		raw, _ := io.ReadAll(r.Body) //nolint:errcheck // a short body is recorded as-is
		body = string(raw)
		r.Body = io.NopCloser(bytes.NewReader(raw))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, RecordedRequest{
		Method:        r.Method,
		Path:          strings.TrimPrefix(r.URL.Path, "/api"),
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
		UserAgent:     r.Header.Get("User-Agent"),
		Body:          body,
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, acct *fakeAccount)

func (f *FakeAPI) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		f.mu.Lock()
		email, valid := f.access[token]
		acct := f.accounts[email]
		f.mu.Unlock()

		if !ok || !valid || acct == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next(w, r, acct)
	}
}

func (f *FakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in domainauth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email and password are required"})
		return
	}

	email := strings.ToLower(in.Email)
	f.mu.Lock()
	acct := f.accounts[email]
	if acct == nil || acct.password != in.Password {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid email or password"})
		return
	}
	tokens := domainauth.Credentials{
		AccessToken:  f.mintAccessLocked(email),
		RefreshToken: f.mintRefreshLocked(email),
	}
	user, agency := acct.user, acct.currentAgency()
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, domainauth.AuthResponse{
		Message: "Login successful",
		User:    &user,
		Agency:  agency,
		Tokens:  &tokens,
	})
}

func (f *FakeAPI) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in domainauth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid payload"})
		return
	}

	email := strings.ToLower(in.Email)
	f.mu.Lock()
	if _, exists := f.accounts[email]; exists {
		f.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]any{"email": []string{"A user with this email already exists."}})
		return
	}
	id := int64(len(f.accounts) + 1)
	user := domainauth.User{
		ID: id, Email: email, FirstName: in.FirstName, LastName: in.LastName,
		FullName: strings.TrimSpace(in.FirstName + " " + in.LastName), IsActive: true,
	}
	agency := domainauth.Agency{ID: 100 + id, Name: in.AgencyName, Role: "Owner", IsOwner: true}
	f.accounts[email] = &fakeAccount{password: in.Password, user: user, agencies: []domainauth.Agency{agency}, current: agency.ID}
	tokens := domainauth.Credentials{
		AccessToken:  f.mintAccessLocked(email),
		RefreshToken: f.mintRefreshLocked(email),
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, domainauth.AuthResponse{
		Message: "Registration successful",
		User:    &user,
		Agency:  &agency,
		Tokens:  &tokens,
	})
}

func (f *FakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.refreshHits.Add(1)
	f.mu.Lock()
	delay := f.refreshDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	var in domainauth.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&in) //nolint:errcheck // empty token is rejected below

	f.mu.Lock()
	email, ok := f.refresh[in.Refresh]
	if f.failRefresh || !ok || f.blacklist[in.Refresh] {
		f.mu.Unlock()
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	out := domainauth.RefreshResponse{Access: f.mintAccessLocked(email)}
	if f.rotateRefresh {
		delete(f.refresh, in.Refresh)
		f.blacklist[in.Refresh] = true
		out.Refresh = f.mintRefreshLocked(email)
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (f *FakeAPI) handleLogout(w http.ResponseWriter, r *http.Request, _ *fakeAccount) {
	f.logoutHits.Add(1)

	var in domainauth.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Refresh token is required"})
		return
	}

	f.mu.Lock()
	f.blacklist[in.Refresh] = true
	delete(f.refresh, in.Refresh)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"message": "Logout successful"})
}

func (f *FakeAPI) handleSwitchAgency(w http.ResponseWriter, r *http.Request, acct *fakeAccount) {
	var in domainauth.SwitchAgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.AgencyID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "agency_id is required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range acct.agencies {
		if a.ID == in.AgencyID {
			acct.current = a.ID
			a.IsCurrent = true
			writeJSON(w, http.StatusOK, domainauth.SwitchAgencyResponse{
				Message: "Switched to " + a.Name,
				Agency:  a,
			})
			return
		}
	}
	writeJSON(w, http.StatusForbidden, map[string]any{"error": "You are not a member of this agency"})
}

func (f *FakeAPI) handleMyAgencies(w http.ResponseWriter, _ *http.Request, acct *fakeAccount) {
	f.mu.Lock()
	list := make([]domainauth.Agency, len(acct.agencies))
	for i, a := range acct.agencies {
		a.IsCurrent = a.ID == acct.current
		list[i] = a
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, domainauth.AgencyList{Count: len(list), Agencies: list})
}

func (f *FakeAPI) handleStats(w http.ResponseWriter, _ *http.Request, _ *fakeAccount) {
	f.mu.Lock()
	recent := append([]model.Project(nil), f.projects...)
	f.mu.Unlock()

	active := 0
	for _, p := range recent {
		if p.Status != "completed" {
			active++
		}
	}
	writeJSON(w, http.StatusOK, model.DashboardStats{
		Stats: model.DashboardStatCards{
			ActiveProjects: model.StatValue{Value: active, Trend: "+1"},
			PendingTasks:   model.StatValue{Value: 4, Trend: "0"},
			CompletedTasks: model.StatValue{Value: 9, Trend: "+3"},
			MonthlyRevenue: model.StatValue{Value: "₺12,500", Trend: "+8%"},
		},
		RecentProjects: recent,
		Schedule: []model.ScheduleItem{
			{Type: "shooting", Time: "09:00", Title: "Launch Film - Day 1", Location: "Studio A", Color: "blue"},
		},
	})
}

func (f *FakeAPI) writeProjects(w http.ResponseWriter, projects []model.Project) {
	f.mu.Lock()
	paginate := f.paginateProjects
	f.mu.Unlock()
	if paginate {
		writeJSON(w, http.StatusOK, map[string]any{"count": len(projects), "results": projects})
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (f *FakeAPI) handleProjectList(w http.ResponseWriter, _ *http.Request, _ *fakeAccount) {
	f.mu.Lock()
	projects := append([]model.Project(nil), f.projects...)
	f.mu.Unlock()
	f.writeProjects(w, projects)
}

func (f *FakeAPI) handleProjectActive(w http.ResponseWriter, _ *http.Request, _ *fakeAccount) {
	f.mu.Lock()
	var active []model.Project
	for _, p := range f.projects {
		if p.Status != "completed" && p.Status != "cancelled" {
			active = append(active, p)
		}
	}
	f.mu.Unlock()
	f.writeProjects(w, active)
}

func (f *FakeAPI) handleProjectGet(w http.ResponseWriter, r *http.Request, _ *fakeAccount) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.ID == id {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
}

func (f *FakeAPI) handleProjectCreate(w http.ResponseWriter, r *http.Request, _ *fakeAccount) {
	var in model.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid payload"})
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"title": []string{"This field is required."}})
		return
	}

	f.mu.Lock()
	p := model.Project{
		ID:          int64(len(f.projects) + 1),
		Title:       in.Title,
		Description: in.Description,
		ClientName:  in.ClientName,
		Status:      "planning",
		Priority:    string(in.Priority),
		Location:    in.Location,
		Tags:        in.Tags,
	}
	if in.Status != "" {
		p.Status = in.Status
	}
	f.projects = append(f.projects, p)
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, p)
}

func (f *FakeAPI) handleMe(w http.ResponseWriter, _ *http.Request, acct *fakeAccount) {
	f.mu.Lock()
	profile := model.Profile{User: acct.user, CurrentAgency: acct.currentAgency()}
	if profile.CurrentAgency != nil {
		profile.Role = profile.CurrentAgency.Role
		profile.IsOwner = profile.CurrentAgency.IsOwner
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, profile)
}

func (f *FakeAPI) handleTeam(w http.ResponseWriter, _ *http.Request, _ *fakeAccount) {
	f.mu.Lock()
	members := append([]model.TeamMember(nil), f.team...)
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, model.Team{Count: len(members), Members: members})
}

func (f *FakeAPI) handleInvite(w http.ResponseWriter, r *http.Request, _ *fakeAccount) {
	var in model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Email is required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.team {
		if strings.EqualFold(m.Email, in.Email) {
			writeJSON(w, http.StatusOK, map[string]any{"message": "User is already a member of this agency"})
			return
		}
	}
	id := int64(len(f.team) + 100)
	f.team = append(f.team, model.TeamMember{ID: id, Email: in.Email, Role: "Member"})
	writeJSON(w, http.StatusCreated, model.InviteResult{
		Message:        "Invitation sent",
		CreatedNewUser: true,
		UserID:         id,
	})
}

func (f *FakeAPI) handleHealth(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	unhealthy := f.unhealthy
	f.mu.Unlock()
	if unhealthy {
		writeJSON(w, http.StatusServiceUnavailable, model.HealthStatus{Status: "unhealthy", Database: "error", Cache: "ok"})
		return
	}
	writeJSON(w, http.StatusOK, model.HealthStatus{Status: "healthy", Database: "ok", Cache: "ok"})
}

func (a *fakeAccount) currentAgency() *domainauth.Agency {
	for _, ag := range a.agencies {
		if ag.ID == a.current {
			ag.IsCurrent = true
			return &ag
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test server
}
