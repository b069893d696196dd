package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/kindway/internal/mail"
	"github.com/jredh-dev/kindway/services/kindway/internal/apperr"
	"github.com/jredh-dev/kindway/services/kindway/internal/auth"
	"github.com/jredh-dev/kindway/services/kindway/internal/community"
	"github.com/jredh-dev/kindway/services/kindway/internal/contact"
	"github.com/jredh-dev/kindway/services/kindway/internal/database"
	"github.com/jredh-dev/kindway/services/kindway/internal/database/dbtest"
	"github.com/jredh-dev/kindway/services/kindway/internal/matching"
	"github.com/jredh-dev/kindway/services/kindway/internal/messaging"
	"github.com/jredh-dev/kindway/services/kindway/internal/needs"
	"github.com/jredh-dev/kindway/services/kindway/internal/offers"
	"github.com/jredh-dev/kindway/services/kindway/internal/profiles"
	"github.com/jredh-dev/kindway/services/kindway/internal/token"
	"github.com/jredh-dev/kindway/services/kindway/internal/verification"
	"github.com/jredh-dev/kindway/services/kindway/pkg/models"
)

type fakeLookup map[string]models.Coordinate

func (f fakeLookup) Resolve(_ context.Context, location string) (models.Coordinate, bool) {
	c, ok := f[location]
	return c, ok
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []mail.OutboundEmail
}

func (p *fakePublisher) Publish(_ context.Context, e mail.OutboundEmail) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, e)
	return nil
}

type env struct {
	db     *database.DB
	router *chi.Mux
	tokens *token.Service
	mail   *fakePublisher
	food   string
}

func setup(t *testing.T) *env {
	t.Helper()
	db := dbtest.Open(t)
	lookup := fakeLookup{
		"560001, India": {Lat: 12.9, Lng: 77.6},
		"Koramangala":   {Lat: 12.93, Lng: 77.62},
	}
	pub := &fakePublisher{}
	tokens := token.New("test-key", "kindway-test", time.Hour)
	msg := messaging.NewService(db)

	h := New(db, Services{
		Auth:         auth.New(db, 3600, nil),
		Tokens:       tokens,
		Profiles:     profiles.NewService(db, lookup, "India"),
		Matching:     matching.NewService(db, lookup, matching.Config{Country: "India"}),
		Offers:       offers.NewService(db, msg),
		Needs:        needs.NewService(db),
		Messaging:    msg,
		Community:    community.NewService(db),
		Contact:      contact.NewService(db, pub, "team@kindway.org"),
		Verification: verification.NewService(db, pub),
	}, Options{SessionMaxAge: 3600})

	r := chi.NewRouter()
	h.Routes(r)
	return &env{db: db, router: r, tokens: tokens, mail: pub, food: dbtest.Category(t, db, "Food")}
}

type request struct {
	method string
	path   string
	body   interface{}
	as     *models.User
	cookie *http.Cookie
}

func (e *env) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if req.body != nil {
		if err := json.NewEncoder(&body).Encode(req.body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.as != nil {
		tok, _, err := e.tokens.Generate(req.as)
		if err != nil {
			t.Fatal(err)
		}
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d)", w.Code)
	return nil
}

func TestRegisterDonor_SessionAndMe(t *testing.T) {
	e := setup(t)

	w := e.do(t, request{method: http.MethodPost, path: "/api/auth/register/donor", body: map[string]string{
		"email":     "Asha@Example.com",
		"password":  "correct horse",
		"full_name": "Asha",
		"pincode":   "560 001",
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", w.Code, w.Body.String())
	}
	cookie := sessionFrom(t, w)

	w = e.do(t, request{method: http.MethodGet, path: "/api/me", cookie: cookie})
	if w.Code != http.StatusOK {
		t.Fatalf("me = %d %s", w.Code, w.Body.String())
	}
	var me struct {
		User    models.User         `json:"user"`
		Profile models.DonorProfile `json:"profile"`
	}
	decodeBody(t, w, &me)
	if me.User.Role != models.RoleDonor {
		t.Errorf("role = %q", me.User.Role)
	}
	if me.Profile.Location == nil || me.Profile.Pincode != "560001" {
		t.Errorf("profile = %+v, want geocoded 560001", me.Profile)
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/auth/register/donor", body: map[string]string{
		"email": "asha@example.com", "password": "another pass",
	}})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", w.Code)
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	if w.Code != http.StatusNoContent {
		t.Errorf("logout = %d", w.Code)
	}
	if w = e.do(t, request{method: http.MethodGet, path: "/api/me", cookie: cookie}); w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", w.Code)
	}
}

func TestRegisterNGO(t *testing.T) {
	e := setup(t)

	w := e.do(t, request{method: http.MethodPost, path: "/api/auth/register/ngo", body: map[string]interface{}{
		"email":                 "trust@ngo.org",
		"password":              "helping hands",
		"ngo_name":              "Annapurna Trust",
		"accepted_category_ids": []string{"nope"},
	}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown category = %d, want 400", w.Code)
	}
	if u, _ := e.db.GetUserByEmail("trust@ngo.org"); u != nil {
		t.Fatal("rejected registration left an account behind")
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/auth/register/ngo", body: map[string]interface{}{
		"email":                 "trust@ngo.org",
		"password":              "helping hands",
		"ngo_name":              "Annapurna Trust",
		"address":               "Koramangala",
		"accepted_category_ids": []string{e.food},
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("register ngo = %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Profile models.NGO `json:"profile"`
	}
	decodeBody(t, w, &resp)
	if resp.Profile.Profile.VerificationStatus != models.VerificationPending {
		t.Errorf("status = %q, want PENDING", resp.Profile.Profile.VerificationStatus)
	}
	if resp.Profile.Profile.Location == nil {
		t.Error("address not geocoded")
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email": "trust@ngo.org", "password": "wrong password",
	}})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d, want 401", w.Code)
	}
}

func TestAuthentication(t *testing.T) {
	e := setup(t)

	tests := []struct {
		name string
		req  func(r *http.Request)
		want int
	}{
		{"anonymous", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"unknown session", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: "gone"}) }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tt.req(r)
			w := httptest.NewRecorder()
			e.router.ServeHTTP(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	// Public routes work without credentials.
	if w := e.do(t, request{method: http.MethodGet, path: "/api/categories"}); w.Code != http.StatusOK {
		t.Errorf("categories = %d", w.Code)
	}
}

func TestOfferAcceptOpensConversation(t *testing.T) {
	e := setup(t)
	ngo := dbtest.NGO(t, e.db, "near@ngo.org", "Near Trust", models.VerificationVerified, dbtest.Coord(12.95, 77.62), e.food)
	donor := dbtest.Donor(t, e.db, "donor@example.com", dbtest.Coord(12.9, 77.6))

	w := e.do(t, request{method: http.MethodGet, path: "/api/matches?category_id=" + e.food, as: donor})
	var matches []matching.NGOMatch
	decodeBody(t, w, &matches)
	if len(matches) != 1 || matches[0].NGO.Profile.UserID != ngo.ID {
		t.Fatalf("matches = %s", w.Body.String())
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/offers", as: donor, body: map[string]string{
		"ngo_id":        ngo.ID,
		"category_id":   e.food,
		"title":         "20 kg rice",
		"delivery_type": "PICKUP",
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create offer = %d %s", w.Code, w.Body.String())
	}
	var offer models.Offer
	decodeBody(t, w, &offer)

	w = e.do(t, request{method: http.MethodPost, path: "/api/offers/" + offer.ID + "/accept", as: donor})
	if w.Code != http.StatusForbidden {
		t.Errorf("donor accept = %d, want 403", w.Code)
	}

	w = e.do(t, request{method: http.MethodPost, path: "/api/offers/" + offer.ID + "/accept", as: ngo})
	if w.Code != http.StatusOK {
		t.Fatalf("accept = %d %s", w.Code, w.Body.String())
	}
	var accepted struct {
		Status         models.OfferStatus `json:"status"`
		ConversationID string             `json:"conversation_id"`
	}
	decodeBody(t, w, &accepted)
	if accepted.Status != models.OfferAccepted || accepted.ConversationID == "" {
		t.Fatalf("accepted = %+v", accepted)
	}

	if w = e.do(t, request{method: http.MethodPost, path: "/api/offers/" + offer.ID + "/reject", as: ngo}); w.Code != http.StatusConflict {
		t.Errorf("reject after accept = %d, want 409", w.Code)
	}

	conv := "/api/conversations/" + accepted.ConversationID
	w = e.do(t, request{method: http.MethodPost, path: conv + "/messages", as: donor, body: map[string]string{"content": "When can I drop it off?"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, request{method: http.MethodGet, path: "/api/messages/unread", as: ngo})
	var unread map[string]int
	decodeBody(t, w, &unread)
	if unread["unread_count"] != 1 {
		t.Errorf("unread = %v, want 1", unread)
	}

	stranger := dbtest.Donor(t, e.db, "stranger@example.com", nil)
	if w = e.do(t, request{method: http.MethodGet, path: conv, as: stranger}); w.Code != http.StatusNotFound {
		t.Errorf("stranger open = %d, want 404", w.Code)
	}
	if w = e.do(t, request{method: http.MethodGet, path: "/api/offers/" + offer.ID, as: stranger}); w.Code != http.StatusNotFound {
		t.Errorf("stranger offer = %d, want 404", w.Code)
	}

	if w = e.do(t, request{method: http.MethodGet, path: conv + "/messages?since=yesterday", as: ngo}); w.Code != http.StatusBadRequest {
		t.Errorf("bad since = %d, want 400", w.Code)
	}
}

func TestAdminVerification(t *testing.T) {
	e := setup(t)
	pending := dbtest.NGO(t, e.db, "new@ngo.org", "New Trust", models.VerificationPending, nil)
	donor := dbtest.Donor(t, e.db, "donor@example.com", nil)
	staff := dbtest.User(t, e.db, "staff@kindway.org", models.RoleNone)
	if err := e.db.SetStaff(staff.ID, true); err != nil {
		t.Fatal(err)
	}

	path := "/api/admin/ngos/" + pending.ID + "/verification"
	if w := e.do(t, request{method: http.MethodPost, path: path, as: donor, body: map[string]string{"status": "VERIFIED"}}); w.Code != http.StatusForbidden {
		t.Errorf("donor verify = %d, want 403", w.Code)
	}

	for i := 0; i < 2; i++ {
		w := e.do(t, request{method: http.MethodPost, path: path, as: staff, body: map[string]string{"status": "VERIFIED"}})
		if w.Code != http.StatusOK {
			t.Fatalf("verify = %d %s", w.Code, w.Body.String())
		}
	}
	if len(e.mail.sent) != 1 || e.mail.sent[0].To != "new@ngo.org" {
		t.Errorf("emails = %+v, want one to new@ngo.org", e.mail.sent)
	}

	if w := e.do(t, request{method: http.MethodGet, path: "/api/admin/ngos?status=bogus", as: staff}); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", w.Code)
	}
	if w := e.do(t, request{method: http.MethodGet, path: "/api/admin/stats", as: staff}); w.Code != http.StatusOK {
		t.Errorf("stats = %d", w.Code)
	}
	if w := e.do(t, request{method: http.MethodPost, path: "/api/admin/categories", as: staff, body: map[string]string{"name": " food "}}); w.Code != http.StatusConflict {
		t.Errorf("duplicate category = %d, want 409", w.Code)
	}
}

func TestCalendarFeed(t *testing.T) {
	e := setup(t)
	ngo := dbtest.NGO(t, e.db, "events@ngo.org", "Green Hands", models.VerificationVerified, nil)

	w := e.do(t, request{method: http.MethodPost, path: "/api/events", as: ngo, body: map[string]string{
		"title":      "Tree planting",
		"location":   "Cubbon Park",
		"event_date": "2026-11-01T09:00:00+05:30",
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create event = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, request{method: http.MethodGet, path: "/api/ngos/" + ngo.ID + "/calendar.ics"})
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "SUMMARY:Tree planting") || !strings.Contains(body, "DTSTART:20261101T033000Z") {
		t.Errorf("feed = %s", body)
	}

	if w = e.do(t, request{method: http.MethodGet, path: "/api/ngos/nobody/calendar.ics"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown ngo feed = %d, want 404", w.Code)
	}
}

func TestHome(t *testing.T) {
	e := setup(t)
	ngo := dbtest.NGO(t, e.db, "home@ngo.org", "Green Hands", models.VerificationVerified, nil, e.food)
	donor := dbtest.Donor(t, e.db, "home@example.com", nil)

	w := e.do(t, request{method: http.MethodPost, path: "/api/needs", as: ngo, body: map[string]string{
		"title":       "Winter blankets",
		"category_id": e.food,
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create need = %d %s", w.Code, w.Body.String())
	}
	o := dbtest.Offer(t, e.db, donor, ngo, e.food)
	if w := e.do(t, request{method: http.MethodPost, path: "/api/offers/" + o.ID + "/accept", as: ngo}); w.Code != http.StatusOK {
		t.Fatalf("accept = %d %s", w.Code, w.Body.String())
	}
	w = e.do(t, request{method: http.MethodPost, path: "/api/events", as: ngo, body: map[string]string{
		"title":      "Tree planting",
		"event_date": time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create event = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, request{method: http.MethodGet, path: "/api/home"})
	if w.Code != http.StatusOK {
		t.Fatalf("home = %d %s", w.Code, w.Body.String())
	}
	var got database.HomeSummary
	decodeBody(t, w, &got)
	if got.DonationsCompleted != 1 || got.VerifiedNGOs != 1 || got.RegisteredDonors != 1 {
		t.Errorf("counters = %+v", got)
	}
	if len(got.LatestNeeds) != 1 || got.LatestNeeds[0].Title != "Winter blankets" {
		t.Errorf("LatestNeeds = %+v", got.LatestNeeds)
	}
	if len(got.UpcomingEvents) != 1 || got.UpcomingEvents[0].Title != "Tree planting" {
		t.Errorf("UpcomingEvents = %+v", got.UpcomingEvents)
	}
}

func TestContact(t *testing.T) {
	e := setup(t)

	w := e.do(t, request{method: http.MethodPost, path: "/api/contact", body: map[string]string{
		"name":    "Asha",
		"email":   "asha@example.com",
		"message": "How do I register my NGO?",
	}})
	if w.Code != http.StatusAccepted {
		t.Fatalf("contact = %d %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	decodeBody(t, w, &resp)
	if resp["id"] == "" {
		t.Errorf("response = %v, want an id", resp)
	}

	e.mail.mu.Lock()
	sent := append([]mail.OutboundEmail(nil), e.mail.sent...)
	e.mail.mu.Unlock()
	if len(sent) != 1 || sent[0].To != "team@kindway.org" || sent[0].ReplyTo != "asha@example.com" {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].Subject != "Contact Form Submission from Asha" {
		t.Errorf("Subject = %q", sent[0].Subject)
	}

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing message", map[string]string{"name": "Asha", "email": "asha@example.com"}},
		{"bad email", map[string]string{"name": "Asha", "email": "asha", "message": "hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := e.do(t, request{method: http.MethodPost, path: "/api/contact", body: tt.body}); w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSearchNGOs_Params(t *testing.T) {
	e := setup(t)
	dbtest.NGO(t, e.db, "near@ngo.org", "Near Trust", models.VerificationVerified, dbtest.Coord(12.95, 77.62), e.food)

	tests := []struct {
		query string
		want  int
	}{
		{"?location=560001", http.StatusOK},
		{"?location=560001&radius=5", http.StatusOK},
		{"?location=560001&radius=far", http.StatusBadRequest},
		{"?location=560001&radius=NaN", http.StatusBadRequest},
		{"?location=560001&radius=Inf", http.StatusBadRequest},
		{"?location=560001&radius=-3", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := e.do(t, request{method: http.MethodGet, path: "/api/ngos/search" + tt.query}); w.Code != tt.want {
			t.Errorf("search%s = %d, want %d", tt.query, w.Code, tt.want)
		}
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", apperr.ErrInvalidInput), http.StatusBadRequest},
		{auth.ErrWeakPassword, http.StatusBadRequest},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("x: %w", apperr.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", apperr.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", apperr.ErrInvalidTransition), http.StatusConflict},
		{database.ErrDuplicate, http.StatusConflict},
		{auth.ErrFirebaseDisabled, http.StatusNotImplemented},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
		if w.Code != tt.want {
			t.Errorf("writeError(%v) = %d, want %d", tt.err, w.Code, tt.want)
		}
	}

	w := httptest.NewRecorder()
	writeError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("disk on fire"))
	if strings.Contains(w.Body.String(), "disk") {
		t.Errorf("internal error leaked: %s", w.Body.String())
	}
}
