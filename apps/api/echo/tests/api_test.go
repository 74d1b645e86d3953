package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/thesisman/backend/apps/api/echo"
	"github.com/thesisman/backend/core/application"
	"github.com/thesisman/backend/core/notification"
	"github.com/thesisman/backend/core/proposal"
	"github.com/thesisman/backend/core/startrequest"
	"github.com/thesisman/backend/testutil"
)

func newProposalBody(t *testing.T, env *testutil.Env, title string, days int, coSupervisors ...string) []byte {
	t.Helper()
	return marshallObj(t, proposal.NewProposal{
		Title:          title,
		Description:    title + " description",
		CoSupervisors:  coSupervisors,
		Groups:         []string{"G1"},
		Keywords:       []string{"graphs"},
		Level:          proposal.LevelMaster,
		CdS:            "LM-32",
		ExpirationDate: env.DateIn(t, days),
	})
}

func TestAuth(t *testing.T) {
	app, _ := newApp(t)

	expired := echoapi.NewClaims(conf, testutil.Student1, time.Hour)
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expiredToken, err := echoapi.GenerateToken(secretKey, expired)
	require.NoError(t, err)

	noRole := echoapi.NewClaims(conf, testutil.Student1, time.Hour)
	noRole.Role = ""
	noRoleToken, err := echoapi.GenerateToken(secretKey, noRole)
	require.NoError(t, err)

	foreignToken, err := echoapi.GenerateToken("another-secret", echoapi.NewClaims(conf, testutil.Student1, time.Hour))
	require.NoError(t, err)

	errMissingToken := marshallObj(t, httpErr{Error: "missing or malformed jwt"})
	errInvalidToken := marshallObj(t, httpErr{Error: "invalid or expired jwt"})
	errForbidden := marshallObj(t, httpErr{Error: "permission denied"})

	runHTTPTests(t, app, []httpTest{
		{name: "home is public", method: http.MethodGet, path: "/", wantCode: http.StatusOK},
		{name: "metrics are public", method: http.MethodGet, path: "/metrics", wantCode: http.StatusOK},
		{name: "missing token", method: http.MethodGet, path: "/v1/proposals", wantCode: http.StatusUnauthorized, wantData: errMissingToken},
		{name: "garbage token", method: http.MethodGet, path: "/v1/proposals", token: "garbage", wantCode: http.StatusUnauthorized, wantData: errInvalidToken},
		{name: "expired token", method: http.MethodGet, path: "/v1/proposals", token: expiredToken, wantCode: http.StatusUnauthorized, wantData: errInvalidToken},
		{name: "token without role", method: http.MethodGet, path: "/v1/proposals", token: noRoleToken, wantCode: http.StatusUnauthorized, wantData: errInvalidToken},
		{name: "token of another issuer", method: http.MethodGet, path: "/v1/proposals", token: foreignToken, wantCode: http.StatusUnauthorized, wantData: errInvalidToken},
		{name: "valid token", method: http.MethodGet, path: "/v1/proposals", token: getToken(t, testutil.Student1), wantCode: http.StatusOK, wantData: []byte("[]")},
		{name: "students cannot create proposals", method: http.MethodPost, path: "/v1/proposals", token: getToken(t, testutil.Student1), body: []byte("{}"), wantCode: http.StatusForbidden, wantData: errForbidden},
		{name: "teachers cannot move the clock", method: http.MethodPut, path: "/v1/clock", token: getToken(t, testutil.Teacher1), body: []byte(`{"delta": 1}`), wantCode: http.StatusForbidden, wantData: errForbidden},
	})

	t.Run("claims carry the actor", func(t *testing.T) {
		claims := echoapi.NewClaims(conf, testutil.Teacher2, time.Hour)
		token, err := echoapi.GenerateToken(secretKey, claims)
		require.NoError(t, err)

		parsed := new(echoapi.Claims)
		_, err = jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (interface{}, error) { return []byte(secretKey), nil })
		require.NoError(t, err)
		assert.Equal(t, testutil.Actor(testutil.Teacher2), parsed.Actor())
	})
}

func TestProposalAPI_validation(t *testing.T) {
	app, env := newApp(t)
	t1 := getToken(t, testutil.Teacher1)

	required := "this field is required"
	runHTTPTests(t, app, []httpTest{
		{
			name:     "empty body",
			method:   http.MethodPost,
			path:     "/v1/proposals",
			token:    t1,
			body:     []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"title": required, "description": required, "level": required, "cds": required, "expiration_date": required,
			}),
		},
		{
			name:   "malformed fields",
			method: http.MethodPost,
			path:   "/v1/proposals",
			token:  t1,
			body: []byte(`{"title": "T", "description": "D", "level": "PHD", "cds": "LM-32", ` +
				`"expiration_date": "01/02/2025", "co_supervisors": ["not-an-email"]}`),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{
				"level":             "level must be one of BSC, MSC",
				"expiration_date":   "expiration_date must be a date formatted as YYYY-MM-DD",
				"co_supervisors[0]": "co_supervisors[0] must be a valid email address",
			}),
		},
		{
			name:     "past expiration",
			method:   http.MethodPost,
			path:     "/v1/proposals",
			token:    t1,
			body:     newProposalBody(t, env, "Late", -1),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "the expiration date cannot be in the past"}),
		},
		{
			name:     "malformed json",
			method:   http.MethodPost,
			path:     "/v1/proposals",
			token:    t1,
			body:     []byte("{"),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown proposal",
			method:   http.MethodGet,
			path:     "/v1/proposals/nope",
			token:    t1,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "proposal not found"}),
		},
	})
}

func TestApplicationAPI_flow(t *testing.T) {
	app, env := newApp(t)
	t1, t2 := getToken(t, testutil.Teacher1), getToken(t, testutil.Teacher2)
	s1, s2 := getToken(t, testutil.Student1), getToken(t, testutil.Student2)

	var prop proposal.Proposal
	do(t, app, http.MethodPost, "/v1/proposals", t1, newProposalBody(t, env, "Graph databases", 30, "T2@example.com"), http.StatusCreated, &prop)
	assert.Equal(t, testutil.Teacher1.ID, prop.SupervisorID)
	assert.Equal(t, []string{"t2@example.com"}, prop.CoSupervisors)
	assert.Len(t, env.Email.SentTo(testutil.Teacher2.Email), 1)

	var catalogue []proposal.Proposal
	do(t, app, http.MethodGet, "/v1/proposals?level=msc&search=GRAPH", s1, nil, http.StatusOK, &catalogue)
	require.Len(t, catalogue, 1)
	do(t, app, http.MethodGet, "/v1/proposals?level=bsc", s1, nil, http.StatusOK, &catalogue)
	assert.Empty(t, catalogue)

	applyPath := "/v1/proposals/" + prop.ID + "/applications"
	var a1, a2 application.Application
	do(t, app, http.MethodPost, applyPath, s1, nil, http.StatusCreated, &a1)
	do(t, app, http.MethodPost, applyPath, s2, nil, http.StatusCreated, &a2)
	assert.Equal(t, application.StatePending, a1.State)

	runHTTPTests(t, app, []httpTest{
		{name: "apply twice", method: http.MethodPost, path: applyPath, token: s1, wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: "you already have a pending or accepted application"})},
		{name: "teachers cannot apply", method: http.MethodPost, path: applyPath, token: t2, wantCode: http.StatusForbidden},
		{name: "only the supervisor lists applications", method: http.MethodGet, path: applyPath, token: t2, wantCode: http.StatusForbidden},
		{name: "only the supervisor decides", method: http.MethodPatch, path: "/v1/applications/" + a1.ID, token: t2,
			body: []byte(`{"decision": "accepted"}`), wantCode: http.StatusForbidden},
		{name: "decision is required", method: http.MethodPatch, path: "/v1/applications/" + a1.ID, token: t1,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"decision": "this field is required"}`)},
		{name: "unknown decision", method: http.MethodPatch, path: "/v1/applications/" + a1.ID, token: t1,
			body: []byte(`{"decision": "maybe"}`), wantCode: http.StatusBadRequest},
		{name: "another student's application", method: http.MethodGet, path: "/v1/applications/" + a1.ID, token: s2, wantCode: http.StatusForbidden},
	})

	var apps []application.Application
	do(t, app, http.MethodGet, applyPath, t1, nil, http.StatusOK, &apps)
	assert.Len(t, apps, 2)

	env.Reset()
	var accepted application.Application
	do(t, app, http.MethodPatch, "/v1/applications/"+a1.ID, t1, []byte(`{"decision": "accepted"}`), http.StatusOK, &accepted)
	assert.Equal(t, application.StateAccepted, accepted.State)

	// decision to the student and co-supervisor, cancellation to the sibling
	assert.Len(t, env.Email.SentTo(testutil.Student1.Email), 1)
	assert.Len(t, env.Email.SentTo(testutil.Teacher2.Email), 1)
	assert.Len(t, env.Email.SentTo(testutil.Student2.Email), 1)

	do(t, app, http.MethodGet, "/v1/applications", s2, nil, http.StatusOK, &apps)
	require.Len(t, apps, 1)
	assert.Equal(t, application.StateCanceled, apps[0].State)

	do(t, app, http.MethodGet, "/v1/proposals", s2, nil, http.StatusOK, &catalogue)
	assert.Empty(t, catalogue)
	do(t, app, http.MethodGet, "/v1/proposals/"+prop.ID, s2, nil, http.StatusOK, &prop)
	assert.True(t, prop.ManuallyArchived)

	runHTTPTests(t, app, []httpTest{
		{name: "decide again", method: http.MethodPatch, path: "/v1/applications/" + a2.ID, token: t1,
			body: []byte(`{"decision": "accepted"}`), wantCode: http.StatusConflict,
			wantData: marshallObj(t, httpErr{Error: "the application has already been evaluated"})},
		{name: "update with an accepted application", method: http.MethodPut, path: "/v1/proposals/" + prop.ID, token: t1,
			body: newProposalBody(t, env, "Renamed", 30), wantCode: http.StatusConflict},
		{name: "delete with an accepted application", method: http.MethodDelete, path: "/v1/proposals/" + prop.ID, token: t1,
			wantCode: http.StatusConflict},
	})

	t.Run("notifications", func(t *testing.T) {
		var notes []notification.Notification
		do(t, app, http.MethodGet, "/v1/notifications?unread=true", s1, nil, http.StatusOK, &notes)
		require.Len(t, notes, 1)
		assert.Equal(t, "Your application has been evaluated", notes[0].Object)

		do(t, app, http.MethodPost, "/v1/notifications/"+notes[0].ID+"/read", s2, nil, http.StatusNotFound, nil)
		do(t, app, http.MethodPost, "/v1/notifications/"+notes[0].ID+"/read", s1, nil, http.StatusNoContent, nil)
		do(t, app, http.MethodGet, "/v1/notifications?unread=true", s1, nil, http.StatusOK, &notes)
		assert.Empty(t, notes)
		do(t, app, http.MethodGet, "/v1/notifications", s1, nil, http.StatusOK, &notes)
		assert.Len(t, notes, 1)
	})
}

func TestProposalAPI_lifecycle(t *testing.T) {
	app, env := newApp(t)
	t1, t2 := getToken(t, testutil.Teacher1), getToken(t, testutil.Teacher2)
	s1 := getToken(t, testutil.Student1)

	var prop proposal.Proposal
	do(t, app, http.MethodPost, "/v1/proposals", t1, newProposalBody(t, env, "Compilers", 30, "a@x.it", "b@x.it"), http.StatusCreated, &prop)
	env.Reset()

	do(t, app, http.MethodPut, "/v1/proposals/"+prop.ID, t2, newProposalBody(t, env, "Stolen", 30), http.StatusForbidden, nil)

	do(t, app, http.MethodPut, "/v1/proposals/"+prop.ID, t1, newProposalBody(t, env, "Compilers II", 40, "b@x.it", "c@x.it"), http.StatusOK, &prop)
	assert.Equal(t, "Compilers II", prop.Title)
	assert.Len(t, env.Email.SentTo("a@x.it"), 1)
	assert.Len(t, env.Email.SentTo("c@x.it"), 1)
	assert.Empty(t, env.Email.SentTo("b@x.it"))

	var mine []proposal.Proposal
	do(t, app, http.MethodGet, "/v1/proposals/mine", t1, nil, http.StatusOK, &mine)
	assert.Len(t, mine, 1)
	do(t, app, http.MethodGet, "/v1/proposals/mine", s1, nil, http.StatusForbidden, nil)

	do(t, app, http.MethodPost, "/v1/proposals/"+prop.ID+"/archive", t1, nil, http.StatusOK, &prop)
	assert.True(t, prop.ManuallyArchived)
	do(t, app, http.MethodPost, "/v1/proposals/"+prop.ID+"/archive", t1, nil, http.StatusConflict, nil)

	do(t, app, http.MethodDelete, "/v1/proposals/"+prop.ID, t1, nil, http.StatusNoContent, nil)
	do(t, app, http.MethodGet, "/v1/proposals/mine", t1, nil, http.StatusOK, &mine)
	assert.Empty(t, mine)
}

func TestStartRequestAPI_flow(t *testing.T) {
	app, env := newApp(t)
	t1, c1 := getToken(t, testutil.Teacher1), getToken(t, testutil.Secretary)
	s1, s2 := getToken(t, testutil.Student1), getToken(t, testutil.Student2)

	body := marshallObj(t, startrequest.NewStartRequest{
		SupervisorID: testutil.Teacher1.ID,
		Title:        "Event sourcing",
		Description:  "A case study",
	})

	var sr startrequest.StartRequest
	do(t, app, http.MethodPost, "/v1/start-requests", s1, body, http.StatusCreated, &sr)
	assert.Equal(t, startrequest.StatusRequested, sr.Status)
	assert.Len(t, env.Email.SentTo(testutil.Secretary.Email), 1)

	path := "/v1/start-requests/" + sr.ID
	evaluation := path + "/evaluation"

	runHTTPTests(t, app, []httpTest{
		{name: "one outstanding request", method: http.MethodPost, path: "/v1/start-requests", token: s1, body: body, wantCode: http.StatusConflict},
		{name: "teachers cannot submit", method: http.MethodPost, path: "/v1/start-requests", token: t1, body: body, wantCode: http.StatusForbidden},
		{name: "students cannot evaluate", method: http.MethodPost, path: evaluation, token: s1, body: []byte(`{"decision": "approve"}`), wantCode: http.StatusForbidden},
		{name: "teacher before secretary", method: http.MethodPost, path: evaluation, token: t1, body: []byte(`{"decision": "approve"}`), wantCode: http.StatusConflict},
		{name: "secretary cannot request changes", method: http.MethodPost, path: evaluation, token: c1,
			body: []byte(`{"decision": "request_changes", "message": "x"}`), wantCode: http.StatusBadRequest},
		{name: "other students cannot read it", method: http.MethodGet, path: path, token: s2, wantCode: http.StatusForbidden},
	})

	do(t, app, http.MethodPost, evaluation, c1, []byte(`{"decision": "approve"}`), http.StatusOK, &sr)
	assert.Equal(t, startrequest.StatusSecretaryAccepted, sr.Status)

	runHTTPTests(t, app, []httpTest{
		{name: "changes need a message", method: http.MethodPost, path: evaluation, token: t1,
			body: []byte(`{"decision": "request_changes"}`), wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "a message is required when requesting changes"})},
	})

	do(t, app, http.MethodPost, evaluation, t1, []byte(`{"decision": "request_changes", "message": "Narrow the scope"}`), http.StatusOK, &sr)
	assert.Equal(t, startrequest.StatusChangesRequested, sr.Status)
	assert.Equal(t, "Narrow the scope", sr.ChangesRequested.String)

	update := marshallObj(t, startrequest.UpdateStartRequest{Title: "Event sourcing, narrowed", Description: "Smaller"})
	do(t, app, http.MethodPut, path, s2, update, http.StatusForbidden, nil)
	do(t, app, http.MethodPut, path, s1, update, http.StatusOK, &sr)
	assert.Equal(t, startrequest.StatusChanged, sr.Status)

	do(t, app, http.MethodPost, evaluation, t1, []byte(`{"decision": "approve"}`), http.StatusOK, &sr)
	assert.Equal(t, startrequest.StatusStarted, sr.Status)
	require.True(t, sr.ApprovalDate.Valid)
	assert.Equal(t, "2024-03-01", sr.ApprovalDate.Time.Format("2006-01-02"))

	var list []startrequest.StartRequest
	for _, token := range []string{s1, t1, c1} {
		do(t, app, http.MethodGet, "/v1/start-requests", token, nil, http.StatusOK, &list)
		assert.Len(t, list, 1)
	}
	do(t, app, http.MethodGet, "/v1/start-requests", s2, nil, http.StatusOK, &list)
	assert.Empty(t, list)
}

type clockData struct {
	DeltaDays int       `json:"delta_days"`
	Now       time.Time `json:"now"`
	Today     string    `json:"today"`
}

func TestClockAPI(t *testing.T) {
	app, env := newApp(t)
	t1, c1 := getToken(t, testutil.Teacher1), getToken(t, testutil.Secretary)
	s1 := getToken(t, testutil.Student1)

	var clk clockData
	do(t, app, http.MethodGet, "/v1/clock", s1, nil, http.StatusOK, &clk)
	assert.Equal(t, clockData{DeltaDays: 0, Now: clk.Now, Today: "2024-03-01"}, clk)
	assert.True(t, clk.Now.Equal(testutil.RealNow))

	var expiring, lasting proposal.Proposal
	do(t, app, http.MethodPost, "/v1/proposals", t1, newProposalBody(t, env, "Expiring", 7), http.StatusCreated, &expiring)
	do(t, app, http.MethodPost, "/v1/proposals", t1, newProposalBody(t, env, "Lasting", 30), http.StatusCreated, &lasting)
	var a application.Application
	do(t, app, http.MethodPost, "/v1/proposals/"+expiring.ID+"/applications", s1, nil, http.StatusCreated, &a)

	runHTTPTests(t, app, []httpTest{
		{name: "students cannot move the clock", method: http.MethodPut, path: "/v1/clock", token: s1, body: []byte(`{"delta": 1}`), wantCode: http.StatusForbidden},
		{name: "neither delta nor date", method: http.MethodPut, path: "/v1/clock", token: c1, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "provide either delta or date"})},
		{name: "both delta and date", method: http.MethodPut, path: "/v1/clock", token: c1, body: []byte(`{"delta": 1, "date": "2024-03-02"}`),
			wantCode: http.StatusBadRequest},
		{name: "malformed date", method: http.MethodPut, path: "/v1/clock", token: c1, body: []byte(`{"date": "tomorrow"}`),
			wantCode: http.StatusBadRequest},
	})

	do(t, app, http.MethodPut, "/v1/clock", c1, []byte(`{"delta": 7}`), http.StatusOK, &clk)
	assert.Equal(t, 7, clk.DeltaDays)
	assert.Equal(t, "2024-03-08", clk.Today)

	// the jump ran the sweeper
	var mine []proposal.Proposal
	do(t, app, http.MethodGet, "/v1/proposals/mine", t1, nil, http.StatusOK, &mine)
	require.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, p.ID == expiring.ID, p.ManuallyArchived, p.Title)
	}
	do(t, app, http.MethodGet, "/v1/applications/"+a.ID, s1, nil, http.StatusOK, &a)
	assert.Equal(t, application.StateCanceled, a.State)

	runHTTPTests(t, app, []httpTest{
		{name: "backward", method: http.MethodPut, path: "/v1/clock", token: c1, body: []byte(`{"delta": 3}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "the virtual clock cannot move backward"})},
		{name: "forced sweep by a teacher", method: http.MethodPost, path: "/v1/admin/sweep", token: t1, wantCode: http.StatusForbidden},
		{name: "forced sweep", method: http.MethodPost, path: "/v1/admin/sweep", token: c1, wantCode: http.StatusNoContent},
	})

	do(t, app, http.MethodPut, "/v1/clock", c1, []byte(`{"date": "2024-03-10"}`), http.StatusOK, &clk)
	assert.Equal(t, 9, clk.DeltaDays)
	assert.Equal(t, "2024-03-10", clk.Today)
}
