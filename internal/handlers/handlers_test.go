package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"live-class-backend/internal/live"
	"live-class-backend/internal/models"
	"live-class-backend/internal/pubsub"
	"live-class-backend/internal/services"
	"live-class-backend/internal/store"
	"live-class-backend/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type testAPI struct {
	t      *testing.T
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	broker := pubsub.NewBroker(64)
	st := store.WithChanges(store.NewMemoryStore(), broker)
	auth := services.NewAuthService(st, "test-secret")
	sessions := services.NewSessionRegistry(st, 5)
	questions := services.NewQuestionChannel(st)
	submissions := services.NewSubmissionStore(st)
	feed := services.NewLiveFeed(sessions, questions, submissions, broker)

	rt := &Router{
		Auth:     auth,
		Login:    NewAuthHandler(auth),
		Sessions: NewClassSessionHandler(sessions),
		Question: NewQuestionHandler(questions, submissions),
		Board:    NewBoardHandler(sessions, questions, submissions, feed, ws.NewHub(broker)),
	}
	engine := gin.New()
	rt.Register(engine)
	return &testAPI{t: t, engine: engine}
}

func (a *testAPI) do(method, path, token string, body any, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	if out != nil && w.Code < 300 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code
}

func (a *testAPI) register(login, role string) (string, string) {
	a.t.Helper()
	var resp AuthResponse
	code := a.do(http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Login: login, Password: "secret123", Role: role}, &resp)
	if code != http.StatusCreated {
		a.t.Fatalf("register %s: status %d", login, code)
	}
	return resp.Token, resp.User.ID
}

func TestClassFlow(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("1001", models.RoleTeacher)
	otherTeacher, _ := api.register("1002", models.RoleTeacher)
	student, studentID := api.register("2001", models.RoleStudent)
	classmate, _ := api.register("2002", models.RoleStudent)

	var session models.ClassSession
	if code := api.do(http.MethodPost, "/api/v1/class-sessions", teacher, nil, &session); code != http.StatusCreated {
		t.Fatalf("start: status %d", code)
	}
	if code := api.do(http.MethodPost, "/api/v1/class-sessions", student, nil, nil); code != http.StatusForbidden {
		t.Fatalf("student start: status %d, want 403", code)
	}

	var joined PublicSession
	if code := api.do(http.MethodPost, "/api/v1/class-sessions/join", student, JoinRequest{Code: session.Code}, &joined); code != http.StatusOK {
		t.Fatalf("join: status %d", code)
	}
	if joined.ID != session.ID {
		t.Fatalf("joined %s, want %s", joined.ID, session.ID)
	}

	base := "/api/v1/class-sessions/" + session.ID
	publish := PublishRequest{Text: "7 * 6 = ?", CorrectAnswer: "42"}
	if code := api.do(http.MethodPost, base+"/questions", otherTeacher, publish, nil); code != http.StatusForbidden {
		t.Fatalf("foreign publish: status %d, want 403", code)
	}
	var q models.ClassQuestion
	if code := api.do(http.MethodPost, base+"/questions", teacher, publish, &q); code != http.StatusCreated {
		t.Fatalf("publish: status %d", code)
	}

	qpath := base + "/questions/" + q.ID
	if code := api.do(http.MethodPut, qpath+"/submission", student, SubmitRequest{Answer: "4 2"}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad answer: status %d, want 400", code)
	}
	if code := api.do(http.MethodPut, qpath+"/submission", teacher, SubmitRequest{Answer: "42"}, nil); code != http.StatusForbidden {
		t.Fatalf("teacher submit: status %d, want 403", code)
	}
	for token, answer := range map[string]string{student: "42", classmate: "41"} {
		if code := api.do(http.MethodPut, qpath+"/submission", token, SubmitRequest{Answer: answer}, nil); code != http.StatusOK {
			t.Fatalf("submit: status %d", code)
		}
	}

	var board SnapshotResponse
	if code := api.do(http.MethodGet, base+"/snapshot", "", nil, &board); code != http.StatusOK {
		t.Fatalf("snapshot: status %d", code)
	}
	if board.Question == nil || board.Question.CorrectAnswer != "42" || len(board.Submissions) != 2 {
		t.Fatalf("board snapshot = %+v", board)
	}

	var mine SnapshotResponse
	api.do(http.MethodGet, base+"/snapshot", student, nil, &mine)
	if mine.Question.CorrectAnswer != "" || len(mine.Submissions) != 1 || mine.Submissions[0].StudentID != studentID {
		t.Fatalf("student snapshot = %+v", mine)
	}

	var current models.ClassQuestion
	if code := api.do(http.MethodGet, base+"/questions/current", "", nil, &current); code != http.StatusOK || current.ID != q.ID {
		t.Fatalf("current: status %d, id %s", code, current.ID)
	}
	var subs []models.ClassSubmission
	if code := api.do(http.MethodGet, qpath+"/submissions", "", nil, &subs); code != http.StatusOK || len(subs) != 2 {
		t.Fatalf("submissions: status %d, %d rows", code, len(subs))
	}

	if code := api.do(http.MethodPost, base+"/end", otherTeacher, nil, nil); code != http.StatusForbidden {
		t.Fatalf("foreign end: status %d, want 403", code)
	}
	if code := api.do(http.MethodPost, base+"/end", teacher, nil, nil); code != http.StatusOK {
		t.Fatalf("end: status %d", code)
	}
	if code := api.do(http.MethodPost, "/api/v1/class-sessions/join", student, JoinRequest{Code: session.Code}, nil); code != http.StatusNotFound {
		t.Fatalf("join after end: status %d, want 404", code)
	}

	var owned []models.ClassSession
	if code := api.do(http.MethodGet, "/api/v1/class-sessions", teacher, nil, &owned); code != http.StatusOK || len(owned) != 1 || owned[0].Active {
		t.Fatalf("list owned: status %d, %+v", code, owned)
	}
}

func TestStatusMapping(t *testing.T) {
	api := newTestAPI(t)
	student, _ := api.register("2001", models.RoleStudent)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		want   int
	}{
		{"bad code", http.MethodPost, "/api/v1/class-sessions/join", student, JoinRequest{Code: "12ab"}, http.StatusBadRequest},
		{"unknown code", http.MethodPost, "/api/v1/class-sessions/join", student, JoinRequest{Code: "000000"}, http.StatusNotFound},
		{"anonymous join", http.MethodPost, "/api/v1/class-sessions/join", "", JoinRequest{Code: "000000"}, http.StatusUnauthorized},
		{"unknown session", http.MethodGet, "/api/v1/class-sessions/nope", "", nil, http.StatusNotFound},
		{"unknown snapshot", http.MethodGet, "/api/v1/class-sessions/nope/snapshot", "", nil, http.StatusNotFound},
		{"unknown current", http.MethodGet, "/api/v1/class-sessions/nope/questions/current", "", nil, http.StatusNotFound},
		{"bad login", http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Login: "2001", Password: "nope"}, http.StatusUnauthorized},
		{"duplicate login", http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Login: "2001", Password: "secret123", Role: "student"}, http.StatusBadRequest},
		{"letters in login", http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Login: "alice", Password: "secret123", Role: "student"}, http.StatusBadRequest},
		{"login too long", http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Login: strings.Repeat("1", 33), Password: "secret123", Role: "student"}, http.StatusBadRequest},
		{"letters in login on sign in", http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Login: "alice", Password: "secret123"}, http.StatusBadRequest},
		{"anonymous me", http.MethodGet, "/api/v1/auth/me", "", nil, http.StatusUnauthorized},
		{"health", http.MethodGet, "/health", "", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := api.do(tt.method, tt.path, tt.token, tt.body, nil); got != tt.want {
				t.Fatalf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrTransport, http.StatusServiceUnavailable},
		{services.ErrInvalidCredentials, http.StatusUnauthorized},
		{store.ErrConflict, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestViewWebSocketPushesBoard(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("1001", models.RoleTeacher)
	student, _ := api.register("2001", models.RoleStudent)

	var session models.ClassSession
	api.do(http.MethodPost, "/api/v1/class-sessions", teacher, nil, &session)

	srv := httptest.NewServer(api.engine)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/class-sessions/" + session.ID + "/view"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	readView := func(pred func(live.View) bool) live.View {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var msg struct {
				Type string    `json:"type"`
				Data live.View `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				t.Fatalf("ReadJSON: %v", err)
			}
			if msg.Type == ws.TypeView && pred(msg.Data) {
				return msg.Data
			}
		}
	}

	readView(func(v live.View) bool { return v.Question == nil })

	var q models.ClassQuestion
	api.do(http.MethodPost, "/api/v1/class-sessions/"+session.ID+"/questions", teacher, PublishRequest{Text: "1+1", CorrectAnswer: "2"}, &q)
	api.do(http.MethodPut, "/api/v1/class-sessions/"+session.ID+"/questions/"+q.ID+"/submission", student, SubmitRequest{Answer: "2"}, nil)

	v := readView(func(v live.View) bool { return v.Stats.Total == 1 })
	if v.Question.ID != q.ID || v.Stats.Correct != 1 {
		t.Fatalf("view = %+v", v)
	}
}

func TestViewWebSocketUnknownSession(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.engine)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/class-sessions/nope/view", nil)
	if err == nil {
		t.Fatal("Dial succeeded for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("response = %+v, want 404", resp)
	}
}

func TestStudentReadsAreRedacted(t *testing.T) {
	api := newTestAPI(t)
	teacher, _ := api.register("1001", models.RoleTeacher)
	student, studentID := api.register("2001", models.RoleStudent)
	classmate, _ := api.register("2002", models.RoleStudent)

	var session models.ClassSession
	api.do(http.MethodPost, "/api/v1/class-sessions", teacher, nil, &session)
	base := "/api/v1/class-sessions/" + session.ID
	var q models.ClassQuestion
	api.do(http.MethodPost, base+"/questions", teacher, PublishRequest{Text: "7 * 6 = ?", CorrectAnswer: "42"}, &q)
	qpath := base + "/questions/" + q.ID
	api.do(http.MethodPut, qpath+"/submission", student, SubmitRequest{Answer: "42"}, nil)
	api.do(http.MethodPut, qpath+"/submission", classmate, SubmitRequest{Answer: "41"}, nil)

	tests := []struct {
		name       string
		token      string
		wantAnswer string
		wantRows   int
	}{
		{"teacher", teacher, "42", 2},
		{"anonymous", "", "42", 2},
		{"student", student, "", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var current models.ClassQuestion
			if code := api.do(http.MethodGet, base+"/questions/current", tt.token, nil, &current); code != http.StatusOK {
				t.Fatalf("current: status %d", code)
			}
			if current.ID != q.ID || current.CorrectAnswer != tt.wantAnswer {
				t.Fatalf("current = %+v, want correct answer %q", current, tt.wantAnswer)
			}
			var subs []models.ClassSubmission
			if code := api.do(http.MethodGet, qpath+"/submissions", tt.token, nil, &subs); code != http.StatusOK {
				t.Fatalf("submissions: status %d", code)
			}
			if len(subs) != tt.wantRows {
				t.Fatalf("submissions = %+v, want %d rows", subs, tt.wantRows)
			}
			if tt.token == student && subs[0].StudentID != studentID {
				t.Fatalf("student sees row of %s", subs[0].StudentID)
			}
		})
	}

	srv := httptest.NewServer(api.engine)
	defer srv.Close()
	eventsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/class-sessions/" + session.ID + "/events"

	_, resp, err := websocket.DefaultDialer.Dial(eventsURL+"?token="+student, nil)
	if err == nil {
		t.Fatal("student opened the raw change feed")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("response = %+v, want 403", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(eventsURL+"?token="+teacher, nil)
	if err != nil {
		t.Fatalf("teacher Dial: %v", err)
	}
	conn.Close()
}

func TestMeReturnsTokenOwner(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.register("2001", models.RoleStudent)

	var me models.User
	if code := api.do(http.MethodGet, "/api/v1/auth/me", token, nil, &me); code != http.StatusOK {
		t.Fatalf("me: status %d", code)
	}
	if me.ID != id || me.Login != "2001" || me.Role != models.RoleStudent {
		t.Fatalf("me = %+v", me)
	}
}
