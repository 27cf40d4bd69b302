// Package appiumtest provides an in-process fake Appium server that models
// the ApiDemos screens used by the end-to-end scenario. It is meant for
// tests only.
package appiumtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ApiDemos identifiers.
const (
	PackageName        = "io.appium.android.apis"
	MainActivity       = ".ApiDemos"
	LogTextBoxActivity = ".text.LogTextBox"
	LogTextID          = "io.appium.android.apis:id/text"
	DefaultAddedText   = "This is a test\n"
	ServerVersion      = "2.11.0"
)

// Screen names used by the model.
const (
	ScreenMain          = "main"
	ScreenAccessibility = "accessibility"
	ScreenText          = "text"
	ScreenLogTextBox    = "logtextbox"
)

// landscapeVisible is how many list rows fit on screen in landscape.
const landscapeVisible = 6

type screenDef struct {
	activity string
	items    []string          // rows, located by accessibility id or text
	links    map[string]string // row -> screen it opens
	scroll   bool              // has a scrollable list
}

var screens = map[string]screenDef{
	ScreenMain: {
		activity: MainActivity,
		items: []string{"Access'ibility", "Accessibility", "Animation", "App", "Content", "Graphics",
			"Media", "NFC", "OS", "Preference", "Text", "Views"},
		links:  map[string]string{"Accessibility": ScreenAccessibility, "Text": ScreenText},
		scroll: true,
	},
	ScreenAccessibility: {
		activity: MainActivity,
		items: []string{"Accessibility Node Provider", "Accessibility Node Querying",
			"Accessibility Service", "Custom View"},
		scroll: true,
	},
	ScreenText: {
		activity: MainActivity,
		items:    []string{"KeyEventText", "Linkify", "LogTextBox", "Marquee", "Unicode"},
		links:    map[string]string{"LogTextBox": ScreenLogTextBox},
		scroll:   true,
	},
	ScreenLogTextBox: {
		activity: LogTextBoxActivity,
		items:    []string{"Add", "Do nothing"},
	},
}

type element struct {
	screen     string
	name       string
	generation int
}

type session struct {
	id          string
	stack       []string // screen stack, top is current
	orientation string
	scrolled    bool // list scrolled so every row is visible
	generation  int  // bumped whenever the view hierarchy is rebuilt
	logText     string
	elements    map[string]element
}

func (s *session) current() string {
	return s.stack[len(s.stack)-1]
}

func (s *session) navigate(to string) {
	s.stack = append(s.stack, to)
	s.scrolled = false
	s.generation++
}

// visible reports whether a row can be located without scrolling.
func (s *session) visible(name string) bool {
	def := screens[s.current()]
	for i, item := range def.items {
		if item != name {
			continue
		}
		if s.orientation == "LANDSCAPE" && def.scroll && !s.scrolled && i >= landscapeVisible {
			return false
		}
		return true
	}
	return false
}

// Server is a fake Appium server. Set options through NewServer or
// Configure; handlers read them under the server lock.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	sessions map[string]*session
	nextID   int
	requests []string

	// Installed lists packages reported as installed.
	Installed map[string]bool
	// RejectSessions makes POST /session fail with "session not created".
	RejectSessions bool
	// Legacy makes mobile: commands unknown so clients use old endpoints.
	Legacy bool
	// StatusCode is returned by GET /status.
	StatusCode int
	// Missing lists rows that never resolve, as if the app lacked them.
	Missing map[string]bool
	// AddedText is appended to the log text box by "Add".
	AddedText string
	// FailingScripts lists mobile: commands answered with "unknown error".
	FailingScripts map[string]bool
}

// Option configures a Server before it starts.
type Option func(*Server)

// WithLegacyEndpoints disables mobile: commands.
func WithLegacyEndpoints() Option {
	return func(s *Server) { s.Legacy = true }
}

// WithRejectSessions makes every session request fail.
func WithRejectSessions() Option {
	return func(s *Server) { s.RejectSessions = true }
}

// WithStatusCode sets the GET /status response code.
func WithStatusCode(code int) Option {
	return func(s *Server) { s.StatusCode = code }
}

// WithMissing hides rows from every screen.
func WithMissing(names ...string) Option {
	return func(s *Server) {
		for _, n := range names {
			s.Missing[n] = true
		}
	}
}

// WithoutApp reports the ApiDemos package as not installed.
func WithoutApp() Option {
	return func(s *Server) { delete(s.Installed, PackageName) }
}

// WithFailingScript makes a mobile: command fail with a server error
// rather than "unknown method", so clients do not fall back.
func WithFailingScript(script string) Option {
	return func(s *Server) { s.FailingScripts[script] = true }
}

// WithAddedText changes what "Add" appends to the log text box.
func WithAddedText(text string) Option {
	return func(s *Server) { s.AddedText = text }
}

// NewServer starts a fake server with ApiDemos installed.
// Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		sessions:   make(map[string]*session),
		Installed:  map[string]bool{PackageName: true},
		StatusCode: http.StatusOK,
		Missing:    make(map[string]bool),
		AddedText:  DefaultAddedText,

		FailingScripts: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /appium/sessions", s.handleSessions)
	mux.HandleFunc("POST /session", s.handleCreateSession)
	mux.HandleFunc("DELETE /session/{sid}", s.withSession(s.handleDeleteSession))
	mux.HandleFunc("POST /session/{sid}/element", s.withSession(s.handleFindElement))
	mux.HandleFunc("POST /session/{sid}/element/{eid}/click", s.withSession(s.handleClick))
	mux.HandleFunc("GET /session/{sid}/element/{eid}/text", s.withSession(s.handleText))
	mux.HandleFunc("POST /session/{sid}/execute/sync", s.withSession(s.handleExecute))
	mux.HandleFunc("POST /session/{sid}/appium/device/app_installed", s.withSession(s.handleAppInstalled))
	mux.HandleFunc("GET /session/{sid}/appium/device/current_activity", s.withSession(s.handleCurrentActivity))
	mux.HandleFunc("GET /session/{sid}/appium/device/current_package", s.withSession(s.handleCurrentPackage))
	mux.HandleFunc("POST /session/{sid}/back", s.withSession(s.handleBack))
	mux.HandleFunc("GET /session/{sid}/orientation", s.withSession(s.handleGetOrientation))
	mux.HandleFunc("POST /session/{sid}/orientation", s.withSession(s.handleSetOrientation))
	mux.HandleFunc("GET /session/{sid}/screenshot", s.withSession(s.handleScreenshot))
	mux.HandleFunc("GET /session/{sid}/source", s.withSession(s.handleSource))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown method", fmt.Sprintf("%s %s is not supported", r.Method, r.URL.Path))
	})

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Requests returns "METHOD /path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// CountRequests returns how many requests had the given prefix.
func (s *Server) CountRequests(prefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// ActiveSessions returns the number of open sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Screen returns the current screen of a session, or "" if unknown.
func (s *Server) Screen(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.current()
	}
	return ""
}

// Orientation returns the orientation of a session, or "" if unknown.
func (s *Server) Orientation(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.orientation
	}
	return ""
}

// LogText returns the contents of the log text box of a session.
func (s *Server) LogText(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.logText
	}
	return ""
}

// Configure runs fn with the server locked, for changing options while
// sessions are live.
func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

// withSession resolves {sid} and holds the server lock for the handler.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		sess, ok := s.sessions[r.PathValue("sid")]
		if !ok {
			writeError(w, http.StatusNotFound, "invalid session id",
				fmt.Sprintf("session %s is either terminated or not started", r.PathValue("sid")))
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	code := s.StatusCode
	s.mu.Unlock()

	if code != http.StatusOK {
		writeError(w, code, "unknown error", "server is starting")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value": map[string]interface{}{
			"ready":   true,
			"message": "The server is ready to accept new connections",
			"build":   map[string]interface{}{"version": ServerVersion},
		},
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]interface{}, 0, len(s.sessions))
	for id := range s.sessions {
		list = append(list, map[string]interface{}{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": list})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Capabilities struct {
			AlwaysMatch map[string]interface{} `json:"alwaysMatch"`
		} `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	caps := body.Capabilities.AlwaysMatch

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RejectSessions {
		writeError(w, http.StatusInternalServerError, "session not created",
			"A new session could not be created. Details: rejected by test server")
		return
	}
	for _, required := range []string{"platformName", "appium:app", "appium:automationName"} {
		if v, _ := caps[required].(string); v == "" {
			writeError(w, http.StatusInternalServerError, "session not created",
				fmt.Sprintf("A new session could not be created. Details: '%s' capability is required", required))
			return
		}
	}

	s.nextID++
	id := fmt.Sprintf("fake-session-%d", s.nextID)
	s.sessions[id] = &session{
		id:          id,
		stack:       []string{ScreenMain},
		orientation: "PORTRAIT",
		elements:    make(map[string]element),
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value": map[string]interface{}{
			"sessionId":    id,
			"capabilities": caps,
		},
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, _ *http.Request, sess *session) {
	delete(s.sessions, sess.id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": nil})
}

func (s *Server) handleFindElement(w http.ResponseWriter, r *http.Request, sess *session) {
	var body struct {
		Using string `json:"using"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}

	name, ok := s.locate(sess, body.Using, body.Value)
	if !ok {
		writeError(w, http.StatusNotFound, "no such element",
			"An element could not be located on the page using the given search parameters.")
		return
	}

	eid := fmt.Sprintf("el-%d-%d", sess.generation, len(sess.elements)+1)
	sess.elements[eid] = element{screen: sess.current(), name: name, generation: sess.generation}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"value": map[string]interface{}{
			"element-6066-11e4-a52e-4f735466cecf": eid,
			"ELEMENT":                             eid,
		},
	})
}

func (s *Server) locate(sess *session, using, value string) (string, bool) {
	switch using {
	case "accessibility id":
		if s.Missing[value] || !sess.visible(value) {
			return "", false
		}
		return value, true
	case "id":
		if value == LogTextID && sess.current() == ScreenLogTextBox {
			return LogTextID, true
		}
		return "", false
	case "-android uiautomator":
		const prefix = `new UiScrollable(new UiSelector().scrollable(true)).scrollTextIntoView("`
		if !strings.HasPrefix(value, prefix) || !strings.HasSuffix(value, `")`) {
			return "", false
		}
		text := strings.TrimSuffix(strings.TrimPrefix(value, prefix), `")`)
		if s.Missing[text] || !screens[sess.current()].scroll {
			return "", false
		}
		sess.scrolled = true
		if !sess.visible(text) {
			return "", false
		}
		return text, true
	default:
		return "", false
	}
}

// resolve returns the live element for {eid}, writing an error if stale.
func resolve(w http.ResponseWriter, r *http.Request, sess *session) (element, bool) {
	el, ok := sess.elements[r.PathValue("eid")]
	if !ok || el.generation != sess.generation || el.screen != sess.current() {
		writeError(w, http.StatusNotFound, "stale element reference",
			"The element is no longer attached to the DOM")
		return element{}, false
	}
	return el, true
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request, sess *session) {
	el, ok := resolve(w, r, sess)
	if !ok {
		return
	}

	if to, ok := screens[el.screen].links[el.name]; ok {
		sess.navigate(to)
	} else if el.screen == ScreenLogTextBox && el.name == "Add" {
		sess.logText += s.AddedText
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": nil})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request, sess *session) {
	el, ok := resolve(w, r, sess)
	if !ok {
		return
	}

	text := el.name
	if el.name == LogTextID {
		text = sess.logText
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": text})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request, sess *session) {
	var body struct {
		Script string                   `json:"script"`
		Args   []map[string]interface{} `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	if s.Legacy {
		writeError(w, http.StatusNotFound, "unknown method", "Unknown mobile command "+body.Script)
		return
	}
	if s.FailingScripts[body.Script] {
		writeError(w, http.StatusInternalServerError, "unknown error", body.Script+" failed on the device")
		return
	}

	var args map[string]interface{}
	if len(body.Args) > 0 {
		args = body.Args[0]
	}

	switch body.Script {
	case "mobile: isAppInstalled":
		appID, _ := args["appId"].(string)
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": s.Installed[appID]})
	case "mobile: getCurrentActivity":
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": screens[sess.current()].activity})
	case "mobile: getCurrentPackage":
		writeJSON(w, http.StatusOK, map[string]interface{}{"value": PackageName})
	default:
		writeError(w, http.StatusNotFound, "unknown method", "Unknown mobile command "+body.Script)
	}
}

func (s *Server) handleAppInstalled(w http.ResponseWriter, r *http.Request, _ *session) {
	var body struct {
		AppID string `json:"appId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": s.Installed[body.AppID]})
}

func (s *Server) handleCurrentActivity(w http.ResponseWriter, _ *http.Request, sess *session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": screens[sess.current()].activity})
}

func (s *Server) handleCurrentPackage(w http.ResponseWriter, _ *http.Request, _ *session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": PackageName})
}

func (s *Server) handleBack(w http.ResponseWriter, _ *http.Request, sess *session) {
	if len(sess.stack) > 1 {
		sess.stack = sess.stack[:len(sess.stack)-1]
		sess.scrolled = false
		sess.generation++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": nil})
}

func (s *Server) handleGetOrientation(w http.ResponseWriter, _ *http.Request, sess *session) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": sess.orientation})
}

func (s *Server) handleSetOrientation(w http.ResponseWriter, r *http.Request, sess *session) {
	var body struct {
		Orientation string `json:"orientation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid argument", err.Error())
		return
	}
	o := strings.ToUpper(body.Orientation)
	if o != "PORTRAIT" && o != "LANDSCAPE" {
		writeError(w, http.StatusBadRequest, "invalid argument", "unknown orientation "+body.Orientation)
		return
	}
	if o != sess.orientation {
		// Rotation recreates the activity
		sess.orientation = o
		sess.generation++
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": nil})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, _ *http.Request, _ *session) {
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": base64.StdEncoding.EncodeToString(png)})
}

func (s *Server) handleSource(w http.ResponseWriter, _ *http.Request, sess *session) {
	var b strings.Builder
	fmt.Fprintf(&b, `<hierarchy rotation="%d">`, map[string]int{"PORTRAIT": 0, "LANDSCAPE": 1}[sess.orientation])
	for _, item := range screens[sess.current()].items {
		fmt.Fprintf(&b, `<android.widget.TextView content-desc=%q text=%q/>`, item, item)
	}
	if sess.current() == ScreenLogTextBox {
		fmt.Fprintf(&b, `<android.widget.TextView resource-id=%q text=%q/>`, LogTextID, sess.logText)
	}
	b.WriteString(`</hierarchy>`)
	writeJSON(w, http.StatusOK, map[string]interface{}{"value": b.String()})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"value": map[string]interface{}{
			"error":      code,
			"message":    message,
			"stacktrace": "",
		},
	})
}
