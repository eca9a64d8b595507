package kol_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horrible-little-slime/oaf/events"
	"github.com/horrible-little-slime/oaf/kol"
)

const (
	loggedOutPage = `<html><body><form name="loginform" action="login.php">` +
		`Login to the Kingdom of Loathing</form></body></html>`
	rolloverPage = `<html><body><b>The Kingdom is currently in Rollover</b>` +
		` Nightly Maintenance in progress.</body></html>`
	upPage     = `<html><body>The Kingdom of Loathing</body></html>`
	statusJSON = `{"playerid":"11","name":"oaf","pwd":"abc123"}`
)

// fakeSite stands in for kingdomofloathing.com: cookie-based login with a
// redirect handshake, a JSON status endpoint, a rollover banner on the root
// page while down, and a generic page endpoint whose responses tests queue.
type fakeSite struct {
	mu            sync.Mutex
	down          bool
	sessionCookie string
	loginCalls    int
	pageCalls     int
	pageQueue     []string

	server *httptest.Server
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{sessionCookie: "xyz"}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSite) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		io.WriteString(w, rolloverPage)
		if r.URL.Path == "/login.php" {
			f.loginCalls++
		}
		return
	}

	switch r.URL.Path {
	case "/":
		io.WriteString(w, upPage)
	case "/login.php":
		f.loginCalls++
		http.SetCookie(w, &http.Cookie{Name: "sess", Value: f.sessionCookie})
		w.Header().Set("Location", "/main.php")
		w.WriteHeader(http.StatusFound)
	case "/api.php", "/status.php":
		if f.authenticated(r) {
			io.WriteString(w, statusJSON)
		} else {
			io.WriteString(w, loggedOutPage)
		}
	case "/page.php", "/clan_whitelist.php":
		f.pageCalls++
		if len(f.pageQueue) > 0 {
			body := f.pageQueue[0]
			f.pageQueue = f.pageQueue[1:]
			io.WriteString(w, body)
		} else {
			io.WriteString(w, "page body")
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSite) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie("sess")
	return err == nil && cookie.Value == f.sessionCookie
}

func (f *fakeSite) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeSite) stats() (loginCalls, pageCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls, f.pageCalls
}

func (f *fakeSite) queuePages(bodies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageQueue = append(f.pageQueue, bodies...)
}

func newTestSession(t *testing.T, f *fakeSite) (*kol.Session, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	session := kol.NewSession("testbot", "hunter2", bus, kol.WithBaseURL(f.server.URL))
	t.Cleanup(session.Rollover().Stop)
	return session, bus
}

// Concurrent EnsureLoggedIn calls against an invalid session collapse
// into a single login handshake, and every caller sees success.
func TestEnsureLoggedInSingleHandshakeUnderContention(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	const callers = 8
	results := make([]bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = session.EnsureLoggedIn(context.Background())
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.True(t, ok, "caller %d should have resolved true", i)
	}
	loginCalls, _ := f.stats()
	assert.Equal(t, 1, loginCalls, "exactly one handshake should have been issued")
}

// With the detector down, login is never attempted and requests return the
// fallback without touching the network.
func TestRolloverShortCircuit(t *testing.T) {
	f := newFakeSite(t)
	f.setDown(true)
	session, _ := newTestSession(t, f)

	require.True(t, session.Rollover().Probe(context.Background()))

	assert.False(t, session.EnsureLoggedIn(context.Background()))

	got := session.Try(context.Background(), kol.Request{Path: "page.php"}, "fallback")
	assert.Equal(t, "fallback", got)

	loginCalls, pageCalls := f.stats()
	assert.Equal(t, 0, loginCalls, "no login attempt may happen during rollover")
	assert.Equal(t, 0, pageCalls, "no request may be issued during rollover")
}

// A response classifying as logged out triggers exactly one re-login and
// one retry, and the caller receives the retried call's body.
func TestTryRetriesOnceOnAuthFailure(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	f.queuePages(loggedOutPage)

	got := session.Try(context.Background(), kol.Request{Path: "page.php"}, "")
	assert.Equal(t, "page body", got, "the second call's body must be returned, not the first's")

	loginCalls, pageCalls := f.stats()
	assert.Equal(t, 2, pageCalls, "exactly one retry")
	assert.Equal(t, 1, loginCalls)
}

// When the retry also classifies as logged out, the executor gives up
// and returns the fallback after exactly one retry.
func TestTryGivesUpAfterOneRetry(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	f.queuePages(loggedOutPage, loggedOutPage)

	got := session.Try(context.Background(), kol.Request{Path: "page.php"}, "fallback")
	assert.Equal(t, "fallback", got)

	_, pageCalls := f.stats()
	assert.Equal(t, 2, pageCalls, "one attempt plus exactly one retry")
}

// Transport-level failures are absorbed into the fallback.
func TestTryReturnsFallbackOnTransportError(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)
	f.server.Close()

	got := session.Try(context.Background(), kol.Request{Path: "page.php"}, "fallback")
	assert.Equal(t, "fallback", got)
}

// Two concurrent RunExclusive sequences never interleave; the second
// sequence starts only after the first callback has fully returned.
func TestRunExclusiveSerializesSequences(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	var mu sync.Mutex
	var order []string
	record := func(event string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, event)
	}

	var wg sync.WaitGroup
	run := func(name string) {
		defer wg.Done()
		_, err := kol.RunExclusive(context.Background(), session, func(ctx context.Context) (struct{}, error) {
			record(name + " start")
			time.Sleep(20 * time.Millisecond)
			record(name + " end")
			return struct{}{}, nil
		})
		require.NoError(t, err)
	}

	wg.Add(2)
	go run("a")
	go run("b")
	wg.Wait()

	require.Len(t, order, 4)
	assert.Equal(t, order[0][:1], order[1][:1], "first sequence must finish before the second starts")
	assert.Equal(t, order[2][:1], order[3][:1])
}

// The down-to-up transition is announced exactly once, on the next
// successful login.
func TestRolloverResumeSignalFiresOnce(t *testing.T) {
	f := newFakeSite(t)
	f.setDown(true)
	session, bus := newTestSession(t, f)
	resumed := bus.Subscribe(events.TopicRolloverComplete)

	require.True(t, session.Rollover().Probe(context.Background()))

	f.setDown(false)
	require.False(t, session.Rollover().Probe(context.Background()))

	require.True(t, session.EnsureLoggedIn(context.Background()))

	select {
	case <-resumed:
	case <-time.After(time.Second):
		t.Fatal("expected a rollover-complete event after the first successful login")
	}

	require.True(t, session.EnsureLoggedIn(context.Background()))
	select {
	case <-resumed:
		t.Fatal("rollover-complete must not be re-emitted by later logins")
	default:
	}
}

// Stop is terminal: a later down transition must not spin up a probe loop
// against the already-closed stop channel, and manual probes still track
// state correctly, resume signal included.
func TestRolloverDetectorStopIsTerminal(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)
	detector := session.Rollover()

	detector.Stop()
	detector.Stop()

	f.setDown(true)
	require.True(t, detector.Probe(context.Background()))
	require.True(t, detector.Active())

	f.setDown(false)
	require.False(t, detector.Probe(context.Background()))
	assert.True(t, detector.ConsumeResumeSignal(), "manual probing still arms the resume signal after Stop")
	assert.False(t, detector.ConsumeResumeSignal())
}

// A request against a session that has never logged in performs the
// handshake (capturing cookie and request token) and returns the endpoint's
// body.
func TestTryPerformsHandshakeAndCapturesCredentials(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	got := session.Try(context.Background(), kol.Request{
		Path:   "status.php",
		Params: url.Values{"what": {"status"}},
	}, "")
	assert.Equal(t, statusJSON, got)

	creds := session.Credentials()
	assert.Contains(t, creds.Cookies, "sess=xyz")
	assert.Equal(t, "abc123", creds.PasswordHash)

	loginCalls, _ := f.stats()
	assert.Equal(t, 1, loginCalls)
}

// A custom logged-out classifier overrides the default signature.
func TestTryUsesPluggableLoggedOutClassifier(t *testing.T) {
	f := newFakeSite(t)
	session, _ := newTestSession(t, f)

	f.queuePages("NOT YOU", "for real this time")

	got := session.Try(context.Background(), kol.Request{
		Path:      "page.php",
		LoggedOut: func(body string) bool { return body == "NOT YOU" },
	}, "")
	assert.Equal(t, "for real this time", got)

	_, pageCalls := f.stats()
	assert.Equal(t, 2, pageCalls)
}
