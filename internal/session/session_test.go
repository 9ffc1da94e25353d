package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/canbridge/internal/deviceconfig"
)

// fakeAdapter is an httptest-backed adapter with switchable behaviour.
type fakeAdapter struct {
	server *httptest.Server

	mu         sync.Mutex
	config     string
	status     string
	hangStatus bool
	postCode   int
	postReply  string
	posts      []string

	statusCalls atomic.Int32
	configCalls atomic.Int32
}

func newFakeAdapter(t *testing.T, config string) *fakeAdapter {
	t.Helper()
	f := &fakeAdapter{
		config:    config,
		status:    `{"Uptime (seconds)":1,"CAN Driver status":"running"}`,
		postCode:  http.StatusOK,
		postReply: "OK, rebooting",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		f.statusCalls.Add(1)
		f.mu.Lock()
		hang, body := f.hangStatus, f.status
		f.mu.Unlock()
		if hang {
			<-r.Context().Done()
			return
		}
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/config", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			f.configCalls.Add(1)
			w.Write([]byte(f.config))
		case http.MethodPost:
			b, _ := io.ReadAll(r.Body)
			f.posts = append(f.posts, string(b))
			w.WriteHeader(f.postCode)
			w.Write([]byte(f.postReply))
		}
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAdapter) client() *deviceconfig.Client {
	c := deviceconfig.NewClientWithURL(f.server.URL)
	c.SetTimeout(0)
	return c
}

func (f *fakeAdapter) postBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

func (f *fakeAdapter) set(fn func(f *fakeAdapter)) {
	f.mu.Lock()
	fn(f)
	f.mu.Unlock()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

const homeConfig = `{"wifi_enabled": true, "wifi_ssid": "home"}`

func testOptions() Options {
	return Options{Timeout: time.Second, PollInterval: 0, ReloadDelay: time.Hour}
}

func loadedEditor(t *testing.T, f *fakeAdapter, opts Options) *ConfigEditor {
	t.Helper()
	e := NewConfigEditor(f.client(), opts)
	t.Cleanup(e.Close)
	if err := e.FetchUpdate(context.Background()); err != nil {
		t.Fatalf("FetchUpdate() error = %v", err)
	}
	return e
}

func TestOptions(t *testing.T) {
	d := DefaultOptions()
	if d.Timeout != 5*time.Second || d.PollInterval != 2*time.Second || d.ReloadDelay != 2*time.Second {
		t.Errorf("DefaultOptions() = %+v", d)
	}

	o := OneShotOptions()
	if o.Timeout != 0 || o.PollInterval != 0 {
		t.Errorf("OneShotOptions() = %+v, want no timeout and a single fetch", o)
	}

	m := OptionsFromMillis(1500, -1, 0)
	if m.Timeout != 1500*time.Millisecond || m.PollInterval != 0 || m.ReloadDelay != 0 {
		t.Errorf("OptionsFromMillis() = %+v", m)
	}
}

func TestStatusPoller_FetchUpdate(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	p := NewStatusPoller(f.client(), testOptions())

	if p.Message() != MsgLoading {
		t.Errorf("initial Message() = %q, want %q", p.Message(), MsgLoading)
	}

	if err := p.FetchUpdate(context.Background()); err != nil {
		t.Fatalf("FetchUpdate() error = %v", err)
	}
	if p.Message() != "" {
		t.Errorf("Message() = %q, want empty after success", p.Message())
	}
	if p.Snapshot() == nil || !strings.Contains(string(p.Snapshot().Raw), "running") {
		t.Errorf("Snapshot() = %v", p.Snapshot())
	}
}

func TestStatusPoller_TimeoutKeepsSnapshotAndPollsAgain(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	opts := Options{Timeout: 50 * time.Millisecond, PollInterval: 30 * time.Millisecond}
	p := NewStatusPoller(f.client(), opts)

	if err := p.FetchUpdate(context.Background()); err != nil {
		t.Fatalf("first FetchUpdate() error = %v", err)
	}
	before := p.Snapshot()

	f.set(func(f *fakeAdapter) { f.hangStatus = true })

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, "timeout message", func() bool { return p.Message() != "" })

	msg := p.Message()
	if !strings.Contains(msg, "ERROR") || !strings.Contains(msg, "status") {
		t.Errorf("Message() = %q, want ERROR ... status", msg)
	}
	if p.Snapshot() != before {
		t.Error("Snapshot() changed after a failed fetch")
	}

	calls := f.statusCalls.Load()
	waitFor(t, "next scheduled attempt", func() bool { return f.statusCalls.Load() > calls })

	if p.Status().ConsecutiveFailures < 1 {
		t.Errorf("ConsecutiveFailures = %d, want >= 1", p.Status().ConsecutiveFailures)
	}
}

func TestStatusPoller_Once(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	p := NewStatusPoller(f.client(), OneShotOptions())

	p.Run(context.Background())

	if got := f.statusCalls.Load(); got != 1 {
		t.Errorf("status requests = %d, want 1", got)
	}
}

func TestStatusPoller_StopCancelsWait(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	p := NewStatusPoller(f.client(), Options{PollInterval: time.Hour})

	p.Start(context.Background())
	waitFor(t, "first fetch", func() bool { return f.statusCalls.Load() == 1 })

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return while the poller was waiting")
	}
	if p.Status().Running {
		t.Error("Running = true after Stop()")
	}
}

func TestStatusPoller_StopDuringRequestKeepsMessage(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	f.set(func(f *fakeAdapter) { f.hangStatus = true })
	p := NewStatusPoller(f.client(), Options{PollInterval: time.Hour})

	p.Start(context.Background())
	waitFor(t, "request in flight", func() bool { return f.statusCalls.Load() == 1 })
	p.Stop()

	if p.Message() != MsgLoading {
		t.Errorf("Message() = %q, want unchanged %q", p.Message(), MsgLoading)
	}
}

func TestConfigEditor_InitialState(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := NewConfigEditor(f.client(), testOptions())
	defer e.Close()

	if e.State() != StateUninitialized {
		t.Errorf("State() = %v, want uninitialized", e.State())
	}
	if e.Message() != MsgLoading {
		t.Errorf("Message() = %q, want %q", e.Message(), MsgLoading)
	}
	if e.Original() != nil {
		t.Error("Original() should be nil before the first fetch")
	}
	if e.Working().String(deviceconfig.KeyEthIP) != deviceconfig.PlaceholderText {
		t.Errorf("Working() should hold the placeholder record")
	}
}

func TestConfigEditor_FetchIndependentCopies(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())

	if e.State() != StateReady {
		t.Errorf("State() = %v, want ready", e.State())
	}
	if e.Message() != "" {
		t.Errorf("Message() = %q, want empty", e.Message())
	}

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	if got := e.Original().String(deviceconfig.KeyWiFiSSID); got != "home" {
		t.Errorf("original wifi_ssid = %q, want home", got)
	}
	if !e.Dirty() {
		t.Error("Dirty() = false after an edit")
	}
}

func TestConfigEditor_FetchFailure(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	f.set(func(f *fakeAdapter) { f.config = "<html>" })

	e := NewConfigEditor(f.client(), testOptions())
	defer e.Close()

	if err := e.FetchUpdate(context.Background()); err == nil {
		t.Fatal("FetchUpdate() error = nil, want parse error")
	}
	if e.State() != StateLoadError {
		t.Errorf("State() = %v, want load-error", e.State())
	}
	if !strings.HasPrefix(e.Message(), "ERROR: Couldn't fetch settings from server: ") {
		t.Errorf("Message() = %q", e.Message())
	}
	if e.Original() != nil {
		t.Error("Original() should stay nil after a failed fetch")
	}
}

func TestConfigEditor_SubmitSendsOnlyChangedField(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	bodies := f.postBodies()
	if len(bodies) != 1 || bodies[0] != "wifi_ssid=office" {
		t.Errorf("POST bodies = %q, want [wifi_ssid=office]", bodies)
	}
	if len(res.Sent) != 1 || res.Sent.String(deviceconfig.KeyWiFiSSID) != "office" {
		t.Errorf("Sent = %v", res.Sent)
	}
}

func TestConfigEditor_SubmitSuccessSchedulesReload(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	opts := testOptions()
	opts.ReloadDelay = 300 * time.Millisecond
	e := loadedEditor(t, f, opts)

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// The reload waits for ReloadDelay
	time.Sleep(50 * time.Millisecond)
	if got := f.configCalls.Load(); got != 1 {
		t.Errorf("config fetches before the delay = %d, want 1", got)
	}
	if !e.ReloadPending() {
		t.Error("ReloadPending() = false before the delay elapsed")
	}

	if e.Message() != "OK, rebooting" {
		t.Errorf("Message() = %q, want %q", e.Message(), "OK, rebooting")
	}
	if !res.ReloadScheduled {
		t.Error("ReloadScheduled = false after a 200 reply")
	}
	if e.State() != StateReloading {
		t.Errorf("State() = %v, want reloading", e.State())
	}

	waitFor(t, "reload fetch", func() bool { return f.configCalls.Load() == 2 })
	waitFor(t, "ready after reload", func() bool { return e.State() == StateReady })

	if e.ReloadPending() {
		t.Error("ReloadPending() = true after the reload ran")
	}
}

func TestConfigEditor_SetSameNumberIsNotSent(t *testing.T) {
	f := newFakeAdapter(t, `{"can_bitrate": 500, "wifi_ssid": "home"}`)
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyCANBitrate, 500)
	if e.Dirty() {
		t.Errorf("Dirty() = true, pending = %v", e.PendingChanges())
	}

	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if bodies := f.postBodies(); len(bodies) != 0 {
		t.Errorf("POST bodies = %q, want none", bodies)
	}
	if e.Message() != MsgNoChanges {
		t.Errorf("Message() = %q, want %q", e.Message(), MsgNoChanges)
	}
}

func TestConfigEditor_SecondSubmitSendsNothing(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if len(res.Sent) != 0 {
		t.Errorf("second Submit() sent %v", res.Sent)
	}
	if n := len(f.postBodies()); n != 1 {
		t.Errorf("POST count = %d, want 1", n)
	}
	if e.Message() != MsgNoChanges {
		t.Errorf("Message() = %q, want %q", e.Message(), MsgNoChanges)
	}
}

func TestConfigEditor_EmptyDiffMakesNoRequest(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())

	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Response != nil || res.ReloadScheduled {
		t.Errorf("Submit() result = %+v, want no request", res)
	}
	if n := len(f.postBodies()); n != 0 {
		t.Errorf("POST count = %d, want 0", n)
	}
	if e.Message() != MsgNoChanges {
		t.Errorf("Message() = %q, want %q", e.Message(), MsgNoChanges)
	}
}

func TestConfigEditor_TrimsBeforeDiff(t *testing.T) {
	f := newFakeAdapter(t, `{"eth_gw":"192.168.2.1","eth_use_dhcp":false}`)
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyEthGateway, "  10.0.0.1  ")
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	bodies := f.postBodies()
	if len(bodies) != 1 || bodies[0] != "eth_gw=10.0.0.1" {
		t.Errorf("POST bodies = %q, want [eth_gw=10.0.0.1]", bodies)
	}
	if got := e.Working().String(deviceconfig.KeyEthGateway); got != "10.0.0.1" {
		t.Errorf("working eth_gw = %q, want trimmed", got)
	}
}

func TestConfigEditor_ClearedFieldsNotSent(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyWiFiSSID, "   ")
	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(res.Cleared) != 1 || res.Cleared[0] != deviceconfig.KeyWiFiSSID {
		t.Errorf("Cleared = %v, want [wifi_ssid]", res.Cleared)
	}
	if n := len(f.postBodies()); n != 0 {
		t.Errorf("POST count = %d, want 0", n)
	}
}

func TestConfigEditor_SubmitWithoutBaseline(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := NewConfigEditor(f.client(), testOptions())
	defer e.Close()

	_, err := e.Submit(context.Background())
	if !errors.Is(err, ErrNoBaseline) {
		t.Fatalf("Submit() error = %v, want ErrNoBaseline", err)
	}
	if e.Message() != MsgNoBaseline {
		t.Errorf("Message() = %q, want %q", e.Message(), MsgNoBaseline)
	}
	if n := len(f.postBodies()); n != 0 {
		t.Errorf("POST count = %d, want 0", n)
	}
}

func TestConfigEditor_RejectedSubmit(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	f.set(func(f *fakeAdapter) {
		f.postCode = http.StatusInternalServerError
		f.postReply = "Invalid CAN bitrate"
	})
	e := loadedEditor(t, f, testOptions())

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	res, err := e.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.ReloadScheduled || e.ReloadPending() {
		t.Error("reload scheduled after a 500 reply")
	}
	if e.Message() != "Invalid CAN bitrate" {
		t.Errorf("Message() = %q", e.Message())
	}
	if e.State() != StateReady {
		t.Errorf("State() = %v, want ready", e.State())
	}
	if !e.Dirty() {
		t.Error("edit should still be pending after a rejected submit")
	}
}

func TestConfigEditor_PostTransportFailure(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	e := loadedEditor(t, f, testOptions())
	f.server.Close()

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	_, err := e.Submit(context.Background())
	if err == nil {
		t.Fatal("Submit() error = nil against a closed server")
	}
	if !strings.HasPrefix(e.Message(), "ERROR: Couldn't post settings to server: ") {
		t.Errorf("Message() = %q", e.Message())
	}
	if got := e.Working().String(deviceconfig.KeyWiFiSSID); got != "office" {
		t.Errorf("working wifi_ssid = %q, want edit kept", got)
	}
	if e.State() != StateReady {
		t.Errorf("State() = %v, want ready", e.State())
	}
}

// blockingSource holds GetConfiguration until released.
type blockingSource struct {
	release chan struct{}
	entered chan struct{}
}

func (b *blockingSource) GetConfiguration(ctx context.Context) (deviceconfig.ConfigRecord, error) {
	close(b.entered)
	<-b.release
	return deviceconfig.ConfigRecord{deviceconfig.KeyWiFiSSID: "home"}, nil
}

func (b *blockingSource) PostConfiguration(ctx context.Context, form url.Values) (*deviceconfig.SubmitResponse, error) {
	return &deviceconfig.SubmitResponse{StatusCode: 200}, nil
}

func TestConfigEditor_Busy(t *testing.T) {
	src := &blockingSource{release: make(chan struct{}), entered: make(chan struct{})}
	e := NewConfigEditor(src, testOptions())
	defer e.Close()

	done := make(chan error, 1)
	go func() { done <- e.FetchUpdate(context.Background()) }()
	<-src.entered

	if err := e.FetchUpdate(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent FetchUpdate() error = %v, want ErrBusy", err)
	}
	if _, err := e.Submit(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Submit() error = %v, want ErrBusy", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("FetchUpdate() error = %v", err)
	}
	if e.State() != StateReady {
		t.Errorf("State() = %v, want ready", e.State())
	}
}

func TestConfigEditor_SetString(t *testing.T) {
	f := newFakeAdapter(t, `{"wifi_enabled":false,"can_bitrate":500,"wifi_ssid":"home"}`)
	e := loadedEditor(t, f, testOptions())

	if err := e.SetString(deviceconfig.KeyWiFiEnabled, "on"); err != nil {
		t.Fatalf("SetString(bool) error = %v", err)
	}
	if err := e.SetString(deviceconfig.KeyCANBitrate, "250"); err != nil {
		t.Fatalf("SetString(number) error = %v", err)
	}
	if err := e.SetString(deviceconfig.KeyCANBitrate, "fast"); err == nil {
		t.Error("SetString() should reject a non-number for can_bitrate")
	}

	w := e.Working()
	if w[deviceconfig.KeyWiFiEnabled] != true || w[deviceconfig.KeyCANBitrate] != 250.0 {
		t.Errorf("Working() = %v", w)
	}
}

func TestConfigEditor_CloseCancelsReload(t *testing.T) {
	f := newFakeAdapter(t, homeConfig)
	opts := testOptions()
	opts.ReloadDelay = 50 * time.Millisecond
	e := NewConfigEditor(f.client(), opts)
	if err := e.FetchUpdate(context.Background()); err != nil {
		t.Fatalf("FetchUpdate() error = %v", err)
	}

	e.Set(deviceconfig.KeyWiFiSSID, "office")
	if _, err := e.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	e.Close()

	time.Sleep(150 * time.Millisecond)
	if got := f.configCalls.Load(); got != 1 {
		t.Errorf("config fetches = %d, want 1 (reload should be canceled)", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateUninitialized, "uninitialized"},
		{StateLoading, "loading"},
		{StateReady, "ready"},
		{StateLoadError, "load-error"},
		{StateSubmitting, "submitting"},
		{StateReloading, "reloading"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
