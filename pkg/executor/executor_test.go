package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/formpilot/pkg/browser"
	"github.com/entrhq/formpilot/pkg/types"
)

// fakeDriver is an in-memory Driver that records every call.
type fakeDriver struct {
	mu sync.Mutex

	navigatedTo string
	filled      map[string]string
	selected    map[string]string
	checked     map[string]bool
	clicked     []string
	closed      bool

	// Controls.
	existing     map[string]bool
	content      string
	navigateErr  error
	waitErr      error
	fillErrs     map[string]error
	fillFailures map[string]int // transient failures before success
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		filled:       make(map[string]string),
		selected:     make(map[string]string),
		checked:      make(map[string]bool),
		existing:     map[string]bool{`button[type="submit"]`: true},
		fillErrs:     make(map[string]error),
		fillFailures: make(map[string]int),
		content:      "<html><body>thank you</body></html>",
	}
}

func (d *fakeDriver) Navigate(url string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.navigateErr != nil {
		return d.navigateErr
	}
	d.navigatedTo = url
	return nil
}

func (d *fakeDriver) Fill(selector, value string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.fillErrs[selector]; err != nil {
		return err
	}
	if n := d.fillFailures[selector]; n > 0 {
		d.fillFailures[selector] = n - 1
		return errors.New("element not interactable")
	}
	d.filled[selector] = value
	return nil
}

func (d *fakeDriver) SelectOption(selector, value string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected[selector] = value
	return nil
}

func (d *fakeDriver) SetChecked(selector string, checked bool, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checked[selector] = checked
	return nil
}

func (d *fakeDriver) Click(selector string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clicked = append(d.clicked, selector)
	return nil
}

func (d *fakeDriver) WaitForLoad(_ time.Duration) error { return d.waitErr }

func (d *fakeDriver) Exists(selector string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.existing[selector], nil
}

func (d *fakeDriver) Content() (string, error) { return d.content, nil }
func (d *fakeDriver) URL() string              { return d.navigatedTo }

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// fakeFactory hands out a fixed driver and counts how many were opened.
type fakeFactory struct {
	driver *fakeDriver
	err    error
	opened int
}

func (f *fakeFactory) NewDriver() (browser.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opened++
	return f.driver, nil
}

func testSchema() *types.FormSchema {
	return &types.FormSchema{
		URL: "https://example.com/apply",
		Fields: []types.FormField{
			{Name: "name", Type: types.FieldText, Selector: "#name", Required: true, ValueSource: "full_name"},
			{Name: "email", Type: types.FieldEmail, Selector: "#email", Required: true, ValueSource: "email"},
			{Name: "country", Type: types.FieldSelect, Selector: "#country", Options: []string{"US", "DE"}, ValueSource: "country"},
			{Name: "remote", Type: types.FieldCheckbox, Selector: "#remote", ValueSource: "remote"},
		},
	}
}

func testProfile() types.ProfileData {
	return types.ProfileData{
		"full_name": "Jane Doe",
		"email":     "jane@example.com",
		"country":   "DE",
		"remote":    "true",
	}
}

// The happy path: navigate, fill every field, submit, confirmation found.
func TestRunFillAndSubmit(t *testing.T) {
	driver := newFakeDriver()
	factory := &fakeFactory{driver: driver}
	exec := New(factory, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, log.Status)
	assert.Equal(t, 4, log.FieldsFilled)
	assert.Equal(t, "https://example.com/apply", driver.navigatedTo)
	assert.Equal(t, "Jane Doe", driver.filled["#name"])
	assert.Equal(t, "DE", driver.selected["#country"])
	assert.True(t, driver.checked["#remote"])
	assert.Contains(t, driver.clicked, `button[type="submit"]`)
	assert.True(t, driver.closed, "session must be released")

	last := log.Entries[len(log.Entries)-1]
	assert.Equal(t, "completed", last.Action)
}

// Submit requested without confirmation aborts before any browser work.
func TestRunRefusesUnconfirmedSubmit(t *testing.T) {
	driver := newFakeDriver()
	factory := &fakeFactory{driver: driver}
	exec := New(factory, nil)

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: false,
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, types.ErrApproval))
	assert.Equal(t, types.StatusAborted, log.Status)
	assert.Equal(t, 0, factory.opened, "no session may be opened without confirmation")
	assert.Empty(t, driver.filled)
}

// All four combinations of the submit gate.
func TestRunSubmitGate(t *testing.T) {
	tests := []struct {
		name       string
		submit     bool
		confirmed  bool
		wantStatus types.RunStatus
		wantClicks bool
		wantErr    error
	}{
		{name: "fill only unconfirmed", submit: false, confirmed: false, wantStatus: types.StatusCompleted},
		{name: "fill only confirmed", submit: false, confirmed: true, wantStatus: types.StatusCompleted},
		{name: "submit unconfirmed", submit: true, confirmed: false, wantStatus: types.StatusAborted, wantErr: types.ErrApproval},
		{name: "submit confirmed", submit: true, confirmed: true, wantStatus: types.StatusCompleted, wantClicks: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := newFakeDriver()
			exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

			log, err := exec.Run(context.Background(), Request{
				Schema:        testSchema(),
				Profile:       testProfile(),
				Submit:        tt.submit,
				UserConfirmed: tt.confirmed,
			})

			assert.Equal(t, tt.wantStatus, log.Status)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				assert.NoError(t, err)
			}
			if tt.wantClicks {
				assert.NotEmpty(t, driver.clicked)
			} else {
				assert.Empty(t, driver.clicked, "no click without a confirmed submit")
			}
		})
	}
}

// A CAPTCHA on the page terminates the run before any field is touched.
func TestRunStopsOnCaptcha(t *testing.T) {
	driver := newFakeDriver()
	driver.existing[`iframe[src*="recaptcha"]`] = true
	exec := New(&fakeFactory{driver: driver}, nil)

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, types.ErrCaptcha))
	assert.Equal(t, types.StatusCaptchaDetected, log.Status)
	assert.Empty(t, driver.filled, "no field interaction after captcha detection")
	assert.Empty(t, driver.clicked)
}

// One unfillable optional field is skipped; the rest of the run proceeds
// and the submission still happens.
func TestRunRecoversFromFieldFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.fillErrs["#email"] = errors.New("element detached")
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 2}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, log.Status)
	assert.Equal(t, 3, log.FieldsFilled)
	assert.Equal(t, 1, log.CountOutcome(types.OutcomeFailed))
	assert.NotEmpty(t, driver.clicked, "field failure must not block submission")
}

// Transient interaction failures are retried and then succeed.
func TestRunRetriesTransientFailures(t *testing.T) {
	driver := newFakeDriver()
	driver.fillFailures["#name"] = 2
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 3}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        false,
		UserConfirmed: false,
	})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", driver.filled["#name"])
	assert.Equal(t, 0, log.CountOutcome(types.OutcomeFailed))
}

// Missing profile values: required fields fail, optional fields skip.
func TestRunMissingProfileValues(t *testing.T) {
	driver := newFakeDriver()
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:  testSchema(),
		Profile: types.ProfileData{"full_name": "Jane Doe"},
		Submit:  false,
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, log.Status)
	assert.Equal(t, 1, log.FieldsFilled)
	assert.Equal(t, 1, log.CountOutcome(types.OutcomeFailed), "missing required value is a failure")
	assert.Equal(t, 2, log.CountOutcome(types.OutcomeSkipped), "missing optional values are skipped")
}

// Declared-type mismatches are soft: the field is skipped with a warning
// entry and the run continues.
func TestRunValueMismatches(t *testing.T) {
	schema := &types.FormSchema{
		URL: "https://example.com/apply",
		Fields: []types.FormField{
			{Name: "age", Type: types.FieldNumber, Selector: "#age", ValueSource: "age"},
			{Name: "resume", Type: types.FieldFile, Selector: "#resume", ValueSource: "resume"},
			{Name: "country", Type: types.FieldSelect, Selector: "#country", Options: []string{"US"}, ValueSource: "country"},
			{Name: "remote", Type: types.FieldCheckbox, Selector: "#remote", ValueSource: "remote"},
		},
	}
	profile := types.ProfileData{
		"age":     "not-a-number",
		"resume":  "/tmp/resume.pdf",
		"country": "Atlantis",
		"remote":  "maybe",
	}

	driver := newFakeDriver()
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{Schema: schema, Profile: profile})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, log.Status)
	assert.Equal(t, 0, log.FieldsFilled)
	assert.Equal(t, 4, log.CountOutcome(types.OutcomeSkipped))
	assert.Empty(t, driver.filled)
	assert.Empty(t, driver.selected)
}

// The submit ladder walks to less specific selectors when the first ones
// are absent.
func TestRunSubmitSelectorLadder(t *testing.T) {
	driver := newFakeDriver()
	driver.existing = map[string]bool{"form button": true}
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, log.Status)
	assert.Equal(t, []string{"form button"}, driver.clicked)
}

// No submit control at all fails the run after filling.
func TestRunNoSubmitControl(t *testing.T) {
	driver := newFakeDriver()
	driver.existing = map[string]bool{}
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.Error(t, err)

	assert.Equal(t, types.StatusFailed, log.Status)
	assert.Contains(t, err.Error(), "no submit control")
}

// A hung response after the click is a typed submit timeout.
func TestRunSubmitTimeout(t *testing.T) {
	driver := newFakeDriver()
	driver.waitErr = errors.New("timeout 10000ms exceeded")
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, types.ErrSubmit))
	assert.Equal(t, types.StatusFailed, log.Status)
}

// Cancellation before the submit click aborts; the click never happens.
func TestRunHonorsCancellationBeforeSubmit(t *testing.T) {
	driver := newFakeDriver()
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log, err := exec.Run(ctx, Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.Error(t, err)

	assert.Equal(t, types.StatusAborted, log.Status)
	assert.Empty(t, driver.clicked)
}

// Navigation failure is a typed navigation error with a failed status.
func TestRunNavigationFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.navigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	exec := New(&fakeFactory{driver: driver}, nil)

	log, err := exec.Run(context.Background(), Request{
		Schema:  testSchema(),
		Profile: testProfile(),
	})
	require.Error(t, err)

	assert.True(t, errors.Is(err, types.ErrNavigation))
	assert.Equal(t, types.StatusFailed, log.Status)
}

// Every state transition appends exactly one entry, in order.
func TestRunLogsStateTransitions(t *testing.T) {
	driver := newFakeDriver()
	exec := New(&fakeFactory{driver: driver}, nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))

	log, err := exec.Run(context.Background(), Request{
		Schema:        testSchema(),
		Profile:       testProfile(),
		Submit:        true,
		UserConfirmed: true,
	})
	require.NoError(t, err)

	var states []string
	for _, e := range log.Entries {
		if e.Field == "" && e.Action != "submit" {
			states = append(states, e.Action)
		}
	}
	assert.Equal(t, []string{"navigating", "filling", "awaiting_submit_decision", "submitting", "completed"}, states)
}

func TestRetryPolicyExhaustion(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3}.Do(func() error {
		calls++
		return errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.Contains(err.Error(), "still broken"))
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	calls := 0
	err := RetryPolicy{MaxAttempts: 3}.Do(func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
