package order_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/coffee-order/internal/api"
	"github.com/vasiliy-maslov/coffee-order/internal/order"
	"github.com/vasiliy-maslov/coffee-order/internal/session"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) CreateOrder(ctx context.Context, req api.OrderRequest) (api.Result[api.OrderReceipt], error) {
	args := m.Called(ctx, req)
	return args.Get(0).(api.Result[api.OrderReceipt]), args.Error(1)
}

type navRecorder struct {
	mu   sync.Mutex
	refs []string
}

func (r *navRecorder) navigate(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, ref)
}

func (r *navRecorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.refs...)
}

var latte = api.Coffee{ID: "2", Name: "Latte", Image: "latte.jpg"}

func anonymous() session.Snapshot {
	return session.Snapshot{Known: true}
}

func loggedIn(username, email string) session.Snapshot {
	return session.Snapshot{Known: true, Identity: &session.Identity{Username: username, Email: email}}
}

func newComposer(t *testing.T, rawQuery string) (*order.Composer, *MockSubmitter, *navRecorder) {
	t.Helper()
	sub := new(MockSubmitter)
	nav := &navRecorder{}
	c := order.NewComposer("2", rawQuery, sub, order.Options{Navigate: nav.navigate})
	t.Cleanup(c.Close)
	return c, sub, nav
}

func TestComposer_LoadingUntilItemResolves(t *testing.T) {
	c, _, _ := newComposer(t, "quantity=3")

	form := c.Form()
	assert.Equal(t, order.StatusLoading, form.Status)
	assert.Nil(t, form.Item)
	assert.Equal(t, 3, form.Quantity, "quantity is decoded before the item arrives")

	c.ResolveItem(api.Coffee{}, false)
	form = c.Form()
	assert.Equal(t, order.StatusLoading, form.Status)
	assert.True(t, form.Missing)

	c.ResolveItem(latte, true)
	form = c.Form()
	assert.Equal(t, order.StatusReady, form.Status)
	require.NotNil(t, form.Item)
	assert.Equal(t, "Latte", form.Item.Name)
	assert.False(t, form.Missing)
}

func TestComposer_PrefillsAndLocksFromIdentity(t *testing.T) {
	c, _, _ := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)

	form := c.Form()
	assert.Equal(t, "ana", form.Name)
	assert.Equal(t, "ana@example.com", form.Email)
	assert.True(t, form.Locked)
	assert.False(t, form.EmailHidden)

	assert.ErrorIs(t, c.SetName("someone"), order.ErrFieldLocked)
	assert.ErrorIs(t, c.SetEmail("x@example.com"), order.ErrFieldLocked)
	assert.NoError(t, c.SetNotes("extra hot"))
	assert.Equal(t, "ana", c.Form().Name)
}

func TestComposer_HidesEmailWhenIdentityHasNone(t *testing.T) {
	c, sub, _ := newComposer(t, "quantity=2")
	c.ApplyIdentity(loggedIn("ana", ""))
	c.ResolveItem(latte, true)

	form := c.Form()
	assert.Equal(t, "ana", form.Name)
	assert.True(t, form.EmailHidden)

	sub.On("CreateOrder", mock.Anything, api.OrderRequest{Name: "ana", CoffeeID: "2", Quantity: 2}).
		Return(api.Ok(api.OrderReceipt{Status: "ok"}), nil).Once()
	require.NoError(t, c.Submit(context.Background()))
	sub.AssertExpectations(t)
}

func TestComposer_LateIdentityPrefillsUntouchedForm(t *testing.T) {
	c, _, _ := newComposer(t, "")
	c.ApplyIdentity(session.Snapshot{})
	c.ResolveItem(latte, true)
	require.Equal(t, order.StatusReady, c.Status())
	assert.Empty(t, c.Form().Name)

	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))

	form := c.Form()
	assert.Equal(t, "ana", form.Name)
	assert.Equal(t, "ana@example.com", form.Email)
	assert.True(t, form.Locked)
}

func TestComposer_LogoutUnlocksAndClearsDerivedFields(t *testing.T) {
	c, _, _ := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)
	require.NoError(t, c.SetNotes("no sugar"))

	c.ApplyIdentity(anonymous())

	form := c.Form()
	assert.False(t, form.Locked)
	assert.Empty(t, form.Name)
	assert.Empty(t, form.Email)
	assert.Equal(t, "no sugar", form.Notes)
	assert.NoError(t, c.SetName("Ana"))
}

func TestComposer_Submit_RejectsLocallyWithoutEmail(t *testing.T) {
	c, sub, _ := newComposer(t, "")
	c.ApplyIdentity(anonymous())
	c.ResolveItem(latte, true)
	require.NoError(t, c.SetName("Ana"))

	err := c.Submit(context.Background())

	var verr *order.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Email")
	assert.Equal(t, order.StatusReady, c.Status())
	assert.NotEmpty(t, c.Form().Error)
	sub.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
}

func TestComposer_Submit_SendsExactlyOneOrder(t *testing.T) {
	// Arrange
	c, sub, nav := newComposer(t, "quantity=3")
	c.ApplyIdentity(anonymous())
	c.ResolveItem(latte, true)
	require.NoError(t, c.SetName("Ana"))
	require.NoError(t, c.SetEmail("ana@example.com"))
	require.NoError(t, c.SetNotes("oat milk"))

	want := api.OrderRequest{Name: "Ana", CoffeeID: "2", Quantity: 3, Notes: "oat milk", Email: "ana@example.com"}
	sub.On("CreateOrder", mock.Anything, want).Return(api.Ok(api.OrderReceipt{Status: "ok"}), nil).Once()

	// Act
	require.NoError(t, c.Submit(context.Background()))

	// Assert
	form := c.Form()
	assert.Equal(t, order.StatusSubmitted, form.Status)
	assert.Equal(t, order.SubmittedMessage, form.Message)
	assert.Eventually(t, func() bool { return len(nav.got()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"/"}, nav.got())

	assert.ErrorIs(t, c.Submit(context.Background()), order.ErrInvalidStatusTransition)
	assert.ErrorIs(t, c.SetNotes("late"), order.ErrFormDisabled)
	sub.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestComposer_Submit_FailureKeepsFields(t *testing.T) {
	tests := []struct {
		name      string
		result    api.Result[api.OrderReceipt]
		err       error
		wantError string
	}{
		{
			name:      "transport failure",
			result:    api.Result[api.OrderReceipt]{},
			err:       errors.New("connection reset"),
			wantError: order.FailureMessage,
		},
		{
			name:      "server rejection",
			result:    api.Fail[api.OrderReceipt]("Unknown coffee"),
			wantError: "Unknown coffee",
		},
		{
			name:      "rejection without message",
			result:    api.Fail[api.OrderReceipt](""),
			wantError: order.FailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, sub, nav := newComposer(t, "quantity=4")
			c.ApplyIdentity(anonymous())
			c.ResolveItem(latte, true)
			require.NoError(t, c.SetName("Ana"))
			require.NoError(t, c.SetEmail("ana@example.com"))
			require.NoError(t, c.SetNotes("decaf"))
			sub.On("CreateOrder", mock.Anything, mock.Anything).Return(tt.result, tt.err).Once()

			assert.Error(t, c.Submit(context.Background()))

			form := c.Form()
			assert.Equal(t, order.StatusReady, form.Status)
			assert.Equal(t, tt.wantError, form.Error)
			assert.Empty(t, form.Message)
			assert.Equal(t, "Ana", form.Name)
			assert.Equal(t, "ana@example.com", form.Email)
			assert.Equal(t, "decaf", form.Notes)
			assert.Equal(t, 4, form.Quantity)
			assert.Empty(t, nav.got())
		})
	}
}

func TestComposer_IdentityArrivesAfterTyping(t *testing.T) {
	c, _, _ := newComposer(t, "")
	c.ApplyIdentity(anonymous())
	c.ResolveItem(latte, true)
	require.NoError(t, c.SetName("Bob"))
	require.NoError(t, c.SetEmail("bob@example.com"))

	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))

	form := c.Form()
	assert.Equal(t, "ana", form.Name, "the account replaces typed values")
	assert.Equal(t, "ana@example.com", form.Email)
	assert.True(t, form.Locked)
	assert.ErrorIs(t, c.SetName("Bob"), order.ErrFieldLocked)

	c.ApplyIdentity(anonymous())
	form = c.Form()
	assert.Empty(t, form.Name, "values from the account do not outlive it")
	assert.Empty(t, form.Email)
}

func TestComposer_SessionChangeDuringFailedSubmit(t *testing.T) {
	tests := []struct {
		name       string
		before     session.Snapshot
		during     session.Snapshot
		wantName   string
		wantLocked bool
	}{
		{
			name:     "logout",
			before:   loggedIn("ana", "ana@example.com"),
			during:   anonymous(),
			wantName: "",
		},
		{
			name:       "login",
			before:     anonymous(),
			during:     loggedIn("bo", "bo@example.com"),
			wantName:   "bo",
			wantLocked: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			c, sub, _ := newComposer(t, "")
			c.ApplyIdentity(tt.before)
			c.ResolveItem(latte, true)
			if !tt.before.Present() {
				require.NoError(t, c.SetName("Ana"))
				require.NoError(t, c.SetEmail("ana@example.com"))
			}
			sub.On("CreateOrder", mock.Anything, mock.Anything).
				Run(func(mock.Arguments) { c.ApplyIdentity(tt.during) }).
				Return(api.Result[api.OrderReceipt]{}, errors.New("connection reset")).Once()

			// Act
			require.Error(t, c.Submit(context.Background()))

			// Assert
			form := c.Form()
			assert.Equal(t, order.StatusReady, form.Status)
			assert.Equal(t, tt.wantLocked, form.Locked)
			assert.Equal(t, tt.wantName, form.Name)
			assert.Equal(t, tt.wantLocked, c.Draft().Identified)
		})
	}
}

func TestComposer_LogoutDuringFailedSubmitRequiresEmail(t *testing.T) {
	c, sub, _ := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)
	sub.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { c.ApplyIdentity(anonymous()) }).
		Return(api.Fail[api.OrderReceipt]("Kitchen closed"), nil).Once()

	require.ErrorIs(t, c.Submit(context.Background()), order.ErrRejected)
	require.NoError(t, c.SetName("Ana"))

	var verr *order.ValidationError
	require.ErrorAs(t, c.Submit(context.Background()), &verr)
	assert.Contains(t, verr.Fields, "Email")
	sub.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestComposer_SessionChangeDuringSuccessfulSubmitIsDropped(t *testing.T) {
	c, sub, _ := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)
	sub.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { c.ApplyIdentity(anonymous()) }).
		Return(api.Ok(api.OrderReceipt{Status: "ok"}), nil).Once()

	require.NoError(t, c.Submit(context.Background()))
	c.ApplyIdentity(loggedIn("bo", ""))

	form := c.Form()
	assert.Equal(t, order.StatusSubmitted, form.Status)
	assert.Equal(t, "ana", form.Name, "a submitted form shows what was sent")
}

func TestComposer_Submit_WhileSubmitting(t *testing.T) {
	c, sub, _ := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)

	release := make(chan time.Time)
	sub.On("CreateOrder", mock.Anything, mock.Anything).WaitUntil(release).Return(api.Ok(api.OrderReceipt{}), nil).Once()

	done := make(chan error)
	go func() { done <- c.Submit(context.Background()) }()
	assert.Eventually(t, func() bool { return c.Status() == order.StatusSubmitting }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Submit(context.Background()), order.ErrInvalidStatusTransition)
	_, err := c.SetQuantity(9)
	assert.ErrorIs(t, err, order.ErrFormDisabled)

	close(release)
	require.NoError(t, <-done)
	sub.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestComposer_ClosedVisitDiscardsResults(t *testing.T) {
	c, sub, nav := newComposer(t, "")
	c.ApplyIdentity(loggedIn("ana", "ana@example.com"))
	c.ResolveItem(latte, true)

	release := make(chan time.Time)
	sub.On("CreateOrder", mock.Anything, mock.Anything).WaitUntil(release).Return(api.Ok(api.OrderReceipt{}), nil).Once()

	done := make(chan error)
	go func() { done <- c.Submit(context.Background()) }()
	assert.Eventually(t, func() bool { return c.Status() == order.StatusSubmitting }, time.Second, 5*time.Millisecond)

	c.Close()
	close(release)
	assert.ErrorIs(t, <-done, order.ErrClosed)
	assert.Equal(t, order.StatusSubmitting, c.Status())
	assert.Never(t, func() bool { return len(nav.got()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	stale, _, _ := newComposer(t, "")
	stale.Close()
	stale.ResolveItem(latte, true)
	assert.Equal(t, order.StatusLoading, stale.Status())
}

func TestComposer_Quantity(t *testing.T) {
	c, _, _ := newComposer(t, "quantity=abc")
	c.ResolveItem(latte, true)
	assert.Equal(t, 1, c.Form().Quantity)

	q, err := c.Increment()
	require.NoError(t, err)
	assert.Equal(t, 2, q)

	q, err = c.SetQuantity(0)
	require.NoError(t, err)
	assert.Equal(t, 1, q)

	q, err = c.Decrement()
	require.NoError(t, err)
	assert.Equal(t, 1, q)

	_, err = c.SetQuantity(5)
	require.NoError(t, err)
	c.ApplyQuery("quantity=7")
	assert.Equal(t, 7, c.Form().Quantity, "a changed query wins over local edits")

	_, err = c.SetQuantity(math.MaxInt)
	require.NoError(t, err)
	q, err = c.Increment()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, q)
}
