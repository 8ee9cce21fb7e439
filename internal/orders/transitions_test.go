package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	updates []Status
	assigns []string
	cancels []string
	err     error
}

func (w *recordingWriter) UpdateOrderStatus(_ context.Context, orderID string, status Status, _ string, _ *string) (Order, error) {
	w.updates = append(w.updates, status)
	if w.err != nil {
		return Order{}, w.err
	}
	return Order{ID: orderID, Status: status}, nil
}

func (w *recordingWriter) AssignOrder(_ context.Context, orderID string, staffID string) error {
	w.assigns = append(w.assigns, orderID+":"+staffID)
	return w.err
}

func (w *recordingWriter) CancelOrder(_ context.Context, orderID string, reason string) error {
	w.cancels = append(w.cancels, orderID+":"+reason)
	return w.err
}

func TestTransitionMatchesTable(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
		StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
		StatusProcessing: {StatusPreparing: true, StatusCancelled: true},
		StatusPreparing:  {StatusReady: true, StatusProcessing: true},
		StatusReady:      {StatusDelivered: true, StatusCompleted: true},
		StatusDelivered:  {StatusCompleted: true},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			writer := &recordingWriter{}
			machine := NewMachine(writer)
			order := Order{ID: "o-1", Status: from}

			updated, err := machine.Transition(context.Background(), order, to, "staff-1", nil)
			if legal[from][to] {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, updated.Status)
				assert.Equal(t, []Status{to}, writer.updates)
				continue
			}

			require.Error(t, err, "%s -> %s", from, to)
			assert.True(t, errors.Is(err, ErrIllegalTransition))
			assert.Equal(t, from, updated.Status, "rejected transition must not change the order")
			assert.Empty(t, writer.updates, "rejected transition must not reach the API")
		}
	}
}

func TestTransitionReadyToConfirmedIsRejectedWithoutCall(t *testing.T) {
	writer := &recordingWriter{}
	machine := NewMachine(writer)
	order := Order{ID: "o-7", Status: StatusReady}

	got, err := machine.Transition(context.Background(), order, StatusConfirmed, "staff-1", nil)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StatusReady, terr.From)
	assert.Equal(t, StatusConfirmed, terr.To)
	assert.NotEmpty(t, terr.Reason)
	assert.Equal(t, StatusReady, got.Status)
	assert.Empty(t, writer.updates)
}

func TestTransitionRemoteFailureIsWrapped(t *testing.T) {
	remoteErr := errors.New("503 from upstream")
	writer := &recordingWriter{err: remoteErr}
	machine := NewMachine(writer)

	got, err := machine.Transition(context.Background(), Order{ID: "o-2", Status: StatusPending}, StatusConfirmed, "staff-1", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, remoteErr)
	assert.False(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, StatusPending, got.Status)
}

func TestTransitionBlankNoteIsDropped(t *testing.T) {
	var seen *string
	writer := &noteWriter{seen: &seen}
	machine := NewMachine(writer)
	blank := "   "

	_, err := machine.Transition(context.Background(), Order{ID: "o-3", Status: StatusPending}, StatusConfirmed, "s", &blank)
	require.NoError(t, err)
	assert.Nil(t, seen)

	note := "  table asked to hurry "
	_, err = machine.Transition(context.Background(), Order{ID: "o-3", Status: StatusPending}, StatusConfirmed, "s", &note)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "table asked to hurry", *seen)
}

type noteWriter struct {
	recordingWriter
	seen **string
}

func (w *noteWriter) UpdateOrderStatus(_ context.Context, orderID string, status Status, _ string, note *string) (Order, error) {
	*w.seen = note
	return Order{ID: orderID, Status: status}, nil
}

func TestAssign(t *testing.T) {
	cases := []struct {
		name    string
		status  Status
		staffID string
		wantErr error
		calls   int
	}{
		{name: "pending order", status: StatusPending, staffID: "s-1", calls: 1},
		{name: "preparing order", status: StatusPreparing, staffID: "s-1", calls: 1},
		{name: "completed order", status: StatusCompleted, staffID: "s-1", wantErr: ErrOrderTerminal},
		{name: "cancelled order", status: StatusCancelled, staffID: "s-1", wantErr: ErrOrderTerminal},
		{name: "missing staff", status: StatusPending, staffID: " ", wantErr: ErrStaffRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writer := &recordingWriter{}
			err := NewMachine(writer).Assign(context.Background(), Order{ID: "o-1", Status: tc.status}, tc.staffID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, writer.assigns, tc.calls)
		})
	}
}

func TestCancelFollowsTable(t *testing.T) {
	writer := &recordingWriter{}
	machine := NewMachine(writer)

	require.NoError(t, machine.Cancel(context.Background(), Order{ID: "a", Status: StatusConfirmed}, " out of stock "))
	assert.Equal(t, []string{"a:out of stock"}, writer.cancels)

	err := machine.Cancel(context.Background(), Order{ID: "b", Status: StatusReady}, "late")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.Len(t, writer.cancels, 1)
}

func TestRefundIsNeverReachable(t *testing.T) {
	writer := &recordingWriter{}
	for _, from := range AllStatuses {
		_, err := NewMachine(writer).Transition(context.Background(), Order{ID: "o", Status: from}, StatusRefunded, "s", nil)
		assert.ErrorIs(t, err, ErrIllegalTransition)
	}
	assert.Empty(t, writer.updates)
}
