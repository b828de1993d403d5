package sinks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
	"github.com/ttone18/gpu-inspector/internal/models"
)

func TestFanoutDeliverSkipsTableSinkOnResolved(t *testing.T) {
	var chatHits, tableHits int32
	chatServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&chatHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer chatServer.Close()
	tableServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tableHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer tableServer.Close()

	secure := NewSecureClient("127.0.0.0/8")
	chat := NewChatSink(secure, map[models.Group]string{models.GroupHardware: chatServer.URL})
	table := NewTableSink(secure, tableServer.URL)
	fanout := NewFanout(chat, table, NewEventLogSink(nil))

	dispatch := alertengine.Dispatch{
		Transition: alertengine.TransitionResolved,
		Record:     models.IssueRecord{Host: "h", Type: models.TypeDiskUsage},
		Meta:       models.AlertMeta{Group: models.GroupHardware, Priority: models.PriorityP2},
	}
	fanout.Deliver(context.Background(), dispatch)

	require.EqualValues(t, 1, atomic.LoadInt32(&chatHits))
	require.EqualValues(t, 0, atomic.LoadInt32(&tableHits), "table sync must never run for resolved transitions")
}

func TestFanoutDeliverInvokesTableSinkForNewTransition(t *testing.T) {
	var tableHits int32
	chatServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer chatServer.Close()
	tableServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tableHits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer tableServer.Close()

	secure := NewSecureClient("127.0.0.0/8")
	chat := NewChatSink(secure, map[models.Group]string{models.GroupHardware: chatServer.URL})
	table := NewTableSink(secure, tableServer.URL)
	fanout := NewFanout(chat, table, nil)

	dispatch := alertengine.Dispatch{
		Transition: alertengine.TransitionNew,
		Record:     models.IssueRecord{Host: "h", Type: models.TypeDiskUsage},
		Meta:       models.AlertMeta{Group: models.GroupHardware, Priority: models.PriorityP2},
	}
	fanout.Deliver(context.Background(), dispatch)

	require.EqualValues(t, 1, atomic.LoadInt32(&tableHits))
}

func TestFanoutDeliverToleratesNilSinks(t *testing.T) {
	fanout := NewFanout(nil, nil, nil)
	require.NotPanics(t, func() {
		fanout.Deliver(context.Background(), alertengine.Dispatch{})
	})
}
