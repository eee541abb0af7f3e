package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedReader replays a fixed sequence of fetch results, then reports cancellation.
type scriptedReader struct {
	script    []fetchResult
	committed []int64
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func (r *scriptedReader) FetchMessage(context.Context) (kafka.Message, error) {
	if len(r.script) == 0 {
		return kafka.Message{}, context.Canceled
	}
	next := r.script[0]
	r.script = r.script[1:]
	return next.msg, next.err
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

type recordingHandler struct {
	seen []Message
	err  error
}

func (h *recordingHandler) Handle(_ context.Context, msg Message) error {
	h.seen = append(h.seen, msg)
	return h.err
}

func run(t *testing.T, reader *scriptedReader, handler Handler) {
	t.Helper()
	p := NewProcessor(reader, handler,
		WithLogger(zerolog.New(zerolog.NewTestWriter(t))),
		WithFetchBackoff(0),
	)
	require.ErrorIs(t, p.Run(context.Background()), context.Canceled)
}

func TestProcessorCommitsMergedRows(t *testing.T) {
	const rows = "1.1,Obra Civil,Pintura,ACME,Ana,Realizada,100,500,2025-01-05,2025-01-08"
	before := testutil.ToFloat64(rowMessages.WithLabelValues("activity_rows", outcomeIngested))

	reader := &scriptedReader{script: []fetchResult{{msg: kafka.Message{
		Topic:   "activity_rows",
		Offset:  10,
		Time:    time.Now().Add(-time.Second),
		Value:   []byte(rows),
		Headers: []kafka.Header{{Key: "source", Value: []byte(" sheet-exporter ")}},
	}}}}
	handler := &recordingHandler{}
	run(t, reader, handler)

	require.Len(t, handler.seen, 1)
	require.Equal(t, "sheet-exporter", handler.seen[0].Source)
	require.Equal(t, rows, handler.seen[0].Rows)
	require.Equal(t, []int64{10}, reader.committed)
	require.Equal(t, before+1, testutil.ToFloat64(rowMessages.WithLabelValues("activity_rows", outcomeIngested)))
}

func TestProcessorLeavesOffsetOnHandlerError(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{{msg: kafka.Message{
		Topic:  "activity_rows",
		Offset: 20,
		Value:  []byte("2.1,Pintura,Fachada,Luz SA,Juan,En proceso,40,1200,,"),
	}}}}
	handler := &recordingHandler{err: errors.New("boom")}
	run(t, reader, handler)

	require.Len(t, handler.seen, 1)
	require.Equal(t, defaultSource, handler.seen[0].Source)
	require.Empty(t, reader.committed)
}

func TestProcessorSkipsUndecodableMessages(t *testing.T) {
	reader := &scriptedReader{script: []fetchResult{
		{msg: kafka.Message{Topic: "activity_rows", Offset: 1}},
		{msg: kafka.Message{Topic: "activity_rows", Offset: 2, Value: []byte{0xff, 0xfe, 0xfd}}},
	}}
	handler := &recordingHandler{}
	run(t, reader, handler)

	require.Empty(t, handler.seen)
	require.Equal(t, []int64{1, 2}, reader.committed)
}

func TestProcessorRetriesAfterFetchFailure(t *testing.T) {
	before := testutil.ToFloat64(fetchFailures)
	reader := &scriptedReader{script: []fetchResult{
		{err: errors.New("broker not available")},
		{msg: kafka.Message{Topic: "activity_rows", Offset: 3, Value: []byte("1,Obra,Cerco")}},
	}}
	handler := &recordingHandler{}
	run(t, reader, handler)

	require.Equal(t, before+1, testutil.ToFloat64(fetchFailures))
	require.Len(t, handler.seen, 1)
	require.Equal(t, []int64{3}, reader.committed)
}

func TestProcessorStopsWhileBackingOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &scriptedReader{script: []fetchResult{{err: errors.New("broker not available")}}}
	p := NewProcessor(reader, &recordingHandler{}, WithLogger(zerolog.Nop()), WithFetchBackoff(time.Hour))

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}

func TestIngestHandlerMergesRows(t *testing.T) {
	set := domain.NewWorkingSet(nil, 0)
	handler := NewIngestHandler(tracker.NewService(set, tracker.WithLogger(zerolog.Nop())))

	err := handler.Handle(context.Background(), Message{
		Source: "stream",
		Rows:   "3,Carteleria,Cartel,Zip,Agustin,En proceso,50,100,,\n3.1,Carteleria,Vinilos,Zip,Agustin,,0,20,,",
	})
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())

	// Rows without any usable record are acknowledged rather than retried.
	require.NoError(t, handler.Handle(context.Background(), Message{Source: "stream", Rows: "x,y"}))
	require.Equal(t, 2, set.Len())
}
