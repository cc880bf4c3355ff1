package printing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchenedge/receipt"
)

func textPayload() receipt.Payload {
	return receipt.Payload{OrderID: "o9", Encoding: receipt.EncodingText, ContentType: "text/plain; charset=utf-8", Body: []byte("ORDER #9\n")}
}

func TestBridgeTransportPostsText(t *testing.T) {
	var gotBody, gotOrder, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/print" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotOrder = r.Header.Get("X-Order-ID")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := NewBridgeTransport(srv.URL+"/", 2*time.Second)
	require.NoError(t, tr.Print(context.Background(), textPayload()))
	assert.Equal(t, "ORDER #9\n", gotBody)
	assert.Equal(t, "o9", gotOrder)
	assert.Equal(t, "text/plain; charset=utf-8", gotType)
	assert.Equal(t, ModeBridge, tr.Mode())
	assert.Equal(t, receipt.EncodingText, tr.Encoding())
}

func TestBridgeTransportErrorReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "printer offline"})
	}))
	defer srv.Close()

	err := NewBridgeTransport(srv.URL, time.Second).Print(context.Background(), textPayload())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransportUnavailable))
	var pe *Error
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "printer offline", pe.Reason)
}

func TestBridgeTransportUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewBridgeTransport(url, time.Second).Print(context.Background(), textPayload())
	assert.True(t, errors.Is(err, ErrTransportUnavailable))
}

type fakePublisher struct {
	connected bool
	topic     string
	data      []byte
	err       error
}

func (p *fakePublisher) Publish(topic string, data []byte) error {
	p.topic, p.data = topic, data
	return p.err
}

func (p *fakePublisher) IsConnected() bool { return p.connected }

func TestBluetoothTransport(t *testing.T) {
	pub := &fakePublisher{connected: true}
	tr := NewBluetoothTransport(pub, "kitchen/bt/", "printer-1")

	require.NoError(t, tr.Print(context.Background(), textPayload()))
	assert.Equal(t, "kitchen/bt/printer-1", pub.topic)

	var msg struct {
		OrderID string `json:"order_id"`
		Body    string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(pub.data, &msg))
	assert.Equal(t, "o9", msg.OrderID)
	assert.Equal(t, "ORDER #9\n", msg.Body)
}

func TestBluetoothTransportOffline(t *testing.T) {
	tr := NewBluetoothTransport(&fakePublisher{}, "kitchen/bt", "printer-1")
	err := tr.Print(context.Background(), textPayload())
	assert.True(t, errors.Is(err, ErrTransportUnavailable))

	tr = NewBluetoothTransport(&fakePublisher{connected: true, err: errors.New("broker full")}, "kitchen/bt", "printer-1")
	err = tr.Print(context.Background(), textPayload())
	assert.True(t, errors.Is(err, ErrTransportUnavailable))
}

type fakeHost struct {
	jobs []HostJob
	err  error
}

func (h *fakeHost) Deliver(_ context.Context, job HostJob) error {
	h.jobs = append(h.jobs, job)
	return h.err
}

func TestHostTransports(t *testing.T) {
	host := &fakeHost{}
	dialog := NewSystemDialogTransport(host)
	thermal := NewDirectThermalTransport(host)

	assert.Equal(t, receipt.EncodingMarkup, dialog.Encoding())
	assert.Equal(t, receipt.EncodingText, thermal.Encoding())

	require.NoError(t, dialog.Print(context.Background(), receipt.Payload{OrderID: "o1", ContentType: "text/html; charset=utf-8", Body: []byte("<div></div>")}))
	require.NoError(t, thermal.Print(context.Background(), textPayload()))

	require.Len(t, host.jobs, 2)
	assert.Equal(t, ModeSystemDialog, host.jobs[0].Mode)
	assert.Equal(t, "<div></div>", host.jobs[0].Body)
	assert.Equal(t, ModeDirectThermal, host.jobs[1].Mode)
	assert.NotEqual(t, host.jobs[0].ID, host.jobs[1].ID)

	err := NewSystemDialogTransport(nil).Print(context.Background(), textPayload())
	assert.True(t, errors.Is(err, ErrTransportUnavailable))
}
