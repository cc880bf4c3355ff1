package printing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kitchenedge/receipt"
)

// HostJob is a print job handed to the tablet hosting a display. The tablet
// prints it through the system dialog or a direct-thermal companion app and
// acknowledges by job ID.
type HostJob struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Mode        Mode   `json:"mode"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Host delivers jobs to the tablet and waits for its acknowledgement.
type Host interface {
	Deliver(ctx context.Context, job HostJob) error
}

// HostTransport covers the two transports the tablet performs itself.
type HostTransport struct {
	mode Mode
	enc  receipt.Encoding
	host Host
}

// NewSystemDialogTransport prints markup through the tablet's print dialog.
func NewSystemDialogTransport(host Host) *HostTransport {
	return &HostTransport{mode: ModeSystemDialog, enc: receipt.EncodingMarkup, host: host}
}

// NewDirectThermalTransport hands plain text to the tablet's thermal printer
// companion app.
func NewDirectThermalTransport(host Host) *HostTransport {
	return &HostTransport{mode: ModeDirectThermal, enc: receipt.EncodingText, host: host}
}

func (t *HostTransport) Mode() Mode                 { return t.mode }
func (t *HostTransport) Encoding() receipt.Encoding { return t.enc }

func (t *HostTransport) Print(ctx context.Context, p receipt.Payload) error {
	if t.host == nil {
		return Unavailable(t.mode, "no display connected", nil)
	}
	return t.host.Deliver(ctx, HostJob{
		ID:          uuid.New().String(),
		OrderID:     p.OrderID,
		Mode:        t.mode,
		ContentType: p.ContentType,
		Body:        string(p.Body),
	})
}

// BridgeTransport posts plain text to a network print bridge.
type BridgeTransport struct {
	url        string
	httpClient *http.Client
}

func NewBridgeTransport(url string, timeout time.Duration) *BridgeTransport {
	return &BridgeTransport{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *BridgeTransport) Mode() Mode                 { return ModeBridge }
func (t *BridgeTransport) Encoding() receipt.Encoding { return receipt.EncodingText }

func (t *BridgeTransport) Print(ctx context.Context, p receipt.Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/print", bytes.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("bridge request: %w", err)
	}
	req.Header.Set("Content-Type", p.ContentType)
	req.Header.Set("X-Order-ID", p.OrderID)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Unavailable(ModeBridge, "print bridge unreachable", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 400 {
		var body struct {
			Error string `json:"error"`
		}
		reason := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			reason = body.Error
		}
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return Unavailable(ModeBridge, reason, fmt.Errorf("bridge HTTP %d", resp.StatusCode))
	}
	return nil
}

// Publisher is the messaging surface the bluetooth relay needs.
type Publisher interface {
	Publish(topic string, data []byte) error
	IsConnected() bool
}

// BluetoothTransport publishes to the relay topic of the paired printer.
type BluetoothTransport struct {
	pub   Publisher
	topic string
}

func NewBluetoothTransport(pub Publisher, topicPrefix, deviceID string) *BluetoothTransport {
	return &BluetoothTransport{pub: pub, topic: strings.TrimRight(topicPrefix, "/") + "/" + deviceID}
}

func (t *BluetoothTransport) Mode() Mode                 { return ModeBluetooth }
func (t *BluetoothTransport) Encoding() receipt.Encoding { return receipt.EncodingText }

// Topic is the relay topic jobs are published to.
func (t *BluetoothTransport) Topic() string { return t.topic }

func (t *BluetoothTransport) Print(_ context.Context, p receipt.Payload) error {
	if t.pub == nil || !t.pub.IsConnected() {
		return Unavailable(ModeBluetooth, "bluetooth relay offline", nil)
	}
	data, err := json.Marshal(struct {
		OrderID string `json:"order_id"`
		Body    string `json:"body"`
	}{p.OrderID, string(p.Body)})
	if err != nil {
		return fmt.Errorf("bluetooth marshal: %w", err)
	}
	if err := t.pub.Publish(t.topic, data); err != nil {
		return Unavailable(ModeBluetooth, "bluetooth relay rejected job", err)
	}
	return nil
}
