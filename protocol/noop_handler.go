package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleOrderCreated(*Envelope, *OrderEvent)           {}
func (NoOpHandler) HandleOrderStatusChanged(*Envelope, *OrderEvent)     {}
func (NoOpHandler) HandleStoreKeepalive(*Envelope, *StoreKeepalive)     {}
func (NoOpHandler) HandleDisplayRegister(*Envelope, *DisplayRegister)   {}
func (NoOpHandler) HandleDisplayHeartbeat(*Envelope, *DisplayHeartbeat) {}

var _ MessageHandler = NoOpHandler{}
