package envelope

// Message is the inner (method, args) call carried by a Routed or
// Broadcast envelope: the name of the handler to invoke at the
// destination and its arguments.
type Message struct {
	Method string                 `json:"method"`
	Args   map[string]interface{} `json:"args"`
}

// Routed is a point-to-point envelope addressed to a single destination
// cell, following the path recorded hop by hop as it is forwarded.
type Routed struct {
	Dest         string  `json:"dest"`
	Direction    Direction `json:"direction"`
	Path         string  `json:"path"`
	Message      Message `json:"message"`
	ResponseID   string  `json:"responseId,omitempty"`
	NeedResponse bool    `json:"needResponse,omitempty"`
}

// Broadcast is a fan-out envelope delivered to every cell reachable in
// Direction from the sender, bounded by HopCount.
type Broadcast struct {
	Direction Direction `json:"direction"`
	Path      string    `json:"path"`
	HopCount  int       `json:"hopCount"`
	Fanout    bool      `json:"fanout"`
	Message   Message   `json:"message"`
}

// ResultInfo is the payload of a "send_response" Message: either a
// successful result or a RemoteError triple packaged by the handler that
// raised it.
type ResultInfo struct {
	Result  interface{} `json:"result"`
	Failure bool        `json:"failure"`
}

// FormRouted builds the Routed envelope the Router Core places on the
// wire for a point-to-point call, mirroring cells_common.form_routing_message.
func FormRouted(dest string, direction Direction, path, method string, args map[string]interface{}, responseID string, needResponse bool) Routed {
	return Routed{
		Dest:         dest,
		Direction:    direction,
		Path:         path,
		Message:      Message{Method: method, Args: args},
		ResponseID:   responseID,
		NeedResponse: needResponse,
	}
}

// FormResponse builds the Routed envelope used to carry a send_response
// call back along the reverse of the path a routed call traveled.
func FormResponse(dest string, direction Direction, path, responseID string, result interface{}, failure bool) Routed {
	return Routed{
		Dest:      dest,
		Direction: direction,
		Path:      path,
		Message: Message{
			Method: "send_response",
			Args: map[string]interface{}{
				"responseId": responseID,
				"resultInfo": ResultInfo{Result: result, Failure: failure},
			},
		},
	}
}

// FormBroadcast builds the Broadcast envelope the Broadcast Engine places
// on the wire, mirroring cells_common.form_broadcast_message.
func FormBroadcast(direction Direction, path string, hopCount int, fanout bool, method string, args map[string]interface{}) Broadcast {
	return Broadcast{
		Direction: direction,
		Path:      path,
		HopCount:  hopCount,
		Fanout:    fanout,
		Message:   Message{Method: method, Args: args},
	}
}

// FrameKind discriminates the two shapes that travel over a Transport
// Adapter; a Response is always carried as a Routed frame whose message
// method is "send_response".
type FrameKind string

const (
	FrameRouted    FrameKind = "routed"
	FrameBroadcast FrameKind = "broadcast"
)

// Frame is the single concrete type every Transport Adapter sends and
// receives, so that both the in-process adapter and the AMQP adapter
// round-trip the same shape regardless of whether a real wire
// serialization happens in between.
type Frame struct {
	Kind      FrameKind  `json:"kind"`
	Routed    *Routed    `json:"routed,omitempty"`
	Broadcast *Broadcast `json:"broadcast,omitempty"`
}

// NewRoutedFrame wraps a Routed envelope for transport.
func NewRoutedFrame(r Routed) Frame {
	return Frame{Kind: FrameRouted, Routed: &r}
}

// NewBroadcastFrame wraps a Broadcast envelope for transport.
func NewBroadcastFrame(b Broadcast) Frame {
	return Frame{Kind: FrameBroadcast, Broadcast: &b}
}
