package sink

import (
	"sync"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/glovestage/internal/monitoring"
)

// Stage service identifiers. Subscribe takes a google.protobuf.Empty and
// streams one google.protobuf.Struct per sink call, so clients need no
// generated stubs.
const (
	StageServiceName = "glovestage.v1.Stage"
	SubscribeMethod  = "/" + StageServiceName + "/Subscribe"
)

// DefaultGRPCBuffer is the per-subscriber event queue length.
const DefaultGRPCBuffer = 256

type stageServer interface {
	serve(stream grpc.ServerStream) error
}

var stageServiceDesc = grpc.ServiceDesc{
	ServiceName: StageServiceName,
	HandlerType: (*stageServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
	Metadata: "glovestage/v1/stage.proto",
}

// SubscribeStreamDesc describes the Subscribe stream for clients opening it
// with grpc.ClientConn.NewStream.
func SubscribeStreamDesc() *grpc.StreamDesc { return &stageServiceDesc.Streams[0] }

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	if err := stream.RecvMsg(new(emptypb.Empty)); err != nil {
		return err
	}
	return srv.(stageServer).serve(stream)
}

type subscriber struct {
	id     uint64
	events chan *structpb.Struct
}

// GRPCSink streams every update to connected Subscribe clients. Publishing
// never blocks the render loop: a subscriber whose queue is full misses the
// event and the drop is counted.
//
// Each event carries "method" plus the call's fields: "id", "name", "kind",
// "value", and "r" "g" "b" "a" for colours.
type GRPCSink struct {
	buffer int

	mu      sync.RWMutex
	clients map[uint64]*subscriber
	nextID  uint64

	done      chan struct{}
	closeOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewGRPCSink returns a sink queueing up to buffer events per subscriber.
func NewGRPCSink(buffer int) *GRPCSink {
	if buffer <= 0 {
		buffer = DefaultGRPCBuffer
	}
	return &GRPCSink{
		buffer:  buffer,
		clients: make(map[uint64]*subscriber),
		done:    make(chan struct{}),
	}
}

// Register adds the Stage service to s.
func (g *GRPCSink) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(&stageServiceDesc, g)
}

// Subscribers returns the number of connected streams.
func (g *GRPCSink) Subscribers() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Published returns the number of events queued to at least one subscriber.
func (g *GRPCSink) Published() uint64 { return g.published.Load() }

// Dropped returns the number of per-subscriber events lost to full queues.
func (g *GRPCSink) Dropped() uint64 { return g.dropped.Load() }

// Close ends every open stream. Later updates are discarded.
func (g *GRPCSink) Close() {
	g.closeOnce.Do(func() { close(g.done) })
}

func (g *GRPCSink) serve(stream grpc.ServerStream) error {
	sub, ok := g.addClient()
	if !ok {
		return nil
	}
	defer g.removeClient(sub.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.done:
			return nil
		case ev := <-sub.events:
			if err := stream.SendMsg(ev); err != nil {
				monitoring.Opsf("[sink] grpc subscriber %d send failed: %v", sub.id, err)
				return err
			}
		}
	}
}

func (g *GRPCSink) addClient() (*subscriber, bool) {
	select {
	case <-g.done:
		return nil, false
	default:
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	sub := &subscriber{id: g.nextID, events: make(chan *structpb.Struct, g.buffer)}
	g.clients[sub.id] = sub
	monitoring.Diagf("[sink] grpc subscriber %d connected (total: %d)", sub.id, len(g.clients))
	return sub, true
}

func (g *GRPCSink) removeClient(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.clients, id)
	monitoring.Diagf("[sink] grpc subscriber %d disconnected (remaining: %d)", id, len(g.clients))
}

func (g *GRPCSink) publish(method string, fields map[string]*structpb.Value) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.clients) == 0 {
		return
	}
	fields["method"] = structpb.NewStringValue(method)
	ev := &structpb.Struct{Fields: fields}
	queued := false
	for _, c := range g.clients {
		select {
		case c.events <- ev:
			queued = true
		default:
			g.dropped.Add(1)
		}
	}
	if queued {
		g.published.Add(1)
	}
}

func num(v float64) *structpb.Value { return structpb.NewNumberValue(v) }
func str(v string) *structpb.Value  { return structpb.NewStringValue(v) }

// SetColor publishes a SetColor event.
func (g *GRPCSink) SetColor(id ObjectID, c RGBA) {
	g.publish("SetColor", map[string]*structpb.Value{
		"id": str(string(id)), "r": num(c.R), "g": num(c.G), "b": num(c.B), "a": num(c.A),
	})
}

// SetContinuousParam publishes a SetContinuousParam event.
func (g *GRPCSink) SetContinuousParam(id ObjectID, name string, v float64) {
	g.publish("SetContinuousParam", map[string]*structpb.Value{
		"id": str(string(id)), "name": str(name), "value": num(v),
	})
}

// ArmEnvelope publishes an ArmEnvelope event.
func (g *GRPCSink) ArmEnvelope(id ObjectID, kind string) {
	g.publish("ArmEnvelope", map[string]*structpb.Value{"id": str(string(id)), "kind": str(kind)})
}

// SetCameraOrbit publishes a SetCameraOrbit event.
func (g *GRPCSink) SetCameraOrbit(angle float64) {
	g.publish("SetCameraOrbit", map[string]*structpb.Value{"value": num(angle)})
}

// SetCameraHeight publishes a SetCameraHeight event.
func (g *GRPCSink) SetCameraHeight(v float64) {
	g.publish("SetCameraHeight", map[string]*structpb.Value{"value": num(v)})
}

// SetCameraZoom publishes a SetCameraZoom event.
func (g *GRPCSink) SetCameraZoom(v float64) {
	g.publish("SetCameraZoom", map[string]*structpb.Value{"value": num(v)})
}

// SetGlobalTimeScale publishes a SetGlobalTimeScale event.
func (g *GRPCSink) SetGlobalTimeScale(v float64) {
	g.publish("SetGlobalTimeScale", map[string]*structpb.Value{"value": num(v)})
}
