package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	"github.com/cuemby/platsvc/pkg/errs"
	"github.com/cuemby/platsvc/pkg/slog"
)

// rawCodecName is registered once so both the distributed mailbox client
// and server exchange the envelope's JSON bytes verbatim over grpc's wire
// framing, without requiring protoc-generated message types: no protobuf
// toolchain is available here to generate real .pb.go stubs, so this
// rides grpc's codec extension point with a byte-identity codec instead.
const rawCodecName = "platsvc-raw"

type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("mailbox: rawCodec.Marshal: unsupported type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("mailbox: rawCodec.Unmarshal: unsupported type %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return rawCodecName }

func init() {
	encoding.RegisterCodec(rawCodec{})
}

const distributedServiceName = "platsvc.mailbox.MailboxTransport"

var distributedServiceDesc = grpc.ServiceDesc{
	ServiceName: distributedServiceName,
	HandlerType: (*distributedServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Post",
			Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
				var buf []byte
				if err := dec(&buf); err != nil {
					return nil, err
				}
				s := srv.(*distributedServer)
				if err := s.handlePost(buf); err != nil {
					return nil, err
				}
				empty := []byte{}
				return &empty, nil
			},
		},
	},
}

// distributedServer receives posted envelopes over grpc and feeds them
// into the owning mailbox's local queue, exactly the way smMailbox's
// drainLoop feeds the local queue from the SM transport.
type distributedServer struct {
	owner    *distributedMailbox
	registry *Registry
}

func (s *distributedServer) handlePost(buf []byte) error {
	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return err
	}
	msg, err := s.registry.Decode(env.ID, env.Payload)
	if err != nil {
		slog.Logger.Warn().Err(err).Uint16("msg_id", env.ID).Msg("mailbox: dropping undecodable distributed message")
		return nil
	}
	return s.owner.localMailbox.Post(msg, 0)
}

// distributedMailbox is a thin grpc client/server pair obeying the same
// Mailbox contract as local and same-node SM mailboxes. It is a minimal
// but real implementation, not a total stub: a local grpc.Server accepts
// posts from other nodes and feeds them into the embedded localMailbox,
// while Post to a peer dials out and invokes the same RPC.
type distributedMailbox struct {
	*localMailbox

	registry *Registry
	server   *grpc.Server
	listener net.Listener

	peers map[string]*grpc.ClientConn
}

// NewDistributedMailbox creates a distributed mailbox named name, listening
// on listenAddr for peer posts.
func NewDistributedMailbox(name, neid, listenAddr string, registry *Registry, basePriority int) (*distributedMailbox, OwnerHandle, error) {
	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, OwnerHandle{}, fmt.Errorf("mailbox: listen for distributed mailbox: %w", err)
	}

	dm := &distributedMailbox{
		localMailbox: newLocalMailbox(NewDistributedAddress(name, neid, lis.Addr().String()), basePriority),
		registry:     registry,
		listener:     lis,
		peers:        make(map[string]*grpc.ClientConn),
	}

	srv := grpc.NewServer()
	srv.RegisterService(&distributedServiceDesc, &distributedServer{owner: dm, registry: registry})
	dm.server = srv

	go func() {
		if err := srv.Serve(lis); err != nil {
			slog.Logger.Debug().Err(err).Msg("mailbox: distributed server stopped")
		}
	}()

	return dm, OwnerHandle{mailbox: dm}, nil
}

func (m *distributedMailbox) Activate(handle OwnerHandle) error {
	if handle.mailbox != Mailbox(m) {
		return errs.ErrNotActive
	}
	return m.localMailbox.Activate(OwnerHandle{mailbox: m.localMailbox})
}

func (m *distributedMailbox) Deactivate(handle OwnerHandle) {
	if handle.mailbox != Mailbox(m) {
		return
	}
	m.server.GracefulStop()
	for _, conn := range m.peers {
		_ = conn.Close()
	}
	m.localMailbox.Deactivate(OwnerHandle{mailbox: m.localMailbox})
}

// PostToPeer serializes msg and invokes the Post RPC against a peer
// distributed mailbox reachable at peerAddr.
func (m *distributedMailbox) PostToPeer(ctx context.Context, peerAddr string, msg Message) error {
	payload, err := msg.Serialize()
	if err != nil {
		return fmt.Errorf("mailbox: serialize for distributed post: %w", err)
	}
	if len(payload) > wireMaxBytes {
		return errs.ErrOutOfMemory
	}

	conn, ok := m.peers[peerAddr]
	if !ok {
		conn, err = grpc.NewClient(peerAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rawCodecName)),
		)
		if err != nil {
			return fmt.Errorf("mailbox: dial peer: %w", err)
		}
		m.peers[peerAddr] = conn
	}

	env := envelope{ID: msg.ID(), Priority: msg.Priority(), Version: msg.Version(), Payload: payload}
	buf, err := json.Marshal(env)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var reply []byte
	return conn.Invoke(callCtx, "/"+distributedServiceName+"/Post", &buf, &reply)
}

func (m *distributedMailbox) Close() error {
	m.server.GracefulStop()
	return m.listener.Close()
}
