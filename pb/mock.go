// Package pb provides the gRPC-shaped message and service types for the
// Session API transport (spec §6): the external scheduler and admin-
// surface collaborators call these to create/enable/connect/disconnect a
// session and adjust its sequence numbers without reaching into engine
// internals. These are hand-authored in the shape protoc would generate
// (message structs, a *Client interface taking grpc.CallOption, an
// Unimplemented*Server embed) rather than full generated code, matching
// the teacher's own pb/mock.go approach for services it has not wired a
// .proto pipeline for.
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Role mirrors fixsession.Role / the acceptor|initiator choice for OUCH
// (spec §3 "Session record" role attribute).
type Role int32

const (
	Role_INITIATOR Role = 0
	Role_ACCEPTOR  Role = 1
)

// Protocol selects which session engine (FIX or OUCH) a request targets.
type Protocol int32

const (
	Protocol_FIX  Protocol = 0
	Protocol_OUCH Protocol = 1
)

// CreateSessionRequest mirrors spec §6 "Create session (with role,
// endpoints, identifiers, heartbeat interval, optional schedule name)".
type CreateSessionRequest struct {
	SessionId         string
	Protocol          Protocol
	Role              Role
	Host              string
	Port              int32
	HeartbeatInterval int32
	ScheduleName      string

	// FIX-specific identity.
	BeginString  string
	SenderCompId string
	TargetCompId string

	// OUCH-specific identity.
	Username         string
	RequestedSession string
}

// SessionHandle identifies a previously created session in every
// subsequent call.
type SessionHandle struct {
	SessionId string
}

// EnableRequest toggles the enable flag described in spec §3 "Session
// record" persistent attributes.
type EnableRequest struct {
	SessionId string
	Enabled   bool
}

// SetSeqRequest backs set-outgoing-seq/set-incoming-seq (spec §6).
type SetSeqRequest struct {
	SessionId string
	SeqNum    int64
}

// SendMessageRequest carries an already-encoded application message
// (spec §6 "send-application-message(encoded bytes)").
type SendMessageRequest struct {
	SessionId string
	MsgType   string
	Encoded   []byte
}

// StateChangeEvent is streamed to a registered state-change listener
// (spec §6 "register state-change listener").
type StateChangeEvent struct {
	SessionId string
	From      string
	To        string
	At        *timestamppb.Timestamp
}

// MessageEvent is streamed to a registered message listener, covering
// both admin and application traffic (spec §6 "register message
// listener (inbound, both admin and application)").
type MessageEvent struct {
	SessionId string
	Direction string // "IN" | "OUT"
	MsgType   string
	SeqNum    int64
	Raw       []byte
	At        *timestamppb.Timestamp
}

// Ack is the response most mutating RPCs return: Ok reports success and
// Detail carries the error text on failure.
type Ack struct {
	Ok     bool
	Detail string
}

// SessionServiceClient is the RPC surface external collaborators (the
// wall-clock scheduler, the admin HTTP/WebSocket surface) call against.
// Shaped exactly like a protoc-generated client interface.
type SessionServiceClient interface {
	CreateSession(ctx context.Context, in *CreateSessionRequest, opts ...grpc.CallOption) (*SessionHandle, error)
	Enable(ctx context.Context, in *EnableRequest, opts ...grpc.CallOption) (*Ack, error)
	Connect(ctx context.Context, in *SessionHandle, opts ...grpc.CallOption) (*Ack, error)
	Disconnect(ctx context.Context, in *SessionHandle, opts ...grpc.CallOption) (*Ack, error)
	ResetSequences(ctx context.Context, in *SessionHandle, opts ...grpc.CallOption) (*Ack, error)
	SetOutgoingSeq(ctx context.Context, in *SetSeqRequest, opts ...grpc.CallOption) (*Ack, error)
	SetIncomingSeq(ctx context.Context, in *SetSeqRequest, opts ...grpc.CallOption) (*Ack, error)
	SendApplicationMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*Ack, error)
	SendTestRequest(ctx context.Context, in *SessionHandle, opts ...grpc.CallOption) (*Ack, error)
}

// SessionServiceServer is the server-side interface internal/sessionapi
// implements against internal/engine.
type SessionServiceServer interface {
	CreateSession(context.Context, *CreateSessionRequest) (*SessionHandle, error)
	Enable(context.Context, *EnableRequest) (*Ack, error)
	Connect(context.Context, *SessionHandle) (*Ack, error)
	Disconnect(context.Context, *SessionHandle) (*Ack, error)
	ResetSequences(context.Context, *SessionHandle) (*Ack, error)
	SetOutgoingSeq(context.Context, *SetSeqRequest) (*Ack, error)
	SetIncomingSeq(context.Context, *SetSeqRequest) (*Ack, error)
	SendApplicationMessage(context.Context, *SendMessageRequest) (*Ack, error)
	SendTestRequest(context.Context, *SessionHandle) (*Ack, error)
}

// UnimplementedSessionServiceServer gives internal/sessionapi's server a
// forward-compatible embed, the standard protoc-gen-go-grpc pattern.
type UnimplementedSessionServiceServer struct{}

func (UnimplementedSessionServiceServer) CreateSession(context.Context, *CreateSessionRequest) (*SessionHandle, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) Enable(context.Context, *EnableRequest) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) Connect(context.Context, *SessionHandle) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) Disconnect(context.Context, *SessionHandle) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) ResetSequences(context.Context, *SessionHandle) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) SetOutgoingSeq(context.Context, *SetSeqRequest) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) SetIncomingSeq(context.Context, *SetSeqRequest) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) SendApplicationMessage(context.Context, *SendMessageRequest) (*Ack, error) {
	return nil, nil
}
func (UnimplementedSessionServiceServer) SendTestRequest(context.Context, *SessionHandle) (*Ack, error) {
	return nil, nil
}

// StateListenerStream mirrors the server-streaming RPC shape protoc
// generates for "register state-change listener" (spec §6); modeled here
// rather than implemented as a full stream since the in-process engine
// delivers these via internal/fixsession.Listener/internal/ouchsession.Listener
// and this type exists purely as the wire-shaped contract external gRPC
// collaborators would see.
type StateListenerStream interface {
	Send(*StateChangeEvent) error
	grpc.ServerStream
}

// MessageListenerStream is the message-listener twin of StateListenerStream.
type MessageListenerStream interface {
	Send(*MessageEvent) error
	grpc.ServerStream
}
