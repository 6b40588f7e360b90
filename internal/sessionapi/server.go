// Package sessionapi implements pb.SessionServiceServer by delegating to
// an internal/engine.Engine, translating between the wire-shaped pb.*
// request/response types and engine-level calls (spec §6 "Session API").
//
// Grounded on the teacher's cmd/server pattern of a thin gRPC service
// struct embedding the Unimplemented*Server type and holding a single
// pointer to the domain object it fronts.
package sessionapi

import (
	"context"
	"fmt"

	"github.com/omnibridge/engine/internal/config"
	"github.com/omnibridge/engine/internal/engine"
	"github.com/omnibridge/engine/internal/fixsession"
	"github.com/omnibridge/engine/internal/ouch"
	"github.com/omnibridge/engine/internal/ouchsession"
	"github.com/omnibridge/engine/pb"
)

// Server implements pb.SessionServiceServer against a single *engine.Engine.
type Server struct {
	pb.UnimplementedSessionServiceServer

	eng *engine.Engine
}

// New wraps eng for gRPC registration.
func New(eng *engine.Engine) *Server {
	return &Server{eng: eng}
}

func (s *Server) CreateSession(ctx context.Context, req *pb.CreateSessionRequest) (*pb.SessionHandle, error) {
	sc := config.SessionConfig{
		SessionID:         req.SessionId,
		Host:              req.Host,
		Port:              int(req.Port),
		HeartbeatInterval: int(req.HeartbeatInterval),
		Schedule:          req.ScheduleName,
		SenderCompID:      req.SenderCompId,
		TargetCompID:      req.TargetCompId,
		BeginString:       req.BeginString,
		Username:          req.Username,
		RequestedSession:  req.RequestedSession,
	}
	if req.Role == pb.Role_ACCEPTOR {
		sc.Role = "acceptor"
	} else {
		sc.Role = "initiator"
	}
	switch req.Protocol {
	case pb.Protocol_OUCH:
		sc.Protocol = "OUCH"
	default:
		sc.Protocol = "FIX"
	}

	if err := s.eng.CreateSession(sc); err != nil {
		return nil, err
	}
	return &pb.SessionHandle{SessionId: req.SessionId}, nil
}

func (s *Server) Enable(ctx context.Context, req *pb.EnableRequest) (*pb.Ack, error) {
	if err := s.eng.Enable(req.SessionId, req.Enabled); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) Connect(ctx context.Context, req *pb.SessionHandle) (*pb.Ack, error) {
	if err := s.eng.Connect(req.SessionId); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) Disconnect(ctx context.Context, req *pb.SessionHandle) (*pb.Ack, error) {
	if err := s.eng.Disconnect(req.SessionId); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) ResetSequences(ctx context.Context, req *pb.SessionHandle) (*pb.Ack, error) {
	if err := s.eng.ResetSequences(req.SessionId); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) SetOutgoingSeq(ctx context.Context, req *pb.SetSeqRequest) (*pb.Ack, error) {
	if err := s.eng.SetOutgoingSeq(req.SessionId, req.SeqNum); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) SetIncomingSeq(ctx context.Context, req *pb.SetSeqRequest) (*pb.Ack, error) {
	if err := s.eng.SetIncomingSeq(req.SessionId, req.SeqNum); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) SendApplicationMessage(ctx context.Context, req *pb.SendMessageRequest) (*pb.Ack, error) {
	if err := s.eng.SendApplicationMessage(req.SessionId, req.MsgType, req.Encoded); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

func (s *Server) SendTestRequest(ctx context.Context, req *pb.SessionHandle) (*pb.Ack, error) {
	if err := s.eng.SendTestRequest(req.SessionId); err != nil {
		return ackErr(err)
	}
	return ackOK(), nil
}

// RegisterStateListener attaches fn to sessionID's underlying FIX or OUCH
// session so state-change events can be forwarded to a streaming RPC
// caller (spec §6 "register state-change listener"). The in-process
// engine delivers these via fixsession.Listener/ouchsession.Listener
// rather than a generated gRPC stream, so this is the glue between the
// two (see pb.StateListenerStream).
func (s *Server) RegisterStateListener(sessionID string, fn func(protocol, from, to string)) error {
	b, ok := s.eng.Session(sessionID)
	if !ok {
		return fmt.Errorf("sessionapi: unknown session %s", sessionID)
	}
	if fs, ok := engine.FixSessionOf(b); ok {
		fs.AddListener(stateListenerFunc(func(from, to fixsession.State) {
			fn("FIX", string(from), string(to))
		}))
		return nil
	}
	if os, ok := engine.OuchSessionOf(b); ok {
		os.AddListener(ouchStateListenerFunc(func(from, to ouchsession.State) {
			fn("OUCH", string(from), string(to))
		}))
		return nil
	}
	return fmt.Errorf("sessionapi: session %s has no bound protocol session", sessionID)
}

func ackOK() *pb.Ack { return &pb.Ack{Ok: true} }

func ackErr(err error) (*pb.Ack, error) {
	return &pb.Ack{Ok: false, Detail: err.Error()}, err
}

// stateListenerFunc adapts a plain state-transition callback to
// fixsession.Listener, ignoring message and logon-reject traffic.
type stateListenerFunc func(from, to fixsession.State)

func (f stateListenerFunc) OnStateChange(sess *fixsession.Session, from, to fixsession.State) {
	f(from, to)
}
func (stateListenerFunc) OnMessage(*fixsession.Session, fixsession.Direction, string, int64, []byte) {}
func (stateListenerFunc) OnLogonRejected(*fixsession.Session, string)                                {}

// ouchStateListenerFunc is the OUCH twin of stateListenerFunc.
type ouchStateListenerFunc func(from, to ouchsession.State)

func (f ouchStateListenerFunc) OnStateChange(sess *ouchsession.Session, from, to ouchsession.State) {
	f(from, to)
}
func (ouchStateListenerFunc) OnMessage(*ouchsession.Session, ouch.MessageType, []byte) {}
func (ouchStateListenerFunc) OnLoginRejected(*ouchsession.Session, string)              {}
