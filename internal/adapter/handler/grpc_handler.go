package handler

import (
	"context"
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/core/service"
)

// JSONCodecName is the content subtype clients pass with grpc.CallContentSubtype.
const JSONCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return JSONCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type KanbanIDRequest struct {
	ID string `json:"id"`
}

type KanbanReply struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Kanban  *domain.Kanban `json:"kanban,omitempty"`
}

type ExecuteWorkflowRequest struct {
	WorkflowID string               `json:"workflowId"`
	Input      domain.WorkflowInput `json:"input"`
}

type ExecuteWorkflowReply struct {
	Success bool                 `json:"success"`
	Message string               `json:"message"`
	Run     *service.WorkflowRun `json:"run,omitempty"`
}

// KanbanServer is the gRPC surface of the engine.
type KanbanServer interface {
	CreateKanban(context.Context, *service.CreateKanbanRequest) (*KanbanReply, error)
	CompleteKanban(context.Context, *KanbanIDRequest) (*KanbanReply, error)
	CancelKanban(context.Context, *KanbanIDRequest) (*KanbanReply, error)
	ExecuteWorkflow(context.Context, *ExecuteWorkflowRequest) (*ExecuteWorkflowReply, error)
}

type GRPCHandler struct {
	kanbans   *service.KanbanService
	workflows *service.WorkflowService
}

func NewGRPCHandler(kanbans *service.KanbanService, workflows *service.WorkflowService) *GRPCHandler {
	return &GRPCHandler{kanbans: kanbans, workflows: workflows}
}

var _ KanbanServer = (*GRPCHandler)(nil)

func (h *GRPCHandler) CreateKanban(ctx context.Context, req *service.CreateKanbanRequest) (*KanbanReply, error) {
	k, err := h.kanbans.CreateKanban(ctx, *req)
	if err != nil {
		return &KanbanReply{Success: false, Message: replyMessage(err)}, nil
	}
	return &KanbanReply{Success: true, Message: "kanban created", Kanban: k}, nil
}

func (h *GRPCHandler) CompleteKanban(ctx context.Context, req *KanbanIDRequest) (*KanbanReply, error) {
	k, err := h.kanbans.CompleteKanban(ctx, req.ID)
	if err != nil {
		return &KanbanReply{Success: false, Message: replyMessage(err)}, nil
	}
	return &KanbanReply{Success: true, Message: "kanban completed", Kanban: k}, nil
}

func (h *GRPCHandler) CancelKanban(ctx context.Context, req *KanbanIDRequest) (*KanbanReply, error) {
	k, err := h.kanbans.CancelKanban(ctx, req.ID)
	if err != nil {
		return &KanbanReply{Success: false, Message: replyMessage(err)}, nil
	}
	return &KanbanReply{Success: true, Message: "kanban cancelled", Kanban: k}, nil
}

func (h *GRPCHandler) ExecuteWorkflow(ctx context.Context, req *ExecuteWorkflowRequest) (*ExecuteWorkflowReply, error) {
	run, err := h.workflows.ExecuteWorkflow(ctx, req.WorkflowID, req.Input)
	if err != nil {
		return &ExecuteWorkflowReply{Success: false, Message: replyMessage(err), Run: run}, nil
	}
	return &ExecuteWorkflowReply{Success: true, Message: "workflow executed", Run: run}, nil
}

func replyMessage(err error) string {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("rpc failed")
		return "internal error"
	}
	return err.Error()
}

// RegisterKanbanServer attaches srv to s under kanban.v1.KanbanService.
func RegisterKanbanServer(s grpc.ServiceRegistrar, srv KanbanServer) {
	s.RegisterService(&kanbanServiceDesc, srv)
}

const kanbanServiceName = "kanban.v1.KanbanService"

func unaryHandler[Req any, Reply any](method string, call func(KanbanServer, context.Context, *Req) (*Reply, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(KanbanServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + kanbanServiceName + "/" + method,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(KanbanServer), ctx, req.(*Req))
			})
		},
	}
}

var kanbanServiceDesc = grpc.ServiceDesc{
	ServiceName: kanbanServiceName,
	HandlerType: (*KanbanServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateKanban", KanbanServer.CreateKanban),
		unaryHandler("CompleteKanban", KanbanServer.CompleteKanban),
		unaryHandler("CancelKanban", KanbanServer.CancelKanban),
		unaryHandler("ExecuteWorkflow", KanbanServer.ExecuteWorkflow),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kanban.proto",
}

// KanbanClient calls a KanbanServer over a connection using the JSON codec.
type KanbanClient struct {
	cc grpc.ClientConnInterface
}

func NewKanbanClient(cc grpc.ClientConnInterface) *KanbanClient {
	return &KanbanClient{cc: cc}
}

func (c *KanbanClient) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(JSONCodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+kanbanServiceName+"/"+method, in, out, opts...)
}

func (c *KanbanClient) CreateKanban(ctx context.Context, in *service.CreateKanbanRequest, opts ...grpc.CallOption) (*KanbanReply, error) {
	out := new(KanbanReply)
	if err := c.invoke(ctx, "CreateKanban", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *KanbanClient) CompleteKanban(ctx context.Context, in *KanbanIDRequest, opts ...grpc.CallOption) (*KanbanReply, error) {
	out := new(KanbanReply)
	if err := c.invoke(ctx, "CompleteKanban", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *KanbanClient) CancelKanban(ctx context.Context, in *KanbanIDRequest, opts ...grpc.CallOption) (*KanbanReply, error) {
	out := new(KanbanReply)
	if err := c.invoke(ctx, "CancelKanban", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *KanbanClient) ExecuteWorkflow(ctx context.Context, in *ExecuteWorkflowRequest, opts ...grpc.CallOption) (*ExecuteWorkflowReply, error) {
	out := new(ExecuteWorkflowReply)
	if err := c.invoke(ctx, "ExecuteWorkflow", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
