package handler

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/rl1809/digital-kanban/internal/core/domain"
	"github.com/rl1809/digital-kanban/internal/core/service"
	"github.com/rl1809/digital-kanban/internal/port"
)

type HTTPHandler struct {
	kanbans    *service.KanbanService
	containers *service.ContainerService
	workflows  *service.WorkflowService
	jobs       port.JobRepository
	orders     port.OrderRepository
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type SplitHTTPRequest struct {
	Quantities []int `json:"quantities"`
}

type MergeHTTPRequest struct {
	SerialNumbers []string              `json:"serialNumbers"`
	MergeStrategy service.MergeStrategy `json:"mergeStrategy"`
}

type ReorderHTTPRequest struct {
	JobIDs []string `json:"jobIds"`
}

type UpdateJobHTTPRequest = domain.JobPatch

type OrderStatusHTTPRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func NewHTTPHandler(
	kanbans *service.KanbanService,
	containers *service.ContainerService,
	workflows *service.WorkflowService,
	jobs port.JobRepository,
	orders port.OrderRepository,
) *HTTPHandler {
	return &HTTPHandler{
		kanbans:    kanbans,
		containers: containers,
		workflows:  workflows,
		jobs:       jobs,
		orders:     orders,
	}
}

// Register mounts every route on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	mux.HandleFunc("GET /api/kanbans", h.ListKanbans)
	mux.HandleFunc("POST /api/kanbans", h.CreateKanban)
	mux.HandleFunc("GET /api/kanbans/{id}", h.GetKanban)
	mux.HandleFunc("POST /api/kanbans/{id}/complete", h.CompleteKanban)
	mux.HandleFunc("POST /api/kanbans/{id}/cancel", h.CancelKanban)

	mux.HandleFunc("GET /api/inventory", h.ListInventory)
	mux.HandleFunc("GET /api/containers", h.ListContainers)
	mux.HandleFunc("POST /api/containers", h.CreateContainer)
	mux.HandleFunc("POST /api/containers/{serial}/split", h.SplitContainer)
	mux.HandleFunc("POST /api/containers/merge", h.MergeContainers)

	mux.HandleFunc("GET /api/workflows", h.ListWorkflows)
	mux.HandleFunc("POST /api/workflows/{id}/execute", h.ExecuteWorkflow)

	mux.HandleFunc("GET /api/jobs", h.ListJobs)
	mux.HandleFunc("PATCH /api/jobs/{id}", h.UpdateJob)
	mux.HandleFunc("POST /api/jobs/reorder", h.ReorderJobs)
	mux.HandleFunc("GET /api/work-centers", h.ListWorkCenters)

	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("PATCH /api/orders/{id}", h.UpdateOrderStatus)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) ListKanbans(w http.ResponseWriter, r *http.Request) {
	filter := port.KanbanFilter{
		Type:   domain.KanbanType(r.URL.Query().Get("type")),
		Status: domain.KanbanStatus(r.URL.Query().Get("status")),
	}
	kanbans, err := h.kanbans.ListKanbans(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, kanbans)
}

func (h *HTTPHandler) CreateKanban(w http.ResponseWriter, r *http.Request) {
	var req service.CreateKanbanRequest
	if !decode(w, r, &req) {
		return
	}

	kanban, err := h.kanbans.CreateKanban(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, kanban)
}

func (h *HTTPHandler) GetKanban(w http.ResponseWriter, r *http.Request) {
	kanban, err := h.kanbans.GetKanban(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, kanban)
}

func (h *HTTPHandler) CompleteKanban(w http.ResponseWriter, r *http.Request) {
	kanban, err := h.kanbans.CompleteKanban(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, kanban)
}

func (h *HTTPHandler) CancelKanban(w http.ResponseWriter, r *http.Request) {
	kanban, err := h.kanbans.CancelKanban(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, kanban)
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.containers.ListInventory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, inventory)
}

func (h *HTTPHandler) ListContainers(w http.ResponseWriter, r *http.Request) {
	containers, err := h.containers.ListContainers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, containers)
}

func (h *HTTPHandler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req domain.Container
	if !decode(w, r, &req) {
		return
	}

	container, err := h.containers.CreateContainer(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, container)
}

func (h *HTTPHandler) SplitContainer(w http.ResponseWriter, r *http.Request) {
	var req SplitHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	children, err := h.containers.Split(r.Context(), r.PathValue("serial"), req.Quantities)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, children)
}

func (h *HTTPHandler) MergeContainers(w http.ResponseWriter, r *http.Request) {
	var req MergeHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	merged, err := h.containers.Merge(r.Context(), req.SerialNumbers, req.MergeStrategy)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, merged)
}

type workflowView struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Active      bool       `json:"isActive"`
	Steps       []stepView `json:"steps"`
}

type stepView struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Type   domain.StepType   `json:"type"`
	Order  int               `json:"order"`
	Params domain.StepParams `json:"parameters"`
}

func (h *HTTPHandler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows := h.workflows.ListWorkflows()
	out := make([]workflowView, 0, len(workflows))
	for _, wf := range workflows {
		view := workflowView{ID: wf.ID, Name: wf.Name, Description: wf.Description, Active: wf.Active}
		for _, s := range wf.Steps {
			view.Steps = append(view.Steps, stepView{
				ID:     s.ID,
				Name:   s.Name,
				Type:   s.Params.StepType(),
				Order:  s.Order,
				Params: s.Params,
			})
		}
		out = append(out, view)
	}
	writeData(w, http.StatusOK, out)
}

func (h *HTTPHandler) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var input domain.WorkflowInput
	if !decode(w, r, &input) {
		return
	}

	run, err := h.workflows.ExecuteWorkflow(r.Context(), r.PathValue("id"), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, run)
}

func (h *HTTPHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.ListJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, jobs)
}

func (h *HTTPHandler) UpdateJob(w http.ResponseWriter, r *http.Request) {
	var patch UpdateJobHTTPRequest
	if !decode(w, r, &patch) {
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, Response{Message: "unknown job status"})
		return
	}

	job, err := h.jobs.UpdateJob(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, job)
}

func (h *HTTPHandler) ReorderJobs(w http.ResponseWriter, r *http.Request) {
	var req ReorderHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.jobs.ReorderJobs(r.Context(), req.JobIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "jobs reordered"})
}

func (h *HTTPHandler) ListWorkCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.jobs.ListWorkCenters(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, centers)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, orders)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req OrderStatusHTTPRequest
	if !decode(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, order)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "invalid request body",
		})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		message = err.Error()
	}
	writeJSON(w, status, Response{Success: false, Message: message})
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
