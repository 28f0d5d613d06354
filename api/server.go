package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/bills"
	"github.com/fabfab/billchat/chat"
	"github.com/fabfab/billchat/config"
	"github.com/fabfab/billchat/logging"
)

const (
	msgChatFailed      = "Failed to process chat request"
	msgContentNotFound = "Bill content not found"
	msgBillTooLarge    = "The bill is too large to process at once. Try asking about specific sections or a more focused question."
	msgMissingFields   = "Bill name and query are required"
	msgInvalidBillName = "Invalid bill name"
	msgBillFileMissing = "Bill file not found"
	msgServerError     = "Server error"
)

// BillSource lists bills and serves their extracted text.
type BillSource interface {
	List() []bills.Bill
	Content(ctx context.Context, name string) (string, error)
}

// Asker answers a question about a bill.
type Asker interface {
	Ask(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Server exposes the bill listing and bill chat endpoints.
type Server struct {
	cfg      config.Config
	bills    BillSource
	asker    Asker
	validate *validator.Validate
	logger   *zap.Logger
	handler  http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type billsResponse struct {
	Bills []billResponse `json:"bills"`
}

type billResponse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

type contentResponse struct {
	Content string `json:"content"`
}

type chatRequest struct {
	Bill  string `json:"bill" validate:"required"`
	Query string `json:"query" validate:"required"`
	Mode  string `json:"mode" validate:"omitempty,oneof=auto chunked"`
}

type chatResponse struct {
	Response  string `json:"response"`
	FromCache bool   `json:"fromCache"`
	Path      string `json:"path"`
}

func New(cfg config.Config, billSource BillSource, asker Asker, logger *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		bills:    billSource,
		asker:    asker,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logging.OrNop(logger),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /openapi.yaml", s.handleOpenAPI)
	mux.HandleFunc("GET /api/bills/getAll", s.handleListBills)
	mux.HandleFunc("GET /api/bills/{billName}", s.handleBillContent)
	mux.Handle("POST /api/chat/bill-chat", s.requireAuth(http.HandlerFunc(s.handleBillChat)))

	return s.logRequests(s.recoverPanics(withCORS(mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.Header().Set("Content-Disposition", "inline; filename=\"openapi.yaml\"")
	_, _ = w.Write(openAPISpecYAML)
}

func (s *Server) handleListBills(w http.ResponseWriter, _ *http.Request) {
	list := s.bills.List()
	resp := billsResponse{Bills: make([]billResponse, len(list))}
	for i, bill := range list {
		resp.Bills[i] = billResponse{ID: bill.ID, Name: bill.Name, Filename: bill.Filename}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBillContent(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("billName")

	content, err := s.bills.Content(r.Context(), name)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, contentResponse{Content: content})
	case errors.Is(err, bills.ErrUnknownBill):
		s.writeError(w, http.StatusBadRequest, msgInvalidBillName, err)
	case errors.Is(err, bills.ErrFileNotFound):
		s.writeError(w, http.StatusNotFound, msgBillFileMissing, err)
	default:
		s.writeError(w, http.StatusInternalServerError, msgServerError, err)
	}
}

func (s *Server) handleBillChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", fmt.Errorf("decode request: %w", err))
		return
	}

	req.Bill = strings.TrimSpace(req.Bill)
	req.Query = strings.TrimSpace(req.Query)
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if err := s.validate.Struct(req); err != nil {
		message := msgMissingFields
		if req.Bill != "" && req.Query != "" {
			message = fmt.Sprintf("Unsupported mode %q", req.Mode)
		}
		s.writeError(w, http.StatusBadRequest, message, err)
		return
	}

	resp, err := s.asker.Ask(r.Context(), chat.Request{
		Bill:  req.Bill,
		Query: req.Query,
		Mode:  chat.Mode(req.Mode),
	})
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrValidation):
			s.writeError(w, http.StatusBadRequest, msgMissingFields, err)
		case errors.Is(err, chat.ErrNotFound):
			s.writeError(w, http.StatusNotFound, msgContentNotFound, err)
		case errors.Is(err, chat.ErrQuotaExceeded):
			s.writeError(w, http.StatusTooManyRequests, msgBillTooLarge, err)
		default:
			s.writeError(w, http.StatusInternalServerError, msgChatFailed, err)
		}
		return
	}

	userID, _ := UserID(r.Context())
	s.logger.Debug("bill chat answered",
		zap.String("bill", req.Bill),
		zap.String("user_id", userID),
		zap.String("path", string(resp.Path)),
		zap.Bool("from_cache", resp.FromCache),
	)

	s.writeJSON(w, http.StatusOK, chatResponse{
		Response:  resp.Answer,
		FromCache: resp.FromCache,
		Path:      string(resp.Path),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

// writeError logs cause and sends only the public message.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, cause error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("api error", zap.Int("status", status), zap.Error(cause))
	} else {
		s.logger.Info("api request rejected", zap.Int("status", status), zap.Error(cause))
	}
	s.writeJSON(w, status, errorResponse{Error: message})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}
