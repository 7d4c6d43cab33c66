// Copyright 2026 Hyperlane Relayer Contributors

package agent

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperlane-xyz/relayer/internal/opqueue"
	"github.com/hyperlane-xyz/relayer/internal/store"
)

// Server is the admin/metrics HTTP surface (spec.md §6.3): a bare
// net/http.ServeMux dispatching to handler methods closed over a Runtime,
// mirroring pkg/server/ledger_handlers.go's handler-struct-plus-ServeMux
// shape rather than reaching for a router library.
type Server struct {
	runtime *Runtime
	mux     *http.ServeMux
}

// NewServer builds the admin server's mux. Call Handler to obtain the
// http.Handler to pass to http.Server.
func NewServer(rt *Runtime) *Server {
	s := &Server{runtime: rt, mux: http.NewServeMux()}
	s.mux.Handle("/metrics", s.metricsHandler())
	s.mux.HandleFunc("/list_operations", s.handleListOperations)
	s.mux.HandleFunc("/message_retry", s.handleMessageRetry)
	s.mux.HandleFunc("/eigen/node", s.handleEigenNode)
	s.mux.HandleFunc("/eigen/node/health", s.handleEigenNodeHealth)
	s.mux.HandleFunc("/eigen/node/services", s.handleEigenNodeServices)
	s.mux.HandleFunc("/eigen/node/services/", s.handleEigenNodeServiceHealth)
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) metricsHandler() http.Handler {
	if s.runtime.Metrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"metrics not enabled"}`, http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(s.runtime.Metrics.Registry, promhttp.HandlerOpts{})
}

// listedOperation is the JSON shape of a single /list_operations entry.
type listedOperation struct {
	ID        string    `json:"id"`
	Operation operation `json:"operation"`
}

type operation struct {
	ID                    string `json:"id"`
	DestinationDomain     string `json:"destination_domain"`
	DestinationDomainID   uint32 `json:"destination_domain_id"`
	SenderAddress         string `json:"sender_address"`
	RecipientAddress      string `json:"recipient_address"`
	RetryCount            uint32 `json:"retry_count"`
	SecondsToNextAttempt  int64  `json:"seconds_to_next_attempt"`
	Type                  string `json:"type"`
}

func hex0x(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func (r *Runtime) domainName(id uint32) string {
	if name, ok := r.DomainNames[id]; ok {
		return name
	}
	return strconv.FormatUint(uint64(id), 10)
}

func toListedOperation(rt *Runtime, op *store.PendingOperation) listedOperation {
	id := op.Message.ID()
	idHex := hex0x(id[:])
	secondsToNext := int64(time.Until(op.NextAttemptAfter).Seconds())
	if secondsToNext < 0 {
		secondsToNext = 0
	}
	return listedOperation{
		ID: idHex,
		Operation: operation{
			ID:                   idHex,
			DestinationDomain:    rt.domainName(op.Message.Destination),
			DestinationDomainID:  op.Message.Destination,
			SenderAddress:        hex0x(op.Message.Sender),
			RecipientAddress:     hex0x(op.Message.Recipient),
			RetryCount:           op.RetryCount,
			SecondsToNextAttempt: secondsToNext,
			Type:                 "Message",
		},
	}
}

// handleListOperations answers GET /list_operations?destination_domain=<u32>.
func (s *Server) handleListOperations(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	destinationParam := req.URL.Query().Get("destination_domain")
	var destination uint64
	var err error
	if destinationParam != "" {
		destination, err = strconv.ParseUint(destinationParam, 10, 32)
		if err != nil {
			http.Error(w, `{"error":"invalid destination_domain"}`, http.StatusBadRequest)
			return
		}
	}

	var ops []listedOperation
	for destID, d := range s.runtime.Domains() {
		if destinationParam != "" && uint64(destID) != destination {
			continue
		}
		if d.Processor == nil {
			continue
		}
		for _, op := range d.Processor.Queue.List() {
			ops = append(ops, toListedOperation(s.runtime, op))
		}
	}

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Operation.RetryCount < ops[j].Operation.RetryCount
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ops); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// retryRequest is the POST /message_retry body; exactly one selector field
// is expected to be populated, chosen by Type.
type retryRequest struct {
	Type              string `json:"type"`
	MessageID         string `json:"messageId,omitempty"`
	Sender            string `json:"sender,omitempty"`
	Recipient         string `json:"recipient,omitempty"`
	DestinationDomain *uint32 `json:"destinationDomain,omitempty"`
}

func decodeHexField(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

func (req retryRequest) filter() (opqueue.RetryFilter, error) {
	var f opqueue.RetryFilter
	switch req.Type {
	case "messageId":
		b, err := decodeHexField(req.MessageID)
		if err != nil {
			return f, fmt.Errorf("invalid messageId: %w", err)
		}
		f.MessageID = b
	case "sender":
		b, err := decodeHexField(req.Sender)
		if err != nil {
			return f, fmt.Errorf("invalid sender: %w", err)
		}
		f.Sender = b
	case "recipient":
		b, err := decodeHexField(req.Recipient)
		if err != nil {
			return f, fmt.Errorf("invalid recipient: %w", err)
		}
		f.Recipient = b
	case "destinationDomain":
		if req.DestinationDomain == nil {
			return f, fmt.Errorf("destinationDomain required")
		}
		f.Destination = req.DestinationDomain
	case "all":
		// empty filter matches every queued operation
	default:
		return f, fmt.Errorf("unknown retry type %q", req.Type)
	}
	return f, nil
}

// handleMessageRetry answers POST /message_retry.
func (s *Server) handleMessageRetry(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var body retryRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	filter, err := body.filter()
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}

	matched := 0
	for _, d := range s.runtime.Domains() {
		if d.Processor == nil {
			continue
		}
		matched += d.Processor.Queue.Retry(filter)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"matchedOperations": matched})
}

// handleEigenNode answers GET /eigen/node with static node identity,
// matching the shape the EigenLayer node-api spec requires of every
// registered AVS operator node.
func (s *Server) handleEigenNode(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"node_name":    "hyperlane-relayer",
		"spec_version": "0.1.0",
		"node_version": "0.1.0",
	})
}

// originCheckpointID / destinationServiceID namespace /eigen/node/services
// entries so a single flat id space can address both an origin chain's
// checkpoint health and a destination domain's submitter pipeline.
func originCheckpointID(origin uint32) string {
	return "checkpoint-origin-" + strconv.FormatUint(uint64(origin), 10)
}

func destinationServiceID(destination uint32) string {
	return "submitter-destination-" + strconv.FormatUint(uint64(destination), 10)
}

// handleEigenNodeHealth answers GET /eigen/node/health: 200 when every
// registered origin chain's observed checkpoint index trails the latest
// signed one by at most 1, 206 when the worst trails by up to 10, 503
// beyond that (spec.md §6.3). The relayer's checkpoint delta is tracked
// per origin chain since validator sets are themselves per-origin.
func (s *Server) handleEigenNodeHealth(w http.ResponseWriter, req *http.Request) {
	type originGap struct {
		Observed uint32 `json:"observed_checkpoint"`
		Signed   uint32 `json:"signed_checkpoint"`
		Gap      uint32 `json:"gap"`
	}

	origins := map[string]originGap{}
	var worstGap uint32
	for origin, health := range s.runtime.CheckpointHealthByOrigin() {
		observed, signed := health.Gap(req.Context())
		gap := gapOf(observed, signed)
		if gap > worstGap {
			worstGap = gap
		}
		origins[strconv.FormatUint(uint64(origin), 10)] = originGap{Observed: observed, Signed: signed, Gap: gap}
	}

	status := http.StatusOK
	switch {
	case worstGap > 10:
		status = http.StatusServiceUnavailable
	case worstGap > 1:
		status = http.StatusPartialContent
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"gap":     worstGap,
		"origins": origins,
	})
}

type eigenService struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// handleEigenNodeServices answers GET /eigen/node/services: one service
// per registered origin chain's checkpoint health, plus one per
// registered destination domain's submitter pipeline.
func (s *Server) handleEigenNodeServices(w http.ResponseWriter, req *http.Request) {
	var services []eigenService
	for origin := range s.runtime.CheckpointHealthByOrigin() {
		services = append(services, eigenService{
			ID:          originCheckpointID(origin),
			Name:        fmt.Sprintf("checkpoint-health-%s", s.runtime.domainName(origin)),
			Description: "observed-vs-signed checkpoint delta for one origin chain",
		})
	}
	for destination := range s.runtime.Domains() {
		services = append(services, eigenService{
			ID:          destinationServiceID(destination),
			Name:        fmt.Sprintf("submitter-%s", s.runtime.domainName(destination)),
			Description: "submitter pipeline and op queue processor for one destination domain",
		})
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ID < services[j].ID })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

// handleEigenNodeServiceHealth answers GET /eigen/node/services/{id}/health.
// For a "checkpoint-origin-<id>" service, health reflects that origin's
// checkpoint gap; for a "submitter-destination-<id>" service, health
// reflects whether that destination's pipeline is running.
func (s *Server) handleEigenNodeServiceHealth(w http.ResponseWriter, req *http.Request) {
	rest := strings.TrimPrefix(req.URL.Path, "/eigen/node/services/")
	id, found := strings.CutSuffix(rest, "/health")
	if !found || id == "" {
		http.NotFound(w, req)
		return
	}

	switch {
	case strings.HasPrefix(id, "checkpoint-origin-"):
		s.serveOriginCheckpointHealth(w, req, strings.TrimPrefix(id, "checkpoint-origin-"))
	case strings.HasPrefix(id, "submitter-destination-"):
		s.serveDestinationPipelineHealth(w, strings.TrimPrefix(id, "submitter-destination-"))
	default:
		http.NotFound(w, req)
	}
}

func (s *Server) serveOriginCheckpointHealth(w http.ResponseWriter, req *http.Request, idParam string) {
	originID, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}
	health, ok := s.runtime.CheckpointHealthByOrigin()[uint32(originID)]
	if !ok {
		http.NotFound(w, req)
		return
	}

	observed, signed := health.Gap(req.Context())
	gap := gapOf(observed, signed)
	status := http.StatusOK
	switch {
	case gap > 10:
		status = http.StatusServiceUnavailable
	case gap > 1:
		status = http.StatusPartialContent
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]uint32{
		"observed_checkpoint": observed,
		"signed_checkpoint":   signed,
		"gap":                 gap,
	})
}

func (s *Server) serveDestinationPipelineHealth(w http.ResponseWriter, idParam string) {
	domainID, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		http.Error(w, `{"error":"invalid service id"}`, http.StatusBadRequest)
		return
	}

	d, ok := s.runtime.Domains()[uint32(domainID)]
	if !ok {
		http.Error(w, `{"error":"unknown service"}`, http.StatusNotFound)
		return
	}

	running := d.Pipeline != nil && d.Pipeline.Running()
	status := http.StatusOK
	if !running {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]bool{"running": running})
}
